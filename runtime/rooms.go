package runtime

import (
	"chat-session/contract"
	"chat-session/domain"
	"chat-session/errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// RoomRegistry creates, selects, deletes and filters rooms.
// Rooms are ordered most recently created first.
type RoomRegistry struct {
	state    *State
	clock    contract.Clock
	validate *validator.Validate
	log      *slog.Logger
}

func NewRoomRegistry(state *State, clock contract.Clock, log *slog.Logger) *RoomRegistry {
	return &RoomRegistry{state: state, clock: clock, validate: validator.New(), log: log}
}

// CreateRoom inserts a new room at the front and makes it current.
// A blank title defaults to "Chat {n}".
func (r *RoomRegistry) CreateRoom(title string) (domain.Room, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	return r.createLocked(title)
}

func (r *RoomRegistry) createLocked(title string) (domain.Room, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = domain.DefaultTitle(len(r.state.rooms) + 1)
	}
	room := domain.Room{
		ID:        domain.RoomID(uuid.NewString()),
		Title:     title,
		CreatedAt: r.clock.Now(),
	}
	if err := r.validate.Struct(room); err != nil {
		return domain.Room{}, fmt.Errorf("%w: %w", errors.ErrInvalidInput, err)
	}

	r.state.rooms = append([]domain.Room{room}, r.state.rooms...)
	// A brand-new room has no history to page in
	r.state.messages[room.ID] = []domain.Message{}
	r.state.hasMore[room.ID] = false
	r.state.cursors[room.ID] = domain.Cursor{}
	r.state.current = lo.ToPtr(room.ID)
	r.state.writeThroughLocked()

	r.log.Info("Room created", "room_id", room.ID, "title", room.Title)
	return room, nil
}

// DeleteRoom removes the room with its log, typing and pagination flags.
// Deleting an unknown room is a no-op.
func (r *RoomRegistry) DeleteRoom(roomID domain.RoomID) {
	r.state.mu.Lock()
	i := r.state.indexLocked(roomID)
	if i < 0 {
		r.state.mu.Unlock()
		return
	}
	for _, message := range r.state.messages[roomID] {
		delete(r.state.messageIDs, message.ID)
	}
	r.state.rooms = append(r.state.rooms[:i:i], r.state.rooms[i+1:]...)
	delete(r.state.messages, roomID)
	delete(r.state.hasMore, roomID)
	delete(r.state.typing, roomID)
	delete(r.state.cursors, roomID)
	delete(r.state.loading, roomID)
	// A reply still in flight finds the room gone and fails the turn
	delete(r.state.turns, roomID)
	if r.state.current != nil && *r.state.current == roomID {
		r.state.current = nil
	}
	r.state.writeThroughLocked()
	r.state.mu.Unlock()

	r.state.purge(roomID)
	r.log.Info("Room deleted", "room_id", roomID)
}

func (r *RoomRegistry) SelectRoom(roomID domain.RoomID) error {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	if !r.state.existsLocked(roomID) {
		return fmt.Errorf("%w: %s", errors.ErrNotFound, roomID)
	}
	r.state.current = lo.ToPtr(roomID)
	return nil
}

// FilterRooms matches query case-insensitively against titles, keeping room order.
// It is computed on each call and returns copies.
func (r *RoomRegistry) FilterRooms(query string) []domain.Room {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	needle := strings.ToLower(query)
	matching := lo.Filter(r.state.rooms, func(room domain.Room, _ int) bool {
		return strings.Contains(strings.ToLower(room.Title), needle)
	})
	return lo.Map(matching, copyRoom)
}
