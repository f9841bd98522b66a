// Package runtime owns the session state and the operations mutating it.
// Every mutation runs to completion under the state lock; ports are only
// called with the lock released.
package runtime

import (
	"chat-session/contract"
	"chat-session/domain"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/samber/lo"
)

// State is the single session value. It is created once, restored from the
// durable records, then handed to the services layer for the process lifetime.
type State struct {
	mu          sync.Mutex
	log         *slog.Logger
	writer      contract.RecordWriter
	archiver    contract.MessageArchiver
	rooms       []domain.Room
	current     *domain.RoomID
	messages    map[domain.RoomID][]domain.Message
	hasMore     map[domain.RoomID]bool
	typing      map[domain.RoomID]bool
	cursors     map[domain.RoomID]domain.Cursor
	loading     map[domain.RoomID]bool
	turns       map[domain.RoomID]TurnState
	messageIDs  map[domain.MessageID]struct{}
	searchQuery string
}

func NewState(writer contract.RecordWriter, log *slog.Logger) *State {
	return &State{
		log:        log,
		writer:     writer,
		messages:   make(map[domain.RoomID][]domain.Message),
		hasMore:    make(map[domain.RoomID]bool),
		typing:     make(map[domain.RoomID]bool),
		cursors:    make(map[domain.RoomID]domain.Cursor),
		loading:    make(map[domain.RoomID]bool),
		turns:      make(map[domain.RoomID]TurnState),
		messageIDs: make(map[domain.MessageID]struct{}),
	}
}

// WithArchiver keeps a durable copy of every appended message.
func (s *State) WithArchiver(archiver contract.MessageArchiver) *State {
	s.archiver = archiver
	return s
}

// Restore hydrates the state from the persisted records.
// Every room found in the messages record may have unseen older history, so
// hasMore starts true for it. Stale summaries are reported, not repaired.
func (s *State) Restore(snapshot domain.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rooms = slices.Clone(snapshot.Rooms)
	known := make(map[domain.RoomID]struct{}, len(s.rooms))
	for _, room := range s.rooms {
		known[room.ID] = struct{}{}
		s.messages[room.ID] = []domain.Message{}
		s.hasMore[room.ID] = false
	}

	for roomID, log := range snapshot.Messages {
		if _, ok := known[roomID]; !ok {
			s.log.Warn("Dropping message log of unknown room", "room_id", roomID, "messages", len(log))
			continue
		}
		s.messages[roomID] = log
		s.hasMore[roomID] = true
		s.cursors[roomID] = domain.CursorOf(log)
		for _, message := range log {
			s.messageIDs[message.ID] = struct{}{}
		}
	}

	for _, room := range s.rooms {
		if room.IsStale(s.messages[room.ID]) {
			s.log.Warn("Room summary is stale relative to its log",
				"room_id", room.ID, "message_count", room.MessageCount, "log_length", len(s.messages[room.ID]))
		}
	}
	s.log.Info("Session hydrated", "rooms", len(s.rooms))
}

// Snapshot returns a copy of the whole session for readers.
func (s *State) Snapshot() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := make(map[domain.RoomID][]domain.Message, len(s.messages))
	for roomID, log := range s.messages {
		messages[roomID] = slices.Clone(log)
	}
	var current *domain.RoomID
	if s.current != nil {
		id := *s.current
		current = &id
	}
	return domain.SessionState{
		Rooms:          lo.Map(s.rooms, copyRoom),
		CurrentRoomID:  current,
		MessagesByRoom: messages,
		HasMoreByRoom:  maps.Clone(s.hasMore),
		TypingByRoom:   maps.Clone(s.typing),
		SearchQuery:    s.searchQuery,
	}
}

func copyRoom(room domain.Room, _ int) domain.Room {
	if room.LastMessagePreview != nil {
		room.LastMessagePreview = lo.ToPtr(*room.LastMessagePreview)
	}
	return room
}

func (s *State) SetSearchQuery(query string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchQuery = query
}

func (s *State) SearchQuery() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searchQuery
}

// Cursor returns the oldest loaded message of a room.
func (s *State) Cursor(roomID domain.RoomID) domain.Cursor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursors[roomID]
}

// TurnState returns Idle for rooms without a turn in flight.
func (s *State) TurnState(roomID domain.RoomID) TurnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turns[roomID]
}

func (s *State) indexLocked(roomID domain.RoomID) int {
	return slices.IndexFunc(s.rooms, func(room domain.Room) bool {
		return room.ID == roomID
	})
}

func (s *State) existsLocked(roomID domain.RoomID) bool {
	return s.indexLocked(roomID) >= 0
}

// summarizeLocked is the one place deriving a room's preview and count.
// Every mutator changing a log calls it before writing through.
func (s *State) summarizeLocked(roomID domain.RoomID) {
	if i := s.indexLocked(roomID); i >= 0 {
		s.rooms[i].Summarize(s.messages[roomID])
	}
	s.cursors[roomID] = domain.CursorOf(s.messages[roomID])
}

func (s *State) appendLocked(message domain.Message) {
	s.messages[message.RoomID] = append(s.messages[message.RoomID], message)
	s.messageIDs[message.ID] = struct{}{}
	s.summarizeLocked(message.RoomID)
	s.writeThroughLocked()
}

// prependLocked inserts a chronological batch before the oldest loaded message,
// skipping ids already present in the session.
func (s *State) prependLocked(roomID domain.RoomID, batch []domain.Message) []domain.Message {
	fresh := make([]domain.Message, 0, len(batch))
	for _, message := range batch {
		if _, seen := s.messageIDs[message.ID]; seen {
			continue
		}
		message.RoomID = roomID
		s.messageIDs[message.ID] = struct{}{}
		fresh = append(fresh, message)
	}
	if len(fresh) == 0 {
		return nil
	}
	s.messages[roomID] = append(slices.Clone(fresh), s.messages[roomID]...)
	s.summarizeLocked(roomID)
	s.writeThroughLocked()
	return fresh
}

// writeThroughLocked hands copies of both records to the writer.
// Logs are append-only or replaced on prepend, so sharing their backing arrays is safe.
func (s *State) writeThroughLocked() {
	s.writer.Submit(domain.MessagesRecord, maps.Clone(s.messages))
	s.writer.Submit(domain.RoomsRecord, slices.Clone(s.rooms))
}

// archive runs with the lock released, so a room may be deleted and purged
// before its message lands. Such a room is purged again.
func (s *State) archive(messages ...domain.Message) {
	if s.archiver == nil {
		return
	}
	for _, message := range messages {
		if err := s.archiver.Archive(message); err != nil {
			s.log.Error("Archiving message failed", "room_id", message.RoomID, "message_id", message.ID, "error", err)
			continue
		}
		s.mu.Lock()
		exists := s.existsLocked(message.RoomID)
		s.mu.Unlock()
		if !exists {
			s.log.Debug("Room deleted while archiving", "room_id", message.RoomID, "message_id", message.ID)
			s.purge(message.RoomID)
		}
	}
}

func (s *State) purge(roomID domain.RoomID) {
	if s.archiver == nil {
		return
	}
	if err := s.archiver.Purge(roomID); err != nil {
		s.log.Error("Purging archived messages failed", "room_id", roomID, "error", err)
	}
}
