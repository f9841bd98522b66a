package runtime

import (
	"chat-session/contract"
	"chat-session/domain"
	"chat-session/errors"
	"context"
	"fmt"
	"log/slog"
)

const (
	DefaultHistoryBatchSize = 20
	DefaultExhaustionCount  = 100
)

// MessageLog appends to room logs and pages older history in.
type MessageLog struct {
	state     *State
	history   contract.HistoryFetcher
	log       *slog.Logger
	batchSize int
	exhaustAt int
}

func NewMessageLog(state *State, history contract.HistoryFetcher, log *slog.Logger, batchSize, exhaustAt int) *MessageLog {
	if batchSize <= 0 {
		batchSize = DefaultHistoryBatchSize
	}
	if exhaustAt <= 0 {
		exhaustAt = DefaultExhaustionCount
	}
	return &MessageLog{state: state, history: history, log: log, batchSize: batchSize, exhaustAt: exhaustAt}
}

// Append adds a message at the end of the room's log.
func (l *MessageLog) Append(roomID domain.RoomID, message domain.Message) error {
	if message.RoomID == "" {
		message.RoomID = roomID
	}
	l.state.mu.Lock()
	if err := l.checkAppendLocked(roomID, message); err != nil {
		l.state.mu.Unlock()
		return err
	}
	l.state.appendLocked(message)
	l.state.mu.Unlock()

	l.state.archive(message)
	return nil
}

func (l *MessageLog) checkAppendLocked(roomID domain.RoomID, message domain.Message) error {
	if !l.state.existsLocked(roomID) {
		return fmt.Errorf("%w: %s", errors.ErrNotFound, roomID)
	}
	if message.RoomID != roomID {
		return fmt.Errorf("%w: message belongs to room %s", errors.ErrInvalidInput, message.RoomID)
	}
	if message.ID == "" {
		return fmt.Errorf("%w: message without id", errors.ErrInvalidInput)
	}
	if _, seen := l.state.messageIDs[message.ID]; seen {
		return fmt.Errorf("%w: duplicate message id %s", errors.ErrInvalidInput, message.ID)
	}
	return nil
}

// LoadOlder prepends the batch of messages preceding the oldest loaded one.
// It resolves immediately with nothing when the room has no more history or
// a load is already in flight for it, so concurrent triggers load once.
// Once the room holds more than the exhaustion count, hasMore turns false.
func (l *MessageLog) LoadOlder(ctx context.Context, roomID domain.RoomID) ([]domain.Message, error) {
	l.state.mu.Lock()
	if !l.state.existsLocked(roomID) {
		l.state.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", errors.ErrNotFound, roomID)
	}
	if !l.state.hasMore[roomID] || l.state.loading[roomID] {
		l.state.mu.Unlock()
		return nil, nil
	}
	l.state.loading[roomID] = true
	cursor := l.state.cursors[roomID]
	l.state.mu.Unlock()

	batch, err := l.history.FetchBefore(ctx, roomID, cursor, l.batchSize)

	l.state.mu.Lock()
	defer l.state.mu.Unlock()
	delete(l.state.loading, roomID)

	if err != nil {
		l.log.Warn("Loading older messages failed", "room_id", roomID, "error", err)
		return nil, fmt.Errorf("%w: %w", errors.ErrHistoryFailure, err)
	}
	if !l.state.existsLocked(roomID) {
		return nil, fmt.Errorf("%w: %s deleted while loading", errors.ErrNotFound, roomID)
	}

	added := l.state.prependLocked(roomID, batch)
	if len(l.state.messages[roomID]) > l.exhaustAt {
		l.state.hasMore[roomID] = false
	}
	l.log.Debug("Older messages loaded", "room_id", roomID, "count", len(added), "has_more", l.state.hasMore[roomID])
	return added, nil
}
