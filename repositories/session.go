package repositories

import (
	"chat-session/contract"
	"chat-session/domain"
	"encoding/json"
	"fmt"
	"log/slog"
)

// SessionRepository reads and encodes the two session records:
// "rooms" is an ordered array of Room, "messages" maps a room id to its ordered log.
type SessionRepository struct {
	store contract.RecordStore
	log   *slog.Logger
}

func NewSessionRepository(store contract.RecordStore, log *slog.Logger) SessionRepository {
	return SessionRepository{store: store, log: log}
}

// Encode serializes a record value for the store.
func Encode(record any) ([]byte, error) {
	return json.Marshal(record)
}

// Load reads both records. A record that was never written stays nil in the snapshot.
func (s SessionRepository) Load() (domain.Snapshot, error) {
	var snapshot domain.Snapshot

	raw, ok, err := s.store.Get(domain.RoomsRecord)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("read %s record: %w", domain.RoomsRecord, err)
	}
	if ok {
		rooms := []domain.Room{}
		if err = json.Unmarshal(raw, &rooms); err != nil {
			return domain.Snapshot{}, fmt.Errorf("decode %s record: %w", domain.RoomsRecord, err)
		}
		snapshot.Rooms = rooms
	}

	raw, ok, err = s.store.Get(domain.MessagesRecord)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("read %s record: %w", domain.MessagesRecord, err)
	}
	if ok {
		messages := map[domain.RoomID][]domain.Message{}
		if err = json.Unmarshal(raw, &messages); err != nil {
			return domain.Snapshot{}, fmt.Errorf("decode %s record: %w", domain.MessagesRecord, err)
		}
		snapshot.Messages = messages
	}

	s.log.Debug("Session records loaded", "rooms", len(snapshot.Rooms), "logs", len(snapshot.Messages))
	return snapshot, nil
}
