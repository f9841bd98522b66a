package repositories

import (
	"bytes"
	"chat-session/domain"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
)

// MessageArchive keeps every message under a time-ordered key and serves
// backward pagination from it.
type MessageArchive struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageArchive(db *badger.DB, log *slog.Logger) MessageArchive {
	return MessageArchive{db: db, log: log}
}

const ArchivePrefix = "msg:"

func roomPrefix(roomID domain.RoomID) string {
	return fmt.Sprintf("%s%s:", ArchivePrefix, roomID)
}

// archiveKey is formatted as "msg:{room_id}:{timestamp_padded}:{message_id}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using the message id as a collision disconnector if two messages
//     arrive at the same nanosecond.
func archiveKey(roomID domain.RoomID, cursor domain.Cursor) []byte {
	return []byte(fmt.Sprintf("%s%019d:%s", roomPrefix(roomID), cursor.At.UnixNano(), cursor.MessageID))
}

func (m MessageArchive) Archive(message domain.Message) error {
	value, err := json.Marshal(message)
	if err != nil {
		return err
	}
	key := archiveKey(message.RoomID, domain.Cursor{MessageID: message.ID, At: message.Timestamp})
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// Purge removes every archived message of a room.
func (m MessageArchive) Purge(roomID domain.RoomID) error {
	return m.db.DropPrefix([]byte(roomPrefix(roomID)))
}

// FetchBefore scans the room backwards, starting strictly before the cursor
// (or at the newest message for a zero cursor), and returns up to limit
// messages in chronological order.
func (m MessageArchive) FetchBefore(_ context.Context, roomID domain.RoomID, before domain.Cursor, limit int) ([]domain.Message, error) {
	var messages []domain.Message
	prefix := []byte(roomPrefix(roomID))

	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch {
		case before.IsZero():
			// Past the newest possible key of the room, the first item is the newest message
			seekKey = append(bytes.Clone(prefix), 0xff)
		default:
			seekKey = archiveKey(roomID, before)
		}

		it.Seek(seekKey)
		if !before.IsZero() && it.ValidForPrefix(prefix) && bytes.Equal(it.Item().Key(), seekKey) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(messages) == limit {
				m.log.Debug(fmt.Sprintf("Maximum of %d message reached", limit))
				break
			}
			err := it.Item().Value(func(value []byte) error {
				var message domain.Message
				if err := json.Unmarshal(value, &message); err != nil {
					return err
				}
				messages = append(messages, message)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lo.Reverse(messages), nil
}
