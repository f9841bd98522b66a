//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-session/domain"
	"context"
	"reflect"
	"time"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Clock supplies time and every source of non-determinism of a turn.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
	RandomDelay(min, max time.Duration) time.Duration
	RandomChoice(options []string) string
}

// TurnContext is what the reply port gets to answer.
type TurnContext struct {
	RoomID  domain.RoomID
	Trigger domain.Message
}

// ReplyGenerator produces the content of the agent message closing a turn.
// Latency is part of the port: implementations may block until the reply is ready.
type ReplyGenerator interface {
	Reply(ctx context.Context, turn TurnContext) (string, error)
}

// HistoryFetcher returns up to limit messages strictly older than before,
// in chronological order. A zero cursor asks for the newest messages.
type HistoryFetcher interface {
	FetchBefore(ctx context.Context, roomID domain.RoomID, before domain.Cursor, limit int) ([]domain.Message, error)
}

// MessageArchiver keeps a durable copy of every message for history paging.
type MessageArchiver interface {
	Archive(message domain.Message) error
	Purge(roomID domain.RoomID) error
}

// RecordStore is durable key/value storage for whole records.
type RecordStore interface {
	Put(key domain.RecordKey, value []byte) error
	// Get returns ok=false when the record was never written.
	Get(key domain.RecordKey) (value []byte, ok bool, err error)
}

// RecordWriter accepts write-through requests. Submit never blocks on I/O.
type RecordWriter interface {
	Submit(key domain.RecordKey, record any)
}

// BacklogReporter is implemented by workers holding records not yet written.
// The supervisor reports the backlog when such a worker crashes.
type BacklogReporter interface {
	Pending() []domain.RecordKey
}
