package workers

import (
	"chat-session/contract"
	"chat-session/domain"
	"chat-session/errors"
	"chat-session/repositories"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// RecordWriter is the single writer of the session records.
// Submit only queues: the latest pending value of a key replaces any older
// pending one, and drains write keys in the order they were first queued.
// Because one drain runs at a time, a later write of a key always lands after
// an earlier one: last write wins.
type RecordWriter struct {
	mu       sync.Mutex
	writeMu  sync.Mutex
	store    contract.RecordStore
	log      *slog.Logger
	pending  map[domain.RecordKey]any
	order    []domain.RecordKey
	signal   chan struct{}
	failures chan error
}

func NewRecordWriter(store contract.RecordStore, log *slog.Logger, failureBuffer int) *RecordWriter {
	return &RecordWriter{
		store:    store,
		log:      log,
		pending:  make(map[domain.RecordKey]any),
		signal:   make(chan struct{}, 1),
		failures: make(chan error, failureBuffer),
	}
}

func (w *RecordWriter) Submit(key domain.RecordKey, record any) {
	w.mu.Lock()
	if _, ok := w.pending[key]; !ok {
		w.order = append(w.order, key)
	}
	w.pending[key] = record
	w.mu.Unlock()

	select {
	case w.signal <- struct{}{}:
	default:
	}
}

// Pending lists the records queued and not yet written, in write order.
func (w *RecordWriter) Pending() []domain.RecordKey {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.order)
}

// Failures publishes write-through errors wrapped with ErrPersistenceFailure.
// Errors are dropped when nobody drains the channel.
func (w *RecordWriter) Failures() <-chan error {
	return w.failures
}

// Run drains pending records each time something is submitted, and once more
// on shutdown so nothing accepted is lost. Records left by a crashed run are
// drained on start.
func (w *RecordWriter) Run(ctx context.Context) error {
	w.Flush()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping record writer")
			w.Flush()
			return ctx.Err()
		case <-w.signal:
			w.Flush()
		}
	}
}

// Flush writes every pending record now and returns the first failure.
func (w *RecordWriter) Flush() error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	w.mu.Lock()
	order, pending := w.order, w.pending
	w.order, w.pending = nil, make(map[domain.RecordKey]any)
	w.mu.Unlock()

	written := 0
	defer func() {
		if r := recover(); r != nil {
			w.requeue(order[written:], pending)
			panic(r)
		}
	}()

	var first error
	for _, key := range order {
		err := w.write(key, pending[key])
		written++
		if err != nil {
			if first == nil {
				first = err
			}
			w.log.Error("Write-through failed", "record", key, "error", err)
			select {
			case w.failures <- err:
			default:
			}
		}
	}
	return first
}

// requeue puts back records a crashed drain did not write, unless a newer
// value was submitted meanwhile.
func (w *RecordWriter) requeue(keys []domain.RecordKey, values map[domain.RecordKey]any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var missing []domain.RecordKey
	for _, key := range keys {
		if _, ok := w.pending[key]; ok {
			continue
		}
		w.pending[key] = values[key]
		missing = append(missing, key)
	}
	w.order = append(missing, w.order...)
}

func (w *RecordWriter) write(key domain.RecordKey, record any) error {
	value, err := repositories.Encode(record)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", errors.ErrPersistenceFailure, key, err)
	}
	if err = w.store.Put(key, value); err != nil {
		return fmt.Errorf("%w: put %s: %w", errors.ErrPersistenceFailure, key, err)
	}
	w.log.Debug("Record written", "record", key, "bytes", len(value))
	return nil
}
