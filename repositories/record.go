package repositories

import (
	"chat-session/domain"
	"errors"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

// RecordPrefix namespaces whole records from archived messages.
const RecordPrefix = "record:"

// RecordRepository stores whole records in BadgerDB, one key per record.
// Each Put overwrites the previous value: there is no partial or delta write.
type RecordRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewRecordRepository(db *badger.DB, log *slog.Logger) RecordRepository {
	return RecordRepository{db: db, log: log}
}

func recordKey(key domain.RecordKey) []byte {
	return []byte(RecordPrefix + string(key))
}

func (r RecordRepository) Put(key domain.RecordKey, value []byte) error {
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(key), value)
	})
}

func (r RecordRepository) Get(key domain.RecordKey) ([]byte, bool, error) {
	var value []byte
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}
