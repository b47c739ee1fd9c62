package client

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStateStore keeps resume state in an embedded Badger database so an
// interrupted transfer survives a process restart.
type BadgerStateStore struct {
	db *badger.DB
}

var _ StateStore = (*BadgerStateStore)(nil)

func OpenBadgerStateStore(dir string) (*BadgerStateStore, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to open state store %s: %w", dir, err)
	}
	return &BadgerStateStore{db: db}, nil
}

func (b *BadgerStateStore) Load(key string, v any) error {
	return b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNoState
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, v)
		})
	})
}

func (b *BadgerStateStore) Save(key string, v any) error {
	val, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), val)
	})
}

func (b *BadgerStateStore) Delete(key string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

func (b *BadgerStateStore) Close() error {
	return b.db.Close()
}
