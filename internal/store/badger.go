package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/devaloi/chatrelay/internal/codec"
)

var snapshotKey = []byte("snapshot")

// BadgerStore keeps the codec-encoded snapshot under a single key.
type BadgerStore struct {
	db    *badger.DB
	codec codec.Codec
}

// NewBadger opens or creates a Badger database in dir.
func NewBadger(dir string, c codec.Codec) (*BadgerStore, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerStore{db: db, codec: c}, nil
}

// Load reads the snapshot key. A missing key yields an empty snapshot.
func (s *BadgerStore) Load(_ context.Context) (codec.Snapshot, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey)
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return codec.NewSnapshot(), nil
	}
	if err != nil {
		return codec.Snapshot{}, err
	}
	return s.codec.Decode(data)
}

// Save overwrites the snapshot key.
func (s *BadgerStore) Save(_ context.Context, snap codec.Snapshot) error {
	data, err := s.codec.Encode(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(snapshotKey, data)
	})
}

// Close flushes and closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
