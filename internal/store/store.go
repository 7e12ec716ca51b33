package store

import (
	"context"
	"fmt"

	"github.com/devaloi/chatrelay/internal/codec"
)

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// Store defines the snapshot persistence interface.
type Store interface {
	// Load returns the last saved snapshot, or an empty one when nothing was
	// saved yet.
	Load(ctx context.Context) (codec.Snapshot, error)
	// Save replaces the persisted state with s.
	Save(ctx context.Context, s codec.Snapshot) error
	// Close releases any resources held by the store.
	Close() error
}

// Open creates the store for backend at path. The codec is used by the
// document backends (file, badger); SQLite stores rows.
func Open(backend, path string, c codec.Codec) (Store, error) {
	switch backend {
	case BackendFile:
		return NewFile(path, c), nil
	case BackendSQLite:
		return NewSQLite(path)
	case BackendBadger:
		return NewBadger(path, c)
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
