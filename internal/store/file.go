package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"

	"github.com/devaloi/chatrelay/internal/codec"
)

// FileStore keeps the snapshot as a single document on disk. Every Save
// replaces the file atomically so a crash never leaves a torn document.
type FileStore struct {
	path  string
	codec codec.Codec
}

// NewFile returns a FileStore writing to path with the given codec.
func NewFile(path string, c codec.Codec) *FileStore {
	return &FileStore{path: path, codec: c}
}

// Load reads the document. A missing file yields an empty snapshot.
func (s *FileStore) Load(_ context.Context) (codec.Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return codec.NewSnapshot(), nil
	}
	if err != nil {
		return codec.Snapshot{}, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return codec.NewSnapshot(), nil
	}
	return s.codec.Decode(data)
}

// Save encodes s and atomically replaces the document.
func (s *FileStore) Save(_ context.Context, snap codec.Snapshot) error {
	data, err := s.codec.Encode(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return atomic.WriteFile(s.path, bytes.NewReader(data))
}

// Close is a no-op; the file is not held open between saves.
func (s *FileStore) Close() error { return nil }
