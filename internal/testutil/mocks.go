package testutil

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/devaloi/chatrelay/internal/codec"
	"github.com/devaloi/chatrelay/internal/domain"
)

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MockChannel implements hub.Channel for testing.
type MockChannel struct {
	Name   string
	mu     sync.Mutex
	events []domain.Event
	err    error
}

// NewMockChannel creates a new MockChannel with the given name.
func NewMockChannel(name string) *MockChannel {
	return &MockChannel{Name: name}
}

// Deliver records evt, or returns the configured failure.
func (m *MockChannel) Deliver(evt domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, evt)
	return nil
}

// FailWith makes every following Deliver return err.
func (m *MockChannel) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Events returns a copy of all events received.
func (m *MockChannel) Events() []domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]domain.Event, len(m.events))
	copy(cp, m.events)
	return cp
}

// Messages returns the messages carried by received message events.
func (m *MockChannel) Messages() []domain.Message {
	var out []domain.Message
	for _, evt := range m.Events() {
		if evt.Message != nil {
			out = append(out, *evt.Message)
		}
	}
	return out
}

// OfType returns received events of the given type.
func (m *MockChannel) OfType(eventType string) []domain.Event {
	var out []domain.Event
	for _, evt := range m.Events() {
		if evt.Type == eventType {
			out = append(out, evt)
		}
	}
	return out
}

// MockStore implements store.Store in memory.
type MockStore struct {
	mu    sync.Mutex
	snap  codec.Snapshot
	saves int
	err   error
}

// NewMockStore creates a new MockStore holding an empty snapshot.
func NewMockStore() *MockStore {
	return &MockStore{snap: codec.NewSnapshot()}
}

// Load returns the last saved snapshot.
func (s *MockStore) Load(_ context.Context) (codec.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap, nil
}

// Save keeps snap, or returns the configured failure.
func (s *MockStore) Save(_ context.Context, snap codec.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.snap = snap
	s.saves++
	return nil
}

// FailWith makes every following Save return err.
func (s *MockStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Saves returns the number of successful saves.
func (s *MockStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// Snapshot returns the last saved snapshot.
func (s *MockStore) Snapshot() codec.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Close is a no-op for the mock store.
func (s *MockStore) Close() error { return nil }
