// Package history keeps the append-only message log of every conversation.
package history

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/devaloi/chatrelay/internal/domain"
)

const stripeCount = 32

type stripe struct {
	mu   sync.RWMutex
	logs map[string][]domain.Message
}

// Store holds one ordered log per conversation key. Keys are spread over
// lock stripes so appends to different conversations rarely contend.
type Store struct {
	stripes [stripeCount]stripe
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used to stamp appended messages.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{now: func() time.Time { return time.Now().UTC() }}
	for i := range s.stripes {
		s.stripes[i].logs = make(map[string][]domain.Message)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) stripe(key string) *stripe {
	return &s.stripes[xxhash.Sum64String(key)%stripeCount]
}

// CreateLog makes an empty log for key. It reports false when the log
// already existed.
func (s *Store) CreateLog(key string) bool {
	st := s.stripe(key)
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.logs[key]; ok {
		return false
	}
	st.logs[key] = []domain.Message{}
	return true
}

// Append stamps msg and adds it to the end of the log for key. Direct logs
// are created on first append; a group log must already exist.
// The stamped timestamp never goes backwards within one log.
func (s *Store) Append(key string, msg domain.Message) (domain.Message, error) {
	st := s.stripe(key)
	st.mu.Lock()
	defer st.mu.Unlock()

	log, ok := st.logs[key]
	if !ok && msg.IsGroup {
		return domain.Message{}, fmt.Errorf("%w: %q", domain.ErrUnknownGroup, key)
	}

	msg.Timestamp = s.now()
	if n := len(log); n > 0 && msg.Timestamp.Before(log[n-1].Timestamp) {
		msg.Timestamp = log[n-1].Timestamp
	}
	st.logs[key] = append(log, msg)
	return msg, nil
}

// Get returns a copy of the log for key, or an empty slice for an unknown key.
func (s *Store) Get(key string) []domain.Message {
	st := s.stripe(key)
	st.mu.RLock()
	defer st.mu.RUnlock()
	log := st.logs[key]
	out := make([]domain.Message, len(log))
	copy(out, log)
	return out
}

// Has reports whether a log exists for key.
func (s *Store) Has(key string) bool {
	st := s.stripe(key)
	st.mu.RLock()
	defer st.mu.RUnlock()
	_, ok := st.logs[key]
	return ok
}

// Len returns the number of messages logged under key.
func (s *Store) Len(key string) int {
	st := s.stripe(key)
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.logs[key])
}

// Keys returns every conversation key, sorted.
func (s *Store) Keys() []string {
	var keys []string
	for i := range s.stripes {
		st := &s.stripes[i]
		st.mu.RLock()
		for k := range st.logs {
			keys = append(keys, k)
		}
		st.mu.RUnlock()
	}
	sort.Strings(keys)
	return keys
}

// Snapshot copies every log. Each log is copied under its stripe lock, so
// every copied log is a prefix-consistent view.
func (s *Store) Snapshot() map[string][]domain.Message {
	out := make(map[string][]domain.Message)
	for i := range s.stripes {
		st := &s.stripes[i]
		st.mu.RLock()
		for k, log := range st.logs {
			cp := make([]domain.Message, len(log))
			copy(cp, log)
			out[k] = cp
		}
		st.mu.RUnlock()
	}
	return out
}

// Restore replaces all logs with logs. Used once at startup.
func (s *Store) Restore(logs map[string][]domain.Message) {
	for i := range s.stripes {
		st := &s.stripes[i]
		st.mu.Lock()
		st.logs = make(map[string][]domain.Message)
		st.mu.Unlock()
	}
	for key, msgs := range logs {
		st := s.stripe(key)
		st.mu.Lock()
		cp := make([]domain.Message, len(msgs))
		copy(cp, msgs)
		st.logs[key] = cp
		st.mu.Unlock()
	}
}
