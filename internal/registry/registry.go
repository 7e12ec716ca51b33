// Package registry tracks registered users, groups, and group membership.
package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/devaloi/chatrelay/internal/domain"
)

// LogCreator creates the history log backing a new group.
type LogCreator interface {
	CreateLog(key string) bool
}

// Registry owns the user and group sets.
type Registry struct {
	mu     sync.RWMutex
	users  map[string]struct{}
	groups map[string][]string
	order  []string
	logs   LogCreator
}

// New creates an empty Registry that creates group logs through logs.
func New(logs LogCreator) *Registry {
	return &Registry{
		users:  make(map[string]struct{}),
		groups: make(map[string][]string),
		logs:   logs,
	}
}

// Normalize trims name and rejects blank names and names using the
// conversation key separator.
func Normalize(name string) (string, error) {
	name = strings.TrimSpace(name)
	if err := domain.CheckName(name); err != nil {
		return "", err
	}
	return name, nil
}

// RegisterUser adds username. Registering a name twice fails with
// ErrAlreadyExists.
func (r *Registry) RegisterUser(username string) (string, error) {
	name, err := Normalize(username)
	if err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[name]; ok {
		return "", fmt.Errorf("%w: user %q", domain.ErrAlreadyExists, name)
	}
	r.users[name] = struct{}{}
	return name, nil
}

// CreateGroup adds a group and its empty history log in one step. The check
// and the insert happen under the same lock so concurrent callers creating
// the same name get exactly one success.
func (r *Registry) CreateGroup(groupName string) (string, error) {
	name, err := Normalize(groupName)
	if err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.groups[name]; ok {
		return "", fmt.Errorf("%w: group %q", domain.ErrAlreadyExists, name)
	}
	// A log left by a snapshot without a matching group is never adopted.
	if !r.logs.CreateLog(name) {
		return "", fmt.Errorf("%w: conversation %q", domain.ErrAlreadyExists, name)
	}
	r.groups[name] = []string{}
	r.order = append(r.order, name)
	return name, nil
}

// JoinGroup adds username to the members of groupName. Joining twice is a no-op.
func (r *Registry) JoinGroup(groupName, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	members, ok := r.groups[groupName]
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownGroup, groupName)
	}
	if _, ok := r.users[username]; !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownSender, username)
	}
	if lo.Contains(members, username) {
		return nil
	}
	r.groups[groupName] = append(members, username)
	return nil
}

// ListUsers returns every registered username in lexicographic order.
func (r *Registry) ListUsers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := lo.Keys(r.users)
	sort.Strings(users)
	return users
}

// ListGroups returns group names in creation order.
func (r *Registry) ListGroups() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string{}, r.order...)
}

// IsRegistered reports whether username has been registered.
func (r *Registry) IsRegistered(username string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[username]
	return ok
}

// GroupExists reports whether groupName has been created.
func (r *Registry) GroupExists(groupName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.groups[groupName]
	return ok
}

// Members returns a copy of the members of groupName.
func (r *Registry) Members(groupName string) ([]string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members, ok := r.groups[groupName]
	if !ok {
		return nil, false
	}
	return append([]string{}, members...), true
}

// Groups copies the group membership table for persistence.
func (r *Registry) Groups() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string][]string, len(r.groups))
	for name, members := range r.groups {
		out[name] = append([]string{}, members...)
	}
	return out
}

// RestoreGroups replaces the group table with groups, making sure each group
// has a history log. Restored groups are ordered by name since the persisted
// document does not keep creation order.
func (r *Registry) RestoreGroups(groups map[string][]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groups = make(map[string][]string, len(groups))
	r.order = lo.Keys(groups)
	sort.Strings(r.order)
	for _, name := range r.order {
		r.logs.CreateLog(name)
		r.groups[name] = lo.Uniq(append([]string{}, groups[name]...))
	}
}
