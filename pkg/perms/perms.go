// Package perms maps permission names to rules.
//
// Applications register rules once at start, typically from per-feature
// setup code, and read them on every request afterwards. Names follow
// the "<namespace>.<action>_<resource>" convention, e.g.
// "shrubberies.update_shrubbery".
package perms

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/daisylb/bridgekeeper/pkg/rules"
)

// ErrAlreadyRegistered is returned when a permission name is registered
// twice; redefining a permission is always a wiring mistake.
var ErrAlreadyRegistered = errors.New("permission already registered")

// ErrUnknownPermission is returned by operations that require the named
// permission to exist.
var ErrUnknownPermission = errors.New("unknown permission")

// PermissionMap is a name to rule registry. The expected usage pattern
// is write during startup, read concurrently forever after; the lock
// additionally makes concurrent late registration safe.
type PermissionMap struct {
	mu    sync.RWMutex
	rules map[string]rules.Rule
}

// NewPermissionMap creates an empty permission map.
func NewPermissionMap() *PermissionMap {
	return &PermissionMap{rules: make(map[string]rules.Rule)}
}

// Default is the process-wide permission map that applications normally
// register into.
var Default = NewPermissionMap()

// Add registers a rule under a permission name. Registering the same
// name twice returns ErrAlreadyRegistered.
func (m *PermissionMap) Add(name string, rule rules.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.rules[name]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, name)
	}
	m.rules[name] = rule
	return nil
}

// MustAdd is like Add but panics on a duplicate name. It is intended for
// registration at application start.
func (m *PermissionMap) MustAdd(name string, rule rules.Rule) {
	if err := m.Add(name, rule); err != nil {
		panic(err)
	}
}

// Get returns the rule registered under name.
func (m *PermissionMap) Get(name string) (rules.Rule, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rule, ok := m.rules[name]
	return rule, ok
}

// Names returns every registered permission name, sorted.
func (m *PermissionMap) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.rules))
	for name := range m.rules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered permissions.
func (m *PermissionMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rules)
}
