package perms

import (
	"fmt"
	"strings"

	"github.com/daisylb/bridgekeeper/pkg/rules"
)

// Backend answers permission questions against a PermissionMap. It is
// the piece an application's request handling wires in: boolean checks
// for single resources, bulk collection filtering, and namespace-level
// possibility checks.
type Backend struct {
	perms    *PermissionMap
	recorder Recorder
}

// Recorder observes permission decisions, typically for metrics.
// Implementations must be safe for concurrent use.
type Recorder interface {
	// RecordCheck is called after every boolean decision.
	RecordCheck(name string, allowed bool)
	// RecordFilter is called after every collection filtering.
	RecordFilter(name string)
	// RecordError is called when evaluating a permission fails.
	RecordError(name string)
}

// NewBackend creates a Backend over the given permission map, or over
// Default when nil.
func NewBackend(m *PermissionMap) *Backend {
	if m == nil {
		m = Default
	}
	return &Backend{perms: m}
}

// SetRecorder attaches a decision recorder. Call before the backend is
// shared between goroutines.
func (b *Backend) SetRecorder(r Recorder) {
	b.recorder = r
}

// HasPerm reports whether user has the named permission for resource.
// A nil resource asks whether the user holds the permission for every
// possible resource. Unregistered permissions are simply denied.
func (b *Backend) HasPerm(user rules.Identity, name string, resource rules.Resource) (bool, error) {
	rule, ok := b.perms.Get(name)
	if !ok {
		if b.recorder != nil {
			b.recorder.RecordCheck(name, false)
		}
		return false, nil
	}
	allowed, err := rule.Check(user, resource)
	if b.recorder != nil {
		if err != nil {
			b.recorder.RecordError(name)
		} else {
			b.recorder.RecordCheck(name, allowed)
		}
	}
	return allowed, err
}

// HasPerms reports whether user has every one of the named permissions
// for resource.
func (b *Backend) HasPerms(user rules.Identity, names []string, resource rules.Resource) (bool, error) {
	for _, name := range names {
		ok, err := b.HasPerm(user, name, resource)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// HasModulePerms reports whether any permission in the given namespace
// could possibly be satisfied by user for some resource. It is a purely
// structural check over the registered rules; no stored data is read.
func (b *Backend) HasModulePerms(user rules.Identity, namespace string) (bool, error) {
	prefix := namespace + "."
	for _, name := range b.perms.Names() {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		rule, ok := b.perms.Get(name)
		if !ok {
			continue
		}
		possible, err := rules.IsPossibleFor(rule, user)
		if err != nil {
			return false, err
		}
		if possible {
			return true, nil
		}
	}
	return false, nil
}

// IsPossible reports whether user could ever hold the named permission
// for some resource. Unregistered permissions return
// ErrUnknownPermission.
func (b *Backend) IsPossible(user rules.Identity, name string) (bool, error) {
	rule, ok := b.perms.Get(name)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownPermission, name)
	}
	return rules.IsPossibleFor(rule, user)
}

// FilterVisible narrows a collection to the resources user holds the
// named permission for. Unlike HasPerm, asking for an unregistered
// permission here is an error: silently returning the full collection
// would leak everything.
func (b *Backend) FilterVisible(user rules.Identity, name string, collection rules.Collection) (rules.Collection, error) {
	rule, ok := b.perms.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPermission, name)
	}
	filtered, err := rules.Filter(rule, user, collection)
	if b.recorder != nil {
		if err != nil {
			b.recorder.RecordError(name)
		} else {
			b.recorder.RecordFilter(name)
		}
	}
	return filtered, err
}
