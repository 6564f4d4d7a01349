package perms

import (
	"context"
	"fmt"
	"time"

	"github.com/daisylb/bridgekeeper/pkg/cache"
	"github.com/daisylb/bridgekeeper/pkg/rules"
)

// CachedBackend wraps a Backend and memoizes check verdicts. Rules are
// deterministic for a given (user, permission, resource) triple within a
// TTL window, so the cost of identity functions and attribute resolution
// is paid once per window for hot triples.
//
// Only verdicts are cached; errors always re-evaluate. Identities and
// resources must implement rules.Keyed to be cacheable; non-keyed ones
// fall through to the backend uncached.
type CachedBackend struct {
	backend *Backend
	cache   cache.Cache
	ttl     time.Duration
}

// NewCachedBackend creates a caching layer over backend with the given
// verdict TTL.
func NewCachedBackend(backend *Backend, c cache.Cache, ttl time.Duration) *CachedBackend {
	return &CachedBackend{backend: backend, cache: c, ttl: ttl}
}

// HasPerm reports whether user has the named permission for resource,
// consulting the cache first.
func (b *CachedBackend) HasPerm(ctx context.Context, user rules.Identity, name string, resource rules.Resource) (bool, error) {
	key, cacheable := checkKey(user, name, resource)
	if cacheable {
		if cached, ok := b.cache.Get(ctx, key); ok {
			if verdict, ok := cached.(bool); ok {
				return verdict, nil
			}
		}
	}

	verdict, err := b.backend.HasPerm(user, name, resource)
	if err != nil {
		return false, err
	}
	if cacheable {
		if err := b.cache.Set(ctx, key, verdict, b.ttl); err != nil {
			return false, fmt.Errorf("failed to cache check verdict: %w", err)
		}
	}
	return verdict, nil
}

// Invalidate drops every cached verdict, for example after a bulk
// permission-affecting data change.
func (b *CachedBackend) Invalidate(ctx context.Context) error {
	return b.cache.Clear(ctx)
}

// checkKey derives the cache key for a check. The second return value is
// false when the triple cannot be keyed deterministically.
func checkKey(user rules.Identity, name string, resource rules.Resource) (string, bool) {
	userKeyed, ok := user.(rules.Keyed)
	if !ok {
		return "", false
	}
	if resource == nil {
		return fmt.Sprintf("%s|%v|*", name, userKeyed.Key()), true
	}
	resourceKeyed, ok := resource.(rules.Keyed)
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%s|%v|%v", name, userKeyed.Key(), resourceKeyed.Key()), true
}
