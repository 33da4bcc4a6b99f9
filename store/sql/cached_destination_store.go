package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/lippelima5/repolead-sub000/core"
)

const destinationCacheKeyPrefix = "repolead::destinations::v1"

// CachedDestinationStore fronts destination reads with a cache. Destination
// configuration changes rarely while the dispatcher reads it on every
// ingestion, so the fan-out path stays off the database.
type CachedDestinationStore struct {
	base  core.DestinationStore
	cache repositorycache.CacheService
}

func NewCachedDestinationStore(
	base core.DestinationStore,
	cacheService repositorycache.CacheService,
) (*CachedDestinationStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base destination store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: destination cache service is required")
	}
	return &CachedDestinationStore{base: base, cache: cacheService}, nil
}

// DestinationCacheKey returns the deterministic cache key for one
// destination read: repolead::destinations::v1::id::<id>.
func DestinationCacheKey(id string) string {
	return strings.Join([]string{destinationCacheKeyPrefix, "id", url.PathEscape(strings.TrimSpace(id))}, "::")
}

// WorkspaceDestinationsCacheKey returns the deterministic cache key for one
// workspace listing: repolead::destinations::v1::workspace::<workspace_id>.
func WorkspaceDestinationsCacheKey(workspaceID string) string {
	return strings.Join([]string{destinationCacheKeyPrefix, "workspace", url.PathEscape(strings.TrimSpace(workspaceID))}, "::")
}

func (s *CachedDestinationStore) Get(ctx context.Context, id string) (core.Destination, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Destination{}, fmt.Errorf("sqlstore: cached destination store is not configured")
	}
	return repositorycache.GetOrFetch(ctx, s.cache, DestinationCacheKey(id), func(ctx context.Context) (core.Destination, error) {
		return s.base.Get(ctx, id)
	})
}

func (s *CachedDestinationStore) ListEnabled(ctx context.Context, workspaceID string) ([]core.Destination, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return nil, fmt.Errorf("sqlstore: cached destination store is not configured")
	}
	return repositorycache.GetOrFetch(ctx, s.cache, WorkspaceDestinationsCacheKey(workspaceID), func(ctx context.Context) ([]core.Destination, error) {
		return s.base.ListEnabled(ctx, workspaceID)
	})
}

// Invalidate drops the cached entries for a destination and its workspace
// listing after out-of-band configuration changes.
func (s *CachedDestinationStore) Invalidate(ctx context.Context, id string, workspaceID string) error {
	if s == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached destination store is not configured")
	}
	if err := s.cache.Delete(ctx, DestinationCacheKey(id)); err != nil {
		return err
	}
	return s.cache.Delete(ctx, WorkspaceDestinationsCacheKey(workspaceID))
}

var _ core.DestinationStore = (*CachedDestinationStore)(nil)
