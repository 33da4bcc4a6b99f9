package sqlstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/lippelima5/repolead-sub000/core"
)

type stubDestinationStore struct {
	mu           sync.Mutex
	destinations map[string]core.Destination
	getCalls     int
	listCalls    int
	getErr       error
}

func (s *stubDestinationStore) Get(_ context.Context, id string) (core.Destination, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	if s.getErr != nil {
		return core.Destination{}, s.getErr
	}
	destination, ok := s.destinations[id]
	if !ok {
		return core.Destination{}, core.ErrDestinationNotFound
	}
	return destination, nil
}

func (s *stubDestinationStore) ListEnabled(_ context.Context, workspaceID string) ([]core.Destination, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	var enabled []core.Destination
	for _, destination := range s.destinations {
		if destination.WorkspaceID == workspaceID && destination.Enabled {
			enabled = append(enabled, destination)
		}
	}
	return enabled, nil
}

func TestCachedDestinationStore_Get_MissFetchThenHit(t *testing.T) {
	cacheService := newTestDestinationCacheService(t)
	base := &stubDestinationStore{
		destinations: map[string]core.Destination{
			"dst_1": {
				ID:          "dst_1",
				WorkspaceID: "ws_1",
				Name:        "crm",
				URL:         "https://crm.example.com/hooks",
				Enabled:     true,
				Secret:      "whsec_1",
			},
		},
	}

	store, err := NewCachedDestinationStore(base, cacheService)
	if err != nil {
		t.Fatalf("new cached destination store: %v", err)
	}

	if _, err := store.Get(context.Background(), "dst_1"); err != nil {
		t.Fatalf("first get: %v", err)
	}
	if base.getCalls != 1 {
		t.Fatalf("expected first get to fetch base store once, got %d", base.getCalls)
	}

	destination, err := store.Get(context.Background(), "dst_1")
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if base.getCalls != 1 {
		t.Fatalf("expected second get to be cache hit, base get calls=%d", base.getCalls)
	}
	if destination.Secret != "whsec_1" {
		t.Fatalf("expected cached destination payload, got %+v", destination)
	}
}

func TestCachedDestinationStore_Invalidate_ForcesRefetch(t *testing.T) {
	cacheService := newTestDestinationCacheService(t)
	base := &stubDestinationStore{
		destinations: map[string]core.Destination{
			"dst_2": {
				ID:          "dst_2",
				WorkspaceID: "ws_2",
				Name:        "billing",
				URL:         "https://billing.example.com/hooks",
				Enabled:     true,
				Secret:      "whsec_old",
			},
		},
	}

	store, err := NewCachedDestinationStore(base, cacheService)
	if err != nil {
		t.Fatalf("new cached destination store: %v", err)
	}

	if _, err := store.Get(context.Background(), "dst_2"); err != nil {
		t.Fatalf("prime destination cache: %v", err)
	}
	if _, err := store.ListEnabled(context.Background(), "ws_2"); err != nil {
		t.Fatalf("prime workspace cache: %v", err)
	}
	if base.getCalls != 1 || base.listCalls != 1 {
		t.Fatalf("expected one base read per key, got get=%d list=%d", base.getCalls, base.listCalls)
	}

	base.mu.Lock()
	rotated := base.destinations["dst_2"]
	rotated.Secret = "whsec_new"
	base.destinations["dst_2"] = rotated
	base.mu.Unlock()

	if err := store.Invalidate(context.Background(), "dst_2", "ws_2"); err != nil {
		t.Fatalf("invalidate destination: %v", err)
	}

	destination, err := store.Get(context.Background(), "dst_2")
	if err != nil {
		t.Fatalf("get after invalidation: %v", err)
	}
	if base.getCalls != 2 {
		t.Fatalf("expected invalidated key to force second base read, got %d", base.getCalls)
	}
	if destination.Secret != "whsec_new" {
		t.Fatalf("expected rotated secret after invalidation, got %q", destination.Secret)
	}

	if _, err := store.ListEnabled(context.Background(), "ws_2"); err != nil {
		t.Fatalf("list after invalidation: %v", err)
	}
	if base.listCalls != 2 {
		t.Fatalf("expected workspace listing refetched, got %d", base.listCalls)
	}
}

func TestDestinationCacheKey_Contract(t *testing.T) {
	if key := DestinationCacheKey(" dst_1 "); key != "repolead::destinations::v1::id::dst_1" {
		t.Fatalf("unexpected destination cache key: %q", key)
	}
	if key := WorkspaceDestinationsCacheKey("ws/alpha team"); key != "repolead::destinations::v1::workspace::ws%2Falpha%20team" {
		t.Fatalf("unexpected workspace cache key: %q", key)
	}
}

func TestCachedDestinationStore_PropagatesBaseErrors(t *testing.T) {
	cacheService := newTestDestinationCacheService(t)
	base := &stubDestinationStore{destinations: map[string]core.Destination{}}

	store, err := NewCachedDestinationStore(base, cacheService)
	if err != nil {
		t.Fatalf("new cached destination store: %v", err)
	}

	if _, err := store.Get(context.Background(), "dst_missing"); !errors.Is(err, core.ErrDestinationNotFound) {
		t.Fatalf("expected base error propagation, got %v", err)
	}
}

func newTestDestinationCacheService(t *testing.T) repositorycache.CacheService {
	t.Helper()
	config := repositorycache.DefaultConfig()
	config.TTL = time.Minute
	service, err := repositorycache.NewCacheService(config)
	if err != nil {
		t.Fatalf("new cache service: %v", err)
	}
	return service
}
