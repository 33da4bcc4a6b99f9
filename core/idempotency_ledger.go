package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

const defaultIdempotencyTTL = 24 * time.Hour
const defaultIdempotencyMaxEntries = 16384

// IdempotencyClaimKey builds the dedupe key for one intake request. The
// idempotency key only suppresses duplicates within the same
// (workspace, source) pair.
func IdempotencyClaimKey(workspaceID string, sourceID string, idempotencyKey string) string {
	return strings.Join([]string{
		strings.TrimSpace(workspaceID),
		strings.TrimSpace(sourceID),
		strings.TrimSpace(idempotencyKey),
	}, "::")
}

// MemoryIdempotencyLedger is a process-local claim table with TTL expiry and
// a capacity bound. The persistent ingestion store remains the durable
// dedupe record; this ledger short-circuits the common retry window.
type MemoryIdempotencyLedger struct {
	mu         sync.Mutex
	defaultTTL time.Duration
	maxEntries int
	entries    map[string]time.Time
	Now        func() time.Time
}

func NewMemoryIdempotencyLedger(defaultTTL time.Duration) *MemoryIdempotencyLedger {
	return NewMemoryIdempotencyLedgerWithLimits(defaultTTL, defaultIdempotencyMaxEntries)
}

func NewMemoryIdempotencyLedgerWithLimits(defaultTTL time.Duration, maxEntries int) *MemoryIdempotencyLedger {
	if defaultTTL <= 0 {
		defaultTTL = defaultIdempotencyTTL
	}
	if maxEntries <= 0 {
		maxEntries = defaultIdempotencyMaxEntries
	}
	return &MemoryIdempotencyLedger{
		defaultTTL: defaultTTL,
		maxEntries: maxEntries,
		entries:    map[string]time.Time{},
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (l *MemoryIdempotencyLedger) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	if l == nil {
		return false, fmt.Errorf("core: idempotency ledger is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return false, fmt.Errorf("core: idempotency key is required")
	}
	if ttl <= 0 {
		ttl = l.defaultTTL
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneExpiredLocked(now)
	if expiresAt, ok := l.entries[key]; ok {
		if now.Before(expiresAt) {
			return false, nil
		}
		delete(l.entries, key)
	}
	l.enforceCapacityLocked(1)
	l.entries[key] = now.Add(ttl)
	return true, nil
}

func (l *MemoryIdempotencyLedger) PurgeExpired(_ context.Context) (int, error) {
	if l == nil {
		return 0, fmt.Errorf("core: idempotency ledger is not configured")
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	pruned := 0
	for key, expiresAt := range l.entries {
		if !now.Before(expiresAt) {
			delete(l.entries, key)
			pruned++
		}
	}
	return pruned, nil
}

func (l *MemoryIdempotencyLedger) now() time.Time {
	if l != nil && l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}

func (l *MemoryIdempotencyLedger) pruneExpiredLocked(now time.Time) {
	for key, expiresAt := range l.entries {
		if !now.Before(expiresAt) {
			delete(l.entries, key)
		}
	}
}

func (l *MemoryIdempotencyLedger) enforceCapacityLocked(incoming int) {
	if l.maxEntries <= 0 {
		return
	}
	target := l.maxEntries - incoming
	if target < 0 {
		target = 0
	}
	for len(l.entries) > target {
		l.evictOldestLocked()
	}
}

func (l *MemoryIdempotencyLedger) evictOldestLocked() {
	var oldestKey string
	var oldestExpiry time.Time
	for key, expiry := range l.entries {
		if oldestKey == "" || expiry.Before(oldestExpiry) {
			oldestKey = key
			oldestExpiry = expiry
		}
	}
	if oldestKey != "" {
		delete(l.entries, oldestKey)
	}
}

var _ IdempotencyLedger = (*MemoryIdempotencyLedger)(nil)
