package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/xenking/catalog-browser/internal/domain/product"
)

// SnapshotCache stores the most recent catalog snapshot.
//
// Load reports ok=false on a miss or an expired entry. Errors are treated as
// misses by the Repository.
type SnapshotCache interface {
	Load(ctx context.Context) (s product.Snapshot, ok bool, err error)
	Store(ctx context.Context, s product.Snapshot) error
}

// MemoryCache keeps one snapshot in process memory for a fixed TTL.
type MemoryCache struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.RWMutex
	snapshot product.Snapshot
	expires  time.Time
}

var _ SnapshotCache = (*MemoryCache)(nil)

// NewMemoryCache creates a MemoryCache holding entries for ttl.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{ttl: ttl, now: time.Now}
}

// Load implements SnapshotCache.
func (c *MemoryCache) Load(_ context.Context) (product.Snapshot, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.expires.IsZero() || !c.now().Before(c.expires) {
		return product.Snapshot{}, false, nil
	}
	return c.snapshot, true, nil
}

// Store implements SnapshotCache.
func (c *MemoryCache) Store(_ context.Context, s product.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.snapshot = s
	c.expires = c.now().Add(c.ttl)
	return nil
}

// Invalidate drops the cached snapshot.
func (c *MemoryCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.snapshot = product.Snapshot{}
	c.expires = time.Time{}
}
