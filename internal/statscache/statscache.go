// Package statscache implements the Stats Cache: an adaptive-TTL memoization
// of the candidate store's aggregate progress counts, sized to store
// cardinality per spec.md §4.4, with an optional Redis write-through layer.
package statscache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/vaultcrack/recoverd/internal/apperr"
	"github.com/vaultcrack/recoverd/internal/store"
)

// Snapshot is the cached aggregate view of the candidate store.
type Snapshot struct {
	Unchecked int64 `json:"uncheck"`
	Checking  int64 `json:"checking"`
	Checked   int64 `json:"checked"`
	Timeout   int64 `json:"timeout"`
	Total     int64 `json:"total"`
	Progress  float64 `json:"progress"`
	UpdatedAt int64 `json:"updated_at"`
}

// ttl implements spec.md §4.4's tiered formula.
func ttl(total int64) time.Duration {
	if total <= 10_000 {
		return 0
	}
	minutes := total / 1_000_000
	if minutes > 60 {
		minutes = 60
	}
	return time.Duration(minutes) * time.Minute
}

// Cache holds the in-process snapshot plus the in-flight recomputation gate.
// An optional Redis client backs every freshly computed snapshot for
// secondary readers (SPEC_FULL.md §4.4 domain-stack addition).
type Cache struct {
	mu         sync.RWMutex
	snapshot   Snapshot
	haveSnap   bool
	computedAt time.Time
	inFlight   bool

	redis   *redis.Client
	redisKey string
}

// New builds a Cache. redisClient may be nil if REDIS_ADDR is unconfigured.
func New(redisClient *redis.Client, dbName string) *Cache {
	return &Cache{
		redis:    redisClient,
		redisKey: "recoverd:stats:" + dbName,
	}
}

// Get returns the current snapshot, recomputing via compute if the TTL has
// elapsed. Per spec.md §4.4, at most one recomputation runs at a time; a
// concurrent reader gets the stale snapshot if one exists, otherwise a
// TransientConfigError.
func (c *Cache) Get(ctx context.Context, compute func(context.Context) (Snapshot, error)) (Snapshot, error) {
	c.mu.RLock()
	fresh := c.haveSnap && time.Since(c.computedAt) < ttl(c.snapshot.Total)
	snap := c.snapshot
	haveSnap := c.haveSnap
	inFlight := c.inFlight
	c.mu.RUnlock()

	if fresh {
		return snap, nil
	}

	c.mu.Lock()
	if c.inFlight {
		// Someone else is already recomputing; don't queue behind them.
		stale := c.snapshot
		have := c.haveSnap
		c.mu.Unlock()
		if have {
			return stale, nil
		}
		return Snapshot{}, apperr.TransientConfigError("stats are being computed, try again shortly")
	}
	c.inFlight = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	computed, err := compute(ctx)
	if err != nil {
		if haveSnap {
			return snap, nil
		}
		return Snapshot{}, err
	}

	c.mu.Lock()
	c.snapshot = computed
	c.haveSnap = true
	c.computedAt = time.Now()
	c.mu.Unlock()

	c.writeThrough(ctx, computed)

	_ = inFlight
	return computed, nil
}

func (c *Cache) writeThrough(ctx context.Context, snap Snapshot) {
	if c.redis == nil {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	expiry := ttl(snap.Total)
	if expiry == 0 {
		expiry = time.Minute
	}
	// Best-effort: Redis is a secondary cache, never the source of truth.
	_ = c.redis.Set(ctx, c.redisKey, data, expiry).Err()
}

// FromCounts converts a store.Counts aggregation into a Snapshot.
func FromCounts(counts store.Counts, now time.Time) Snapshot {
	progress := 0.0
	if counts.Total > 0 {
		progress = float64(counts.Checked) / float64(counts.Total) * 100
	}
	return Snapshot{
		Unchecked: counts.Unchecked,
		Checking:  counts.Checking,
		Checked:   counts.Checked,
		Timeout:   counts.Timeout,
		Total:     counts.Total,
		Progress:  progress,
		UpdatedAt: now.Unix(),
	}
}
