// Package guard holds in-process optimizations layered on top of the
// durable correctness guarantees the domain package provides. Nothing
// here is authoritative: every guard is safe to lose on restart.
package guard

import "sync"

// IdempotencyCache is a best-effort in-process record of (aggregate type,
// idempotency key) pairs already observed by this process. It exists to
// let a command handler skip straight to its replay log message before
// paying for the durable lookup in internal/ledger.Engine.FindIdempotent,
// which remains the sole source of truth: a cache miss here never implies
// "no prior event", only "not seen by this process since it started".
type IdempotencyCache struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewIdempotencyCache creates an empty cache.
func NewIdempotencyCache() *IdempotencyCache {
	return &IdempotencyCache{seen: make(map[string]struct{})}
}

func cacheKey(aggregateType, key string) string { return aggregateType + "\x00" + key }

// Seen reports whether (aggregateType, key) has been recorded by Record
// in this process. Always false for an empty key.
func (c *IdempotencyCache) Seen(aggregateType, key string) bool {
	if key == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.seen[cacheKey(aggregateType, key)]
	return ok
}

// Record marks (aggregateType, key) as observed. A no-op for an empty key.
func (c *IdempotencyCache) Record(aggregateType, key string) {
	if key == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen[cacheKey(aggregateType, key)] = struct{}{}
}
