package orchestrator

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/kittclouds/aide/internal/kernel"
)

// promptCache memoizes the canonical-JSON rendering of a snapshot, keyed by
// the snapshot's content hash. The snapshot block is the one uncacheable
// part of the assembled prompt as far as the provider is concerned, but
// between turns that don't mutate state (L4 queries, rejected-only turns)
// the snapshot is byte-identical, so re-marshaling it every turn is wasted
// work. Entries expire on the same TTL the provider-side prompt cache uses,
// so a locally reused rendering never outlives the cached prefix it was
// assembled against.
type promptCache struct {
	cache *lru.LRU[string, string]
}

func newPromptCache(ttl time.Duration) *promptCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &promptCache{cache: lru.NewLRU[string, string](256, nil, ttl)}
}

// snapshotJSON returns the canonical JSON for snap, reusing a cached
// rendering when the content hash matches a recent one.
func (c *promptCache) snapshotJSON(snap kernel.Snapshot) (string, error) {
	hash, err := snap.Hash()
	if err != nil {
		return "", err
	}
	if body, ok := c.cache.Get(hash); ok {
		return body, nil
	}
	raw, err := snap.CanonicalJSON()
	if err != nil {
		return "", err
	}
	body := string(raw)
	c.cache.Add(hash, body)
	return body, nil
}
