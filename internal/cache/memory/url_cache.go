// Package memory provides the process-wide expiring signed-URL cache. It is
// constructed once at service start and shared by every request handler; the
// only state is an in-memory TTL map, so there is nothing to tear down.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/openwager/betfeed/internal/domain"
	"github.com/openwager/betfeed/internal/metrics"
)

// entry is a cached signed URL with its absolute expiry. Entries are
// advisory: losing one only costs a re-sign on the next resolve.
type entry struct {
	url      string
	expireAt time.Time
}

// URLCache memoizes signed URLs by object path with lazy, read-through
// population. Misses within one Resolve call are batched into a single
// signer call; values for the same path are interchangeable within the
// validity window, so concurrent repopulation races are last-write-wins.
type URLCache struct {
	signer   domain.URLSigner
	validity time.Duration

	mu      sync.Mutex
	entries map[string]entry

	// now is swappable for tests.
	now func() time.Time
}

// NewURLCache creates a URLCache that signs URLs valid for the given
// duration.
func NewURLCache(signer domain.URLSigner, validity time.Duration) *URLCache {
	return &URLCache{
		signer:   signer,
		validity: validity,
		entries:  make(map[string]entry),
		now:      time.Now,
	}
}

// Resolve returns a signed URL for each resolvable path. Live cache entries
// are returned directly; all misses are fetched in one batched signer call
// and cached with expiry now+validity. Empty paths are skipped. Paths the
// signer cannot resolve are omitted from the result. If the signer call
// fails, the whole Resolve fails so callers never see a partially resolved
// page.
func (c *URLCache) Resolve(ctx context.Context, paths []string) (map[string]string, error) {
	result := make(map[string]string, len(paths))
	var misses []string
	now := c.now()

	c.mu.Lock()
	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, done := result[path]; done {
			continue
		}
		if e, ok := c.entries[path]; ok && now.Before(e.expireAt) {
			result[path] = e.url
			metrics.URLCacheHits.Inc()
			continue
		}
		if !seen(misses, path) {
			misses = append(misses, path)
			metrics.URLCacheMisses.Inc()
		}
	}
	c.mu.Unlock()

	if len(misses) == 0 {
		return result, nil
	}

	signed, err := c.signer.SignedURLs(ctx, misses, c.validity)
	if err != nil {
		return nil, fmt.Errorf("urlcache: sign %d paths: %w", len(misses), err)
	}

	expireAt := c.now().Add(c.validity)
	c.mu.Lock()
	for path, url := range signed {
		c.entries[path] = entry{url: url, expireAt: expireAt}
		result[path] = url
	}
	// Opportunistically drop expired entries so the map does not grow with
	// paths that are never requested again.
	for path, e := range c.entries {
		if !now.Before(e.expireAt) {
			delete(c.entries, path)
		}
	}
	c.mu.Unlock()

	return result, nil
}

// seen reports whether s already contains v. Miss batches are small (one
// feed page), so a linear scan beats allocating a set.
func seen(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

// Compile-time interface check.
var _ domain.URLCache = (*URLCache)(nil)
