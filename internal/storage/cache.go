package storage

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/hyperjump/emma/internal/models"
)

// CacheObserver is notified of ranked-terms cache lookups.
type CacheObserver interface {
	CacheHit()
	CacheMiss()
}

type termsKey struct {
	bg, fg int
}

// termsCache memoizes ranked terms per (background, foreground) pair for the life of
// the process. Entries are never evicted or invalidated; a restart is needed to see
// upstream changes.
type termsCache struct {
	mu      sync.RWMutex
	entries map[termsKey][]models.RankedTerm
	group   singleflight.Group
}

func newTermsCache() *termsCache {
	return &termsCache{entries: make(map[termsKey][]models.RankedTerm)}
}

func (c *termsCache) get(key termsKey) ([]models.RankedTerm, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	terms, ok := c.entries[key]
	return terms, ok
}

// getOrLoad returns the cached terms for key, calling load at most once per key across
// concurrent callers. Failed loads are not cached. hit reports whether the value was
// already present.
//
// load runs detached from the cancellation of whichever caller started it, so one
// abandoned request cannot fail the others sharing the fill. Each caller still stops
// waiting when its own ctx is done.
func (c *termsCache) getOrLoad(ctx context.Context, key termsKey, load func(context.Context) ([]models.RankedTerm, error)) (terms []models.RankedTerm, hit bool, err error) {
	if terms, ok := c.get(key); ok {
		return terms, true, nil
	}
	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(fmt.Sprintf("%d:%d", key.bg, key.fg), func() (interface{}, error) {
		if terms, ok := c.get(key); ok {
			return terms, nil
		}
		terms, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = terms
		c.mu.Unlock()
		return terms, nil
	})
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.([]models.RankedTerm), false, nil
	}
}

func (c *termsCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
