package reportcache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/rpattn/changereport/internal/domain"
	"github.com/rpattn/changereport/internal/reporting"
)

const defaultLRUSize = 256

var _ reporting.Cache = (*LRU)(nil)

// LRU keeps closed-window reports in process memory.
type LRU struct {
	cache *lru.Cache[string, domain.Report]
}

// NewLRU creates an in-process cache holding at most size reports.
func NewLRU(size int) (*LRU, error) {
	if size <= 0 {
		size = defaultLRUSize
	}
	cache, err := lru.New[string, domain.Report](size)
	if err != nil {
		return nil, fmt.Errorf("create report lru: %w", err)
	}
	return &LRU{cache: cache}, nil
}

func (c *LRU) Get(_ context.Context, key string) (domain.Report, bool, error) {
	report, ok := c.cache.Get(key)
	return report, ok, nil
}

func (c *LRU) Set(_ context.Context, key string, report domain.Report) error {
	c.cache.Add(key, report)
	return nil
}

// Len reports the number of cached reports.
func (c *LRU) Len() int {
	return c.cache.Len()
}
