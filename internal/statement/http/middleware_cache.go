package http

import (
	"fmt"
	"sync"
	"time"

	"github.com/meridian-fin/meridian/internal/statement"
)

const cacheTTL = 5 * time.Minute

var viewModelCache = newResponseCache(cacheTTL)

type cacheItem struct {
	value   interface{}
	expires time.Time
}

type responseCache struct {
	ttl   time.Duration
	mu    sync.RWMutex
	items map[string]cacheItem
}

func newResponseCache(ttl time.Duration) *responseCache {
	return &responseCache{
		ttl:   ttl,
		items: make(map[string]cacheItem),
	}
}

func (c *responseCache) Get(key string) (interface{}, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(item.expires) {
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
		return nil, false
	}
	return item.value, true
}

func (c *responseCache) Set(key string, value interface{}) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.items[key] = cacheItem{value: value, expires: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

func (c *responseCache) Bust() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.items = make(map[string]cacheItem)
	c.mu.Unlock()
}

func buildStatementCacheKey(statementType, period string, detail int) string {
	return fmt.Sprintf("statement:%s|%s|d=%d", statementType, period, detail)
}

func buildReportCacheKey(reportID, period string) string {
	return fmt.Sprintf("report:%s|%s", reportID, period)
}

// BustStatementViewCache invalidates the in-process view-model cache. The
// invalidation listener calls it whenever new movement data lands.
func BustStatementViewCache() {
	if viewModelCache != nil {
		viewModelCache.Bust()
	}
}

func cloneStatementViewModel(src StatementViewModel) StatementViewModel {
	dst := src
	dst.Statement.Columns = append([]statement.ColumnSpec(nil), src.Statement.Columns...)
	dst.Statement.Rows = append([]statement.GridRow(nil), src.Statement.Rows...)
	dst.Warnings = append([]string(nil), src.Warnings...)
	return dst
}
