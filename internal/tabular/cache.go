// ABOUTME: Size-limited TTL cache for database schemas, keyed by file identity.
// ABOUTME: Keeps the model's tool description cheap without serving stale schemas.

package tabular

import (
	"container/list"
	"fmt"
	"os"
	"sync"
	"time"
)

// Schema cache defaults.
const (
	DefaultSchemaTTL  = time.Minute
	defaultSchemaSize = 64
)

type schemaEntry struct {
	key      string
	tables   []Table
	storedAt time.Time
}

// schemaCache evicts the least recently stored entry once full. Entries
// expire lazily on lookup.
type schemaCache struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // oldest at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

func newSchemaCache(ttl time.Duration, maxSize int) *schemaCache {
	return &schemaCache{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// schemaKey identifies one version of a database file.
func schemaKey(name string, info os.FileInfo) string {
	return fmt.Sprintf("%s@%d/%d", name, info.ModTime().UnixNano(), info.Size())
}

func (c *schemaCache) get(key string) ([]Table, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	entry := elem.Value.(*schemaEntry)
	if c.now().Sub(entry.storedAt) >= c.ttl {
		c.order.Remove(elem)
		delete(c.entries, key)
		return nil, false
	}
	return entry.tables, true
}

func (c *schemaCache) put(key string, tables []Table) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*schemaEntry)
		entry.tables = tables
		entry.storedAt = c.now()
		c.order.MoveToBack(elem)
		return
	}

	if len(c.entries) >= c.maxSize {
		if front := c.order.Front(); front != nil {
			c.order.Remove(front)
			delete(c.entries, front.Value.(*schemaEntry).key)
		}
	}
	c.entries[key] = c.order.PushBack(&schemaEntry{key: key, tables: tables, storedAt: c.now()})
}

func (c *schemaCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
