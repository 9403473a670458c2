package retrieval

import (
	"container/list"
	"sync"
)

// DefaultCacheSize bounds how many corpus indices are held in memory at once.
const DefaultCacheSize = 3

// Loader constructs an index handle for a corpus on a cache miss.
type Loader func(corpus string) (*Index, error)

// Stats is a point-in-time view of cache effectiveness.
type Stats struct {
	Hits     uint64 `json:"hits"`
	Misses   uint64 `json:"misses"`
	Size     int    `json:"size"`
	Capacity int    `json:"capacity"`
}

// Cache is a process-wide LRU cache of loaded corpus indices, shared by all
// sessions. Index handles are heavy (a full embedded corpus in memory), so
// the cache is bounded: inserting beyond capacity evicts the least recently
// used corpus. Eviction drops the cache's reference only; searches already
// holding the handle run to completion.
//
// It is constructed explicitly and passed by reference, never held as
// package-level state, so capacity and eviction are testable in isolation.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List // front = most recently used
	hits     uint64
	misses   uint64
}

type cacheEntry struct {
	corpus string
	index  *Index
}

// NewCache creates a cache holding at most capacity indices. Non-positive
// capacities fall back to DefaultCacheSize.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get returns the cached index for corpus, loading it on a miss. A hit
// promotes the corpus to most recently used. A failed load inserts and
// evicts nothing and surfaces the loader's error.
//
// The lock is held across the load so that concurrent misses for the same
// corpus do not build the same heavy index twice.
func (c *Cache) Get(corpus string, load Loader) (*Index, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[corpus]; ok {
		c.hits++
		c.order.MoveToFront(el)
		return el.Value.(*cacheEntry).index, nil
	}

	c.misses++
	ix, err := load(corpus)
	if err != nil {
		return nil, err
	}

	if c.order.Len() >= c.capacity {
		c.evictOldest()
	}
	c.entries[corpus] = c.order.PushFront(&cacheEntry{corpus: corpus, index: ix})
	return ix, nil
}

// evictOldest removes the least recently used entry. Caller holds the lock.
func (c *Cache) evictOldest() {
	oldest := c.order.Back()
	if oldest == nil {
		return
	}
	c.order.Remove(oldest)
	delete(c.entries, oldest.Value.(*cacheEntry).corpus)
}

// Stats reports hit/miss counters and current occupancy.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:     c.hits,
		Misses:   c.misses,
		Size:     c.order.Len(),
		Capacity: c.capacity,
	}
}

// Clear evicts every entry unconditionally. Used to force a reload after a
// corpus is rebuilt on disk. Counters are preserved.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
}
