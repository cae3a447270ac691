package chunk

import "container/list"

// DefaultCacheCapacity is the number of decoded chunks the cache holds when
// a caller does not request a different size.
const DefaultCacheCapacity = 8

type cacheEntry struct {
	index int
	data  []byte
}

// Cache is a bounded least-recently-used cache of decoded chunk plaintext,
// keyed by global chunk index. Random-access reads that land inside an
// already-decoded chunk are served without touching the table or re-running
// the codec.
type Cache struct {
	capacity int
	ll       *list.List
	items    map[int]*list.Element
}

// NewCache returns a cache holding up to capacity decoded chunks. A
// capacity of 0 falls back to DefaultCacheCapacity.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &Cache{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[int]*list.Element),
	}
}

// Get returns the cached plaintext for chunk index and marks it
// most-recently-used, or (nil, false) on a miss.
func (c *Cache) Get(index int) ([]byte, bool) {
	el, ok := c.items[index]
	if !ok {
		return nil, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*cacheEntry).data, true
}

// Put inserts or refreshes the decoded plaintext for chunk index, evicting
// the least-recently-used entry if the cache is at capacity.
func (c *Cache) Put(index int, data []byte) {
	if el, ok := c.items[index]; ok {
		el.Value.(*cacheEntry).data = data
		c.ll.MoveToFront(el)
		return
	}
	el := c.ll.PushFront(&cacheEntry{index: index, data: data})
	c.items[index] = el
	if c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		if oldest != nil {
			c.ll.Remove(oldest)
			delete(c.items, oldest.Value.(*cacheEntry).index)
		}
	}
}

// Len reports how many chunks are currently cached.
func (c *Cache) Len() int { return c.ll.Len() }
