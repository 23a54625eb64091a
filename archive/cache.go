package archive

import (
	"container/list"
	"sync"

	"github.com/wowemulation-dev/cascette-go/internal/cachekey"
)

// cacheShardCount is the number of independent LRU shards the content
// cache is split across, so read traffic for unrelated encoding keys
// doesn't serialize on one mutex. No ecosystem LRU package appears
// anywhere in the retrieved corpus, so this is a small hand-rolled
// container/list + map implementation rather than an imported one.
const cacheShardCount = 16

type cacheEntry struct {
	key   string
	value []byte
}

type cacheShard struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	items    map[string]*list.Element
}

func newCacheShard(capacity int) *cacheShard {
	return &cacheShard{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[string]*list.Element),
	}
}

func (s *cacheShard) get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		return nil, false
	}

	s.ll.MoveToFront(el)

	return el.Value.(*cacheEntry).value, true
}

func (s *cacheShard) put(key string, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.items[key]; ok {
		s.ll.MoveToFront(el)
		el.Value.(*cacheEntry).value = value

		return
	}

	el := s.ll.PushFront(&cacheEntry{key: key, value: value})
	s.items[key] = el

	for s.ll.Len() > s.capacity {
		oldest := s.ll.Back()
		if oldest == nil {
			break
		}

		s.ll.Remove(oldest)
		delete(s.items, oldest.Value.(*cacheEntry).key)
	}
}

func (s *cacheShard) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ll.Len()
}

func (s *cacheShard) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ll.Init()
	s.items = make(map[string]*list.Element)
}

// ContentCache is a bounded, sharded, in-memory LRU cache of decompressed
// content keyed by encoding key, sitting in front of archive reads.
type ContentCache struct {
	shards [cacheShardCount]*cacheShard
}

// NewContentCache returns a cache of cacheShardCount shards, each holding
// up to maxEntries/cacheShardCount items (at least one), so the total is
// roughly maxEntries and never below cacheShardCount.
func NewContentCache(maxEntries int) *ContentCache {
	perShard := maxEntries / cacheShardCount
	if perShard < 1 {
		perShard = 1
	}

	c := &ContentCache{}
	for i := range c.shards {
		c.shards[i] = newCacheShard(perShard)
	}

	return c
}

func (c *ContentCache) shardFor(key []byte) *cacheShard {
	return c.shards[cachekey.Shard(key, cacheShardCount)]
}

// Get returns the cached content for ekey, if present.
func (c *ContentCache) Get(ekey []byte) ([]byte, bool) {
	return c.shardFor(ekey).get(string(ekey))
}

// Put stores content for ekey, evicting the least-recently-used entry in
// its shard if that shard is already at capacity.
func (c *ContentCache) Put(ekey []byte, content []byte) {
	c.shardFor(ekey).put(string(ekey), content)
}

// Len returns the total number of entries cached across all shards.
func (c *ContentCache) Len() int {
	n := 0
	for _, s := range c.shards {
		n += s.len()
	}

	return n
}

// Clear empties the cache.
func (c *ContentCache) Clear() {
	for _, s := range c.shards {
		s.clear()
	}
}
