// Package cache memoizes loaded inputs so a boundary layer or sheet is parsed
// once per source version.
package cache

import (
	"container/list"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/singleflight"
)

// Memo holds loaded values by source key, least recently used first out.
type Memo[T any] struct {
	mu    sync.Mutex
	items map[string]*list.Element
	lru   *list.List // front = most recently used
	limit int
	ttl   time.Duration
	now   func() time.Time

	group  singleflight.Group
	hits   atomic.Int64
	misses atomic.Int64
	loads  atomic.Int64
}

type slot[T any] struct {
	key     string
	value   T
	expires time.Time // zero = never
}

// Stats reports memo usage.
type Stats struct {
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	Loads      int64   `json:"loads"`
	HitRate    float64 `json:"hit_rate"`
}

// New creates a Memo. maxEntries < 1 is treated as 1; ttl <= 0 never expires.
func New[T any](maxEntries int, ttl time.Duration) *Memo[T] {
	return &Memo[T]{
		items: make(map[string]*list.Element),
		lru:   list.New(),
		limit: max(maxEntries, 1),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get returns the live value for key and marks it recently used.
func (c *Memo[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.lookup(key); ok {
		c.lru.MoveToFront(c.items[key])
		c.hits.Add(1)
		return s.value, true
	}
	c.misses.Add(1)
	var zero T
	return zero, false
}

// Put stores value under key, evicting from the back when the memo is full.
func (c *Memo[T]) Put(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := &slot[T]{key: key, value: value}
	if c.ttl > 0 {
		s.expires = c.now().Add(c.ttl)
	}
	if el, ok := c.items[key]; ok {
		el.Value = s
		c.lru.MoveToFront(el)
		return
	}
	for c.lru.Len() >= c.limit {
		c.drop(c.lru.Back())
	}
	c.items[key] = c.lru.PushFront(s)
}

// GetOrLoad returns the cached value for key or runs load. Concurrent callers
// for the same key share one load. Failed loads are not cached.
func (c *Memo[T]) GetOrLoad(key string, load func() (T, error)) (T, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// another caller may have finished loading between Get and Do
		c.mu.Lock()
		s, ok := c.lookup(key)
		c.mu.Unlock()
		if ok {
			return s.value, nil
		}
		c.loads.Add(1)
		v, err := load()
		if err != nil {
			return nil, err
		}
		c.Put(key, v)
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, eris.Wrapf(err, "cache: load %s", key)
	}
	val, _ := v.(T)
	return val, nil
}

// Invalidate drops one key.
func (c *Memo[T]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.drop(el)
	}
}

// Purge drops every entry.
func (c *Memo[T]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.items)
	c.lru.Init()
}

// Stats returns a snapshot of the counters.
func (c *Memo[T]) Stats() Stats {
	c.mu.Lock()
	st := Stats{Entries: c.lru.Len(), MaxEntries: c.limit}
	c.mu.Unlock()

	st.Hits, st.Misses, st.Loads = c.hits.Load(), c.misses.Load(), c.loads.Load()
	if total := st.Hits + st.Misses; total > 0 {
		st.HitRate = float64(st.Hits) / float64(total)
	}
	return st
}

// lookup returns the slot for key, evicting it when expired. Caller holds mu.
func (c *Memo[T]) lookup(key string) (*slot[T], bool) {
	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	s := el.Value.(*slot[T])
	if !s.expires.IsZero() && c.now().After(s.expires) {
		c.drop(el)
		return nil, false
	}
	return s, true
}

func (c *Memo[T]) drop(el *list.Element) {
	delete(c.items, el.Value.(*slot[T]).key)
	c.lru.Remove(el)
}

// FileKey builds a key from a path and its modification time and size, so an
// edited file is reloaded. Non-local sources (URLs) are returned unchanged.
func FileKey(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return path
	}
	return fmt.Sprintf("%s@%d:%d", path, info.ModTime().UnixNano(), info.Size())
}
