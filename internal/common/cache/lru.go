// Package cache provides the in-process TTL+LRU store backing provider
// lookups, plus an optional Redis tier shared between replicas.
package cache

import (
	"container/list"
	"sync"
	"time"
)

type entry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

// LRU is a fixed-capacity store with per-entry TTL. Expiry is lazy: an entry
// past its TTL is dropped when read, never by a background sweeper. A read
// that hits promotes the entry to most recently used. Inserting at capacity
// evicts the least recently used entry.
type LRU[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	order    *list.List
	items    map[K]*list.Element
	now      func() time.Time
}

type Option[K comparable, V any] func(*LRU[K, V])

// WithClock overrides the time source, used by tests to drive expiry.
func WithClock[K comparable, V any](now func() time.Time) Option[K, V] {
	return func(l *LRU[K, V]) {
		l.now = now
	}
}

func NewLRU[K comparable, V any](capacity int, ttl time.Duration, opts ...Option[K, V]) *LRU[K, V] {
	l := &LRU[K, V]{
		capacity: capacity,
		ttl:      ttl,
		order:    list.New(),
		items:    make(map[K]*list.Element, capacity),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Get returns the cached value for key. An entry past its TTL is removed and
// reported as a miss.
func (l *LRU[K, V]) Get(key K) (V, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var zero V
	elem, ok := l.items[key]
	if !ok {
		return zero, false
	}

	ent := elem.Value.(*entry[K, V])
	if l.now().After(ent.expiresAt) {
		l.order.Remove(elem)
		delete(l.items, key)
		return zero, false
	}

	l.order.MoveToFront(elem)
	return ent.value, true
}

// Set stores value under key with a fresh TTL, evicting the least recently
// used entry when the store is full.
func (l *LRU[K, V]) Set(key K, value V) {
	l.mu.Lock()
	defer l.mu.Unlock()

	expiresAt := l.now().Add(l.ttl)

	if elem, ok := l.items[key]; ok {
		ent := elem.Value.(*entry[K, V])
		ent.value = value
		ent.expiresAt = expiresAt
		l.order.MoveToFront(elem)
		return
	}

	if l.order.Len() >= l.capacity {
		oldest := l.order.Back()
		if oldest != nil {
			l.order.Remove(oldest)
			delete(l.items, oldest.Value.(*entry[K, V]).key)
		}
	}

	l.items[key] = l.order.PushFront(&entry[K, V]{key: key, value: value, expiresAt: expiresAt})
}

// Len reports the number of entries currently held, expired or not.
func (l *LRU[K, V]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.order.Len()
}
