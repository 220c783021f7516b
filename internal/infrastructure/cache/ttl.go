package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value    V
	expireAt time.Time
}

// TTLStore is a process-scoped key/value cache with a fixed entry lifetime.
// Expired entries are evicted on read and by a periodic sweep. It is a cache
// only: callers must never depend on an entry being present.
type TTLStore[V any] struct {
	mu       sync.Mutex
	items    map[string]entry[V]
	ttl      time.Duration
	interval time.Duration
	stop     chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

func NewTTLStore[V any](ttl, sweepInterval time.Duration) *TTLStore[V] {
	return &TTLStore[V]{
		items:    make(map[string]entry[V]),
		ttl:      ttl,
		interval: sweepInterval,
		stop:     make(chan struct{}),
		now:      time.Now,
	}
}

func (s *TTLStore[V]) Set(key string, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = entry[V]{value: value, expireAt: s.now().Add(s.ttl)}
}

// Get returns the cached value. An expired entry is removed and reported as
// absent.
func (s *TTLStore[V]) Get(key string) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !s.now().Before(e.expireAt) {
		delete(s.items, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

func (s *TTLStore[V]) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
}

func (s *TTLStore[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// StartSweep launches the periodic eviction loop. Stop ends it.
func (s *TTLStore[V]) StartSweep() {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
}

func (s *TTLStore[V]) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *TTLStore[V]) sweep() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.items {
		if !now.Before(e.expireAt) {
			delete(s.items, k)
		}
	}
}
