package framecache

import (
	"math"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// Store is a cost-weighted LRU map of decoded frames.
//
// The recency list is unbounded by entry count; the byte budget is the only
// limit. When an insertion or a budget change pushes the total cost over the
// budget, the least recently used entries are evicted until it fits again,
// which can include the entry that was just inserted.
//
// Store is safe for concurrent use.
type Store struct {
	mu        sync.Mutex
	lru       *simplelru.LRU[Key, *Frame]
	maxCost   int64
	cost      int64
	evictions uint64
}

// NewStore creates a store with a budget of maxCost bytes.
func NewStore(maxCost int64) (*Store, error) {
	if maxCost < 0 {
		return nil, ErrInvalidCacheSize
	}
	s := &Store{maxCost: maxCost}
	lru, err := simplelru.NewLRU[Key, *Frame](math.MaxInt, s.onEvict)
	if err != nil {
		return nil, err
	}
	s.lru = lru
	return s, nil
}

// onEvict runs under s.mu for every entry leaving the recency list.
func (s *Store) onEvict(_ Key, f *Frame) {
	s.cost -= f.size
}

// Get returns the frame for key and marks it most recently used.
func (s *Store) Get(key Key) (*Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Get(key)
}

// Peek returns the frame for key without touching its recency.
func (s *Store) Peek(key Key) (*Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Peek(key)
}

// Contains reports whether key is stored without touching its recency.
func (s *Store) Contains(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Contains(key)
}

// Add inserts or replaces f and evicts until the budget is satisfied.
// It returns false if f itself did not survive eviction.
func (s *Store) Add(f *Frame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.lru.Peek(f.key); ok {
		s.cost -= old.size
	}
	s.lru.Add(f.key, f)
	s.cost += f.size

	s.evictOverflow()
	return s.lru.Contains(f.key)
}

// Remove deletes key. It returns false if key was not stored.
func (s *Store) Remove(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Remove(key)
}

// SetMaxCost changes the budget, evicting immediately if current usage exceeds it.
func (s *Store) SetMaxCost(maxCost int64) error {
	if maxCost < 0 {
		return ErrInvalidCacheSize
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxCost = maxCost
	s.evictOverflow()
	return nil
}

func (s *Store) evictOverflow() {
	for s.cost > s.maxCost {
		if _, _, ok := s.lru.RemoveOldest(); !ok {
			s.cost = 0
			return
		}
		s.evictions++
	}
}

// Purge removes every entry.
func (s *Store) Purge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lru.Purge()
	s.cost = 0
}

// Cost returns the total byte cost of stored frames.
func (s *Store) Cost() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cost
}

// MaxCost returns the byte budget.
func (s *Store) MaxCost() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxCost
}

// Len returns the number of stored frames.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Len()
}

// Keys returns the stored keys from least to most recently used.
func (s *Store) Keys() []Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Keys()
}

// Evictions returns the number of entries evicted by budget pressure.
func (s *Store) Evictions() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evictions
}

func (s *Store) resetEvictions() {
	s.mu.Lock()
	s.evictions = 0
	s.mu.Unlock()
}
