package store

import (
	"regexp"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/golang-lru/v2/simplelru"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("fetchcache/store")

// Store is a concurrency-safe LRU store with per-entry time-to-live.
type Store[V any] struct {
	lock  sync.Mutex
	lru   *simplelru.LRU[string, *entry[V]]
	clock clock.Clock

	maxSize          int
	evictOnOverwrite bool
	slidingTTL       bool

	hits      uint64
	misses    uint64
	evictions uint64
}

// entry is never handed out. Set always stores a new entry, so the only
// in-place change is re-stamping storedAt for a sliding TTL.
type entry[V any] struct {
	data     V
	storedAt time.Time
	ttl      time.Duration
}

func (e *entry[V]) expired(now time.Time) bool {
	return e.ttl > 0 && now.Sub(e.storedAt) > e.ttl
}

// Stats is a snapshot of store occupancy and lookup counters.
type Stats struct {
	Size      int
	MaxSize   int
	Hits      uint64
	Misses    uint64
	Evictions uint64
	// HitRate is Hits / (Hits + Misses), or 0 if there have been no lookups.
	HitRate float64
	// Keys lists stored keys from least to most recently used. This includes
	// expired entries that have not yet been removed.
	Keys []string
}

// New creates a new Store.
func New[V any](options ...Option) (*Store[V], error) {
	opts, err := getOpts(options)
	if err != nil {
		return nil, err
	}

	// Eviction is done explicitly in Set, so the underlying LRU never has to
	// evict on its own.
	lru, err := simplelru.NewLRU[string, *entry[V]](opts.maxSize, nil)
	if err != nil {
		return nil, err
	}

	return &Store[V]{
		lru:              lru,
		clock:            opts.clock,
		maxSize:          opts.maxSize,
		evictOnOverwrite: opts.evictOnOverwrite,
		slidingTTL:       opts.slidingTTL,
	}, nil
}

// Set stores data under key, replacing any existing entry. A ttl of zero or
// less means the entry does not expire.
func (s *Store[V]) Set(key string, data V, ttl time.Duration) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.lru.Len() >= s.maxSize && (s.evictOnOverwrite || !s.lru.Contains(key)) {
		if oldest, _, ok := s.lru.RemoveOldest(); ok {
			s.evictions++
			log.Debugw("Evicted least recently used entry", "key", oldest)
		}
	}

	s.lru.Add(key, &entry[V]{
		data:     data,
		storedAt: s.clock.Now(),
		ttl:      ttl,
	})
}

// Get returns the data stored under key if it is present and not expired. An
// expired entry is removed.
func (s *Store[V]) Get(key string) (V, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.getLocked(key)
}

// Has reports whether Get would succeed for key. It is not read-only: it
// counts a hit or miss, makes a live entry the most recently used, and removes
// an expired entry, exactly as Get does.
func (s *Store[V]) Has(key string) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	_, ok := s.getLocked(key)
	return ok
}

// Peek returns the data stored under key if it is present and not expired. It
// does not count a hit or miss, change recency, or remove an expired entry.
func (s *Store[V]) Peek(key string) (V, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()

	e, ok := s.lru.Peek(key)
	if !ok || e.expired(s.clock.Now()) {
		var zero V
		return zero, false
	}
	return e.data, true
}

func (s *Store[V]) getLocked(key string) (V, bool) {
	var zero V

	e, ok := s.lru.Peek(key)
	if !ok {
		s.misses++
		return zero, false
	}

	now := s.clock.Now()
	if e.expired(now) {
		s.lru.Remove(key)
		s.misses++
		log.Debugw("Removed expired entry", "key", key, "age", now.Sub(e.storedAt))
		return zero, false
	}

	// Move to most recently used.
	s.lru.Get(key)
	if s.slidingTTL {
		e.storedAt = now
	}
	s.hits++
	return e.data, true
}

// Delete removes the entry for key, if any.
func (s *Store[V]) Delete(key string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.lru.Remove(key)
}

// Invalidate removes every entry whose key matches the regular expression
// pattern. An empty pattern removes all entries. The number of entries
// removed is returned. If pattern does not compile, nothing is removed.
func (s *Store[V]) Invalidate(pattern string) (int, error) {
	if pattern == "" {
		s.lock.Lock()
		defer s.lock.Unlock()
		n := s.lru.Len()
		s.lru.Purge()
		return n, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return 0, err
	}
	return s.InvalidateFunc(re.MatchString), nil
}

// InvalidatePatterns removes every entry whose key matches any of the given
// regular expressions. Patterns that fail to compile are skipped and reported
// together in the returned error; the remaining patterns are still applied.
func (s *Store[V]) InvalidatePatterns(patterns ...string) (int, error) {
	var errs error
	res := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		res = append(res, re)
	}
	if len(res) == 0 {
		return 0, errs
	}

	n := s.InvalidateFunc(func(key string) bool {
		for _, re := range res {
			if re.MatchString(key) {
				return true
			}
		}
		return false
	})
	return n, errs
}

// InvalidateFunc removes every entry for which match returns true, and returns
// the number of entries removed. The store is locked while match is called,
// so match must not call back into the store.
func (s *Store[V]) InvalidateFunc(match func(key string) bool) int {
	s.lock.Lock()
	defer s.lock.Unlock()

	var n int
	for _, key := range s.lru.Keys() {
		if match(key) {
			s.lru.Remove(key)
			n++
		}
	}
	if n != 0 {
		log.Debugw("Invalidated entries", "count", n)
	}
	return n
}

// Len returns the number of stored entries, including expired entries that
// have not yet been removed.
func (s *Store[V]) Len() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.lru.Len()
}

// Stats returns a snapshot of the store's size and counters.
func (s *Store[V]) Stats() Stats {
	s.lock.Lock()
	defer s.lock.Unlock()

	st := Stats{
		Size:      s.lru.Len(),
		MaxSize:   s.maxSize,
		Hits:      s.hits,
		Misses:    s.misses,
		Evictions: s.evictions,
		Keys:      s.lru.Keys(),
	}
	if total := s.hits + s.misses; total != 0 {
		st.HitRate = float64(s.hits) / float64(total)
	}
	return st
}

// ResetStats zeroes the hit, miss, and eviction counters without touching
// stored entries.
func (s *Store[V]) ResetStats() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.resetStatsLocked()
}

// Clear removes all entries and zeroes the counters.
func (s *Store[V]) Clear() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.lru.Purge()
	s.resetStatsLocked()
}

func (s *Store[V]) resetStatsLocked() {
	s.hits = 0
	s.misses = 0
	s.evictions = 0
}
