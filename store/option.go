package store

import (
	"errors"
	"fmt"

	"github.com/benbjohnson/clock"
)

const defaultMaxSize = 100

type config struct {
	clock            clock.Clock
	evictOnOverwrite bool
	maxSize          int
	slidingTTL       bool
}

// Option is a function that sets a value in a config.
type Option func(*config) error

// getOpts creates a config and applies Options to it.
func getOpts(opts []Option) (config, error) {
	cfg := config{
		clock:   clock.New(),
		maxSize: defaultMaxSize,
	}
	for i, opt := range opts {
		if err := opt(&cfg); err != nil {
			return config{}, fmt.Errorf("option %d failed: %s", i, err)
		}
	}
	return cfg, nil
}

// WithMaxSize sets the maximum number of entries the store holds. When a new
// key is stored into a full store, the least recently used entry is evicted.
//
// Default is 100.
func WithMaxSize(n int) Option {
	return func(cfg *config) error {
		if n <= 0 {
			return errors.New("max size must be greater than zero")
		}
		cfg.maxSize = n
		return nil
	}
}

// WithClock sets the clock used to timestamp entries and to check their age.
// This is mainly for testing with a mock clock.
func WithClock(c clock.Clock) Option {
	return func(cfg *config) error {
		if c != nil {
			cfg.clock = c
		}
		return nil
	}
}

// WithEvictOnOverwrite, when enabled, evicts the least recently used entry
// whenever the store is full, even if the Set only overwrites an existing key
// and would not grow the store. This keeps the eviction behavior of older
// versions of this cache.
//
// Default is disabled: overwriting an existing key never evicts.
func WithEvictOnOverwrite(enable bool) Option {
	return func(cfg *config) error {
		cfg.evictOnOverwrite = enable
		return nil
	}
}

// WithSlidingTTL, when enabled, resets an entry's age each time it is read so
// that its time-to-live counts from the last hit instead of from when it was
// stored.
//
// Default is disabled: an entry expires ttl after it was last stored no matter
// how often it is read.
func WithSlidingTTL(enable bool) Option {
	return func(cfg *config) error {
		cfg.slidingTTL = enable
		return nil
	}
}
