package fetcher

import (
	"errors"
	"fmt"
	"time"
)

const defaultTTL = 5 * time.Minute

type config struct {
	ttl time.Duration
}

// Option is a function that sets a value in a config.
type Option func(*config) error

// getOpts creates a config and applies Options to it.
func getOpts(opts []Option) (config, error) {
	cfg := config{
		ttl: defaultTTL,
	}
	for i, opt := range opts {
		if err := opt(&cfg); err != nil {
			return config{}, fmt.Errorf("option %d failed: %s", i, err)
		}
	}
	return cfg, nil
}

// WithDefaultTTL sets the time-to-live given to fetched results when a read
// does not specify one with WithTTL.
//
// Default is 5 minutes.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(cfg *config) error {
		if ttl < 0 {
			return errors.New("default ttl cannot be negative")
		}
		cfg.ttl = ttl
		return nil
	}
}

type readConfig struct {
	ttl       time.Duration
	skipCache bool
}

// ReadOption configures a single Read.
type ReadOption func(*readConfig)

func getReadOpts(opts []ReadOption, ttl time.Duration) readConfig {
	cfg := readConfig{
		ttl: ttl,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithTTL sets how long the result of this read remains in the cache. A ttl
// of zero or less stores the result without expiration.
func WithTTL(ttl time.Duration) ReadOption {
	return func(cfg *readConfig) {
		cfg.ttl = ttl
	}
}

// SkipCache makes the read bypass the cache entirely: the store is not
// consulted and the fetched result is not stored. Concurrent reads of the same
// key still share one operation.
func SkipCache() ReadOption {
	return func(cfg *readConfig) {
		cfg.skipCache = true
	}
}
