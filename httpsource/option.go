package httpsource

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

const (
	defaultRetryWaitMin = time.Second
	defaultRetryWaitMax = 30 * time.Second
)

type config struct {
	header       http.Header
	httpClient   *http.Client
	retryMax     int
	retryWaitMin time.Duration
	retryWaitMax time.Duration
	timeout      time.Duration
}

// Option is a function that sets a value in a config.
type Option func(*config) error

// getOpts creates a config and applies Options to it.
func getOpts(opts []Option) (config, error) {
	cfg := config{
		header:       make(http.Header),
		httpClient:   http.DefaultClient,
		retryWaitMin: defaultRetryWaitMin,
		retryWaitMax: defaultRetryWaitMax,
	}
	for i, opt := range opts {
		if err := opt(&cfg); err != nil {
			return config{}, fmt.Errorf("option %d failed: %s", i, err)
		}
	}
	return cfg, nil
}

// WithClient allows creation of the http client using an underlying network
// round tripper / client.
func WithClient(c *http.Client) Option {
	return func(cfg *config) error {
		if c != nil {
			cfg.httpClient = c
		}
		return nil
	}
}

// WithHeader adds a header that is sent with every request.
func WithHeader(key, value string) Option {
	return func(cfg *config) error {
		cfg.header.Add(key, value)
		return nil
	}
}

// WithRetry enables retrying requests that fail with a connection error or a
// retryable status such as 429 or 503. Up to max retries are made, waiting
// with exponential backoff between waitMin and waitMax. A zero wait uses the
// default for that bound.
//
// Default is no retries.
func WithRetry(max int, waitMin, waitMax time.Duration) Option {
	return func(cfg *config) error {
		if max < 0 {
			return errors.New("retry max cannot be negative")
		}
		cfg.retryMax = max
		if waitMin != 0 {
			cfg.retryWaitMin = waitMin
		}
		if waitMax != 0 {
			cfg.retryWaitMax = waitMax
		}
		if cfg.retryWaitMin > cfg.retryWaitMax {
			return errors.New("retry wait min is greater than wait max")
		}
		return nil
	}
}

// WithTimeout sets the time limit for each request attempt.
//
// Default is no timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(cfg *config) error {
		cfg.timeout = timeout
		return nil
	}
}
