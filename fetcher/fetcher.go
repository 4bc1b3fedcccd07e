package fetcher

import (
	"context"
	"errors"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/ipni/go-fetchcache/flight"
	"github.com/ipni/go-fetchcache/store"
)

var log = logging.Logger("fetchcache/fetcher")

// ErrNilOperation is returned by Read when it is not given an operation to run.
var ErrNilOperation = errors.New("nil fetch operation")

// Operation fetches the value for a single read. It is typically a network
// request.
type Operation[V any] func(context.Context) (V, error)

// Fetcher is a read-through cache. It is safe for concurrent use.
type Fetcher[V any] struct {
	store *store.Store[V]
	group flight.Group[V]
	ttl   time.Duration
}

// New creates a Fetcher that caches results in s. The store may be shared
// with other code that needs direct access, for example to invalidate entries
// after a write.
func New[V any](s *store.Store[V], options ...Option) (*Fetcher[V], error) {
	opts, err := getOpts(options)
	if err != nil {
		return nil, err
	}

	if s == nil {
		return nil, errors.New("nil store")
	}

	return &Fetcher[V]{
		store: s,
		ttl:   opts.ttl,
	}, nil
}

// Read returns the cached value for key if there is one. Otherwise it runs op,
// or waits for an op already running for key, and caches a successful result.
// Any error from op is returned as is, and nothing is cached.
//
// op is called with a context that carries the values of ctx but is not
// canceled with it, since other callers may be waiting on the same result.
// Canceling ctx only stops this caller from waiting.
func (f *Fetcher[V]) Read(ctx context.Context, key string, op Operation[V], options ...ReadOption) (V, error) {
	var zero V
	if op == nil {
		return zero, ErrNilOperation
	}
	opts := getReadOpts(options, f.ttl)

	if !opts.skipCache {
		if v, ok := f.store.Get(key); ok {
			return v, nil
		}
	}

	fetchCtx := context.WithoutCancel(ctx)
	v, shared, err := f.group.JoinOrStart(ctx, key, func() (V, error) {
		// A fetch for key may have been stored after the miss above but
		// before this op was registered.
		if !opts.skipCache {
			if v, ok := f.store.Peek(key); ok {
				return v, nil
			}
		}
		v, err := op(fetchCtx)
		if err != nil {
			log.Debugw("Fetch failed", "key", key, "err", err)
			return zero, err
		}
		if !opts.skipCache {
			f.store.Set(key, v, opts.ttl)
		}
		return v, nil
	})
	if err != nil {
		return zero, err
	}
	if shared {
		log.Debugw("Shared result of in-flight fetch", "key", key)
	}
	return v, nil
}

// Store returns the store that holds cached results.
func (f *Fetcher[V]) Store() *store.Store[V] {
	return f.store
}
