package fetcher_test

import (
	"context"
	"errors"
	"net/http"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ipni/go-fetchcache/apierror"
	"github.com/ipni/go-fetchcache/cachekey"
	"github.com/ipni/go-fetchcache/fetcher"
	"github.com/ipni/go-fetchcache/store"
	"github.com/stretchr/testify/require"
)

type resource struct {
	ID   int
	Name string
}

// mockOp is a fetch operation that counts its calls and can be held open
// until released.
type mockOp struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	val     resource
	err     error
}

func newMockOp(val resource, err error) *mockOp {
	return &mockOp{
		started: make(chan struct{}, 100),
		val:     val,
		err:     err,
	}
}

func (m *mockOp) hold() {
	m.release = make(chan struct{})
}

func (m *mockOp) fetch(ctx context.Context) (resource, error) {
	m.calls.Add(1)
	m.started <- struct{}{}
	if m.release != nil {
		<-m.release
	}
	return m.val, m.err
}

func newFetcher(t *testing.T, options ...store.Option) (*fetcher.Fetcher[resource], *clock.Mock) {
	mock := clock.NewMock()
	s, err := store.New[resource](append([]store.Option{store.WithClock(mock)}, options...)...)
	require.NoError(t, err)
	f, err := fetcher.New(s)
	require.NoError(t, err)
	return f, mock
}

func TestReadCachesResult(t *testing.T) {
	f, _ := newFetcher(t)
	op := newMockOp(resource{ID: 1, Name: "fish"}, nil)
	key := cachekey.Build("/api/resources", map[string]any{"id": 1})

	v, err := f.Read(context.Background(), key, op.fetch)
	require.NoError(t, err)
	require.Equal(t, op.val, v)

	v, err = f.Read(context.Background(), key, op.fetch)
	require.NoError(t, err)
	require.Equal(t, op.val, v)
	require.Equal(t, int32(1), op.calls.Load())

	st := f.Store().Stats()
	require.Equal(t, uint64(1), st.Hits)
	require.Equal(t, uint64(1), st.Misses)
}

func TestConcurrentReadsDeduplicated(t *testing.T) {
	f, _ := newFetcher(t)
	op := newMockOp(resource{ID: 2}, nil)
	op.hold()

	const readers = 2
	var wg sync.WaitGroup
	results := make([]resource, readers)
	errs := make([]error, readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.Read(context.Background(), "k", op.fetch)
		}(i)
	}
	<-op.started
	time.Sleep(50 * time.Millisecond)
	close(op.release)
	wg.Wait()

	require.Equal(t, int32(1), op.calls.Load())
	for i := 0; i < readers; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, op.val, results[i])
	}
}

func TestStaggeredReadsFetchOnce(t *testing.T) {
	f, _ := newFetcher(t)
	op := newMockOp(resource{ID: 3}, nil)

	const readers = 50
	var wg sync.WaitGroup
	errs := make([]error, readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.Read(context.Background(), "k", op.fetch)
		}(i)
		if i%5 == 0 {
			runtime.Gosched()
		}
	}
	wg.Wait()

	require.Equal(t, int32(1), op.calls.Load())
	for i := 0; i < readers; i++ {
		require.NoError(t, errs[i])
	}
	require.Equal(t, 1, f.Store().Len())
}

func TestConcurrentReadsShareError(t *testing.T) {
	f, _ := newFetcher(t)
	errFetch := apierror.New(errors.New("boom"), http.StatusBadGateway)
	op := newMockOp(resource{}, errFetch)
	op.hold()

	errCh := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := f.Read(context.Background(), "k", op.fetch)
			errCh <- err
		}()
	}
	<-op.started
	time.Sleep(50 * time.Millisecond)
	close(op.release)

	for i := 0; i < 2; i++ {
		err := <-errCh
		require.Same(t, errFetch, err)
	}
	require.Equal(t, int32(1), op.calls.Load())
	require.Zero(t, f.Store().Len())
}

func TestFailureClearsPending(t *testing.T) {
	f, _ := newFetcher(t)
	errFetch := errors.New("connection refused")
	op := newMockOp(resource{}, errFetch)

	_, err := f.Read(context.Background(), "k", op.fetch)
	require.ErrorIs(t, err, errFetch)
	require.False(t, f.Store().Has("k"))

	op.err = nil
	op.val = resource{ID: 3}
	v, err := f.Read(context.Background(), "k", op.fetch)
	require.NoError(t, err)
	require.Equal(t, resource{ID: 3}, v)
	require.Equal(t, int32(2), op.calls.Load())
}

func TestReadTTL(t *testing.T) {
	f, mock := newFetcher(t)
	op := newMockOp(resource{ID: 4}, nil)

	_, err := f.Read(context.Background(), "k", op.fetch, fetcher.WithTTL(100*time.Millisecond))
	require.NoError(t, err)

	mock.Add(150 * time.Millisecond)
	_, err = f.Read(context.Background(), "k", op.fetch, fetcher.WithTTL(100*time.Millisecond))
	require.NoError(t, err)
	require.Equal(t, int32(2), op.calls.Load())
}

func TestDefaultTTL(t *testing.T) {
	mock := clock.NewMock()
	s, err := store.New[resource](store.WithClock(mock))
	require.NoError(t, err)
	f, err := fetcher.New(s, fetcher.WithDefaultTTL(time.Second))
	require.NoError(t, err)
	op := newMockOp(resource{ID: 5}, nil)

	_, err = f.Read(context.Background(), "k", op.fetch)
	require.NoError(t, err)
	mock.Add(time.Second)
	_, err = f.Read(context.Background(), "k", op.fetch)
	require.NoError(t, err)
	require.Equal(t, int32(1), op.calls.Load())

	mock.Add(time.Millisecond)
	_, err = f.Read(context.Background(), "k", op.fetch)
	require.NoError(t, err)
	require.Equal(t, int32(2), op.calls.Load())
}

func TestSkipCache(t *testing.T) {
	f, _ := newFetcher(t)
	op := newMockOp(resource{ID: 6}, nil)

	_, err := f.Read(context.Background(), "k", op.fetch)
	require.NoError(t, err)

	op.val = resource{ID: 7}
	v, err := f.Read(context.Background(), "k", op.fetch, fetcher.SkipCache())
	require.NoError(t, err)
	require.Equal(t, resource{ID: 7}, v)
	require.Equal(t, int32(2), op.calls.Load())

	// Skipped reads do not update the cache.
	v, err = f.Read(context.Background(), "k", op.fetch)
	require.NoError(t, err)
	require.Equal(t, resource{ID: 6}, v)
	require.Equal(t, int32(2), op.calls.Load())
}

func TestSkipCacheNotStored(t *testing.T) {
	f, _ := newFetcher(t)
	op := newMockOp(resource{ID: 8}, nil)

	_, err := f.Read(context.Background(), "k", op.fetch, fetcher.SkipCache())
	require.NoError(t, err)
	require.Zero(t, f.Store().Len())
	require.Zero(t, f.Store().Stats().Misses, "skipped read should not consult the store")
}

func TestInvalidateForcesRefetch(t *testing.T) {
	f, _ := newFetcher(t)
	op := newMockOp(resource{ID: 9}, nil)
	key := cachekey.Build("/api/resources", map[string]any{"page": 1})

	_, err := f.Read(context.Background(), key, op.fetch)
	require.NoError(t, err)
	n, err := f.Store().Invalidate("^/api/resources")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = f.Read(context.Background(), key, op.fetch)
	require.NoError(t, err)
	require.Equal(t, int32(2), op.calls.Load())
}

func TestCanceledCallerDoesNotCancelFetch(t *testing.T) {
	f, _ := newFetcher(t)
	var opCtxErr atomic.Value
	release := make(chan struct{})
	started := make(chan struct{})
	op := func(ctx context.Context) (resource, error) {
		close(started)
		<-release
		if ctx.Err() != nil {
			opCtxErr.Store(ctx.Err())
		}
		return resource{ID: 10}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := f.Read(ctx, "k", op)
		errCh <- err
	}()
	<-started

	waiter := make(chan resource, 1)
	go func() {
		v, _ := f.Read(context.Background(), "k", op)
		waiter <- v
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)

	close(release)
	require.Equal(t, resource{ID: 10}, <-waiter)
	require.Nil(t, opCtxErr.Load())

	// The result of the fetch was still cached.
	v, ok := f.Store().Get("k")
	require.True(t, ok)
	require.Equal(t, resource{ID: 10}, v)
}

func TestNilOperation(t *testing.T) {
	f, _ := newFetcher(t)
	_, err := f.Read(context.Background(), "k", nil)
	require.ErrorIs(t, err, fetcher.ErrNilOperation)
}

func TestNewErrors(t *testing.T) {
	_, err := fetcher.New[resource](nil)
	require.Error(t, err)

	s, err := store.New[resource]()
	require.NoError(t, err)
	_, err = fetcher.New(s, fetcher.WithDefaultTTL(-time.Second))
	require.ErrorContains(t, err, "option 0 failed")
}
