// Package flight coordinates in-flight operations so that concurrent requests
// for the same key share a single execution and its outcome.
//
// For each key an operation moves from idle to pending when the first caller
// starts it, and back to idle the moment it returns. Callers that arrive while
// it is pending attach to it. The pending entry is removed before any caller
// sees the outcome, so a request made after an operation settles always
// starts new work.
package flight

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// Group tracks one pending operation per key. The zero value is ready to use.
// A Group must not be copied after first use.
type Group[V any] struct {
	g singleflight.Group
}

// JoinOrStart runs op for key, unless an op for key is already running, in
// which case it waits for that one to finish and returns its result. shared
// reports whether the result was delivered to more than one caller.
//
// The returned error is exactly the error returned by op. ctx only limits how
// long this caller waits: if ctx is done first, ctx.Err() is returned, and op
// keeps running for any other callers with its pending entry left in place.
func (g *Group[V]) JoinOrStart(ctx context.Context, key string, op func() (V, error)) (v V, shared bool, err error) {
	ch := g.g.DoChan(key, func() (interface{}, error) {
		return op()
	})

	select {
	case res := <-ch:
		if res.Val != nil {
			v = res.Val.(V)
		}
		return v, res.Shared, res.Err
	case <-ctx.Done():
		return v, false, ctx.Err()
	}
}
