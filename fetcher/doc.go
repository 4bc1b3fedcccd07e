// Package fetcher provides a read-through cache around network read
// operations.
//
// A Fetcher combines a store.Store, which holds recent results, with a
// flight.Group, which makes concurrent reads of the same key share one
// operation. A read first looks in the store. On a miss, the caller-supplied
// operation is run, or joined if it is already running for that key, and a
// successful result is stored for later reads. Failed operations are never
// cached, and the next read after a failure runs the operation again.
//
// The Fetcher never builds network requests itself. Each read is given the
// operation to run, typically a closure over an HTTP client such as the one
// in package httpsource. Retrying failed operations is left to the caller.
package fetcher
