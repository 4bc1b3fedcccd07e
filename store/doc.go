// Package store provides a bounded, age-aware, in-memory key/value store for
// caching the results of network reads.
//
// ## Capacity
//
// The store holds at most a fixed number of entries. Entries are kept in
// recency order, where storing or successfully reading an entry makes it the
// most recently used. Storing a new key into a full store first evicts the
// single least recently used entry, so the store never grows past its
// configured size.
//
// ## Expiration
//
// Each entry carries its own time-to-live. An entry older than its TTL is
// treated as absent. Expired entries are not purged in the background; they
// are removed when a lookup finds them expired, or when they are evicted or
// invalidated.
//
// ## Stats
//
// The store counts hits and misses across all lookups. Counters are reset
// independently of the stored data, by ResetStats, or together with it, by
// Clear.
package store
