// Package cmap provides a concurrent map sharded by key hash.
//
// Each shard has its own RWMutex, so lookups for unrelated keys do not
// contend. It backs per-client state on the admin REST surface, such as
// the rate limiter buckets keyed by client IP.
package cmap
