// Package cachekey provides a fast, non-cryptographic shard fingerprint for
// in-process concurrency structures (the archive content cache's lock
// striping). It is independent of the MD5-based 16-bucket function used
// for on-disk index sharding (internal/md5key.Key.Bucket): that function's
// distribution is fixed by the on-disk format, whereas in-process lock
// striping is free to use a cheaper hash and a different shard count so
// cache contention doesn't correlate 1:1 with on-disk bucket contention.
package cachekey

import "github.com/cespare/xxhash/v2"

// Shard returns an index in [0, n) for key, derived from xxhash64. n must
// be greater than zero.
func Shard(key []byte, n int) int {
	return int(xxhash.Sum64(key) % uint64(n))
}
