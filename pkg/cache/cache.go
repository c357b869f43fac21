// Package cache provides pluggable byte caches used for GitHub response
// caching and for the 5-minute analysis-payload cache in the API server.
//
// Three implementations are provided: [FileCache] for CLI usage,
// [RedisCache] for the API server, and [NullCache] to disable caching.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Cache is the storage interface shared by all backends.
// Implementations must treat a missing key as (nil, false, nil), not an error.
type Cache interface {
	// Get retrieves a value. The boolean reports whether the key was found
	// and fresh; expired entries count as misses.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with a time-to-live. A TTL of 0 means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the backend.
	Close() error
}

// TTLs for the two cached data classes.
const (
	// TTLResponse applies to raw GitHub API responses (commit details, diffs).
	TTLResponse = 24 * time.Hour

	// TTLAnalysis applies to computed visualization payloads served by the API.
	TTLAnalysis = 5 * time.Minute
)

// AnalysisKey builds the cache key for a computed visualization payload.
func AnalysisKey(owner, repo string, limit int) string {
	return hashKey("analysis", owner, repo, limit)
}

// ResponseKey builds the cache key for a raw upstream HTTP response.
func ResponseKey(namespace, key string) string {
	return hashKey("http", namespace, key)
}

// hashKey generates a cache key by hashing the components.
// The key format is: prefix:hash(parts...)
func hashKey(prefix string, parts ...any) string {
	data, _ := json.Marshal(parts)
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%s:%s", prefix, hex.EncodeToString(sum[:]))
}

// Hash computes a SHA-256 hash of the input data.
// Returns the full 64-character hex string.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
