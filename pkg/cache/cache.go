// Package cache provides the bounded-lifetime key/value store used for resolved lookups.
//
// Callers depend on Store, which never fails: backend errors degrade to a miss
// on read and are dropped on write. Backends implement the lower-level Backend
// interface and are wrapped with Safe.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/metrics"
)

// DefaultTTL is the lifetime of a cached resolution
const DefaultTTL = 5 * time.Minute

const keyPrefix = "fern:rpc:"

// Store is the cache contract used by the invoker
type Store interface {
	Get(ctx context.Context, key string) (string, bool)
	Put(ctx context.Context, key string, value string, ttl time.Duration)
}

// Backend is a cache persistence primitive that may fail
type Backend interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

type safeStore struct {
	backend Backend
	logger  ectologger.Logger
}

// Safe wraps a backend so that its failures never reach the caller
func Safe(backend Backend, logger ectologger.Logger) Store {
	return &safeStore{backend: backend, logger: logger}
}

func (s *safeStore) Get(ctx context.Context, key string) (string, bool) {
	value, found, err := s.backend.Get(ctx, key)
	if err != nil {
		metrics.CacheErrorsTotal.WithLabelValues("get").Inc()
		s.logger.WithContext(ctx).WithError(err).WithField("cache_key", key).Warn("Cache read failed, treating as miss")
		return "", false
	}
	if found {
		metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
	} else {
		metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
	}
	return value, found
}

func (s *safeStore) Put(ctx context.Context, key string, value string, ttl time.Duration) {
	if err := s.backend.Set(ctx, key, value, ttl); err != nil {
		metrics.CacheErrorsTotal.WithLabelValues("put").Inc()
		s.logger.WithContext(ctx).WithError(err).WithField("cache_key", key).Warn("Cache write failed, ignoring")
	}
}

// Key derives a deterministic cache key from an endpoint URL and its parameters.
// Parameters are encoded as JSON with sorted object keys so that logically
// identical parameter sets always map to the same key.
func Key(endpoint string, params map[string]any) string {
	encoded, err := json.Marshal(params)
	if err != nil {
		// params that cannot be encoded cannot be sent either; fall back to the printed form
		encoded = []byte(fmt.Sprintf("%v", params))
	}

	h := sha256.New()
	h.Write([]byte(endpoint))
	h.Write([]byte{0})
	h.Write(encoded)
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}
