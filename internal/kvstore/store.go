// Package kvstore is the shared key-value cache behind result caching,
// enrichment negative caching and rate-limit state.
package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Store is a key-value cache with per-key TTL expiry. A missing or expired
// key is reported as found == false with a nil error.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

var ErrEmptyKey = errors.New("kvstore: empty key")

// GetJSON decodes the value stored at key into dst.
func GetJSON(ctx context.Context, s Store, key string, dst any) (bool, error) {
	raw, found, err := s.Get(ctx, key)
	if err != nil || !found {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// PutJSON encodes v and stores it at key.
func PutJSON(ctx context.Context, s Store, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Put(ctx, key, raw, ttl)
}

// Open builds the backend named by kind: "memory", "sqlite" (dsn is a file
// path) or "redis" (dsn is a redis:// URL).
func Open(kind, dsn string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		return OpenSQLite(dsn)
	case "redis":
		return OpenRedis(dsn)
	}
	return nil, fmt.Errorf("kvstore: unsupported backend %q", kind)
}
