// Package cache stores raw upstream response bodies keyed by normalized request.
//
// A Store only ever sees bytes: callers decode a fresh value on every hit, so
// nothing handed out by a Store can be mutated behind another caller's back.
// Three backends are provided:
//   - memory: an ordered in-process map, lost on exit
//   - sqlite: a single-table database file
//   - badger: an embedded LSM key-value store
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Store is the narrow interface the data client depends on.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the body stored under key. The returned slice is owned by the caller.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Put stores body under key, replacing any previous value.
	Put(ctx context.Context, key string, body []byte) error
	// Close releases the resources held by the store.
	Close() error
}

// Purger is implemented by stores that can drop every key sharing a prefix.
type Purger interface {
	PurgePrefix(ctx context.Context, prefix string) (int, error)
}

// Backend names accepted by Open.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// Config selects and configures a backend.
type Config struct {
	// Backend is one of none, memory, sqlite, badger.
	Backend string `yaml:"backend" validate:"omitempty,oneof=none memory sqlite badger"`

	// Path is the sqlite file or the badger directory. Ignored by memory.
	Path string `yaml:"path"`

	// TTL expires entries after the given age. Zero keeps them forever.
	TTL time.Duration `yaml:"ttl" validate:"gte=0"`
}

// Open builds the Store described by cfg. A "none" backend returns a nil Store,
// which the client treats as caching disabled.
func Open(cfg Config, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch strings.ToLower(cfg.Backend) {
	case BackendNone:
		return nil, nil
	case "", BackendMemory:
		return NewMemory(cfg.TTL), nil
	case BackendSQLite:
		if cfg.Path == "" {
			return nil, fmt.Errorf("cache: sqlite backend requires a path")
		}
		return OpenSQLite(cfg.Path, cfg.TTL)
	case BackendBadger:
		return OpenBadger(BadgerConfig{Path: cfg.Path, InMemory: cfg.Path == "", TTL: cfg.TTL, Logger: logger})
	default:
		return nil, fmt.Errorf("cache: unknown backend %q", cfg.Backend)
	}
}

func expired(storedAt time.Time, ttl time.Duration, now time.Time) bool {
	return ttl > 0 && now.Sub(storedAt) > ttl
}
