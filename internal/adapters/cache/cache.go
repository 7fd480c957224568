// Package cache holds derived query results per player. Every entry belongs
// to exactly one player so ingestion can drop a player's results at once.
package cache

import (
	"context"
	"fmt"
	"strings"
)

// Backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendNone   = "none"
)

// Key identifies one cached result.
type Key struct {
	PlayerID string
	Kind     string // series, workload, readiness, alerts, risk, completeness
	Window   string // from..to or as_of
	Grouping string
	Extra    string
}

// String renders the per-player part of the key.
func (k Key) String() string {
	return strings.Join([]string{k.Kind, k.Window, k.Grouping, k.Extra}, "|")
}

// Cache stores immutable JSON snapshots.
type Cache interface {
	// Get returns the stored bytes and true on a hit.
	Get(ctx context.Context, k Key) ([]byte, bool)
	// Set stores a snapshot. Failures are logged, never returned: a cache
	// that cannot store only costs a recomputation.
	Set(ctx context.Context, k Key, value []byte)
	// InvalidatePlayer drops every entry of the player.
	InvalidatePlayer(ctx context.Context, playerID string) error
	// Len reports the number of live entries.
	Len(ctx context.Context) int
	Close() error
}

// New builds the cache for the named backend.
func New(backend string, opts ...Option) (Cache, error) {
	switch backend {
	case BackendMemory, "":
		return NewMemory(opts...), nil
	case BackendRedis:
		return NewRedis(opts...)
	case BackendNone:
		return Noop{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

// Noop never stores anything.
type Noop struct{}

func (Noop) Get(context.Context, Key) ([]byte, bool)        { return nil, false }
func (Noop) Set(context.Context, Key, []byte)               {}
func (Noop) InvalidatePlayer(context.Context, string) error { return nil }
func (Noop) Len(context.Context) int                        { return 0 }
func (Noop) Close() error                                   { return nil }
