// Package repository is the metric store adapter: the read contract the
// analytics core depends on and the write side used by ingestion.
package repository

import (
	"context"
	"time"

	"github.com/okian/readiness/internal/domain/model"
)

// Reader is the only store surface the analytics core uses.
type Reader interface {
	// FetchMetrics returns records for player in [from, to]. An empty family
	// means every family. Records are ordered by date, family, key.
	FetchMetrics(ctx context.Context, playerID, family string, from, to time.Time) ([]model.MetricRecord, error)

	// FetchSessions returns sessions for player in [from, to] ordered by date.
	FetchSessions(ctx context.Context, playerID string, from, to time.Time) ([]model.SessionRecord, error)

	// PlayerExists reports whether any raw record exists for player.
	PlayerExists(ctx context.Context, playerID string) (bool, error)

	// ListPlayers returns every known player id, sorted.
	ListPlayers(ctx context.Context) ([]string, error)
}

// Writer upserts raw records.
type Writer interface {
	UpsertMetrics(ctx context.Context, records []model.MetricRecord) error
	UpsertSessions(ctx context.Context, sessions []model.SessionRecord) error
}

// Store combines both sides.
type Store interface {
	Reader
	Writer
	Close() error
}
