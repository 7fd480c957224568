package model

import (
	"fmt"
	"sort"
	"strings"
)

// BatchKind tells the ingestion worker which table a batch targets.
type BatchKind string

const (
	BatchMetrics  BatchKind = "metrics"
	BatchSessions BatchKind = "sessions"
)

// IngestBatch is a unit of raw records travelling through the ingestion queue.
type IngestBatch struct {
	BatchID  string
	Kind     BatchKind
	Metrics  []MetricRecord
	Sessions []SessionRecord
}

// Len returns the number of records carried by the batch.
func (b IngestBatch) Len() int {
	return len(b.Metrics) + len(b.Sessions)
}

// PlayerIDs returns the distinct players touched by the batch, sorted.
func (b IngestBatch) PlayerIDs() []string {
	seen := make(map[string]struct{})
	for _, m := range b.Metrics {
		seen[m.PlayerID] = struct{}{}
	}
	for _, s := range b.Sessions {
		seen[s.PlayerID] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Validate checks every record in the batch.
func (b IngestBatch) Validate() error {
	if b.Len() == 0 {
		return fmt.Errorf("%w: empty batch", ErrInvalidRecord)
	}
	for i, m := range b.Metrics {
		if err := ValidateMetric(m); err != nil {
			return fmt.Errorf("metrics[%d]: %w", i, err)
		}
	}
	for i, s := range b.Sessions {
		if err := ValidateSession(s); err != nil {
			return fmt.Errorf("sessions[%d]: %w", i, err)
		}
	}
	return nil
}

// ValidateMetric checks a single metric record.
func ValidateMetric(m MetricRecord) error {
	switch {
	case strings.TrimSpace(m.PlayerID) == "":
		return fmt.Errorf("%w: player_id is required", ErrInvalidRecord)
	case m.Date.IsZero():
		return fmt.Errorf("%w: date is required", ErrInvalidRecord)
	case !IsFamily(m.Family):
		return fmt.Errorf("%w: %q", ErrInvalidFamily, m.Family)
	case strings.TrimSpace(m.Key) == "":
		return fmt.Errorf("%w: key is required", ErrInvalidRecord)
	}
	return nil
}

// ValidateSession checks a single session record.
func ValidateSession(s SessionRecord) error {
	switch {
	case strings.TrimSpace(s.PlayerID) == "":
		return fmt.Errorf("%w: player_id is required", ErrInvalidRecord)
	case s.Date.IsZero():
		return fmt.Errorf("%w: date is required", ErrInvalidRecord)
	case s.DurationMinutes < 0:
		return fmt.Errorf("%w: duration_minutes must be >= 0", ErrInvalidRecord)
	case s.PerceivedExertion < 0 || s.PerceivedExertion > 10:
		return fmt.Errorf("%w: perceived_exertion must be within [0,10]", ErrInvalidRecord)
	}
	return nil
}
