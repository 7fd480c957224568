// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the calendar-day layout used on the wire and in storage.
const DateLayout = "2006-01-02"

// Metric families.
const (
	FamilyWellness  = "wellness"
	FamilyAutonomic = "autonomic"
	FamilyBody      = "body"
	FamilyTraining  = "training"
	FamilyMatch     = "match"
)

// Families lists every known family in a stable order.
var Families = []string{FamilyWellness, FamilyAutonomic, FamilyBody, FamilyTraining, FamilyMatch}

// IsFamily reports whether f names a known family.
func IsFamily(f string) bool {
	for _, known := range Families {
		if known == f {
			return true
		}
	}
	return false
}

// MetricRecord is one raw observation. Identity is (PlayerID, Date, Family, Key).
type MetricRecord struct {
	PlayerID string    `json:"player_id"`
	Date     time.Time `json:"date"`
	Family   string    `json:"family"`
	Key      string    `json:"key"`
	Value    float64   `json:"value"`
	Unit     string    `json:"unit,omitempty"`
}

// MetricKey returns the "family.key" identifier used in series columns.
func (r MetricRecord) MetricKey() string {
	return MetricKey(r.Family, r.Key)
}

// MetricKey joins a family and key.
func MetricKey(family, key string) string {
	return family + "." + key
}

// SplitMetricKey is the inverse of MetricKey. A key without a dot has no family.
func SplitMetricKey(metric string) (family, key string) {
	if i := strings.IndexByte(metric, '.'); i >= 0 {
		return metric[:i], metric[i+1:]
	}
	return "", metric
}

// SessionRecord is a single training session.
type SessionRecord struct {
	SessionID         string    `json:"session_id,omitempty"`
	PlayerID          string    `json:"player_id"`
	Date              time.Time `json:"date"`
	DurationMinutes   float64   `json:"duration_minutes"`
	PerceivedExertion float64   `json:"perceived_exertion"`
	SessionType       string    `json:"session_type,omitempty"`
}

// Load is the session-RPE load (exertion × minutes).
func (s SessionRecord) Load() float64 {
	return s.PerceivedExertion * s.DurationMinutes
}

// sessionNamespace seeds derived session identifiers.
var sessionNamespace = uuid.MustParse("0f4d8c0e-53a4-4b53-9a61-3c1f2f6b7a10")

// EnsureID returns the session id, deriving a stable one from the record
// content when the caller did not supply it.
func (s SessionRecord) EnsureID() string {
	if s.SessionID != "" {
		return s.SessionID
	}
	name := fmt.Sprintf("%s|%s|%g|%g|%s", s.PlayerID, FormatDate(s.Date), s.DurationMinutes, s.PerceivedExertion, s.SessionType)
	return uuid.NewSHA1(sessionNamespace, []byte(name)).String()
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into a UTC day.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// FormatDate renders a day as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// DaysBetween counts inclusive calendar days in [from, to].
func DaysBetween(from, to time.Time) int {
	from, to = Day(from), Day(to)
	if to.Before(from) {
		return 0
	}
	return int(to.Sub(from).Hours()/24) + 1
}

// ValidateRange rejects reversed date ranges.
func ValidateRange(from, to time.Time) error {
	if Day(from).After(Day(to)) {
		return fmt.Errorf("%w: %s after %s", ErrInvalidRange, FormatDate(from), FormatDate(to))
	}
	return nil
}
