package loadgen

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/okian/readiness/internal/domain/model"
	"github.com/okian/readiness/internal/domain/registry"
)

// Player profiles.
const (
	ProfileSteady = "steady"
	ProfileSpike  = "spike"
	ProfileRested = "rested"
	ProfileSparse = "sparse"
)

var profiles = []string{ProfileSteady, ProfileSpike, ProfileRested, ProfileSparse}

// Spike players multiply their session length by spikeFactor over the
// trailing spikeDays.
const (
	spikeDays   = 7
	spikeFactor = 2.5
)

// MetricPayload mirrors one record of POST /ingest/metrics.
type MetricPayload struct {
	PlayerID string  `json:"player_id"`
	Date     string  `json:"date"`
	Family   string  `json:"family"`
	Key      string  `json:"key"`
	Value    float64 `json:"value"`
	Unit     string  `json:"unit,omitempty"`
}

// SessionPayload mirrors one record of POST /ingest/sessions.
type SessionPayload struct {
	SessionID         string  `json:"session_id,omitempty"`
	PlayerID          string  `json:"player_id"`
	Date              string  `json:"date"`
	DurationMinutes   float64 `json:"duration_minutes"`
	PerceivedExertion float64 `json:"perceived_exertion"`
	SessionType       string  `json:"session_type,omitempty"`
}

// Player is one synthetic athlete with its full history.
type Player struct {
	ID       string
	Profile  string
	Metrics  []MetricPayload
	Sessions []SessionPayload
}

// Squad is a generated data set covering [From, To].
type Squad struct {
	From    time.Time
	To      time.Time
	Players []Player
}

// Generate builds a deterministic squad. Profiles rotate so every profile is
// present once there are at least four players.
func Generate(players, days int, end time.Time, seed uint64) Squad {
	end = model.Day(end)
	from := end.AddDate(0, 0, -(days - 1))
	sq := Squad{From: from, To: end, Players: make([]Player, players)}
	for i := range sq.Players {
		rng := rand.New(rand.NewPCG(seed, uint64(i)))
		p := Player{
			ID:      fmt.Sprintf("load-%04d", i),
			Profile: profiles[i%len(profiles)],
		}
		for d := 0; d < days; d++ {
			day := from.AddDate(0, 0, d)
			p.Sessions = append(p.Sessions, sessionsFor(rng, p, day, d >= days-spikeDays)...)
			p.Metrics = append(p.Metrics, metricsFor(rng, p, day)...)
		}
		sq.Players[i] = p
	}
	return sq
}

func sessionsFor(rng *rand.Rand, p Player, day time.Time, trailing bool) []SessionPayload {
	switch p.Profile {
	case ProfileRested:
		return nil
	case ProfileSparse:
		if wd := day.Weekday(); wd != time.Tuesday && wd != time.Friday {
			return nil
		}
	}
	minutes := 60 + float64(rng.IntN(4))*10
	if p.Profile == ProfileSpike && trailing {
		minutes *= spikeFactor
	}
	s := SessionPayload{
		PlayerID:          p.ID,
		Date:              model.FormatDate(day),
		DurationMinutes:   minutes,
		PerceivedExertion: float64(5 + rng.IntN(3)),
		SessionType:       "training",
	}
	if day.Weekday() == time.Saturday {
		s.SessionType = "match"
		s.PerceivedExertion = 8
	}
	return []SessionPayload{s}
}

func metricsFor(rng *rand.Rand, p Player, day time.Time) []MetricPayload {
	if p.Profile == ProfileSparse && rng.IntN(2) == 0 {
		return nil
	}
	date := model.FormatDate(day)
	m := func(family, key string, v float64, unit string) MetricPayload {
		return MetricPayload{PlayerID: p.ID, Date: date, Family: family, Key: key, Value: round1(v), Unit: unit}
	}
	score := func(center float64) float64 {
		return math.Max(1, math.Min(10, center+rng.NormFloat64()))
	}
	return []MetricPayload{
		m(model.FamilyWellness, registry.KeySleepHours, 6.5+rng.Float64()*2.5, "h"),
		m(model.FamilyWellness, registry.KeySleepQuality, score(7), "score"),
		m(model.FamilyWellness, registry.KeyFatigue, score(4), "score"),
		m(model.FamilyWellness, registry.KeySoreness, score(4), "score"),
		m(model.FamilyWellness, registry.KeyStress, score(3), "score"),
		m(model.FamilyWellness, registry.KeyMood, score(7), "score"),
		m(model.FamilyAutonomic, registry.KeyHRV, 55+rng.NormFloat64()*8, "ms"),
		m(model.FamilyAutonomic, registry.KeyRestingHR, 52+rng.NormFloat64()*3, "bpm"),
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
