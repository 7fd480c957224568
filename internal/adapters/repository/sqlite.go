package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/okian/readiness/internal/domain/model"
	"github.com/okian/readiness/pkg/metrics"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// SQLiteStore implements Store on SQLite.
type SQLiteStore struct {
	db           *sql.DB
	busyTimeout  time.Duration
	maxOpenConns int
}

// Open opens (creating if needed) the database at path and migrates it.
func Open(path string, opts ...Option) (*SQLiteStore, error) {
	s := &SQLiteStore{busyTimeout: 10 * time.Second, maxOpenConns: 4}
	for _, opt := range opts {
		opt(s)
	}

	memory := path == "" || path == MemoryPath
	if memory {
		path = MemoryPath
		s.maxOpenConns = 1
	} else if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(s.maxOpenConns)

	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		fmt.Sprintf("PRAGMA busy_timeout=%d", s.busyTimeout.Milliseconds()),
	}
	if !memory {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL", "PRAGMA synchronous=NORMAL")
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	s.db = db
	return s, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func migrate(db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS metric_records (
			player_id TEXT NOT NULL,
			date TEXT NOT NULL,
			family TEXT NOT NULL,
			key TEXT NOT NULL,
			value REAL NOT NULL,
			unit TEXT NOT NULL DEFAULT '',
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (player_id, date, family, key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_metric_records_player_family ON metric_records(player_id, family, date)`,

		`CREATE TABLE IF NOT EXISTS session_records (
			player_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			date TEXT NOT NULL,
			duration_minutes REAL NOT NULL,
			perceived_exertion REAL NOT NULL,
			session_type TEXT NOT NULL DEFAULT '',
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (player_id, session_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_session_records_player_date ON session_records(player_id, date)`,
	}
	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

func observe(op string, start time.Time, err error) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
	if err != nil {
		metrics.RecordStoreError(op)
	}
}

// FetchMetrics implements Reader.
func (s *SQLiteStore) FetchMetrics(ctx context.Context, playerID, family string, from, to time.Time) (out []model.MetricRecord, err error) {
	defer func(start time.Time) { observe("fetch_metrics", start, err) }(time.Now())

	q := `SELECT date, family, key, value, unit FROM metric_records
		WHERE player_id = ? AND date BETWEEN ? AND ?`
	args := []any{playerID, model.FormatDate(from), model.FormatDate(to)}
	if family != "" {
		q += ` AND family = ?`
		args = append(args, family)
	}
	q += ` ORDER BY date, family, key`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r    = model.MetricRecord{PlayerID: playerID}
			date string
		)
		if err := rows.Scan(&date, &r.Family, &r.Key, &r.Value, &r.Unit); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFetch, err)
		}
		if r.Date, err = model.ParseDate(date); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFetch, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	return out, nil
}

// FetchSessions implements Reader.
func (s *SQLiteStore) FetchSessions(ctx context.Context, playerID string, from, to time.Time) (out []model.SessionRecord, err error) {
	defer func(start time.Time) { observe("fetch_sessions", start, err) }(time.Now())

	rows, err := s.db.QueryContext(ctx, `SELECT session_id, date, duration_minutes, perceived_exertion, session_type
		FROM session_records
		WHERE player_id = ? AND date BETWEEN ? AND ?
		ORDER BY date, session_id`,
		playerID, model.FormatDate(from), model.FormatDate(to))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r    = model.SessionRecord{PlayerID: playerID}
			date string
		)
		if err := rows.Scan(&r.SessionID, &date, &r.DurationMinutes, &r.PerceivedExertion, &r.SessionType); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFetch, err)
		}
		if r.Date, err = model.ParseDate(date); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFetch, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	return out, nil
}

// PlayerExists implements Reader.
func (s *SQLiteStore) PlayerExists(ctx context.Context, playerID string) (ok bool, err error) {
	defer func(start time.Time) { observe("player_exists", start, err) }(time.Now())

	var n int
	err = s.db.QueryRowContext(ctx, `SELECT
		EXISTS(SELECT 1 FROM metric_records WHERE player_id = ?) +
		EXISTS(SELECT 1 FROM session_records WHERE player_id = ?)`, playerID, playerID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	return n > 0, nil
}

// ListPlayers implements Reader.
func (s *SQLiteStore) ListPlayers(ctx context.Context) (out []string, err error) {
	defer func(start time.Time) { observe("list_players", start, err) }(time.Now())

	rows, err := s.db.QueryContext(ctx, `SELECT player_id FROM metric_records
		UNION SELECT player_id FROM session_records
		ORDER BY player_id`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFetch, err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	return out, nil
}

// UpsertMetrics implements Writer. The batch is applied atomically.
func (s *SQLiteStore) UpsertMetrics(ctx context.Context, records []model.MetricRecord) (err error) {
	defer func(start time.Time) { observe("upsert_metrics", start, err) }(time.Now())

	return s.inTx(ctx, `INSERT INTO metric_records (player_id, date, family, key, value, unit)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(player_id, date, family, key) DO UPDATE SET
			value = excluded.value,
			unit = excluded.unit,
			updated_at = CURRENT_TIMESTAMP`,
		len(records), func(i int) []any {
			r := records[i]
			return []any{r.PlayerID, model.FormatDate(r.Date), r.Family, r.Key, r.Value, r.Unit}
		})
}

// UpsertSessions implements Writer. Sessions without an id get a content
// derived one so identical re-ingestion is idempotent.
func (s *SQLiteStore) UpsertSessions(ctx context.Context, sessions []model.SessionRecord) (err error) {
	defer func(start time.Time) { observe("upsert_sessions", start, err) }(time.Now())

	return s.inTx(ctx, `INSERT INTO session_records (player_id, session_id, date, duration_minutes, perceived_exertion, session_type)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(player_id, session_id) DO UPDATE SET
			date = excluded.date,
			duration_minutes = excluded.duration_minutes,
			perceived_exertion = excluded.perceived_exertion,
			session_type = excluded.session_type,
			updated_at = CURRENT_TIMESTAMP`,
		len(sessions), func(i int) []any {
			r := sessions[i]
			return []any{r.PlayerID, r.EnsureID(), model.FormatDate(r.Date), r.DurationMinutes, r.PerceivedExertion, r.SessionType}
		})
}

func (s *SQLiteStore) inTx(ctx context.Context, query string, n int, args func(i int) []any) error {
	if n == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return fmt.Errorf("%w: %v", ErrWrite, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return nil
}
