package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS dispatch_logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL UNIQUE,
	ts INTEGER NOT NULL,
	record TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS dispatch_states (
	run_id TEXT NOT NULL,
	ts INTEGER NOT NULL,
	label TEXT NOT NULL,
	power REAL NOT NULL,
	PRIMARY KEY (run_id, label)
);

CREATE INDEX IF NOT EXISTS idx_dispatch_logs_ts ON dispatch_logs(ts);
CREATE INDEX IF NOT EXISTS idx_dispatch_states_label ON dispatch_states(label, ts);
`

// SQLiteStore persists logs to a SQLite database. Besides the full record it
// keeps one row per actor state so actor histories can be read back directly.
type SQLiteStore struct {
	db *sqlx.DB
}

// ActorPoint is the power of one actor in one run.
type ActorPoint struct {
	RunID     string    `db:"run_id"`
	Timestamp time.Time `db:"-"`
	TS        int64     `db:"ts"`
	Power     float64   `db:"power"`
}

// NewSQLiteStore opens or creates the database at path and ensures the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=busy_timeout(5000)"
	}
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// A single connection keeps in-memory databases shared.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Append writes the record and its actor states in one transaction.
func (s *SQLiteStore) Append(ctx context.Context, rec LogRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	ts := rec.Timestamp.UnixNano()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO dispatch_logs (run_id, ts, record) VALUES (?, ?, ?)`,
		rec.RunID, ts, string(b)); err != nil {
		return fmt.Errorf("insert run %s: %w", rec.RunID, err)
	}
	stmt, err := tx.PreparexContext(ctx, `INSERT INTO dispatch_states (run_id, ts, label, power) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()
	for _, st := range rec.States {
		if _, err := stmt.ExecContext(ctx, rec.RunID, ts, st.Label, st.Power); err != nil {
			return fmt.Errorf("insert state %s: %w", st.Label, err)
		}
	}
	return tx.Commit()
}

// Query returns records matching q ordered by timestamp.
func (s *SQLiteStore) Query(ctx context.Context, q LogQuery) ([]LogRecord, error) {
	var (
		where []string
		args  []any
	)
	if !q.Start.IsZero() {
		where = append(where, "ts >= ?")
		args = append(args, q.Start.UnixNano())
	}
	if !q.End.IsZero() {
		where = append(where, "ts <= ?")
		args = append(args, q.End.UnixNano())
	}
	if q.RunID != "" {
		where = append(where, "run_id = ?")
		args = append(args, q.RunID)
	}
	query := `SELECT record FROM dispatch_logs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY ts, id`

	var rows []string
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	var res []LogRecord
	for _, data := range rows {
		var r LogRecord
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		if !q.Match(r) {
			continue
		}
		res = append(res, r)
		if q.full(len(res)) {
			break
		}
	}
	return res, nil
}

// ActorHistory returns the recorded power of label in [start, end], oldest
// first. Zero bounds are open.
func (s *SQLiteStore) ActorHistory(ctx context.Context, label string, start, end time.Time) ([]ActorPoint, error) {
	query := `SELECT run_id, ts, power FROM dispatch_states WHERE label = ?`
	args := []any{label}
	if !start.IsZero() {
		query += ` AND ts >= ?`
		args = append(args, start.UnixNano())
	}
	if !end.IsZero() {
		query += ` AND ts <= ?`
		args = append(args, end.UnixNano())
	}
	query += ` ORDER BY ts`
	var pts []ActorPoint
	if err := s.db.SelectContext(ctx, &pts, query, args...); err != nil {
		return nil, err
	}
	for i := range pts {
		pts[i].Timestamp = time.Unix(0, pts[i].TS).UTC()
	}
	return pts, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
