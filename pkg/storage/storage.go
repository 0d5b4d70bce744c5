package storage

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"
)

type DB struct {
	sql *sql.DB
}

func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS progress_events (
  id          INTEGER PRIMARY KEY,
  occurred_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  participant TEXT NOT NULL,
  day         INTEGER NOT NULL DEFAULT 0,
  kind        TEXT NOT NULL CHECK (kind IN ('completed','missed','reset','archived','cheat'))
);
CREATE INDEX IF NOT EXISTS idx_events_time ON progress_events(occurred_at);
CREATE INDEX IF NOT EXISTS idx_events_participant ON progress_events(participant, occurred_at);
    `); err != nil {
		return nil, err
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// LogEvents appends events to the journal in one transaction.
func (d *DB) LogEvents(ctx context.Context, events []Event) error {
	if d == nil || len(events) == 0 {
		return nil
	}

	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, e := range events {
		occurred := e.OccurredAt
		if occurred.IsZero() {
			occurred = time.Now().UTC()
		}
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO progress_events(occurred_at, participant, day, kind) VALUES(?,?,?,?)`,
			occurred, e.Participant, e.Day, e.Kind); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListRecentEvents returns up to limit journal entries, newest first.
func (d *DB) ListRecentEvents(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.sql.QueryContext(ctx,
		`SELECT occurred_at, participant, day, kind FROM progress_events ORDER BY occurred_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.OccurredAt, &e.Participant, &e.Day, &e.Kind); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
