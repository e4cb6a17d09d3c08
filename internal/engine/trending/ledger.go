package trending

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// LedgerEntry is one written country dataset.
type LedgerEntry struct {
	ID           int64  `json:"id"`
	RunID        string `json:"run_id"`
	Country      string `json:"country"`
	TrendingDate string `json:"trending_date"`
	Path         string `json:"path"`
	Pages        int    `json:"pages"`
	Rows         int    `json:"rows"`
	StartedAt    string `json:"started_at"`
	FinishedAt   string `json:"finished_at"`
}

// Ledger records every dataset written, in a local SQLite file.
type Ledger struct {
	db *sql.DB
}

// OpenLedger opens (or creates) the ledger database at path.
func OpenLedger(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("ledger: mkdir %s: %w", filepath.Dir(path), err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer
	if err := initLedgerSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: init schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

func initLedgerSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS datasets (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id        TEXT NOT NULL,
		country       TEXT NOT NULL,
		trending_date TEXT NOT NULL,
		path          TEXT NOT NULL,
		pages         INTEGER NOT NULL,
		rows          INTEGER NOT NULL,
		started_at    TEXT NOT NULL,
		finished_at   TEXT NOT NULL
	)`)
	return err
}

// Record implements Sink.
func (l *Ledger) Record(ctx context.Context, res CountryResult, _ []VideoRecord) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO datasets (run_id, country, trending_date, path, pages, rows, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		res.RunID, res.Country, res.TrendingDate, res.Path, res.Pages, res.Rows,
		res.StartedAt.UTC().Format(time.RFC3339), res.FinishedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("ledger: insert: %w", err)
	}
	return nil
}

// Recent returns the latest entries, newest first. limit is clamped to 1..100.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]LedgerEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, run_id, country, trending_date, path, pages, rows, started_at, finished_at
		 FROM datasets ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: query: %w", err)
	}
	defer rows.Close()

	out := []LedgerEntry{}
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(&e.ID, &e.RunID, &e.Country, &e.TrendingDate, &e.Path,
			&e.Pages, &e.Rows, &e.StartedAt, &e.FinishedAt); err != nil {
			return nil, fmt.Errorf("ledger: scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close releases the database.
func (l *Ledger) Close() error { return l.db.Close() }
