// Package storage persists signals the decode node could not match to
// any decoder, for later offline analysis.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const initSchemaSQL = `
CREATE TABLE IF NOT EXISTS unknown_signals (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	received_at  TIMESTAMP NOT NULL,
	package_id   INTEGER,
	modulation   TEXT NOT NULL,
	freq_hz      REAL NOT NULL DEFAULT 0,
	rate_hz      INTEGER NOT NULL DEFAULT 0,
	pulse_count  INTEGER NOT NULL DEFAULT 0,
	hex          TEXT NOT NULL DEFAULT '',
	payload_json TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_unknown_signals_received_at
	ON unknown_signals (received_at);
`

const insertUnknownSQL = `
INSERT INTO unknown_signals
	(received_at, package_id, modulation, freq_hz, rate_hz, pulse_count, hex, payload_json)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`

const selectUnknownSQL = `
SELECT id, received_at, package_id, modulation, freq_hz, rate_hz, pulse_count, hex, payload_json
FROM unknown_signals
ORDER BY received_at DESC, id DESC
LIMIT ?
`

// UnknownSignal is one stored undecoded capture.
type UnknownSignal struct {
	ID          int64
	ReceivedAt  time.Time
	PackageID   *uint64
	Modulation  string
	FreqHz      float64
	RateHz      uint32
	PulseCount  int
	Hex         string
	PayloadJSON string
}

// Store is a SQLite-backed archive of unknown signals.
type Store struct {
	dbPath string

	dbOnce sync.Once
	db     *sql.DB
	dbErr  error

	closeOnce sync.Once
	closeErr  error
}

// NewStore prepares a store at dbPath; the database opens lazily on
// first use.
func NewStore(dbPath string) *Store {
	return &Store{dbPath: dbPath}
}

func (s *Store) getDB() (*sql.DB, error) {
	s.dbOnce.Do(func() {
		db, err := sql.Open("sqlite3",
			fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL", s.dbPath))
		if err != nil {
			s.dbErr = fmt.Errorf("opening database: %w", err)
			return
		}
		if _, err := db.Exec(initSchemaSQL); err != nil {
			_ = db.Close()
			s.dbErr = fmt.Errorf("initializing schema: %w", err)
			return
		}
		s.db = db
	})
	return s.db, s.dbErr
}

// SaveUnknown inserts one record and returns its row id.
func (s *Store) SaveUnknown(ctx context.Context, rec *UnknownSignal) (int64, error) {
	db, err := s.getDB()
	if err != nil {
		return 0, err
	}

	var packageID sql.NullInt64
	if rec.PackageID != nil {
		packageID.Valid = true
		packageID.Int64 = int64(*rec.PackageID)
	}
	receivedAt := rec.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}

	result, err := db.ExecContext(ctx, insertUnknownSQL,
		receivedAt, packageID, rec.Modulation, rec.FreqHz, rec.RateHz,
		rec.PulseCount, rec.Hex, rec.PayloadJSON)
	if err != nil {
		return 0, fmt.Errorf("inserting unknown signal: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading insert id: %w", err)
	}
	return id, nil
}

// ListUnknown returns the most recent records, newest first.
func (s *Store) ListUnknown(ctx context.Context, limit int) ([]UnknownSignal, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := db.QueryContext(ctx, selectUnknownSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("querying unknown signals: %w", err)
	}
	defer rows.Close()

	var out []UnknownSignal
	for rows.Next() {
		var (
			rec       UnknownSignal
			packageID sql.NullInt64
		)
		if err := rows.Scan(&rec.ID, &rec.ReceivedAt, &packageID, &rec.Modulation,
			&rec.FreqHz, &rec.RateHz, &rec.PulseCount, &rec.Hex, &rec.PayloadJSON); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if packageID.Valid {
			v := uint64(packageID.Int64)
			rec.PackageID = &v
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return out, nil
}

// CountUnknown returns the total stored records.
func (s *Store) CountUnknown(ctx context.Context) (int64, error) {
	db, err := s.getDB()
	if err != nil {
		return 0, err
	}
	var n int64
	err = db.QueryRowContext(ctx, `SELECT COUNT(*) FROM unknown_signals`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting unknown signals: %w", err)
	}
	return n, nil
}

// Close releases the database handle. Safe to call more than once.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		if s.db != nil {
			s.closeErr = s.db.Close()
		}
	})
	return s.closeErr
}
