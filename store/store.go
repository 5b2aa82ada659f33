// Package store is the data access layer for persisted measurements.
//
// Two handles exist in a running station: the persistence writer owns a
// write handle (and its reconnect lifecycle), the web layer reads from
// its own handle. WAL mode makes the combination safe.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hazyhaar/beamscope/sensors"
)

// TimeLayout is the timestamp format used both as primary key and in
// every JSON/CSV surface.
const TimeLayout = "2006-01-02 15:04:05"

// Measurement is one accepted analysis result: the fitted centroid plus
// the sensor vector sampled at fit time. Immutable once constructed.
type Measurement struct {
	Timestamp string
	CX        float64
	CY        float64
	Temps     [sensors.Count]float64
}

// Store wraps a measurements database handle.
type Store struct {
	DB *sql.DB
}

// NewStore creates a Store from an already-opened database.
func NewStore(db *sql.DB) *Store {
	return &Store{DB: db}
}

// ApplySchema creates the measurements table.
func ApplySchema(db *sql.DB) error {
	if _, err := db.Exec(Schema); err != nil {
		return fmt.Errorf("store: apply schema: %w", err)
	}
	return nil
}

// InsertBatch commits rows in a single transaction with INSERT OR
// IGNORE semantics: duplicate timestamps are no-ops, so submitting the
// same measurement twice leaves exactly one stored row.
func (s *Store) InsertBatch(ctx context.Context, rows []Measurement) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO measurements (timestamp, cx, cy, temp1, temp2, temp3, temp4)
		VALUES (?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("store: prepare: %w", err)
	}
	defer stmt.Close()

	for _, m := range rows {
		if _, err := stmt.ExecContext(ctx, m.Timestamp, m.CX, m.CY,
			m.Temps[0], m.Temps[1], m.Temps[2], m.Temps[3]); err != nil {
			return fmt.Errorf("store: insert %s: %w", m.Timestamp, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// Recent returns the n most recent measurements, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Measurement, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT timestamp, cx, cy, temp1, temp2, temp3, temp4
		FROM measurements ORDER BY timestamp DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	defer rows.Close()
	return scanAll(rows)
}

// EachInRange streams measurements with from <= timestamp <= to, newest
// first, to fn. Empty bounds select the most recent `limit` rows
// instead. fn returning an error stops the iteration.
func (s *Store) EachInRange(ctx context.Context, from, to string, limit int, fn func(Measurement) error) error {
	var (
		rows *sql.Rows
		err  error
	)
	if from != "" && to != "" {
		rows, err = s.DB.QueryContext(ctx, `
			SELECT timestamp, cx, cy, temp1, temp2, temp3, temp4
			FROM measurements WHERE timestamp BETWEEN ? AND ?
			ORDER BY timestamp DESC`, from, to)
	} else {
		rows, err = s.DB.QueryContext(ctx, `
			SELECT timestamp, cx, cy, temp1, temp2, temp3, temp4
			FROM measurements ORDER BY timestamp DESC LIMIT ?`, limit)
	}
	if err != nil {
		return fmt.Errorf("store: range: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		m, err := scanOne(rows)
		if err != nil {
			return err
		}
		if err := fn(m); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Count returns the total number of stored measurements.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM measurements`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count: %w", err)
	}
	return n, nil
}

func scanOne(rows *sql.Rows) (Measurement, error) {
	var m Measurement
	if err := rows.Scan(&m.Timestamp, &m.CX, &m.CY,
		&m.Temps[0], &m.Temps[1], &m.Temps[2], &m.Temps[3]); err != nil {
		return m, fmt.Errorf("store: scan: %w", err)
	}
	return m, nil
}

func scanAll(rows *sql.Rows) ([]Measurement, error) {
	var out []Measurement
	for rows.Next() {
		m, err := scanOne(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
