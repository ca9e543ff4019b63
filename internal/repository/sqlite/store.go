// Package sqlite keeps batch extraction runs in a local SQLite file so the
// aggregation commands can work without re-reading measurement trees.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/RMahshie/vthlab/internal/repository"
	"github.com/RMahshie/vthlab/pkg/models"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Store wraps SQLite access for batch runs
type Store struct {
	db *sql.DB
}

var _ repository.RecordStore = (*Store)(nil)

// Open opens or creates the SQLite database and applies migrations
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate store: %w", err)
	}
	return store, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY,
			root TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS records (
			run_id INTEGER NOT NULL REFERENCES runs(id),
			position INTEGER NOT NULL,
			file_path TEXT NOT NULL,
			temperature TEXT NOT NULL,
			device TEXT NOT NULL,
			device_index INTEGER NOT NULL,
			chip TEXT NOT NULL,
			method TEXT NOT NULL,
			used TEXT NOT NULL,
			vd_volts REAL,
			vth_volts REAL,
			gm_max REAL,
			gm_max_index INTEGER NOT NULL,
			num_points INTEGER NOT NULL,
			notes TEXT NOT NULL,
			PRIMARY KEY (run_id, position)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_records_device ON records(device, method);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveRun stores the records of one batch run and returns its id
func (s *Store) SaveRun(ctx context.Context, root string, records []models.Record) (id int64, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (root, created_at) VALUES (?, ?)`,
		root, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, err
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO records (run_id, position, file_path, temperature, device, device_index, chip,
		 method, used, vd_volts, vth_volts, gm_max, gm_max_index, num_points, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for i, rec := range records {
		if _, err = stmt.ExecContext(ctx,
			id, i, rec.FilePath, rec.Temperature, rec.Device, rec.DeviceIndex, rec.Chip,
			rec.Method, rec.Used,
			repository.NullFloat(rec.DrainBias),
			repository.NullFloat(rec.VthVolts),
			repository.NullFloat(rec.GmMax),
			rec.Index, rec.NumPoints, rec.Notes,
		); err != nil {
			return 0, err
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// LatestRun returns the id of the most recent run
func (s *Store) LatestRun(ctx context.Context) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM runs ORDER BY id DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("no stored runs: %w", repository.ErrNotFound)
	}
	return id, err
}

// Records returns the records of a run in the order they were saved
func (s *Store) Records(ctx context.Context, runID int64) ([]models.Record, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE id = ?`, runID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %d: %w", runID, repository.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT file_path, temperature, device, device_index, chip, method, used,
		 vd_volts, vth_volts, gm_max, gm_max_index, num_points, notes
		 FROM records WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.Record
	for rows.Next() {
		var rec models.Record
		var vd, vth, gm sql.NullFloat64
		if err := rows.Scan(
			&rec.FilePath, &rec.Temperature, &rec.Device, &rec.DeviceIndex, &rec.Chip,
			&rec.Method, &rec.Used, &vd, &vth, &gm, &rec.Index, &rec.NumPoints, &rec.Notes,
		); err != nil {
			return nil, err
		}
		rec.DrainBias = repository.FloatOrNaN(vd)
		rec.VthVolts = repository.FloatOrNaN(vth)
		rec.GmMax = repository.FloatOrNaN(gm)
		records = append(records, rec)
	}
	return records, rows.Err()
}
