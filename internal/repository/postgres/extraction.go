package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/RMahshie/vthlab/internal/repository"
	"github.com/RMahshie/vthlab/pkg/models"
)

// PostgresExtractionRepository implements ExtractionRepository for PostgreSQL
type PostgresExtractionRepository struct {
	db *sql.DB
}

// NewPostgresExtractionRepository creates a new PostgreSQL extraction repository
func NewPostgresExtractionRepository(db *sql.DB) repository.ExtractionRepository {
	return &PostgresExtractionRepository{db: db}
}

// Create inserts a new extraction job
func (r *PostgresExtractionRepository) Create(ctx context.Context, extraction *models.Extraction) error {
	query := `
		INSERT INTO extractions (id, session_id, file_name, status, progress, file_s3_key, device,
		                         methods, target_vd, all_vd, criterion, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	methods := extraction.Methods
	if methods == nil {
		methods = []string{}
	}
	var targetVd sql.NullFloat64
	if extraction.TargetVd != nil {
		targetVd = sql.NullFloat64{Float64: *extraction.TargetVd, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		extraction.ID,
		extraction.SessionID,
		extraction.FileName,
		extraction.Status,
		extraction.Progress,
		extraction.FileS3Key,
		extraction.Device,
		pq.Array(methods),
		targetVd,
		extraction.AllVd,
		extraction.Criterion,
		extraction.CreatedAt,
		extraction.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert extraction: %w", err)
	}
	return nil
}

// GetByID retrieves an extraction job by ID
func (r *PostgresExtractionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Extraction, error) {
	query := `
		SELECT id, session_id, file_name, status, progress, file_s3_key, device, methods, target_vd,
		       all_vd, criterion, error_message, created_at, updated_at, completed_at
		FROM extractions
		WHERE id = $1`

	var extraction models.Extraction
	var fileS3Key, errorMsg sql.NullString
	var targetVd sql.NullFloat64
	var completedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&extraction.ID,
		&extraction.SessionID,
		&extraction.FileName,
		&extraction.Status,
		&extraction.Progress,
		&fileS3Key,
		&extraction.Device,
		pq.Array(&extraction.Methods),
		&targetVd,
		&extraction.AllVd,
		&extraction.Criterion,
		&errorMsg,
		&extraction.CreatedAt,
		&extraction.UpdatedAt,
		&completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("extraction %s: %w", id, repository.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	if fileS3Key.Valid {
		extraction.FileS3Key = &fileS3Key.String
	}
	if targetVd.Valid {
		extraction.TargetVd = &targetVd.Float64
	}
	if errorMsg.Valid {
		extraction.ErrorMsg = &errorMsg.String
	}
	if completedAt.Valid {
		extraction.CompletedAt = &completedAt.Time
	}

	return &extraction, nil
}

// UpdateStatus updates the status and progress of an extraction
func (r *PostgresExtractionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string, progress int) error {
	query := `
		UPDATE extractions
		SET status = $1, progress = $2, updated_at = NOW(),
		    completed_at = CASE WHEN $1 = 'completed' THEN NOW() ELSE completed_at END
		WHERE id = $3`

	_, err := r.db.ExecContext(ctx, query, status, progress, id)
	return err
}

// UpdateError marks an extraction failed with the given message
func (r *PostgresExtractionRepository) UpdateError(ctx context.Context, id uuid.UUID, errorMsg string) error {
	query := `
		UPDATE extractions
		SET status = 'failed', error_message = $1, updated_at = NOW()
		WHERE id = $2`

	_, err := r.db.ExecContext(ctx, query, errorMsg, id)
	return err
}

// StoreRecords replaces the records of an extraction in one transaction
func (r *PostgresExtractionRepository) StoreRecords(ctx context.Context, id uuid.UUID, records []models.Record) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM extraction_records WHERE extraction_id = $1`, id); err != nil {
		return fmt.Errorf("failed to clear records: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO extraction_records (extraction_id, position, file_path, temperature, device,
		                                device_index, chip, method, used, vd_volts, vth_volts, gm_max,
		                                gm_max_index, num_points, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range records {
		_, err = stmt.ExecContext(ctx,
			id,
			i,
			rec.FilePath,
			rec.Temperature,
			rec.Device,
			rec.DeviceIndex,
			rec.Chip,
			rec.Method,
			rec.Used,
			repository.NullFloat(rec.DrainBias),
			repository.NullFloat(rec.VthVolts),
			repository.NullFloat(rec.GmMax),
			rec.Index,
			rec.NumPoints,
			rec.Notes)
		if err != nil {
			return fmt.Errorf("failed to insert record %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit records: %w", err)
	}
	return nil
}

// GetRecords returns the records of an extraction in insertion order
func (r *PostgresExtractionRepository) GetRecords(ctx context.Context, id uuid.UUID) ([]models.Record, error) {
	query := `
		SELECT file_path, temperature, device, device_index, chip, method, used, vd_volts, vth_volts,
		       gm_max, gm_max_index, num_points, notes
		FROM extraction_records
		WHERE extraction_id = $1
		ORDER BY position`

	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.Record
	for rows.Next() {
		var rec models.Record
		var vd, vth, gm sql.NullFloat64
		err := rows.Scan(
			&rec.FilePath,
			&rec.Temperature,
			&rec.Device,
			&rec.DeviceIndex,
			&rec.Chip,
			&rec.Method,
			&rec.Used,
			&vd,
			&vth,
			&gm,
			&rec.Index,
			&rec.NumPoints,
			&rec.Notes)
		if err != nil {
			return nil, err
		}
		rec.DrainBias = repository.FloatOrNaN(vd)
		rec.VthVolts = repository.FloatOrNaN(vth)
		rec.GmMax = repository.FloatOrNaN(gm)
		records = append(records, rec)
	}
	return records, rows.Err()
}
