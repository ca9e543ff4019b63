package repository

import (
	"context"
	"database/sql"
	"errors"
	"math"

	"github.com/google/uuid"

	"github.com/RMahshie/vthlab/pkg/models"
)

// ErrNotFound is returned when a job or run does not exist
var ErrNotFound = errors.New("not found")

// ExtractionRepository defines the interface for extraction job operations
type ExtractionRepository interface {
	Create(ctx context.Context, extraction *models.Extraction) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Extraction, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, progress int) error
	UpdateError(ctx context.Context, id uuid.UUID, errorMsg string) error
	StoreRecords(ctx context.Context, id uuid.UUID, records []models.Record) error
	GetRecords(ctx context.Context, id uuid.UUID) ([]models.Record, error)
}

// RecordStore persists batch runs for later aggregation
type RecordStore interface {
	SaveRun(ctx context.Context, root string, records []models.Record) (int64, error)
	LatestRun(ctx context.Context) (int64, error)
	Records(ctx context.Context, runID int64) ([]models.Record, error)
}

// NullFloat maps NaN and infinities to SQL NULL
func NullFloat(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

// FloatOrNaN maps SQL NULL back to NaN
func FloatOrNaN(n sql.NullFloat64) float64 {
	if !n.Valid {
		return math.NaN()
	}
	return n.Float64
}
