// Package processing runs extraction jobs for uploaded measurement files.
package processing

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/RMahshie/vthlab/internal/repository"
	"github.com/RMahshie/vthlab/internal/storage"
	"github.com/RMahshie/vthlab/pkg/models"
)

type ProcessingService interface {
	ProcessExtraction(ctx context.Context, extractionID uuid.UUID) error
}

type processingService struct {
	s3         storage.S3Service
	repository repository.ExtractionRepository
	defaults   Defaults
}

func NewProcessingService(s3Service storage.S3Service, repo repository.ExtractionRepository, defaults Defaults) ProcessingService {
	return &processingService{
		s3:         s3Service,
		repository: repo,
		defaults:   defaults,
	}
}

// ProcessExtraction downloads the job's measurement file, extracts the
// requested thresholds and stores the records. Problems with the job itself
// are recorded on the job row and return nil; only repository failures are
// returned.
func (s *processingService) ProcessExtraction(ctx context.Context, extractionID uuid.UUID) error {
	// Step 1: Update to processing status
	if err := s.repository.UpdateStatus(ctx, extractionID, models.StatusProcessing, 10); err != nil {
		return err
	}

	// Step 2: Get job details
	job, err := s.repository.GetByID(ctx, extractionID)
	if err != nil {
		return err
	}
	if job.FileS3Key == nil {
		return s.fail(ctx, extractionID, "Extraction has no uploaded file")
	}

	plan, err := NewPlan(job.FileName, job.Params(), s.defaults)
	if err != nil {
		return s.fail(ctx, extractionID, fmt.Sprintf("Invalid extraction parameters: %v", err))
	}

	// Step 3: Download from S3
	if err := s.repository.UpdateStatus(ctx, extractionID, models.StatusProcessing, 20); err != nil {
		return err
	}
	data, err := s.s3.DownloadFile(ctx, *job.FileS3Key)
	if err != nil {
		log.Error().Err(err).Str("extractionID", job.ID).Str("key", *job.FileS3Key).Msg("Download failed")
		return s.fail(ctx, extractionID, "Failed to download measurement file")
	}

	// Step 4: Parse and extract. A file that does not parse still completes
	// with a single parse_error record.
	if err := s.repository.UpdateStatus(ctx, extractionID, models.StatusProcessing, 50); err != nil {
		return err
	}
	records := plan.Runner.ProcessReader(plan.Info, bytes.NewReader(data))

	// Step 5: Store records
	if err := s.repository.UpdateStatus(ctx, extractionID, models.StatusProcessing, 90); err != nil {
		return err
	}
	if err := s.repository.StoreRecords(ctx, extractionID, records); err != nil {
		return fmt.Errorf("failed to store records: %w", err)
	}

	// Step 6: Mark complete
	if err := s.repository.UpdateStatus(ctx, extractionID, models.StatusCompleted, 100); err != nil {
		return err
	}

	log.Info().
		Str("extractionID", job.ID).
		Int("records", len(records)).
		Int("bytes", len(data)).
		Msg("Extraction completed")
	return nil
}

func (s *processingService) fail(ctx context.Context, id uuid.UUID, msg string) error {
	if err := s.repository.UpdateError(ctx, id, msg); err != nil {
		return fmt.Errorf("failed to record error %q: %w", msg, err)
	}
	return nil
}
