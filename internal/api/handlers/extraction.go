package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/RMahshie/vthlab/internal/measurement"
	"github.com/RMahshie/vthlab/internal/processing"
	"github.com/RMahshie/vthlab/internal/repository"
	"github.com/RMahshie/vthlab/internal/storage"
	"github.com/RMahshie/vthlab/pkg/models"
)

const uploadExpiry = 15 * time.Minute

// ExtractionHandler handles extraction-related HTTP requests
type ExtractionHandler struct {
	repo          repository.ExtractionRepository
	s3Service     storage.S3Service
	processingSvc processing.ProcessingService
	defaults      processing.Defaults
}

// NewExtractionHandler creates a new extraction handler
func NewExtractionHandler(repo repository.ExtractionRepository, s3Service storage.S3Service, processingSvc processing.ProcessingService, defaults processing.Defaults) *ExtractionHandler {
	return &ExtractionHandler{
		repo:          repo,
		s3Service:     s3Service,
		processingSvc: processingSvc,
		defaults:      defaults,
	}
}

// CreateExtraction creates a new extraction job and returns an upload URL
func (h *ExtractionHandler) CreateExtraction(ctx context.Context, req *models.CreateExtractionRequest) (*models.CreateExtractionResponse, error) {
	log.Info().Int64("fileSize", req.Body.FileSize).Str("fileName", req.Body.FileName).Msg("Creating new extraction")

	// Reject bad parameters now rather than after the upload
	if _, err := processing.NewPlan(req.Body.FileName, req.Body.ExtractionParams, h.defaults); err != nil {
		return nil, huma.Error400BadRequest("Invalid extraction parameters", err)
	}

	extractionID := uuid.New()
	fileKey := fmt.Sprintf("measurements/%s.txt", extractionID)

	uploadURL, err := h.s3Service.GenerateUploadURL(ctx, fileKey, req.Body.MimeType)
	if err != nil {
		if strings.Contains(err.Error(), "invalid content type") {
			return nil, huma.Error400BadRequest("Measurement file format not supported.", err)
		}
		return nil, huma.Error400BadRequest("Failed to prepare upload. Please try again.", err)
	}

	now := time.Now()
	extraction := &models.Extraction{
		ID:        extractionID.String(),
		SessionID: req.Body.SessionID,
		FileName:  req.Body.FileName,
		Status:    models.StatusPending,
		Progress:  0,
		FileS3Key: &fileKey,
		Device:    req.Body.Device,
		Methods:   req.Body.Methods,
		TargetVd:  req.Body.TargetVd,
		AllVd:     req.Body.AllVd,
		Criterion: req.Body.Criterion,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.repo.Create(ctx, extraction); err != nil {
		return nil, huma.Error500InternalServerError("Failed to create extraction", err)
	}

	log.Info().Str("extractionID", extraction.ID).Str("sessionID", req.Body.SessionID).Msg("Extraction created, returning upload URL")
	return &models.CreateExtractionResponse{
		Body: models.CreateExtractionResponseBody{
			ID:        extraction.ID,
			UploadURL: uploadURL,
			ExpiresIn: int(uploadExpiry.Seconds()),
		},
	}, nil
}

// GetExtractionStatus returns the current status of an extraction
func (h *ExtractionHandler) GetExtractionStatus(ctx context.Context, req *models.GetExtractionStatusRequest) (*models.GetExtractionStatusResponse, error) {
	extractionID, err := uuid.Parse(req.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid extraction ID", err)
	}

	extraction, err := h.repo.GetByID(ctx, extractionID)
	if err != nil {
		return nil, notFoundOr500(err)
	}

	return &models.GetExtractionStatusResponse{
		Body: models.GetExtractionStatusResponseBody{
			ID:       extraction.ID,
			Status:   extraction.Status,
			Progress: extraction.Progress,
			Message:  statusMessage(extraction.Status, extraction.Progress),
			Error:    extraction.ErrorMsg,
		},
	}, nil
}

// GetExtractionResults returns the records of a completed extraction
func (h *ExtractionHandler) GetExtractionResults(ctx context.Context, req *models.GetExtractionResultsRequest) (*models.GetExtractionResultsResponse, error) {
	extractionID, err := uuid.Parse(req.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid extraction ID", err)
	}

	extraction, err := h.repo.GetByID(ctx, extractionID)
	if err != nil {
		return nil, notFoundOr500(err)
	}
	if extraction.Status != models.StatusCompleted {
		return nil, huma.Error409Conflict("Extraction not yet completed",
			fmt.Errorf("extraction status is %s", extraction.Status))
	}

	records, err := h.repo.GetRecords(ctx, extractionID)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to get records", err)
	}

	return &models.GetExtractionResultsResponse{
		Body: models.GetExtractionResultsResponseBody{
			ID:        extraction.ID,
			Records:   toResponses(records),
			CreatedAt: extraction.CreatedAt,
		},
	}, nil
}

// StartProcessing starts processing an uploaded file in the background
func (h *ExtractionHandler) StartProcessing(ctx context.Context, req *models.StartProcessingRequest) (*models.StartProcessingResponse, error) {
	extractionID, err := uuid.Parse(req.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid extraction ID", err)
	}

	extraction, err := h.repo.GetByID(ctx, extractionID)
	if err != nil {
		return nil, notFoundOr500(err)
	}
	if extraction.Status != models.StatusPending {
		return nil, huma.Error409Conflict("Extraction already started",
			fmt.Errorf("extraction status is %s", extraction.Status))
	}

	log.Info().Str("extractionID", extraction.ID).Msg("Starting background processing")
	go func() {
		bg := context.Background()
		if err := h.processingSvc.ProcessExtraction(bg, extractionID); err != nil {
			log.Error().Err(err).Str("extractionID", extractionID.String()).Msg("Processing failed")
			if uerr := h.repo.UpdateError(bg, extractionID, fmt.Sprintf("Processing failed: %v", err)); uerr != nil {
				log.Error().Err(uerr).Str("extractionID", extractionID.String()).Msg("Failed to record processing error")
			}
		}
	}()

	resp := &models.StartProcessingResponse{}
	resp.Body.Message = "Processing started successfully"
	return resp, nil
}

// Extract runs an extraction over measurement text in the request body
func (h *ExtractionHandler) Extract(ctx context.Context, req *models.ExtractRequest) (*models.ExtractResponse, error) {
	plan, err := processing.NewPlan(req.Body.FileName, req.Body.ExtractionParams, h.defaults)
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid extraction parameters", err)
	}

	blocks, err := measurement.Parse(strings.NewReader(req.Body.Content))
	if err != nil {
		var formatErr *measurement.FormatError
		if errors.As(err, &formatErr) {
			return nil, huma.Error422UnprocessableEntity("Measurement file could not be parsed", err)
		}
		return nil, huma.Error500InternalServerError("Failed to read measurement text", err)
	}

	records := plan.Runner.ProcessBlocks(plan.Info, blocks)
	log.Info().Str("fileName", req.Body.FileName).Int("blocks", len(blocks)).Int("records", len(records)).Msg("Synchronous extraction")

	resp := &models.ExtractResponse{}
	resp.Body.Records = toResponses(records)
	resp.Body.Blocks = make([]models.BlockSummary, 0, len(blocks))
	for _, b := range blocks {
		vg := b.GateVoltages()
		summary := models.BlockSummary{DrainBias: b.DrainBias(), NumPoints: b.NumPoints()}
		if len(vg) > 0 {
			summary.VgMin, summary.VgMax = vg[0], vg[len(vg)-1]
		}
		resp.Body.Blocks = append(resp.Body.Blocks, summary)
	}
	return resp, nil
}

func toResponses(records []models.Record) []models.RecordResponse {
	out := make([]models.RecordResponse, 0, len(records))
	for _, r := range records {
		out = append(out, r.ToResponse())
	}
	return out
}

func notFoundOr500(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return huma.Error404NotFound("Extraction not found", err)
	}
	return huma.Error500InternalServerError("Failed to load extraction", err)
}

// statusMessage creates a human-readable status message
func statusMessage(status string, progress int) string {
	switch status {
	case models.StatusPending:
		return "Waiting for upload..."
	case models.StatusProcessing:
		switch {
		case progress < 20:
			return "Starting extraction..."
		case progress < 50:
			return "Downloading measurement file..."
		case progress < 90:
			return "Extracting threshold voltages..."
		default:
			return "Saving results..."
		}
	case models.StatusCompleted:
		return "Extraction complete!"
	case models.StatusFailed:
		return "Extraction failed."
	default:
		return "Unknown status"
	}
}
