package models

import (
	"time"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Body struct {
		Status  string    `json:"status" example:"healthy" doc:"Service health status"`
		Version string    `json:"version" example:"1.0.0" doc:"API version"`
		Time    time.Time `json:"time" doc:"Current server time"`
	}
}

// ExtractionParams holds the per-request extraction settings shared by
// the asynchronous and synchronous endpoints
type ExtractionParams struct {
	Device    string   `json:"device,omitempty" enum:"nmos,pmos" doc:"Device polarity; inferred from the file name when empty"`
	Methods   []string `json:"methods,omitempty" doc:"Algorithms to run: traditional, sqrt, hybrid (default: traditional)"`
	TargetVd  *float64 `json:"target_vd,omitempty" doc:"Drain bias to select; per-method default when omitted"`
	AllVd     bool     `json:"all_vd,omitempty" doc:"Extract every non-zero drain bias block"`
	Criterion string   `json:"criterion,omitempty" enum:"max-gm,max-dgm" doc:"Index selection criterion (default: max-gm)"`
}

// CreateExtractionRequest represents a request to create a new extraction job
type CreateExtractionRequest struct {
	Body struct {
		SessionID string `json:"session_id" minLength:"10" maxLength:"50" required:"true" doc:"Client session identifier"`
		FileName  string `json:"file_name" minLength:"1" maxLength:"255" required:"true" doc:"Original measurement file path, used for device inference"`
		FileSize  int64  `json:"file_size" minimum:"1" maximum:"10485760" required:"true" doc:"Measurement file size in bytes"`
		MimeType  string `json:"mime_type" enum:"text/plain,text/tab-separated-values" required:"true" doc:"Measurement file MIME type"`
		ExtractionParams
	}
}

// CreateExtractionResponseBody is the body of the create extraction response
type CreateExtractionResponseBody struct {
	ID        string `json:"id" doc:"Extraction unique identifier"`
	UploadURL string `json:"upload_url" doc:"Pre-signed S3 URL for file upload"`
	ExpiresIn int    `json:"expires_in" doc:"URL expiration time in seconds"`
}

// CreateExtractionResponse represents the response from creating an extraction
type CreateExtractionResponse struct {
	Body CreateExtractionResponseBody
}

// GetExtractionStatusRequest represents a request to get extraction status
type GetExtractionStatusRequest struct {
	ID string `path:"id" doc:"Extraction ID"`
}

// GetExtractionStatusResponseBody is the body of the status response
type GetExtractionStatusResponseBody struct {
	ID       string  `json:"id" doc:"Extraction ID"`
	Status   string  `json:"status" enum:"pending,processing,completed,failed" doc:"Extraction status"`
	Progress int     `json:"progress" minimum:"0" maximum:"100" doc:"Extraction progress percentage"`
	Message  string  `json:"message,omitempty" doc:"Human-readable status message"`
	Error    *string `json:"error,omitempty" doc:"Failure reason when status is failed"`
}

// GetExtractionStatusResponse represents the current status of an extraction
type GetExtractionStatusResponse struct {
	Body GetExtractionStatusResponseBody
}

// GetExtractionResultsRequest represents a request to get extraction results
type GetExtractionResultsRequest struct {
	ID string `path:"id" doc:"Extraction ID"`
}

// GetExtractionResultsResponseBody is the body of the results response
type GetExtractionResultsResponseBody struct {
	ID        string           `json:"id" doc:"Extraction ID"`
	Records   []RecordResponse `json:"records" doc:"One record per selected block and method"`
	CreatedAt time.Time        `json:"created_at" doc:"Extraction creation timestamp"`
}

// GetExtractionResultsResponse represents the complete extraction results
type GetExtractionResultsResponse struct {
	Body GetExtractionResultsResponseBody
}

// StartProcessingRequest represents a request to start processing an uploaded file
type StartProcessingRequest struct {
	ID string `path:"id" doc:"Extraction ID"`
}

// StartProcessingResponse represents the response from starting processing
type StartProcessingResponse struct {
	Body struct {
		Message string `json:"message" doc:"Confirmation message"`
	}
}

// ExtractRequest represents a synchronous extraction of measurement text
type ExtractRequest struct {
	Body struct {
		FileName string `json:"file_name,omitempty" maxLength:"255" doc:"Measurement file path, used for device inference"`
		Content  string `json:"content" minLength:"1" maxLength:"10485760" required:"true" doc:"Raw measurement file text"`
		ExtractionParams
	}
}

// BlockSummary describes one parsed sweep block
type BlockSummary struct {
	DrainBias float64 `json:"vd_volts" doc:"Drain bias in volts"`
	NumPoints int     `json:"num_points" doc:"Samples in the block"`
	VgMin     float64 `json:"vg_min" doc:"Lowest gate voltage in volts"`
	VgMax     float64 `json:"vg_max" doc:"Highest gate voltage in volts"`
}

// ExtractResponseBody is the body of the synchronous extraction response
type ExtractResponseBody struct {
	Blocks  []BlockSummary   `json:"blocks" doc:"Parsed sweep blocks, ascending by drain bias"`
	Records []RecordResponse `json:"records" doc:"Extraction records"`
}

// ExtractResponse represents the synchronous extraction response
type ExtractResponse struct {
	Body ExtractResponseBody
}

// Extraction represents the core extraction job entity (for internal use)
type Extraction struct {
	ID          string     `json:"id"`
	SessionID   string     `json:"session_id"`
	FileName    string     `json:"file_name"`
	Status      string     `json:"status"`
	Progress    int        `json:"progress"`
	FileS3Key   *string    `json:"file_s3_key,omitempty"`
	Device      string     `json:"device,omitempty"`
	Methods     []string   `json:"methods"`
	TargetVd    *float64   `json:"target_vd,omitempty"`
	AllVd       bool       `json:"all_vd"`
	Criterion   string     `json:"criterion,omitempty"`
	ErrorMsg    *string    `json:"error_message,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Params returns the extraction settings stored on the job
func (e Extraction) Params() ExtractionParams {
	return ExtractionParams{
		Device:    e.Device,
		Methods:   e.Methods,
		TargetVd:  e.TargetVd,
		AllVd:     e.AllVd,
		Criterion: e.Criterion,
	}
}

// Extraction job statuses
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)
