package api

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/RMahshie/vthlab/internal/api/handlers"
	"github.com/RMahshie/vthlab/internal/processing"
	"github.com/RMahshie/vthlab/internal/repository"
	"github.com/RMahshie/vthlab/internal/storage"
)

// RegisterRoutes sets up all API routes
func RegisterRoutes(api huma.API, s3Service storage.S3Service, extractionRepo repository.ExtractionRepository, processingSvc processing.ProcessingService, defaults processing.Defaults) {
	extractionHandler := handlers.NewExtractionHandler(extractionRepo, s3Service, processingSvc, defaults)

	huma.Register(api, huma.Operation{
		OperationID: "createExtraction",
		Method:      http.MethodPost,
		Path:        "/api/extractions",
		Summary:     "Create a new extraction",
		Description: "Creates an extraction job and returns an upload URL for the measurement file",
		Tags:        []string{"Extraction"},
	}, extractionHandler.CreateExtraction)

	huma.Register(api, huma.Operation{
		OperationID: "startProcessing",
		Method:      http.MethodPost,
		Path:        "/api/extractions/{id}/process",
		Summary:     "Start processing an extraction",
		Description: "Starts threshold extraction on the uploaded measurement file",
		Tags:        []string{"Extraction"},
	}, extractionHandler.StartProcessing)

	huma.Register(api, huma.Operation{
		OperationID: "getExtractionStatus",
		Method:      http.MethodGet,
		Path:        "/api/extractions/{id}/status",
		Summary:     "Get extraction status",
		Description: "Returns the current status and progress of an extraction",
		Tags:        []string{"Extraction"},
	}, extractionHandler.GetExtractionStatus)

	huma.Register(api, huma.Operation{
		OperationID: "getExtractionResults",
		Method:      http.MethodGet,
		Path:        "/api/extractions/{id}/results",
		Summary:     "Get extraction results",
		Description: "Returns one record per selected drain bias block and method",
		Tags:        []string{"Extraction"},
	}, extractionHandler.GetExtractionResults)

	huma.Register(api, huma.Operation{
		OperationID: "extract",
		Method:      http.MethodPost,
		Path:        "/api/extract",
		Summary:     "Extract threshold voltages",
		Description: "Parses measurement text from the request body and returns the extraction records",
		Tags:        []string{"Extraction"},
	}, extractionHandler.Extract)
}
