package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/video-sampler/internal/batch"
	"github.com/maauso/video-sampler/internal/worker"
)

// BatchService is the subset of batch.Service the handlers use.
type BatchService interface {
	Submit(ctx context.Context, req batch.Request) (*batch.Batch, error)
	GetBatch(ctx context.Context, id string) (*batch.Batch, error)
	ListBatches(ctx context.Context) ([]*batch.Batch, error)
}

// Compile-time check that batch.Service satisfies BatchService.
var _ BatchService = (*batch.Service)(nil)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service   BatchService
	validator *validator.Validate
	logger    *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service BatchService, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		service:   service,
		validator: validator.New(),
		logger:    logger,
	}
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// CreateBatch handles POST /batches requests.
func (h *Handlers) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var req CreateBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	created, err := h.service.Submit(r.Context(), batch.Request{
		Prefix:  req.Prefix,
		Height:  req.Height,
		Samples: req.Samples,
		Target:  req.Target,
		Sources: req.Sources,
	})
	if err != nil {
		switch {
		case errors.Is(err, batch.ErrTargetNotDir):
			writeError(w, http.StatusBadRequest, err.Error(), "TARGET_NOT_DIR")
		case errors.Is(err, batch.ErrNoSources), errors.Is(err, batch.ErrInvalidRequest):
			writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		case errors.Is(err, worker.ErrQueueClosed):
			writeError(w, http.StatusServiceUnavailable, "server is shutting down", "QUEUE_CLOSED")
		default:
			h.logger.Error("failed to submit batch",
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to submit batch", "BATCH_SUBMIT_FAILED")
		}
		return
	}

	h.logger.Info("batch submitted",
		slog.String("batch_id", created.ID),
		slog.Int("sources", len(created.Rows)),
		slog.Int("samples", created.Samples),
	)

	writeJSON(w, http.StatusAccepted, newBatchResponse(created))
}

// GetBatch handles GET /batches/{id} requests.
func (h *Handlers) GetBatch(w http.ResponseWriter, r *http.Request) {
	batchID := r.PathValue("id")
	if batchID == "" {
		writeError(w, http.StatusBadRequest, "batch ID is required", "MISSING_BATCH_ID")
		return
	}

	found, err := h.service.GetBatch(r.Context(), batchID)
	if err != nil {
		if errors.Is(err, batch.ErrBatchNotFound) {
			writeError(w, http.StatusNotFound, "batch not found", "BATCH_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get batch",
			slog.String("batch_id", batchID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get batch", "BATCH_FETCH_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, newBatchResponse(found))
}

// ListBatches handles GET /batches requests.
func (h *Handlers) ListBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := h.service.ListBatches(r.Context())
	if err != nil {
		h.logger.Error("failed to list batches",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list batches", "BATCH_LIST_FAILED")
		return
	}

	resp := ListBatchesResponse{Batches: make([]BatchResponse, len(batches))}
	for i, b := range batches {
		resp.Batches[i] = newBatchResponse(b)
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
