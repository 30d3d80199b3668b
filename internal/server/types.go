// Package server provides the HTTP API for submitting sampling batches and
// following their progress. DTOs here are separate from domain types.
package server

import (
	"time"

	"github.com/maauso/video-sampler/internal/batch"
)

// CreateBatchRequest is the HTTP request body for submitting a batch.
type CreateBatchRequest struct {
	// Prefix starts every output file name. Path separators are rejected.
	Prefix string `json:"prefix" validate:"required,excludesall=/\\"`
	// Height is the output height in pixels.
	Height int `json:"height" validate:"required,min=1,max=8192"`
	// Samples is the number of frames per source.
	Samples int `json:"samples" validate:"required,min=1,max=1000"`
	// Target is the existing output directory on the server.
	Target string `json:"target" validate:"required"`
	// Sources are the input video paths on the server.
	Sources []string `json:"sources" validate:"required,min=1,dive,required"`
}

// RowResponse is the progress of one source file.
type RowResponse struct {
	RefIdx   int     `json:"ref_idx"`
	Index    int     `json:"index"`
	Name     string  `json:"name"`
	Source   string  `json:"source"`
	Progress float64 `json:"progress"`
	Status   string  `json:"status"`
	Error    string  `json:"error,omitempty"`
}

// BatchResponse is the HTTP response for a batch and its rows.
type BatchResponse struct {
	ID        string        `json:"id"`
	Prefix    string        `json:"prefix"`
	Height    int           `json:"height"`
	Samples   int           `json:"samples"`
	Target    string        `json:"target"`
	Done      bool          `json:"done"`
	Rows      []RowResponse `json:"rows"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// ListBatchesResponse is the HTTP response for listing batches.
type ListBatchesResponse struct {
	Batches []BatchResponse `json:"batches"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}

func newBatchResponse(b *batch.Batch) BatchResponse {
	rows := make([]RowResponse, len(b.Rows))
	for i, r := range b.Rows {
		rows[i] = RowResponse{
			RefIdx:   r.RefIdx,
			Index:    r.Index,
			Name:     r.Name,
			Source:   r.Source,
			Progress: r.Progress,
			Status:   string(r.Status),
			Error:    r.Error,
		}
	}
	return BatchResponse{
		ID:        b.ID,
		Prefix:    b.Prefix,
		Height:    b.Height,
		Samples:   b.Samples,
		Target:    b.Target,
		Done:      b.IsDone(),
		Rows:      rows,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}
