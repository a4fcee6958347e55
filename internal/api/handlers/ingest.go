package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/sujitmandava/chronicle/internal/api"
	"github.com/sujitmandava/chronicle/internal/domain"
)

// IngestService is the indexing surface the ingest endpoints call.
type IngestService interface {
	Ingest(ctx context.Context, docID, text, source string) (*domain.IngestStats, error)
}

type IngestHandler struct {
	svc IngestService
}

func NewIngestHandler(svc IngestService) *IngestHandler {
	return &IngestHandler{svc: svc}
}

type IngestRequest struct {
	DocID  string `json:"doc_id"`
	Text   string `json:"text"`
	Source string `json:"source,omitempty"`
}

type IngestResponse struct {
	Added       int     `json:"added"`
	Updated     int     `json:"updated"`
	Deleted     int     `json:"deleted"`
	TotalChunks int     `json:"total_chunks"`
	DurationMS  float64 `json:"duration_ms"`
}

// Ingest handles POST /ingest
func (h *IngestHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	stats, err := h.svc.Ingest(r.Context(), req.DocID, req.Text, req.Source)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, toIngestResponse(stats))
}

func toIngestResponse(stats *domain.IngestStats) IngestResponse {
	return IngestResponse{
		Added:       stats.Added,
		Updated:     stats.Updated,
		Deleted:     stats.Deleted,
		TotalChunks: stats.TotalChunks,
		DurationMS:  float64(stats.Duration.Microseconds()) / 1000.0,
	}
}
