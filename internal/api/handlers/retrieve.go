package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sujitmandava/chronicle/internal/api"
	"github.com/sujitmandava/chronicle/internal/domain"
	"github.com/sujitmandava/chronicle/internal/service"
)

// RetrieveService is the retrieval surface the retrieve endpoint calls.
type RetrieveService interface {
	Retrieve(ctx context.Context, input service.RetrieveInput) ([]domain.RetrievalResult, error)
}

type RetrieveHandler struct {
	svc RetrieveService
}

func NewRetrieveHandler(svc RetrieveService) *RetrieveHandler {
	return &RetrieveHandler{svc: svc}
}

type RetrieveRequest struct {
	Query      string `json:"query"`
	TopK       int    `json:"top_k,omitempty"`
	MaxAgeDays *int   `json:"max_age_days,omitempty"`
}

type RetrievalResultResponse struct {
	ChunkID       string  `json:"chunk_id"`
	DocID         string  `json:"doc_id"`
	Text          string  `json:"text"`
	Similarity    float64 `json:"similarity"`
	Score         float64 `json:"score"`
	CreatedAt     string  `json:"created_at,omitempty"`
	LastUpdatedAt string  `json:"last_updated_at,omitempty"`
}

type RetrieveResponse struct {
	Results []RetrievalResultResponse `json:"results"`
}

// Retrieve handles POST /retrieve
func (h *RetrieveHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
	var req RetrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	results, err := h.svc.Retrieve(r.Context(), service.RetrieveInput{
		Query:      req.Query,
		TopK:       req.TopK,
		MaxAgeDays: req.MaxAgeDays,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := RetrieveResponse{Results: make([]RetrievalResultResponse, 0, len(results))}
	for _, item := range results {
		resp.Results = append(resp.Results, RetrievalResultResponse{
			ChunkID:       item.ChunkID,
			DocID:         item.DocID,
			Text:          item.Text,
			Similarity:    item.Similarity,
			Score:         item.Score,
			CreatedAt:     formatTimestamp(item.CreatedAt),
			LastUpdatedAt: formatTimestamp(item.LastUpdatedAt),
		})
	}

	api.Success(w, http.StatusOK, resp)
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
