package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sujitmandava/chronicle/internal/api"
	"github.com/sujitmandava/chronicle/internal/service"
)

// PromptService is the answering surface the prompt endpoint calls.
type PromptService interface {
	Answer(ctx context.Context, prompt string) (*service.PromptResult, error)
}

type PromptHandler struct {
	svc PromptService
}

func NewPromptHandler(svc PromptService) *PromptHandler {
	return &PromptHandler{svc: svc}
}

type PromptRequest struct {
	Prompt string `json:"prompt"`
}

type PromptResponse struct {
	Response string `json:"response"`
	Warning  string `json:"warning,omitempty"`
}

// Prompt handles POST /prompt
func (h *PromptHandler) Prompt(w http.ResponseWriter, r *http.Request) {
	var req PromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Prompt) == "" {
		api.Error(w, http.StatusBadRequest, "prompt must not be empty")
		return
	}

	result, err := h.svc.Answer(r.Context(), req.Prompt)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, PromptResponse{
		Response: result.Response,
		Warning:  result.Warning,
	})
}
