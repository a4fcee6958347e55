package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sujitmandava/chronicle/internal/domain"
	"github.com/sujitmandava/chronicle/internal/telemetry"
)

// ChatClient defines the interface for answer generation. contextBlock may be
// empty when retrieval produced nothing.
type ChatClient interface {
	Complete(ctx context.Context, prompt, contextBlock string) (string, error)
}

// PromptResult is the outcome of an answered prompt.
type PromptResult struct {
	Response string
	Warning  string
}

// PromptService answers prompts with retrieved context. It owns the
// caller-side staleness policy the retriever deliberately doesn't: retrying
// without the age filter when the fresh window is empty, and flagging results
// older than the warning threshold.
type PromptService struct {
	retriever      Retriever
	llm            ChatClient
	maxAgeDays     int
	warningAgeDays int
	now            func() time.Time
}

// NewPromptService creates a new PromptService instance.
func NewPromptService(retriever Retriever, llm ChatClient, maxAgeDays, warningAgeDays int) *PromptService {
	return &PromptService{
		retriever:      retriever,
		llm:            llm,
		maxAgeDays:     maxAgeDays,
		warningAgeDays: warningAgeDays,
		now:            time.Now,
	}
}

// Answer retrieves context for prompt within the configured age window,
// falling back to unfiltered retrieval when the window is empty, then calls
// the chat model with the assembled context block.
func (s *PromptService) Answer(ctx context.Context, prompt string) (*PromptResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "PromptService.Answer", telemetry.SpanAttributes{
		Operation: "prompt",
	})
	defer span.End()

	maxAge := s.maxAgeDays
	results, err := s.retriever.Retrieve(ctx, RetrieveInput{
		Query:      prompt,
		TopK:       DefaultTopK,
		MaxAgeDays: &maxAge,
	})
	if err != nil {
		return nil, err
	}

	warning := ""
	if len(results) == 0 {
		fallback, err := s.retriever.Retrieve(ctx, RetrieveInput{Query: prompt, TopK: DefaultTopK})
		if err != nil {
			return nil, err
		}
		if len(fallback) > 0 {
			warning = "No documents found within the allowed age window. Using older documents that may be stale."
			results = fallback
		}
	} else {
		if staleCount := s.countStale(results); staleCount > 0 {
			warning = fmt.Sprintf("%d retrieved document chunk(s) are older than %d days.", staleCount, s.warningAgeDays)
		}
	}

	response, err := s.llm.Complete(ctx, prompt, buildContextBlock(results))
	if err != nil {
		span.SetError(err)
		return nil, domain.NewUpstreamError("chat completion failed", err)
	}

	return &PromptResult{Response: response, Warning: warning}, nil
}

func (s *PromptService) countStale(results []domain.RetrievalResult) int {
	now := s.now().UTC()
	count := 0
	for _, item := range results {
		if item.LastUpdatedAt.IsZero() {
			continue
		}
		ageDays := now.Sub(item.LastUpdatedAt).Hours() / hoursPerDay
		if ageDays >= float64(s.warningAgeDays) {
			count++
		}
	}
	return count
}

func buildContextBlock(results []domain.RetrievalResult) string {
	if len(results) == 0 {
		return ""
	}
	lines := make([]string, 0, len(results))
	for i, item := range results {
		updatedAt := "unknown"
		if !item.LastUpdatedAt.IsZero() {
			updatedAt = item.LastUpdatedAt.UTC().Format(time.RFC3339)
		}
		lines = append(lines, fmt.Sprintf(
			"[%d] doc_id=%s chunk_id=%s updated_at=%s\n%s",
			i+1, item.DocID, item.ChunkID, updatedAt, item.Text,
		))
	}
	return strings.Join(lines, "\n\n")
}
