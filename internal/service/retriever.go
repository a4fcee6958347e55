package service

import (
	"context"
	"log"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/sujitmandava/chronicle/internal/domain"
	"github.com/sujitmandava/chronicle/internal/telemetry"
)

const (
	// DefaultTopK is used when a retrieval request omits top_k.
	DefaultTopK = 5
	// DefaultHalfLifeDays controls the recency decay rate when unconfigured.
	DefaultHalfLifeDays = 7.0

	hoursPerDay = 24
)

// RetrieveInput carries one retrieval request. A nil MaxAgeDays means no age
// cutoff.
type RetrieveInput struct {
	Query      string
	TopK       int
	MaxAgeDays *int
}

// Retriever scores indexed fragments against a query. Implemented by
// StalenessAwareRetriever and NoOpRetriever, selected at construction time.
type Retriever interface {
	Retrieve(ctx context.Context, input RetrieveInput) ([]domain.RetrievalResult, error)
}

// FragmentLister is the read-only store surface the retriever scans.
type FragmentLister interface {
	ListAll(ctx context.Context) ([]domain.Fragment, error)
}

// StalenessAwareRetriever ranks fragments by cosine similarity multiplied by
// an exponential recency decay, with an optional hard age cutoff.
type StalenessAwareRetriever struct {
	embedder     EmbeddingClient
	fragments    FragmentLister
	halfLifeDays float64
	now          func() time.Time
}

// NewStalenessAwareRetriever creates a new StalenessAwareRetriever instance.
func NewStalenessAwareRetriever(embedder EmbeddingClient, fragments FragmentLister, halfLifeDays float64) *StalenessAwareRetriever {
	if halfLifeDays <= 0 {
		halfLifeDays = DefaultHalfLifeDays
	}
	return &StalenessAwareRetriever{
		embedder:     embedder,
		fragments:    fragments,
		halfLifeDays: halfLifeDays,
		now:          time.Now,
	}
}

// Retrieve embeds the query, scans all stored fragments, drops those older
// than the cutoff or not yet embedded, and returns the top-k by
// similarity * exp(-age_days / half_life). An empty result is a valid
// outcome, not an error.
func (r *StalenessAwareRetriever) Retrieve(ctx context.Context, input RetrieveInput) ([]domain.RetrievalResult, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return []domain.RetrievalResult{}, nil
	}

	topK := input.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	ctx, span := telemetry.StartSpan(ctx, "StalenessAwareRetriever.Retrieve", telemetry.SpanAttributes{
		Operation: "retrieve",
	})
	defer span.End()

	vectors, err := r.embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, domain.NewUpstreamError("failed to embed query", err)
	}
	if len(vectors) == 0 {
		return nil, domain.NewUpstreamError("embedding provider returned no vector for query", nil)
	}
	queryVec := vectors[0]

	fragments, err := r.fragments.ListAll(ctx)
	if err != nil {
		return nil, domain.NewStorageError("failed to scan fragments", err)
	}

	now := r.now().UTC()
	results := make([]domain.RetrievalResult, 0, len(fragments))
	for _, f := range fragments {
		if f.Embedding == nil {
			continue
		}
		if input.MaxAgeDays != nil && !f.UpdatedAt.IsZero() {
			maxAge := time.Duration(*input.MaxAgeDays) * hoursPerDay * time.Hour
			if now.Sub(f.UpdatedAt) > maxAge {
				continue
			}
		}

		similarity := cosineSimilarity(queryVec, f.Embedding)
		score := similarity * r.stalenessWeight(now, f.UpdatedAt)

		results = append(results, domain.RetrievalResult{
			ChunkID:       f.ChunkID,
			DocID:         f.DocID,
			Text:          f.Text,
			Similarity:    similarity,
			Score:         score,
			CreatedAt:     f.CreatedAt,
			LastUpdatedAt: f.UpdatedAt,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > topK {
		results = results[:topK]
	}
	log.Printf("retrieve: candidates=%d results=%d top_k=%d", len(fragments), len(results), topK)
	return results, nil
}

// stalenessWeight computes exp(-age_days / half_life). A missing updated_at
// counts as fresh.
func (r *StalenessAwareRetriever) stalenessWeight(now, updatedAt time.Time) float64 {
	if updatedAt.IsZero() {
		return 1.0
	}
	ageDays := now.Sub(updatedAt).Hours() / hoursPerDay
	if ageDays < 0 {
		ageDays = 0
	}
	return math.Exp(-ageDays / r.halfLifeDays)
}

// cosineSimilarity returns 0.0 for zero-magnitude or dimension-mismatched
// vectors; a degenerate score, never an error.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// NoOpRetriever always returns an empty result set.
type NoOpRetriever struct{}

func (NoOpRetriever) Retrieve(ctx context.Context, input RetrieveInput) ([]domain.RetrievalResult, error) {
	return []domain.RetrievalResult{}, nil
}
