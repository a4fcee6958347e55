package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/sujitmandava/chronicle/internal/chunker"
	"github.com/sujitmandava/chronicle/internal/domain"
	"github.com/sujitmandava/chronicle/internal/telemetry"
)

// EmbeddingClient defines the interface for generating embeddings. One vector
// is returned per input text, in input order.
type EmbeddingClient interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// IndexService ingests documents incrementally: it chunks the submitted text,
// diffs chunk hashes against the stored fragment set, re-embeds only what
// changed, and deletes fragments that fell out of the latest chunking.
type IndexService struct {
	embedder  EmbeddingClient
	docs      DocumentStore
	fragments FragmentStore
	tx        TxRunner
	chunkCfg  chunker.Config
	locks     keyedMutex
	now       func() time.Time
}

// NewIndexService creates a new IndexService instance.
func NewIndexService(embedder EmbeddingClient, docs DocumentStore, fragments FragmentStore, tx TxRunner, chunkCfg chunker.Config) *IndexService {
	return &IndexService{
		embedder:  embedder,
		docs:      docs,
		fragments: fragments,
		tx:        tx,
		chunkCfg:  chunkCfg,
		now:       time.Now,
	}
}

// Ingest synchronizes the stored fragment set for docID with the latest
// chunking of text. A fragment is re-embedded only when its chunk hash
// differs from the stored hash for the same chunk ID; unchanged fragments are
// untouched and keep their original created_at. An embedding failure aborts
// before any store mutation; all store writes commit in one transaction.
func (s *IndexService) Ingest(ctx context.Context, docID, text, source string) (*domain.IngestStats, error) {
	if err := domain.ValidateDocID(docID); err != nil {
		return nil, err
	}
	if err := s.chunkCfg.Validate(); err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartSpan(ctx, "IndexService.Ingest", telemetry.SpanAttributes{
		DocID:     docID,
		Operation: "ingest",
	})
	defer span.End()

	unlock := s.locks.Lock(docID)
	defer unlock()

	start := s.now()

	existingDoc, err := s.docs.Get(ctx, docID)
	if err != nil && !errors.Is(err, domain.ErrDocumentNotFound) {
		return nil, domain.NewStorageError("failed to load document", err)
	}

	stored, err := s.fragments.ListByDocument(ctx, docID)
	if err != nil {
		return nil, domain.NewStorageError("failed to load fragments", err)
	}
	storedByID := make(map[string]domain.Fragment, len(stored))
	for _, f := range stored {
		storedByID[f.ChunkID] = f
	}

	drafts, err := chunker.Chunk(text, docID, s.chunkCfg)
	if err != nil {
		return nil, err
	}

	latestIDs := make(map[string]struct{}, len(drafts))
	var toEmbed []domain.Fragment
	for _, draft := range drafts {
		latestIDs[draft.ChunkID] = struct{}{}
		if prior, ok := storedByID[draft.ChunkID]; ok && prior.ChunkHash == draft.ChunkHash {
			continue
		}
		toEmbed = append(toEmbed, draft)
	}

	if len(toEmbed) > 0 {
		texts := make([]string, len(toEmbed))
		for i, f := range toEmbed {
			texts[i] = f.Text
		}

		vectors, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, domain.NewUpstreamError("embedding provider failed", err)
		}
		if len(vectors) != len(toEmbed) {
			return nil, domain.NewUpstreamError(
				fmt.Sprintf("embedding provider returned %d vectors for %d inputs", len(vectors), len(toEmbed)), nil)
		}

		now := s.now().UTC()
		for i := range toEmbed {
			toEmbed[i].Embedding = vectors[i]
			toEmbed[i].UpdatedAt = now
			if prior, ok := storedByID[toEmbed[i].ChunkID]; ok {
				toEmbed[i].CreatedAt = prior.CreatedAt
			} else {
				toEmbed[i].CreatedAt = now
			}
		}
	}

	var deleteIDs []string
	for chunkID := range storedByID {
		if _, ok := latestIDs[chunkID]; !ok {
			deleteIDs = append(deleteIDs, chunkID)
		}
	}
	sort.Strings(deleteIDs)

	added, updated := 0, 0
	for _, f := range toEmbed {
		if _, ok := storedByID[f.ChunkID]; ok {
			updated++
		} else {
			added++
		}
	}

	docNow := s.now().UTC()
	doc := &domain.Document{
		DocID:       docID,
		Source:      source,
		ContentHash: chunker.HashText(text),
		CreatedAt:   docNow,
		UpdatedAt:   docNow,
	}
	if existingDoc != nil {
		doc.CreatedAt = existingDoc.CreatedAt
	}

	err = s.tx.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Documents().Upsert(ctx, doc); err != nil {
			return err
		}
		if err := repos.Fragments().Delete(ctx, docID, deleteIDs); err != nil {
			return err
		}
		return repos.Fragments().Upsert(ctx, toEmbed)
	})
	if err != nil {
		span.SetError(err)
		return nil, domain.NewStorageError("failed to persist ingestion", err)
	}

	stats := &domain.IngestStats{
		Added:       added,
		Updated:     updated,
		Deleted:     len(deleteIDs),
		TotalChunks: len(drafts),
		Duration:    s.now().Sub(start),
	}
	log.Printf("ingest: doc_id=%s added=%d updated=%d deleted=%d total_chunks=%d duration_ms=%.1f",
		docID, stats.Added, stats.Updated, stats.Deleted, stats.TotalChunks,
		float64(stats.Duration.Microseconds())/1000.0)
	return stats, nil
}
