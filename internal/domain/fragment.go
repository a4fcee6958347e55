package domain

import (
	"fmt"
	"time"
)

// Fragment represents one chunk of a document's text.
// ChunkID is derived deterministically from the owning document and the
// fragment's ordinal position, so re-chunking identical text reproduces
// identical IDs.
type Fragment struct {
	ChunkID   string
	DocID     string
	Index     int
	ChunkHash string
	Text      string
	Embedding []float32 // nil until embedded
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FragmentID builds the chunk ID for a document fragment at the given index.
func FragmentID(docID string, index int) string {
	return fmt.Sprintf("%s_%d", docID, index)
}

// RetrievalResult is one ranked fragment returned by a retrieval.
type RetrievalResult struct {
	ChunkID       string
	DocID         string
	Text          string
	Similarity    float64
	Score         float64
	CreatedAt     time.Time
	LastUpdatedAt time.Time
}

// IngestStats summarizes what a single ingestion changed.
type IngestStats struct {
	Added       int
	Updated     int
	Deleted     int
	TotalChunks int
	Duration    time.Duration
}
