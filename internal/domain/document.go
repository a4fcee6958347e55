package domain

import (
	"strings"
	"time"
)

// Document represents a submitted document tracked by the index.
// One row per DocID; fragments hang off it.
type Document struct {
	DocID       string
	Source      string
	ContentHash string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewDocument creates a new Document instance.
func NewDocument(docID, source, contentHash string, createdAt, updatedAt time.Time) *Document {
	return &Document{
		DocID:       docID,
		Source:      source,
		ContentHash: contentHash,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}
}

// ValidateDocID checks that a caller-supplied document ID is usable.
func ValidateDocID(docID string) error {
	if strings.TrimSpace(docID) == "" {
		return ErrEmptyDocID
	}
	return nil
}
