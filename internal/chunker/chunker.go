// Package chunker splits document text into overlapping fixed-size fragments
// with deterministic IDs and content hashes.
package chunker

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/sujitmandava/chronicle/internal/domain"
)

// Config controls fragment window size and overlap, counted in runes.
type Config struct {
	Size    int
	Overlap int
}

// DefaultConfig provides sane defaults for chunking.
func DefaultConfig() Config {
	return Config{
		Size:    500,
		Overlap: 100,
	}
}

// Validate checks the termination precondition: the window must advance.
func (c Config) Validate() error {
	if c.Size <= 0 || c.Overlap < 0 || c.Overlap >= c.Size {
		return domain.ErrInvalidChunkParams
	}
	return nil
}

// Chunk splits text into consecutive windows of cfg.Size runes, each window
// after the first overlapping the previous by cfg.Overlap runes. The final
// window may be shorter. Fragments carry ascending indexes starting at 0 and
// a sha256 hash of their exact text slice; empty text yields no fragments.
//
// Chunk is pure: the same text, docID, and config always produce identical
// fragment boundaries, IDs, and hashes.
func Chunk(text, docID string, cfg Config) ([]domain.Fragment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	runes := []rune(text)
	fragments := make([]domain.Fragment, 0, len(runes)/cfg.Size+1)

	start := 0
	idx := 0
	for start < len(runes) {
		end := start + cfg.Size
		if end > len(runes) {
			end = len(runes)
		}

		slice := string(runes[start:end])
		fragments = append(fragments, domain.Fragment{
			ChunkID:   domain.FragmentID(docID, idx),
			DocID:     docID,
			Index:     idx,
			ChunkHash: HashText(slice),
			Text:      slice,
		})

		start += cfg.Size - cfg.Overlap
		idx++
	}

	return fragments, nil
}

// HashText returns the hex-encoded sha256 digest of text. The same function
// hashes fragment slices and whole documents.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
