package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// dbtx is the subset of database/sql satisfied by both *sql.DB and *sql.Tx,
// so repositories work inside and outside transactions.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// formatTime serializes a timestamp for storage. Zero times serialize to NULL
// via nullableString on the formatted value.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime deserializes a stored timestamp. Missing or unparseable values
// come back as the zero time; downstream ranking treats those as fresh.
func parseTime(raw *string) time.Time {
	if raw == nil || *raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, *raw)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// marshalEmbedding serializes a vector as a JSON array, or NULL when absent.
func marshalEmbedding(embedding []float32) (*string, error) {
	if embedding == nil {
		return nil, nil
	}
	raw, err := json.Marshal(embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize embedding: %w", err)
	}
	s := string(raw)
	return &s, nil
}

// unmarshalEmbedding deserializes a stored vector; NULL round-trips to nil.
func unmarshalEmbedding(raw *string) ([]float32, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	var embedding []float32
	if err := json.Unmarshal([]byte(*raw), &embedding); err != nil {
		return nil, fmt.Errorf("failed to deserialize embedding: %w", err)
	}
	return embedding, nil
}
