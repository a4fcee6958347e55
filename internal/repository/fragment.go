package repository

import (
	"context"
	"database/sql"

	"github.com/sujitmandava/chronicle/internal/domain"
)

// FragmentRepository handles persistence of document fragments and their
// embeddings.
type FragmentRepository struct {
	db dbtx
}

func NewFragmentRepository(db *sql.DB) *FragmentRepository {
	return &FragmentRepository{db: db}
}

func NewFragmentRepositoryWithTx(tx *sql.Tx) *FragmentRepository {
	return &FragmentRepository{db: tx}
}

const fragmentColumns = `chunk_id, doc_id, chunk_index, chunk_hash, text, embedding, created_at, updated_at`

// ListByDocument returns all stored fragments for a document.
func (r *FragmentRepository) ListByDocument(ctx context.Context, docID string) ([]domain.Fragment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+fragmentColumns+` FROM fragments WHERE doc_id = ? ORDER BY chunk_index`,
		docID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFragmentRows(rows)
}

// ListAll returns every stored fragment with embeddings deserialized. Used by
// the retriever's full scan.
func (r *FragmentRepository) ListAll(ctx context.Context) ([]domain.Fragment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+fragmentColumns+` FROM fragments ORDER BY doc_id, chunk_index`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFragmentRows(rows)
}

// Upsert bulk inserts-or-updates fragments by chunk_id. The update path
// overwrites chunk_hash, text, embedding, and updated_at together and
// preserves created_at.
func (r *FragmentRepository) Upsert(ctx context.Context, fragments []domain.Fragment) error {
	for _, f := range fragments {
		embedding, err := marshalEmbedding(f.Embedding)
		if err != nil {
			return err
		}
		_, err = r.db.ExecContext(ctx,
			`INSERT INTO fragments (chunk_id, doc_id, chunk_index, chunk_hash, text, embedding, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(chunk_id) DO UPDATE SET
				chunk_hash = excluded.chunk_hash,
				text = excluded.text,
				embedding = excluded.embedding,
				updated_at = excluded.updated_at`,
			f.ChunkID,
			f.DocID,
			f.Index,
			f.ChunkHash,
			f.Text,
			embedding,
			nullableString(formatTime(f.CreatedAt)),
			nullableString(formatTime(f.UpdatedAt)),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// Delete removes exactly the named fragments. Empty input and unknown IDs are
// no-ops, not errors.
func (r *FragmentRepository) Delete(ctx context.Context, docID string, chunkIDs []string) error {
	for _, chunkID := range chunkIDs {
		_, err := r.db.ExecContext(ctx,
			`DELETE FROM fragments WHERE doc_id = ? AND chunk_id = ?`,
			docID, chunkID,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func scanFragmentRows(rows *sql.Rows) ([]domain.Fragment, error) {
	var fragments []domain.Fragment
	for rows.Next() {
		var f domain.Fragment
		var chunkHash, embedding, createdAt, updatedAt *string
		if err := rows.Scan(&f.ChunkID, &f.DocID, &f.Index, &chunkHash, &f.Text, &embedding, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		if chunkHash != nil {
			f.ChunkHash = *chunkHash
		}
		vector, err := unmarshalEmbedding(embedding)
		if err != nil {
			return nil, err
		}
		f.Embedding = vector
		f.CreatedAt = parseTime(createdAt)
		f.UpdatedAt = parseTime(updatedAt)
		fragments = append(fragments, f)
	}
	return fragments, rows.Err()
}
