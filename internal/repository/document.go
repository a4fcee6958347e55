package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/sujitmandava/chronicle/internal/domain"
)

// DocumentRepository handles persistence of document rows.
type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func NewDocumentRepositoryWithTx(tx *sql.Tx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

func (r *DocumentRepository) Get(ctx context.Context, docID string) (*domain.Document, error) {
	var d domain.Document
	var source *string
	var createdAt, updatedAt *string
	err := r.db.QueryRowContext(ctx,
		`SELECT doc_id, source, content_hash, created_at, updated_at
		 FROM documents WHERE doc_id = ?`,
		docID,
	).Scan(&d.DocID, &source, &d.ContentHash, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	if source != nil {
		d.Source = *source
	}
	d.CreatedAt = parseTime(createdAt)
	d.UpdatedAt = parseTime(updatedAt)
	return &d, nil
}

// Upsert inserts the document or, on conflict, updates source, content_hash,
// and updated_at while preserving the original created_at.
func (r *DocumentRepository) Upsert(ctx context.Context, d *domain.Document) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO documents (doc_id, source, content_hash, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(doc_id) DO UPDATE SET
			source = excluded.source,
			content_hash = excluded.content_hash,
			updated_at = excluded.updated_at`,
		d.DocID,
		nullableString(d.Source),
		d.ContentHash,
		nullableString(formatTime(d.CreatedAt)),
		nullableString(formatTime(d.UpdatedAt)),
	)
	return err
}
