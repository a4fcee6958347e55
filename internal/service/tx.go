package service

import (
	"context"

	"github.com/sujitmandava/chronicle/internal/domain"
)

// DocumentStore is the persistence interface for document rows.
type DocumentStore interface {
	Get(ctx context.Context, docID string) (*domain.Document, error)
	Upsert(ctx context.Context, doc *domain.Document) error
}

// FragmentStore is the persistence interface for document fragments.
type FragmentStore interface {
	ListByDocument(ctx context.Context, docID string) ([]domain.Fragment, error)
	ListAll(ctx context.Context) ([]domain.Fragment, error)
	Upsert(ctx context.Context, fragments []domain.Fragment) error
	Delete(ctx context.Context, docID string, chunkIDs []string) error
}

// TxRepositories exposes stores bound to one transaction.
type TxRepositories interface {
	Documents() DocumentStore
	Fragments() FragmentStore
}

// TxRunner runs a function against transactional stores, committing on nil
// and rolling back on error.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(repos TxRepositories) error) error
}
