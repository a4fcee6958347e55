package repository

import (
	"context"
	"database/sql"

	"github.com/sujitmandava/chronicle/internal/service"
)

// TxRunner provides transactional repositories over the embedded store. An
// ingestion's document write, fragment upserts, and orphan deletes commit or
// roll back as one unit.
type TxRunner struct {
	db *sql.DB
}

func NewTxRunner(db *sql.DB) *TxRunner {
	return &TxRunner{db: db}
}

func (r *TxRunner) WithTx(ctx context.Context, fn func(repos service.TxRepositories) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	repos := &txRepos{tx: tx}
	if err := fn(repos); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

type txRepos struct {
	tx *sql.Tx
}

func (r *txRepos) Documents() service.DocumentStore {
	return NewDocumentRepositoryWithTx(r.tx)
}

func (r *txRepos) Fragments() service.FragmentStore {
	return NewFragmentRepositoryWithTx(r.tx)
}
