package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sefa-b/game-economy/internal/domain"
	"github.com/sefa-b/game-economy/internal/utils"
)

// Tx is the transactional handle a unit of work receives. Units of work
// never commit or roll back; WithTx owns that.
type Tx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var _ Tx = (*sql.Tx)(nil)

// WithTx runs work inside a store transaction. It commits when work
// returns nil, rolls back on an error or a panic, and always releases the
// connection. Failures come back as an ERROR response; store-level causes
// are wrapped with domain.ErrStore.
func WithTx[T any](ctx context.Context, db *DB, name string, work func(ctx context.Context, tx Tx) (T, error)) (resp domain.Response[T]) {
	start := time.Now()

	tx, err := db.SQL.BeginTx(ctx, nil)
	if err != nil {
		utils.RecordStoreTransaction(name, "begin_error", time.Since(start))
		return domain.Fail[T](fmt.Errorf("%w: failed to begin transaction: %w", domain.ErrStore, err))
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			utils.RecordStoreTransaction(name, "rollback", time.Since(start))
			utils.Error("panic in store transaction", "repository", name, "panic", fmt.Sprint(p))
			resp = domain.Fail[T](fmt.Errorf("%w: panic in transaction: %v", domain.ErrStore, p))
		}
	}()

	result, err := work(ctx, tx)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			utils.Error("failed to rollback transaction", "repository", name, "error", rbErr.Error())
		}
		utils.RecordStoreTransaction(name, "rollback", time.Since(start))
		return domain.Fail[T](storeError(err))
	}

	if err := tx.Commit(); err != nil {
		utils.RecordStoreTransaction(name, "commit_error", time.Since(start))
		return domain.Fail[T](fmt.Errorf("%w: failed to commit transaction: %w", domain.ErrStore, err))
	}

	utils.RecordStoreTransaction(name, "commit", time.Since(start))
	return domain.OK(result)
}

// storeError leaves classified errors alone and tags everything else as a
// store failure.
func storeError(err error) error {
	if domain.KindOf(err) != domain.KindStore || errors.Is(err, domain.ErrStore) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrStore, err)
}
