package repository

import (
	"context"
	"fmt"

	"github.com/sefa-b/game-economy/internal/utils"
)

// schema is valid for both PostgreSQL and SQLite.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS currencies (
		name         TEXT PRIMARY KEY,
		display_name TEXT NOT NULL DEFAULT '',
		plural_name  TEXT NOT NULL DEFAULT '',
		abbreviation TEXT NOT NULL DEFAULT '',
		symbol       TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS subjects (
		subject_id TEXT PRIMARY KEY,
		nickname   TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		subject_id    TEXT NOT NULL,
		currency_name TEXT NOT NULL,
		amount        DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (subject_id, currency_name)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_currency ON transactions (currency_name)`,
}

// Migrate creates the ledger tables when they do not exist yet.
func Migrate(ctx context.Context, db *DB) error {
	res := WithTx(ctx, db, "migrate", func(ctx context.Context, tx Tx) (int, error) {
		for i, stmt := range schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return i, fmt.Errorf("failed to apply schema statement %d: %w", i, err)
			}
		}
		return len(schema), nil
	})
	if err := res.Err(); err != nil {
		return err
	}

	utils.Info("schema migrated", "driver", db.Driver, "statements", len(schema))
	return nil
}
