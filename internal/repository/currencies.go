package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/sefa-b/game-economy/internal/cache"
	"github.com/sefa-b/game-economy/internal/domain"
)

// CurrencyRepository stores currency metadata keyed by currency name.
type CurrencyRepository struct {
	*CachedRepository[string, domain.Currency]
}

// NewCurrencyRepository creates a currency repository.
func NewCurrencyRepository(db *DB, c cache.Cache[string, domain.Currency], policy WritePolicy) *CurrencyRepository {
	s := currencyStore{}
	return &CurrencyRepository{
		CachedRepository: NewCachedRepository[string, domain.Currency]("currencies", db, c, s.load, s, policy),
	}
}

type currencyStore struct{}

const currencyColumns = `name, display_name, plural_name, abbreviation, symbol`

func (currencyStore) Key(c domain.Currency) string { return c.Name() }
func (currencyStore) KeyString(name string) string { return name }

func (currencyStore) Normalize(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", domain.Invalid("currency", "must not be blank")
	}
	return name, nil
}

func (currencyStore) Validate(c domain.Currency) error { return c.Validate() }

func scanCurrency(row interface{ Scan(...any) error }) (domain.Currency, error) {
	var name, displayName, pluralName, abbreviation, symbol string
	if err := row.Scan(&name, &displayName, &pluralName, &abbreviation, &symbol); err != nil {
		return domain.Currency{}, err
	}
	return domain.RestoreCurrency(name, displayName, pluralName, abbreviation, domain.ParseSymbol(symbol)), nil
}

func (currencyStore) load(ctx context.Context, tx Tx, name string) (domain.Currency, error) {
	query := `SELECT ` + currencyColumns + ` FROM currencies WHERE name = $1`

	c, err := scanCurrency(tx.QueryRowContext(ctx, query, name))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Currency{}, domain.NotFound("currency", name)
	}
	if err != nil {
		return domain.Currency{}, fmt.Errorf("failed to get currency: %w", err)
	}
	return c, nil
}

func (currencyStore) LoadAll(ctx context.Context, tx Tx) ([]domain.Currency, error) {
	rows, err := tx.QueryContext(ctx, `SELECT `+currencyColumns+` FROM currencies ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list currencies: %w", err)
	}
	defer rows.Close()

	var out []domain.Currency
	for rows.Next() {
		c, err := scanCurrency(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan currency: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (currencyStore) Upsert(ctx context.Context, tx Tx, c domain.Currency) error {
	query := `
		INSERT INTO currencies (` + currencyColumns + `)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name)
		DO UPDATE SET
			display_name = excluded.display_name,
			plural_name = excluded.plural_name,
			abbreviation = excluded.abbreviation,
			symbol = excluded.symbol`

	_, err := tx.ExecContext(ctx, query,
		c.Name(), c.DisplayName(), c.PluralName(), c.Abbreviation(), domain.SymbolString(c.Symbol()))
	if err != nil {
		return fmt.Errorf("failed to upsert currency: %w", err)
	}
	return nil
}

func (currencyStore) Remove(ctx context.Context, tx Tx, name string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM currencies WHERE name = $1`, name); err != nil {
		return fmt.Errorf("failed to delete currency: %w", err)
	}
	return nil
}

func (currencyStore) RemoveAll(ctx context.Context, tx Tx) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM currencies`); err != nil {
		return fmt.Errorf("failed to delete currencies: %w", err)
	}
	return nil
}
