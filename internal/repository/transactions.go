package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/sefa-b/game-economy/internal/cache"
	"github.com/sefa-b/game-economy/internal/domain"
)

// TransactionRepository is the ledger: one balance row per namespace.
type TransactionRepository struct {
	*CachedRepository[domain.Namespace, domain.Transaction]
}

// NewTransactionRepository creates the ledger repository.
func NewTransactionRepository(db *DB, c cache.Cache[domain.Namespace, domain.Transaction], policy WritePolicy) *TransactionRepository {
	s := transactionStore{}
	return &TransactionRepository{
		CachedRepository: NewCachedRepository[domain.Namespace, domain.Transaction]("transactions", db, c, s.load, s, policy),
	}
}

type transactionStore struct{}

func (transactionStore) Key(t domain.Transaction) domain.Namespace { return t.Namespace() }
func (transactionStore) KeyString(ns domain.Namespace) string      { return ns.Join() }
func (transactionStore) Validate(t domain.Transaction) error       { return t.Validate() }

// Normalize rewrites the owner key into the canonical UUID form.
func (transactionStore) Normalize(ns domain.Namespace) (domain.Namespace, error) {
	if err := ns.Validate(); err != nil {
		return domain.Namespace{}, err
	}
	id, err := ns.SubjectID()
	if err != nil {
		return domain.Namespace{}, err
	}
	return domain.NamespaceOf(id, ns.Currency), nil
}

func scanTransaction(row interface{ Scan(...any) error }) (domain.Transaction, error) {
	var t domain.Transaction
	if err := row.Scan(&t.SubjectID, &t.Currency, &t.Amount); err != nil {
		return domain.Transaction{}, err
	}
	return t, nil
}

func (transactionStore) load(ctx context.Context, tx Tx, ns domain.Namespace) (domain.Transaction, error) {
	id, err := ns.SubjectID()
	if err != nil {
		return domain.Transaction{}, err
	}

	var amount float64
	err = tx.QueryRowContext(ctx,
		`SELECT amount FROM transactions WHERE subject_id = $1 AND currency_name = $2`,
		id.String(), ns.Currency,
	).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Transaction{}, domain.NotFound("transaction", ns.Join())
	}
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("failed to get transaction: %w", err)
	}
	return domain.NewTransaction(id, ns.Currency, amount), nil
}

func queryTransactions(ctx context.Context, tx Tx, query string, args ...any) ([]domain.Transaction, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (transactionStore) LoadAll(ctx context.Context, tx Tx) ([]domain.Transaction, error) {
	return queryTransactions(ctx, tx,
		`SELECT subject_id, currency_name, amount FROM transactions ORDER BY subject_id, currency_name`)
}

func (transactionStore) Upsert(ctx context.Context, tx Tx, t domain.Transaction) error {
	query := `
		INSERT INTO transactions (subject_id, currency_name, amount)
		VALUES ($1, $2, $3)
		ON CONFLICT (subject_id, currency_name)
		DO UPDATE SET amount = excluded.amount`

	if _, err := tx.ExecContext(ctx, query, t.SubjectID.String(), t.Currency, t.Amount); err != nil {
		return fmt.Errorf("failed to upsert transaction: %w", err)
	}
	return nil
}

func (transactionStore) Remove(ctx context.Context, tx Tx, ns domain.Namespace) error {
	id, err := ns.SubjectID()
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`DELETE FROM transactions WHERE subject_id = $1 AND currency_name = $2`,
		id.String(), ns.Currency)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return nil
}

func (transactionStore) RemoveAll(ctx context.Context, tx Tx) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM transactions`); err != nil {
		return fmt.Errorf("failed to delete transactions: %w", err)
	}
	return nil
}

// GetAllOfSubject returns every balance row of a subject. No rows is OK
// and empty.
func (r *TransactionRepository) GetAllOfSubject(ctx context.Context, subjectID uuid.UUID) domain.Response[[]domain.Transaction] {
	if subjectID == uuid.Nil {
		return domain.Fail[[]domain.Transaction](domain.Invalid("subject_id", "must be set"))
	}
	return r.list(ctx,
		`SELECT subject_id, currency_name, amount FROM transactions WHERE subject_id = $1 ORDER BY currency_name`,
		subjectID.String())
}

// GetAllOfCurrency returns every balance row in a currency. No rows is OK
// and empty.
func (r *TransactionRepository) GetAllOfCurrency(ctx context.Context, currency string) domain.Response[[]domain.Transaction] {
	if strings.TrimSpace(currency) == "" {
		return domain.Fail[[]domain.Transaction](domain.Invalid("currency", "must not be blank"))
	}
	return r.list(ctx,
		`SELECT subject_id, currency_name, amount FROM transactions WHERE currency_name = $1 ORDER BY subject_id`,
		currency)
}

func (r *TransactionRepository) list(ctx context.Context, query string, args ...any) domain.Response[[]domain.Transaction] {
	res := WithTx(ctx, r.db, r.name, func(ctx context.Context, tx Tx) ([]domain.Transaction, error) {
		return queryTransactions(ctx, tx, query, args...)
	})
	if ts, ok := res.Get(); ok && len(ts) == 0 {
		return domain.Empty[[]domain.Transaction]()
	}
	return res
}

// adjust changes the balance of ns by delta with a single conditional
// UPDATE, so concurrent adjustments can never lose each other's writes.
// Unless allowNegative is set, a debit that would leave the balance below
// zero fails with domain.ErrInsufficientFunds and changes nothing.
func adjust(ctx context.Context, tx Tx, ns domain.Namespace, delta float64, allowNegative bool) (domain.Transaction, error) {
	id, err := ns.SubjectID()
	if err != nil {
		return domain.Transaction{}, err
	}

	query := `UPDATE transactions SET amount = amount + $1 WHERE subject_id = $2 AND currency_name = $3`
	if !allowNegative && delta < 0 {
		query += ` AND amount + $1 >= 0`
	}
	query += ` RETURNING amount`

	var amount float64
	err = tx.QueryRowContext(ctx, query, delta, id.String(), ns.Currency).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		var one int
		err = tx.QueryRowContext(ctx,
			`SELECT 1 FROM transactions WHERE subject_id = $1 AND currency_name = $2`,
			id.String(), ns.Currency,
		).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Transaction{}, domain.NotFound("transaction", ns.Join())
		}
		if err != nil {
			return domain.Transaction{}, fmt.Errorf("failed to check transaction: %w", err)
		}
		return domain.Transaction{}, fmt.Errorf("%w: cannot take %v from %s", domain.ErrInsufficientFunds, -delta, ns.Join())
	}
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("failed to adjust transaction: %w", err)
	}
	return domain.NewTransaction(id, ns.Currency, amount), nil
}

// Adjust atomically adds delta to the balance of ns and returns the new row.
// A missing row is an ERROR; the row is never created implicitly.
func (r *TransactionRepository) Adjust(ctx context.Context, ns domain.Namespace, delta float64, allowNegative bool) domain.Response[domain.Transaction] {
	ns, err := r.store.Normalize(ns)
	if err != nil {
		return domain.Fail[domain.Transaction](err)
	}
	if err := domain.ValidateFinite("delta", delta); err != nil {
		return domain.Fail[domain.Transaction](err)
	}

	seen := r.observe(ns)
	res := WithTx(ctx, r.db, r.name, func(ctx context.Context, tx Tx) (domain.Transaction, error) {
		return adjust(ctx, tx, ns, delta, allowNegative)
	})
	if t, ok := res.Get(); ok {
		r.written(ctx, seen, t)
	}
	return res
}

// Transfer moves amount from one namespace to another in one transaction
// and returns both rows, source first. Rows are updated in key order so two
// opposite transfers cannot deadlock.
func (r *TransactionRepository) Transfer(ctx context.Context, from, to domain.Namespace, amount float64, allowNegative bool) domain.Response[[]domain.Transaction] {
	from, err := r.store.Normalize(from)
	if err != nil {
		return domain.Fail[[]domain.Transaction](err)
	}
	to, err = r.store.Normalize(to)
	if err != nil {
		return domain.Fail[[]domain.Transaction](err)
	}
	if from == to {
		return domain.Fail[[]domain.Transaction](domain.Invalid("to", "must differ from source"))
	}
	if err := domain.ValidateFinite("amount", amount); err != nil {
		return domain.Fail[[]domain.Transaction](err)
	}
	if amount <= 0 {
		return domain.Fail[[]domain.Transaction](domain.Invalid("amount", "must be positive"))
	}

	seen := r.observe(from, to)
	res := WithTx(ctx, r.db, r.name, func(ctx context.Context, tx Tx) ([]domain.Transaction, error) {
		type step struct {
			ns    domain.Namespace
			delta float64
		}
		steps := []step{{from, -amount}, {to, amount}}
		if to.Join() < from.Join() {
			steps[0], steps[1] = steps[1], steps[0]
		}

		rows := make(map[domain.Namespace]domain.Transaction, 2)
		for _, s := range steps {
			t, err := adjust(ctx, tx, s.ns, s.delta, allowNegative)
			if err != nil {
				return nil, err
			}
			rows[s.ns] = t
		}
		return []domain.Transaction{rows[from], rows[to]}, nil
	})
	if ts, ok := res.Get(); ok {
		r.written(ctx, seen, ts...)
	}
	return res
}
