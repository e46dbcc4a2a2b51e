// Package repository defines interfaces for data access.
package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/sefa-b/game-economy/internal/domain"
)

// Repository is the CRUD surface shared by every cached repository.
type Repository[K comparable, V any] interface {
	// Get returns the value under key; a missing row is an ERROR.
	Get(ctx context.Context, key K) domain.Response[V]

	// GetAllOfThem returns the values of the keys that exist.
	GetAllOfThem(ctx context.Context, keys []K) domain.Response[[]V]

	// GetAll returns every stored value.
	GetAll(ctx context.Context) domain.Response[[]V]

	// Set creates or replaces one value.
	Set(ctx context.Context, v V) domain.Response[domain.Void]

	// SetAll creates or replaces values in one transaction.
	SetAll(ctx context.Context, vs []V) domain.Response[domain.Void]

	// Delete removes one key.
	Delete(ctx context.Context, key K) domain.Response[domain.Void]

	// DeleteAllOfThem removes keys in one transaction.
	DeleteAllOfThem(ctx context.Context, keys []K) domain.Response[domain.Void]

	// DeleteAll removes everything.
	DeleteAll(ctx context.Context) domain.Response[domain.Void]
}

// CurrenciesRepo stores currency metadata.
type CurrenciesRepo interface {
	Repository[string, domain.Currency]
}

// SubjectsRepo stores subjects.
type SubjectsRepo interface {
	Repository[uuid.UUID, domain.Subject]
}

// TransactionsRepo is the balance ledger.
type TransactionsRepo interface {
	Repository[domain.Namespace, domain.Transaction]

	// GetAllOfSubject returns all balance rows of a subject.
	GetAllOfSubject(ctx context.Context, subjectID uuid.UUID) domain.Response[[]domain.Transaction]

	// GetAllOfCurrency returns all balance rows in a currency.
	GetAllOfCurrency(ctx context.Context, currency string) domain.Response[[]domain.Transaction]

	// Adjust atomically adds delta to a balance and returns the new row.
	Adjust(ctx context.Context, ns domain.Namespace, delta float64, allowNegative bool) domain.Response[domain.Transaction]

	// Transfer moves amount between two balances atomically.
	Transfer(ctx context.Context, from, to domain.Namespace, amount float64, allowNegative bool) domain.Response[[]domain.Transaction]
}
