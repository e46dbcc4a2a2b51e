// Package service defines interfaces for business logic services.
package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/sefa-b/game-economy/internal/domain"
	"github.com/sefa-b/game-economy/internal/repository"
)

// LedgerService defines the balance operations offered to callers.
type LedgerService interface {
	// Balance returns the balance of a subject in a currency.
	Balance(ctx context.Context, subjectID uuid.UUID, currency string) domain.Response[float64]

	// Withdraw takes money from a balance and returns the new balance.
	Withdraw(ctx context.Context, subjectID uuid.UUID, currency string, amount float64) domain.Response[float64]

	// Deposit adds money to a balance and returns the new balance.
	Deposit(ctx context.Context, subjectID uuid.UUID, currency string, amount float64) domain.Response[float64]

	// SetBalance opens a balance or overwrites its amount.
	SetBalance(ctx context.Context, subjectID uuid.UUID, currency string, amount float64) domain.Response[domain.Transaction]

	// EnoughMoney reports whether a balance covers amount.
	EnoughMoney(ctx context.Context, subjectID uuid.UUID, currency string, amount float64) domain.Response[bool]

	// CurrenciesOf returns the currencies a subject holds.
	CurrenciesOf(ctx context.Context, subjectID uuid.UUID) domain.Response[[]domain.Currency]

	// SubjectsOf returns the subjects holding a currency.
	SubjectsOf(ctx context.Context, currency string) domain.Response[[]domain.Subject]

	// Transfer moves money between two subjects atomically.
	Transfer(ctx context.Context, from, to uuid.UUID, currency string, amount float64) domain.Response[domain.Void]
}

// Services aggregates what the API layer needs.
type Services struct {
	Ledger       LedgerService
	Transactions repository.TransactionsRepo
	Currencies   repository.CurrenciesRepo
	Subjects     repository.SubjectsRepo
}
