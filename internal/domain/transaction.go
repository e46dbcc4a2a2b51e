package domain

import (
	"math"
	"strings"

	"github.com/google/uuid"
)

// Transaction is the current balance row of one subject in one currency.
// It is a value: changing a balance means building a new Transaction.
type Transaction struct {
	SubjectID uuid.UUID `json:"subject_id"`
	Currency  string    `json:"currency"`
	Amount    float64   `json:"amount"`
}

// NewTransaction builds a balance row.
func NewTransaction(subjectID uuid.UUID, currency string, amount float64) Transaction {
	return Transaction{SubjectID: subjectID, Currency: currency, Amount: amount}
}

// Namespace returns the ledger key of the row.
func (t Transaction) Namespace() Namespace {
	return NamespaceOf(t.SubjectID, t.Currency)
}

// WithAmount returns a copy of t holding amount.
func (t Transaction) WithAmount(amount float64) Transaction {
	t.Amount = amount
	return t
}

// Validate checks the row can be persisted. The ledger accepts any finite
// amount; non-negativity is a business rule of the handler.
func (t Transaction) Validate() error {
	if t.SubjectID == uuid.Nil {
		return Invalid("subject_id", "must be set")
	}
	if strings.TrimSpace(t.Currency) == "" {
		return Invalid("currency", "must not be blank")
	}
	return ValidateFinite("amount", t.Amount)
}

// ValidateFinite rejects NaN and infinite amounts.
func ValidateFinite(field string, amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return Invalid(field, "must be a finite number")
	}
	return nil
}
