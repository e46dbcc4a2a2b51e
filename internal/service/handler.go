// Package service provides the ledger business rules on top of the repositories.
package service

import (
	"context"
	"errors"
	"math"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sefa-b/game-economy/internal/domain"
	"github.com/sefa-b/game-economy/internal/repository"
	"github.com/sefa-b/game-economy/internal/utils"
)

const tracerName = "game-economy/service"

// TransactionHandler is the only component that changes balances under
// business rules. Withdrawals and deposits are single atomic adjustments,
// so concurrent calls on the same balance never lose an update.
type TransactionHandler struct {
	transactions  repository.TransactionsRepo
	currencies    repository.CurrenciesRepo
	subjects      repository.SubjectsRepo
	allowNegative bool
}

// NewTransactionHandler creates a handler. With allowNegative unset, a
// withdrawal that would overdraw a balance fails and changes nothing.
func NewTransactionHandler(transactions repository.TransactionsRepo, currencies repository.CurrenciesRepo, subjects repository.SubjectsRepo, allowNegative bool) *TransactionHandler {
	return &TransactionHandler{
		transactions:  transactions,
		currencies:    currencies,
		subjects:      subjects,
		allowNegative: allowNegative,
	}
}

// AllowsNegative reports whether balances may go below zero.
func (h *TransactionHandler) AllowsNegative() bool { return h.allowNegative }

func (h *TransactionHandler) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return utils.StartSpan(ctx, tracerName, "ledger."+op, attrs...)
}

func finish[T any](span trace.Span, op string, res domain.Response[T]) domain.Response[T] {
	utils.RecordOperation(op, res.IsOK())
	utils.EndSpan(span, res.Err())
	return res
}

func balanceAttrs(subjectID uuid.UUID, currency string, amount float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("subject.id", subjectID.String()),
		attribute.String("currency", currency),
		attribute.Float64("amount", amount),
	}
}

func namespaceOf(subjectID uuid.UUID, currency string) (domain.Namespace, error) {
	if subjectID == uuid.Nil {
		return domain.Namespace{}, domain.Invalid("subject_id", "must be set")
	}
	if strings.TrimSpace(currency) == "" {
		return domain.Namespace{}, domain.Invalid("currency", "must not be blank")
	}
	return domain.NamespaceOf(subjectID, currency), nil
}

func validateAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return domain.Invalid("amount", "must be a finite number")
	}
	if amount < 0 {
		return domain.Invalid("amount", "must not be negative, got %v", amount)
	}
	return nil
}

// Balance returns the balance of a subject in a currency. A missing row is
// an ERROR, never a zero balance.
func (h *TransactionHandler) Balance(ctx context.Context, subjectID uuid.UUID, currency string) domain.Response[float64] {
	ctx, span := h.start(ctx, "balance", balanceAttrs(subjectID, currency, 0)[:2]...)
	return finish(span, "balance", h.balance(ctx, subjectID, currency))
}

func (h *TransactionHandler) balance(ctx context.Context, subjectID uuid.UUID, currency string) domain.Response[float64] {
	ns, err := namespaceOf(subjectID, currency)
	if err != nil {
		return domain.Fail[float64](err)
	}
	t, err := h.transactions.Get(ctx, ns).Unwrap()
	if err != nil {
		return domain.Fail[float64](err)
	}
	return domain.OK(t.Amount)
}

// Withdraw takes amount from a balance and returns the new balance. A zero
// amount succeeds without a value and without touching the store.
func (h *TransactionHandler) Withdraw(ctx context.Context, subjectID uuid.UUID, currency string, amount float64) domain.Response[float64] {
	ctx, span := h.start(ctx, "withdraw", balanceAttrs(subjectID, currency, amount)...)
	return finish(span, "withdraw", h.adjust(ctx, subjectID, currency, amount, -1))
}

// Deposit adds amount to a balance and returns the new balance. A zero
// amount succeeds without a value and without touching the store.
func (h *TransactionHandler) Deposit(ctx context.Context, subjectID uuid.UUID, currency string, amount float64) domain.Response[float64] {
	ctx, span := h.start(ctx, "deposit", balanceAttrs(subjectID, currency, amount)...)
	return finish(span, "deposit", h.adjust(ctx, subjectID, currency, amount, 1))
}

func (h *TransactionHandler) adjust(ctx context.Context, subjectID uuid.UUID, currency string, amount float64, sign float64) domain.Response[float64] {
	ns, err := namespaceOf(subjectID, currency)
	if err != nil {
		return domain.Fail[float64](err)
	}
	if err := validateAmount(amount); err != nil {
		return domain.Fail[float64](err)
	}
	if amount == 0 {
		return domain.Empty[float64]()
	}

	t, err := h.transactions.Adjust(ctx, ns, sign*amount, h.allowNegative).Unwrap()
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientFunds) {
			utils.Debug("withdrawal rejected", "namespace", ns.Join(), "amount", amount)
		}
		return domain.Fail[float64](err)
	}
	return domain.OK(t.Amount)
}

// SetBalance opens a balance row or overwrites its amount. A negative
// amount is rejected unless negative balances are allowed.
func (h *TransactionHandler) SetBalance(ctx context.Context, subjectID uuid.UUID, currency string, amount float64) domain.Response[domain.Transaction] {
	ctx, span := h.start(ctx, "set_balance", balanceAttrs(subjectID, currency, amount)...)
	return finish(span, "set_balance", h.setBalance(ctx, subjectID, currency, amount))
}

func (h *TransactionHandler) setBalance(ctx context.Context, subjectID uuid.UUID, currency string, amount float64) domain.Response[domain.Transaction] {
	ns, err := namespaceOf(subjectID, currency)
	if err != nil {
		return domain.Fail[domain.Transaction](err)
	}
	if h.allowNegative {
		err = domain.ValidateFinite("amount", amount)
	} else {
		err = validateAmount(amount)
	}
	if err != nil {
		return domain.Fail[domain.Transaction](err)
	}

	t := domain.NewTransaction(subjectID, ns.Currency, amount)
	if res := h.transactions.Set(ctx, t); res.IsError() {
		return domain.Recast[domain.Transaction](res)
	}
	return domain.OK(t)
}

// EnoughMoney reports whether the balance covers amount. It fails like
// Balance when the row is missing.
func (h *TransactionHandler) EnoughMoney(ctx context.Context, subjectID uuid.UUID, currency string, amount float64) domain.Response[bool] {
	ctx, span := h.start(ctx, "enough_money", balanceAttrs(subjectID, currency, amount)...)
	if err := validateAmount(amount); err != nil {
		return finish(span, "enough_money", domain.Fail[bool](err))
	}
	res := h.balance(ctx, subjectID, currency)
	if res.IsError() {
		return finish(span, "enough_money", domain.Recast[bool](res))
	}
	return finish(span, "enough_money", domain.OK(res.OrElse(0)-amount >= 0))
}

// CurrenciesOf returns the currencies a subject holds a balance in, sorted
// by name. Currencies without stored metadata are reported by name only.
func (h *TransactionHandler) CurrenciesOf(ctx context.Context, subjectID uuid.UUID) domain.Response[[]domain.Currency] {
	ctx, span := h.start(ctx, "currencies_of", attribute.String("subject.id", subjectID.String()))
	return finish(span, "currencies_of", h.currenciesOf(ctx, subjectID))
}

func (h *TransactionHandler) currenciesOf(ctx context.Context, subjectID uuid.UUID) domain.Response[[]domain.Currency] {
	rows := h.transactions.GetAllOfSubject(ctx, subjectID)
	if rows.IsError() {
		return domain.Recast[[]domain.Currency](rows)
	}
	ts, ok := rows.Get()
	if !ok {
		return domain.Empty[[]domain.Currency]()
	}

	names := make([]string, 0, len(ts))
	for _, t := range ts {
		names = append(names, t.Currency)
	}
	slices.Sort(names)
	names = slices.Compact(names)

	meta := h.currencies.GetAllOfThem(ctx, names)
	if meta.IsError() {
		return domain.Recast[[]domain.Currency](meta)
	}
	byName := make(map[string]domain.Currency, len(names))
	for _, c := range meta.OrElse(nil) {
		byName[c.Name()] = c
	}

	out := make([]domain.Currency, 0, len(names))
	for _, name := range names {
		c, ok := byName[name]
		if !ok {
			c = domain.RestoreCurrency(name, "", "", "", 0)
		}
		out = append(out, c)
	}
	return domain.OK(out)
}

// SubjectsOf returns the subjects holding a balance in currency. Subjects
// without a stored profile are reported by id only.
func (h *TransactionHandler) SubjectsOf(ctx context.Context, currency string) domain.Response[[]domain.Subject] {
	ctx, span := h.start(ctx, "subjects_of", attribute.String("currency", currency))
	return finish(span, "subjects_of", h.subjectsOf(ctx, currency))
}

func (h *TransactionHandler) subjectsOf(ctx context.Context, currency string) domain.Response[[]domain.Subject] {
	rows := h.transactions.GetAllOfCurrency(ctx, currency)
	if rows.IsError() {
		return domain.Recast[[]domain.Subject](rows)
	}
	ts, ok := rows.Get()
	if !ok {
		return domain.Empty[[]domain.Subject]()
	}

	ids := make([]uuid.UUID, 0, len(ts))
	seen := make(map[uuid.UUID]struct{}, len(ts))
	for _, t := range ts {
		if _, dup := seen[t.SubjectID]; dup {
			continue
		}
		seen[t.SubjectID] = struct{}{}
		ids = append(ids, t.SubjectID)
	}

	profiles := h.subjects.GetAllOfThem(ctx, ids)
	if profiles.IsError() {
		return domain.Recast[[]domain.Subject](profiles)
	}
	byID := make(map[uuid.UUID]domain.Subject, len(ids))
	for _, s := range profiles.OrElse(nil) {
		byID[s.ID()] = s
	}

	out := make([]domain.Subject, 0, len(ids))
	for _, id := range ids {
		s, ok := byID[id]
		if !ok {
			s = domain.RestoreSubject(id, "")
		}
		out = append(out, s)
	}
	return domain.OK(out)
}

// Transfer moves amount between two subjects in one currency. Both sides
// change in one store transaction, so the transfer either fully happens or
// not at all. A zero amount is a no-op.
func (h *TransactionHandler) Transfer(ctx context.Context, from, to uuid.UUID, currency string, amount float64) domain.Response[domain.Void] {
	ctx, span := h.start(ctx, "transfer",
		attribute.String("from.id", from.String()),
		attribute.String("to.id", to.String()),
		attribute.String("currency", currency),
		attribute.Float64("amount", amount),
	)
	return finish(span, "transfer", h.transfer(ctx, from, to, currency, amount))
}

func (h *TransactionHandler) transfer(ctx context.Context, from, to uuid.UUID, currency string, amount float64) domain.Response[domain.Void] {
	src, err := namespaceOf(from, currency)
	if err != nil {
		return domain.Fail[domain.Void](err)
	}
	dst, err := namespaceOf(to, currency)
	if err != nil {
		return domain.Fail[domain.Void](err)
	}
	if err := validateAmount(amount); err != nil {
		return domain.Fail[domain.Void](err)
	}
	if amount == 0 {
		return domain.Empty[domain.Void]()
	}

	res := h.transactions.Transfer(ctx, src, dst, amount, h.allowNegative)
	if res.IsError() {
		return domain.Recast[domain.Void](res)
	}
	utils.Info("transfer completed", "from", src.Join(), "to", dst.Join(), "amount", amount)
	return domain.OK(domain.Void{})
}
