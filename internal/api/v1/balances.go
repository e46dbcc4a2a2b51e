package v1

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/sefa-b/game-economy/internal/api/middleware"
	"github.com/sefa-b/game-economy/internal/domain"
)

// amountRequest is the body of withdraw, deposit and set-balance calls.
// Sign and range rules belong to the ledger; only presence is checked here.
type amountRequest struct {
	Amount *float64 `json:"amount"`
}

func (b amountRequest) Validate() error {
	if b.Amount == nil {
		return domain.Invalid("amount", "field is required")
	}
	return nil
}

type transferRequest struct {
	From     uuid.UUID `json:"from"`
	To       uuid.UUID `json:"to"`
	Currency string    `json:"currency"`
	Amount   *float64  `json:"amount"`
}

func (b transferRequest) Validate() error {
	switch {
	case b.From == uuid.Nil:
		return domain.Invalid("from", "field is required")
	case b.To == uuid.Nil:
		return domain.Invalid("to", "field is required")
	case b.Currency == "":
		return domain.Invalid("currency", "field is required")
	case b.Amount == nil:
		return domain.Invalid("amount", "field is required")
	}
	return nil
}

// handleGetBalance returns the balance of a subject in a currency.
func (r *Router) handleGetBalance(w http.ResponseWriter, req *http.Request) {
	id, err := subjectIDFrom(req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeResponse(w, r.services.Ledger.Balance(req.Context(), id, req.PathValue("currency")), http.StatusOK)
}

// handleSetBalance opens a balance row or overwrites its amount.
func (r *Router) handleSetBalance(w http.ResponseWriter, req *http.Request) {
	handler := middleware.ValidateJSON(func(w http.ResponseWriter, req *http.Request, body amountRequest) {
		id, err := subjectIDFrom(req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeResponse(w, r.services.Ledger.SetBalance(req.Context(), id, req.PathValue("currency"), *body.Amount), http.StatusOK)
	})

	handler.ServeHTTP(w, req)
}

// handleDeleteBalance removes a balance row.
func (r *Router) handleDeleteBalance(w http.ResponseWriter, req *http.Request) {
	id, err := subjectIDFrom(req)
	if err != nil {
		writeError(w, err)
		return
	}
	ns := domain.NamespaceOf(id, req.PathValue("currency"))
	writeResponse(w, r.services.Transactions.Delete(req.Context(), ns), http.StatusOK)
}

func (r *Router) handleWithdraw(w http.ResponseWriter, req *http.Request) {
	handler := middleware.ValidateJSON(func(w http.ResponseWriter, req *http.Request, body amountRequest) {
		id, err := subjectIDFrom(req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeResponse(w, r.services.Ledger.Withdraw(req.Context(), id, req.PathValue("currency"), *body.Amount), http.StatusOK)
	})

	handler.ServeHTTP(w, req)
}

func (r *Router) handleDeposit(w http.ResponseWriter, req *http.Request) {
	handler := middleware.ValidateJSON(func(w http.ResponseWriter, req *http.Request, body amountRequest) {
		id, err := subjectIDFrom(req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeResponse(w, r.services.Ledger.Deposit(req.Context(), id, req.PathValue("currency"), *body.Amount), http.StatusOK)
	})

	handler.ServeHTTP(w, req)
}

// handleEnoughMoney answers whether a balance covers ?amount=.
func (r *Router) handleEnoughMoney(w http.ResponseWriter, req *http.Request) {
	id, err := subjectIDFrom(req)
	if err != nil {
		writeError(w, err)
		return
	}
	// requireAmount already checked the parameter
	amount, _ := strconv.ParseFloat(req.URL.Query().Get("amount"), 64)

	writeResponse(w, r.services.Ledger.EnoughMoney(req.Context(), id, req.PathValue("currency"), amount), http.StatusOK)
}

// handleCurrenciesOf lists the currencies a subject holds.
func (r *Router) handleCurrenciesOf(w http.ResponseWriter, req *http.Request) {
	id, err := subjectIDFrom(req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeResponse(w, r.services.Ledger.CurrenciesOf(req.Context(), id), http.StatusOK)
}

func (r *Router) handleTransfer(w http.ResponseWriter, req *http.Request) {
	handler := middleware.ValidateJSON(func(w http.ResponseWriter, req *http.Request, body transferRequest) {
		res := r.services.Ledger.Transfer(req.Context(), body.From, body.To, body.Currency, *body.Amount)
		writeResponse(w, res, http.StatusOK)
	})

	handler.ServeHTTP(w, req)
}
