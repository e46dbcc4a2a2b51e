package v1

import (
	"errors"
	"net/http"
	"unicode/utf8"

	"github.com/sefa-b/game-economy/internal/api/middleware"
	"github.com/sefa-b/game-economy/internal/domain"
)

// currencyRequest replaces the descriptive fields of a currency. Omitted
// fields are left unchanged; an empty string clears the field.
type currencyRequest struct {
	DisplayName  *string `json:"display_name"`
	PluralName   *string `json:"plural_name"`
	Abbreviation *string `json:"abbreviation"`
	Symbol       *string `json:"symbol"`
}

func (b currencyRequest) Validate() error {
	if b.Symbol != nil && utf8.RuneCountInString(*b.Symbol) > 1 {
		return domain.Invalid("symbol", "must be a single character")
	}
	return nil
}

// currencyChange is the PUT response: the stored currency and the values
// it replaced.
type currencyChange struct {
	Currency domain.Currency   `json:"currency"`
	Previous map[string]string `json:"previous,omitempty"`
}

func (r *Router) handleListCurrencies(w http.ResponseWriter, req *http.Request) {
	writeResponse(w, r.services.Currencies.GetAll(req.Context()), http.StatusOK)
}

func (r *Router) handleGetCurrency(w http.ResponseWriter, req *http.Request) {
	writeResponse(w, r.services.Currencies.Get(req.Context(), req.PathValue("name")), http.StatusOK)
}

// handlePutCurrency creates a currency or updates its descriptive fields.
func (r *Router) handlePutCurrency(w http.ResponseWriter, req *http.Request) {
	handler := middleware.ValidateJSON(func(w http.ResponseWriter, req *http.Request, body currencyRequest) {
		ctx := req.Context()
		name := req.PathValue("name")

		status := http.StatusOK
		c, err := r.services.Currencies.Get(ctx, name).Unwrap()
		if errors.Is(err, domain.ErrNotFound) {
			c, err = domain.NewCurrency(name)
			status = http.StatusCreated
		}
		if err != nil {
			writeError(w, err)
			return
		}

		previous := map[string]string{}
		keep := func(field string, res domain.Response[string]) {
			if v, ok := res.Get(); ok {
				previous[field] = v
			}
		}
		if body.DisplayName != nil {
			keep("display_name", c.SwapDisplayName(*body.DisplayName))
		}
		if body.PluralName != nil {
			keep("plural_name", c.SwapPluralName(*body.PluralName))
		}
		if body.Abbreviation != nil {
			res := c.SwapAbbreviation(*body.Abbreviation)
			if res.IsError() {
				writeError(w, res.Cause)
				return
			}
			keep("abbreviation", res)
		}
		if body.Symbol != nil {
			if prev, ok := c.SwapSymbol(domain.ParseSymbol(*body.Symbol)).Get(); ok {
				previous["symbol"] = domain.SymbolString(prev)
			}
		}

		if res := r.services.Currencies.Set(ctx, c); res.IsError() {
			writeError(w, res.Cause)
			return
		}
		writeResponse(w, domain.OK(currencyChange{Currency: c, Previous: previous}), status)
	})

	handler.ServeHTTP(w, req)
}

func (r *Router) handleDeleteCurrency(w http.ResponseWriter, req *http.Request) {
	writeResponse(w, r.services.Currencies.Delete(req.Context(), req.PathValue("name")), http.StatusOK)
}

// handleSubjectsOf lists the subjects holding a currency.
func (r *Router) handleSubjectsOf(w http.ResponseWriter, req *http.Request) {
	writeResponse(w, r.services.Ledger.SubjectsOf(req.Context(), req.PathValue("name")), http.StatusOK)
}
