// Package v1 provides version 1 of the HTTP API.
package v1

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/sefa-b/game-economy/internal/api/middleware"
	"github.com/sefa-b/game-economy/internal/domain"
	"github.com/sefa-b/game-economy/internal/service"
	"github.com/sefa-b/game-economy/internal/utils"
)

// Router holds the dependencies needed for v1 API routes.
type Router struct {
	services *service.Services
	metrics  *utils.MetricsCollector
}

// NewRouter creates a new v1 API router.
func NewRouter(services *service.Services, metrics *utils.MetricsCollector) *Router {
	return &Router{
		services: services,
		metrics:  metrics,
	}
}

// RegisterRoutes registers all v1 API routes on the provided mux.
func (r *Router) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/ping", r.handlePing)
	mux.HandleFunc("GET /api/v1/metrics", r.handleMetrics)

	// Balance routes
	mux.HandleFunc("GET /api/v1/subjects/{id}/balances/{currency}", r.handleGetBalance)
	mux.HandleFunc("PUT /api/v1/subjects/{id}/balances/{currency}", r.handleSetBalance)
	mux.HandleFunc("DELETE /api/v1/subjects/{id}/balances/{currency}", r.handleDeleteBalance)
	mux.HandleFunc("POST /api/v1/subjects/{id}/balances/{currency}/withdraw", r.handleWithdraw)
	mux.HandleFunc("POST /api/v1/subjects/{id}/balances/{currency}/deposit", r.handleDeposit)
	mux.Handle("GET /api/v1/subjects/{id}/balances/{currency}/enough",
		middleware.ValidateQueryParams(requireAmount)(http.HandlerFunc(r.handleEnoughMoney)))
	mux.HandleFunc("GET /api/v1/subjects/{id}/currencies", r.handleCurrenciesOf)
	mux.HandleFunc("POST /api/v1/transfers", r.handleTransfer)

	// Currency routes
	mux.HandleFunc("GET /api/v1/currencies", r.handleListCurrencies)
	mux.HandleFunc("GET /api/v1/currencies/{name}", r.handleGetCurrency)
	mux.HandleFunc("PUT /api/v1/currencies/{name}", r.handlePutCurrency)
	mux.HandleFunc("DELETE /api/v1/currencies/{name}", r.handleDeleteCurrency)
	mux.HandleFunc("GET /api/v1/currencies/{name}/subjects", r.handleSubjectsOf)

	// Subject routes
	mux.HandleFunc("GET /api/v1/subjects/{id}", r.handleGetSubject)
	mux.HandleFunc("PUT /api/v1/subjects/{id}", r.handlePutSubject)
	mux.HandleFunc("DELETE /api/v1/subjects/{id}", r.handleDeleteSubject)
}

// handlePing responds to ping requests for testing connectivity.
func (r *Router) handlePing(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, envelope{Status: domain.StatusOK.String(), Value: "pong"})
}

// handleMetrics returns the JSON metrics summary.
func (r *Router) handleMetrics(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, envelope{
		Status: domain.StatusOK.String(),
		Value: map[string]any{
			"application":      r.metrics.GetMetrics(),
			"circuit_breakers": utils.GetCircuitBreakerMetrics(),
		},
	})
}

// envelope is the JSON form of domain.Response.
type envelope struct {
	Status string `json:"status"`
	Value  any    `json:"value,omitempty"`
	Error  string `json:"error,omitempty"`
	Code   int    `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		utils.Error("failed to encode response", "error", err.Error())
	}
}

// statusFor maps a failure onto an HTTP status.
func statusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInsufficientFunds:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		utils.Error("request failed", "error", err.Error())
	}
	writeJSON(w, status, envelope{Status: domain.StatusError.String(), Error: err.Error(), Code: status})
}

// writeResponse renders res with okStatus on success. An OK response
// without a value renders without the value field.
func writeResponse[T any](w http.ResponseWriter, res domain.Response[T], okStatus int) {
	if res.IsError() {
		writeError(w, res.Cause)
		return
	}
	body := envelope{Status: domain.StatusOK.String()}
	if v, ok := res.Get(); ok {
		body.Value = v
	}
	writeJSON(w, okStatus, body)
}

func subjectIDFrom(req *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(req.PathValue("id"))
	if err != nil {
		return uuid.Nil, domain.Invalid("id", "not a subject id: %q", req.PathValue("id"))
	}
	return id, nil
}

func requireAmount(req *http.Request) []middleware.ValidationError {
	raw := req.URL.Query().Get("amount")
	if raw == "" {
		return []middleware.ValidationError{{Field: "amount", Message: "amount parameter is required"}}
	}
	if _, err := strconv.ParseFloat(raw, 64); err != nil {
		return []middleware.ValidationError{{Field: "amount", Message: "amount must be a number"}}
	}
	return nil
}
