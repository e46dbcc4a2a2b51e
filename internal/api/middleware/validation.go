package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/sefa-b/game-economy/internal/domain"
)

// Validator interface for types that can validate themselves.
type Validator interface {
	Validate() error
}

// ValidationError represents a field validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResponse is the ERROR envelope for rejected requests.
type ValidationResponse struct {
	Status string            `json:"status"`
	Error  string            `json:"error"`
	Code   int               `json:"code"`
	Errors []ValidationError `json:"errors"`
}

// ValidateJSON creates middleware that validates JSON request bodies.
// T must implement the Validator interface.
func ValidateJSON[T Validator](next func(w http.ResponseWriter, r *http.Request, body T)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType := r.Header.Get("Content-Type")
		if !strings.Contains(contentType, "application/json") {
			writeValidationError(w, []ValidationError{
				{Field: "content-type", Message: "Content-Type must be application/json"},
			})
			return
		}

		var body T
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()

		if err := decoder.Decode(&body); err != nil {
			var validationErrors []ValidationError

			switch {
			case strings.Contains(err.Error(), "unknown field"):
				validationErrors = append(validationErrors, ValidationError{
					Field:   extractFieldFromError(err.Error()),
					Message: "unknown field",
				})
			case strings.Contains(err.Error(), "invalid character"):
				validationErrors = append(validationErrors, ValidationError{
					Field:   "json",
					Message: "invalid JSON format",
				})
			case strings.Contains(err.Error(), "EOF"):
				validationErrors = append(validationErrors, ValidationError{
					Field:   "body",
					Message: "request body is required",
				})
			default:
				validationErrors = append(validationErrors, ValidationError{
					Field:   "json",
					Message: "failed to parse JSON: " + err.Error(),
				})
			}

			writeValidationError(w, validationErrors)
			return
		}

		if err := body.Validate(); err != nil {
			writeValidationError(w, parseValidationError(err))
			return
		}

		next(w, r, body)
	})
}

// ValidateQueryParams creates middleware that validates query parameters.
func ValidateQueryParams(validator func(*http.Request) []ValidationError) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if errs := validator(r); len(errs) > 0 {
				writeValidationError(w, errs)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// parseValidationError converts "field: message" errors, with or without
// the domain validation prefix, into a ValidationError.
func parseValidationError(err error) []ValidationError {
	msg := err.Error()
	if errors.Is(err, domain.ErrValidation) {
		msg = strings.TrimPrefix(msg, domain.ErrValidation.Error()+": ")
	}

	field, message, ok := strings.Cut(msg, ":")
	if !ok {
		return []ValidationError{{Field: "general", Message: msg}}
	}
	return []ValidationError{{Field: strings.TrimSpace(field), Message: strings.TrimSpace(message)}}
}

// extractFieldFromError extracts field name from JSON unknown field error.
func extractFieldFromError(errorMsg string) string {
	// Example: "json: unknown field \"invalidField\""
	start := strings.Index(errorMsg, `"`)
	if start != -1 {
		end := strings.Index(errorMsg[start+1:], `"`)
		if end != -1 {
			return errorMsg[start+1 : start+1+end]
		}
	}
	return "unknown"
}

// writeValidationError writes a 422 Unprocessable Entity response with validation errors.
func writeValidationError(w http.ResponseWriter, errs []ValidationError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnprocessableEntity)

	_ = json.NewEncoder(w).Encode(ValidationResponse{
		Status: domain.StatusError.String(),
		Error:  "validation failed",
		Code:   http.StatusUnprocessableEntity,
		Errors: errs,
	})
}
