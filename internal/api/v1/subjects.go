package v1

import (
	"errors"
	"net/http"

	"github.com/sefa-b/game-economy/internal/api/middleware"
	"github.com/sefa-b/game-economy/internal/domain"
)

type subjectRequest struct {
	Nickname string `json:"nickname"`
}

func (subjectRequest) Validate() error { return nil }

// subjectChange is the PUT response: the stored subject and the nickname
// it replaced, if any.
type subjectChange struct {
	Subject          domain.Subject `json:"subject"`
	PreviousNickname string         `json:"previous_nickname,omitempty"`
}

func (r *Router) handleGetSubject(w http.ResponseWriter, req *http.Request) {
	id, err := subjectIDFrom(req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeResponse(w, r.services.Subjects.Get(req.Context(), id), http.StatusOK)
}

// handlePutSubject creates a subject or replaces its nickname.
func (r *Router) handlePutSubject(w http.ResponseWriter, req *http.Request) {
	handler := middleware.ValidateJSON(func(w http.ResponseWriter, req *http.Request, body subjectRequest) {
		ctx := req.Context()
		id, err := subjectIDFrom(req)
		if err != nil {
			writeError(w, err)
			return
		}

		status := http.StatusOK
		s, err := r.services.Subjects.Get(ctx, id).Unwrap()
		if errors.Is(err, domain.ErrNotFound) {
			s, err = domain.NewSubject(id, "")
			status = http.StatusCreated
		}
		if err != nil {
			writeError(w, err)
			return
		}

		prev := s.SwapNickname(body.Nickname)
		if res := r.services.Subjects.Set(ctx, s); res.IsError() {
			writeError(w, res.Cause)
			return
		}
		writeResponse(w, domain.OK(subjectChange{Subject: s, PreviousNickname: prev.OrElse("")}), status)
	})

	handler.ServeHTTP(w, req)
}

func (r *Router) handleDeleteSubject(w http.ResponseWriter, req *http.Request) {
	id, err := subjectIDFrom(req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeResponse(w, r.services.Subjects.Delete(req.Context(), id), http.StatusOK)
}
