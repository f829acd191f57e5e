// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/danielhkuo/unionvote/ballot"
	"github.com/danielhkuo/unionvote/middleware"
)

type ResultsHandler struct {
	ballot *ballot.Service
}

func NewResultsHandler(svc *ballot.Service) *ResultsHandler {
	return &ResultsHandler{ballot: svc}
}

// GetResults handles GET /elections/{id}/results
// Results are sealed until the election window has closed
func (h *ResultsHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.ballot.Results(r.Context(), middleware.UserFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		middleware.DomainError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, results)
}
