// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/dustin/go-humanize"

	"github.com/danielhkuo/unionvote/ballot"
	"github.com/danielhkuo/unionvote/middleware"
	"github.com/danielhkuo/unionvote/models"
)

type ElectionHandler struct {
	ballot *ballot.Service
}

func NewElectionHandler(svc *ballot.Service) *ElectionHandler {
	return &ElectionHandler{ballot: svc}
}

// ListElections handles GET /elections
func (h *ElectionHandler) ListElections(w http.ResponseWriter, r *http.Request) {
	elections, err := h.ballot.ListElections(r.Context(), middleware.UserFrom(r.Context()))
	if err != nil {
		middleware.DomainError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, elections)
}

// GetElection handles GET /elections/{id}
func (h *ElectionHandler) GetElection(w http.ResponseWriter, r *http.Request) {
	detail, err := h.ballot.GetElection(r.Context(), middleware.UserFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		middleware.DomainError(w, err)
		return
	}

	now := h.ballot.Now()
	switch detail.Election.Status {
	case models.StatusUpcoming:
		detail.OpensIn = humanize.RelTime(detail.Election.StartDate, now, "ago", "from now")
		detail.ClosesIn = humanize.RelTime(detail.Election.EndDate, now, "ago", "from now")
	case models.StatusActive:
		detail.ClosesIn = humanize.RelTime(detail.Election.EndDate, now, "ago", "from now")
	}

	middleware.JSONResponse(w, http.StatusOK, detail)
}

// ListCandidates handles GET /elections/{id}/candidates
func (h *ElectionHandler) ListCandidates(w http.ResponseWriter, r *http.Request) {
	candidates, err := h.ballot.ListCandidates(r.Context(), middleware.UserFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		middleware.DomainError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, candidates)
}
