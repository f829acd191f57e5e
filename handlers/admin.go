// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/danielhkuo/unionvote/ballot"
	"github.com/danielhkuo/unionvote/members"
	"github.com/danielhkuo/unionvote/middleware"
	"github.com/danielhkuo/unionvote/models"
)

// AdminHandler serves the /admin routes. Callers are already verified as
// administrators by middleware.RequireAdmin.
type AdminHandler struct {
	ballot  *ballot.Service
	members *members.Service
}

func NewAdminHandler(svc *ballot.Service, m *members.Service) *AdminHandler {
	return &AdminHandler{ballot: svc, members: m}
}

// ListElections handles GET /admin/elections
func (h *AdminHandler) ListElections(w http.ResponseWriter, r *http.Request) {
	elections, err := h.ballot.ListElections(r.Context(), middleware.UserFrom(r.Context()))
	if err != nil {
		middleware.DomainError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, elections)
}

// CreateElection handles POST /admin/elections
func (h *AdminHandler) CreateElection(w http.ResponseWriter, r *http.Request) {
	var req models.CreateElectionRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	e, err := h.ballot.CreateElection(r.Context(), middleware.UserFrom(r.Context()), req)
	if err != nil {
		middleware.DomainError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, e)
}

// AddCandidate handles POST /admin/elections/{id}/candidates
func (h *AdminHandler) AddCandidate(w http.ResponseWriter, r *http.Request) {
	var req models.AddCandidateRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	c, err := h.ballot.AddCandidate(r.Context(), r.PathValue("id"), req)
	if err != nil {
		middleware.DomainError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, c)
}

// CancelElection handles POST /admin/elections/{id}/cancel
func (h *AdminHandler) CancelElection(w http.ResponseWriter, r *http.Request) {
	e, err := h.ballot.CancelElection(r.Context(), r.PathValue("id"))
	if err != nil {
		middleware.DomainError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, e)
}

// DeleteElection handles DELETE /admin/elections/{id}
func (h *AdminHandler) DeleteElection(w http.ResponseWriter, r *http.Request) {
	if err := h.ballot.DeleteElection(r.Context(), r.PathValue("id")); err != nil {
		middleware.DomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListVotes handles GET /admin/elections/{id}/votes
func (h *AdminHandler) ListVotes(w http.ResponseWriter, r *http.Request) {
	entries, err := h.ballot.AuditVotes(r.Context(), r.PathValue("id"))
	if err != nil {
		middleware.DomainError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, entries)
}

// Reconcile handles POST /admin/elections/{id}/reconcile
func (h *AdminHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.ballot.Reconcile(r.Context(), r.PathValue("id"))
	if err != nil {
		middleware.DomainError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, report)
}

// DeactivateCandidate handles DELETE /admin/candidates/{id}
func (h *AdminHandler) DeactivateCandidate(w http.ResponseWriter, r *http.Request) {
	if err := h.ballot.DeactivateCandidate(r.Context(), r.PathValue("id")); err != nil {
		middleware.DomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeactivateUser handles POST /admin/users/{id}/deactivate
func (h *AdminHandler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	if err := h.members.Deactivate(r.Context(), r.PathValue("id")); err != nil {
		middleware.DomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
