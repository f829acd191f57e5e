// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"strings"

	"github.com/danielhkuo/unionvote/auth"
	"github.com/danielhkuo/unionvote/ballot"
	"github.com/danielhkuo/unionvote/cliparse"
	"github.com/danielhkuo/unionvote/middleware"
	"github.com/danielhkuo/unionvote/models"
)

type VotingHandler struct {
	ballot *ballot.Service
	cfg    cliparse.Config
}

func NewVotingHandler(svc *ballot.Service, cfg cliparse.Config) *VotingHandler {
	return &VotingHandler{ballot: svc, cfg: cfg}
}

// SubmitVote handles POST /elections/{id}/vote
func (h *VotingHandler) SubmitVote(w http.ResponseWriter, r *http.Request) {
	electionID := r.PathValue("id")

	var req models.CastVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	req.CandidateID = strings.TrimSpace(req.CandidateID)
	if req.CandidateID == "" {
		middleware.CodedErrorResponse(w, http.StatusBadRequest, "INVALID_INPUT", "candidate_id is required")
		return
	}

	// Only a salted hash of the client IP is kept
	origin := ballot.Origin{
		IPHash:    auth.HashIP(middleware.GetClientIP(r), h.cfg.OTPSecret),
		UserAgent: r.UserAgent(),
	}

	receipt, err := h.ballot.SubmitVote(r.Context(), middleware.UserFrom(r.Context()), electionID, req.CandidateID, origin)
	if err != nil {
		middleware.DomainError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, receipt)
}
