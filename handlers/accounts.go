// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/danielhkuo/unionvote/members"
	"github.com/danielhkuo/unionvote/middleware"
	"github.com/danielhkuo/unionvote/models"
)

type AccountHandler struct {
	members *members.Service
}

func NewAccountHandler(m *members.Service) *AccountHandler {
	return &AccountHandler{members: m}
}

// Register handles POST /auth/register
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	u, err := h.members.Register(r.Context(), req)
	if err != nil {
		middleware.DomainError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, models.RegisterResponse{UserID: u.ID})
}

// Login handles POST /auth/login. A correct password only starts the login;
// the token is issued by VerifyOTP.
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	expiresAt, err := h.members.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		middleware.DomainError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.LoginResponse{
		OTPRequired:  true,
		OTPExpiresAt: expiresAt,
	})
}

// VerifyOTP handles POST /auth/verify-otp
func (h *AccountHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyOTPRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Code == "" {
		middleware.CodedErrorResponse(w, http.StatusBadRequest, "INVALID_INPUT", "code is required")
		return
	}

	tok, err := h.members.VerifyOTP(r.Context(), req.Email, req.Code)
	if err != nil {
		middleware.DomainError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, tok)
}

// Me handles GET /auth/me
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	middleware.JSONResponse(w, http.StatusOK, middleware.UserFrom(r.Context()))
}
