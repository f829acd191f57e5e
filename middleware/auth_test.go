// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielhkuo/unionvote/auth"
	"github.com/danielhkuo/unionvote/ballot"
	"github.com/danielhkuo/unionvote/members"
	"github.com/danielhkuo/unionvote/models"
)

type fakeAuth map[string]*models.User

func (f fakeAuth) Authenticate(ctx context.Context, token string) (*models.User, error) {
	u, ok := f[token]
	if !ok {
		return nil, fmt.Errorf("%w: unknown", auth.ErrInvalidToken)
	}
	if !u.Active {
		return nil, members.ErrAccountInactive
	}
	return u, nil
}

func TestRequireMember(t *testing.T) {
	authn := fakeAuth{
		"voter-token":    {ID: "u1", Role: models.RoleVoter, Division: "IT", Active: true},
		"inactive-token": {ID: "u2", Role: models.RoleVoter, Division: "IT", Active: false},
	}

	var seen *models.User
	handler := RequireMember(authn, func(w http.ResponseWriter, r *http.Request) {
		seen = UserFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	testCases := []struct {
		name         string
		header       string
		expectedCode int
	}{
		{"valid token", "Bearer voter-token", http.StatusOK},
		{"lowercase scheme", "bearer voter-token", http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic voter-token", http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"unknown token", "Bearer nope", http.StatusUnauthorized},
		{"inactive account", "Bearer inactive-token", http.StatusForbidden},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest("GET", "/elections", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()

			handler(w, req)

			if w.Code != tc.expectedCode {
				t.Errorf("Expected status %d, got %d. Body: %s", tc.expectedCode, w.Code, w.Body.String())
			}
			if tc.expectedCode == http.StatusOK && (seen == nil || seen.ID != "u1") {
				t.Errorf("Expected user u1 in context, got %+v", seen)
			}
			if tc.expectedCode != http.StatusOK && seen != nil {
				t.Error("Handler should not run for rejected requests")
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	authn := fakeAuth{
		"voter": {ID: "u1", Role: models.RoleVoter, Active: true},
		"admin": {ID: "a1", Role: models.RoleAdmin, Active: true},
	}
	handler := RequireAdmin(authn, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	for token, expected := range map[string]int{
		"voter": http.StatusForbidden,
		"admin": http.StatusNoContent,
	} {
		req := httptest.NewRequest("GET", "/admin/elections", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()

		handler(w, req)

		if w.Code != expected {
			t.Errorf("%s: expected status %d, got %d", token, expected, w.Code)
		}
	}
}

func TestDomainError(t *testing.T) {
	testCases := []struct {
		name         string
		err          error
		expectedCode int
		expectedBody string
		retryAfter   bool
	}{
		{"not found", fmt.Errorf("election x: %w", ballot.ErrNotFound), http.StatusNotFound, "NOT_FOUND", false},
		{"not eligible", ballot.ErrNotEligible, http.StatusForbidden, "NOT_ELIGIBLE", false},
		{"invalid candidate", ballot.ErrInvalidCandidate, http.StatusBadRequest, "INVALID_CANDIDATE", false},
		{"duplicate vote", fmt.Errorf("wrapped: %w", ballot.ErrDuplicateVote), http.StatusConflict, "DUPLICATE_VOTE", false},
		{"results not available", ballot.ErrResultsNotAvailable, http.StatusForbidden, "RESULTS_NOT_AVAILABLE", false},
		{"store unavailable", fmt.Errorf("%w: dial tcp", ballot.ErrStoreUnavailable), http.StatusServiceUnavailable, "STORE_UNAVAILABLE", true},
		{"invalid input", ballot.ErrInvalidInput, http.StatusBadRequest, "INVALID_INPUT", false},
		{"conflict", ballot.ErrConflict, http.StatusConflict, "CONFLICT", false},
		{"invalid token", auth.ErrInvalidToken, http.StatusUnauthorized, "UNAUTHORIZED", false},
		{"invalid credentials", members.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS", false},
		{"account exists", members.ErrAccountExists, http.StatusConflict, "ACCOUNT_EXISTS", false},
		{"account inactive", members.ErrAccountInactive, http.StatusForbidden, "ACCOUNT_INACTIVE", false},
		{"unexpected", errors.New("boom: secret detail"), http.StatusInternalServerError, "INTERNAL", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			DomainError(w, tc.err)

			if w.Code != tc.expectedCode {
				t.Errorf("Expected status %d, got %d", tc.expectedCode, w.Code)
			}
			if got := w.Header().Get("Retry-After") != ""; got != tc.retryAfter {
				t.Errorf("Retry-After present = %v, want %v", got, tc.retryAfter)
			}

			var resp models.ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("Failed to decode error response: %v", err)
			}
			if resp.Code != tc.expectedBody {
				t.Errorf("Expected code %s, got %s", tc.expectedBody, resp.Code)
			}
			if tc.expectedCode == http.StatusInternalServerError && resp.Message != "Internal error" {
				t.Errorf("Internal details leaked: %q", resp.Message)
			}
		})
	}
}
