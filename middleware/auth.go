// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielhkuo/unionvote/auth"
	"github.com/danielhkuo/unionvote/ballot"
	"github.com/danielhkuo/unionvote/members"
	"github.com/danielhkuo/unionvote/models"
)

// Authenticator resolves a bearer token to a member
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

type userKey struct{}

// UserFrom returns the member attached by RequireMember, or nil
func UserFrom(ctx context.Context) *models.User {
	u, _ := ctx.Value(userKey{}).(*models.User)
	return u
}

// WithUser attaches a member to ctx
func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// RequireMember rejects requests without a valid bearer token for an active
// account
func RequireMember(a Authenticator, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			CodedErrorResponse(w, http.StatusUnauthorized, "UNAUTHORIZED", "Bearer token required")
			return
		}

		u, err := a.Authenticate(r.Context(), token)
		if err != nil {
			DomainError(w, err)
			return
		}

		next(w, r.WithContext(WithUser(r.Context(), u)))
	}
}

// RequireAdmin is RequireMember restricted to administrators
func RequireAdmin(a Authenticator, next http.HandlerFunc) http.HandlerFunc {
	return RequireMember(a, func(w http.ResponseWriter, r *http.Request) {
		if UserFrom(r.Context()).Role != models.RoleAdmin {
			CodedErrorResponse(w, http.StatusForbidden, "FORBIDDEN", "Administrator role required")
			return
		}
		next(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// DomainError writes the response for an error returned by the ballot or
// members services. Unexpected errors are logged and reported without
// details.
func DomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidToken):
		CodedErrorResponse(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired token")
		return
	case errors.Is(err, members.ErrInvalidCredentials):
		CodedErrorResponse(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", err.Error())
		return
	case errors.Is(err, members.ErrAccountInactive):
		CodedErrorResponse(w, http.StatusForbidden, "ACCOUNT_INACTIVE", err.Error())
		return
	case errors.Is(err, members.ErrAccountExists):
		CodedErrorResponse(w, http.StatusConflict, "ACCOUNT_EXISTS", err.Error())
		return
	}

	kind, ok := ballot.KindOf(err)
	if !ok {
		slog.Error("unexpected error", "error", err)
		CodedErrorResponse(w, kind.Status, kind.Code, "Internal error")
		return
	}

	if ballot.Retryable(err) {
		slog.Warn("store unavailable", "error", err)
		w.Header().Set("Retry-After", "1")
		CodedErrorResponse(w, kind.Status, kind.Code, "Service temporarily unavailable, retry later")
		return
	}

	CodedErrorResponse(w, kind.Status, kind.Code, err.Error())
}
