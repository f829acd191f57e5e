// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

Wrap handlers with request logging:

	mux.HandleFunc("GET /health", middleware.WithLogging(handler))

Logs request start (method, path, remote) and completion (status,
duration_ms).

# Authentication

RequireMember checks the Authorization: Bearer header with an
Authenticator and stores the member in the request context:

	mux.HandleFunc("GET /elections", middleware.RequireMember(accounts, h.ListElections))

	func (h *Handler) ListElections(w http.ResponseWriter, r *http.Request) {
		member := middleware.UserFrom(r.Context())
		// ...
	}

RequireAdmin additionally requires the admin role (403 otherwise).

# CORS Middleware

Enable cross-origin requests for frontend access:

	server := http.Server{
		Handler: middleware.CORS(mux),
	}

Allows methods GET, POST, PUT, DELETE, OPTIONS with headers
Content-Type and Authorization.

# JSON Helpers

Write JSON responses:

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "message")

DomainError maps service errors to status codes and the code field of the
error body. Store outages become 503 with a Retry-After header; anything
unrecognized is logged and reported as a bare 500.

	if err != nil {
		middleware.DomainError(w, err)
		return
	}

# Client IP Extraction

Get the original client IP (handles X-Forwarded-For, X-Real-IP):

	ip := middleware.GetClientIP(r)

The IP is hashed before it is stored with a vote.
*/
package middleware
