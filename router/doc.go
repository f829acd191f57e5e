// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the unionvote API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(st, cfg)

NewRouterWithServices accepts prebuilt services, for example a members
service with a real OTP sender.

# Endpoints

Health:

	GET /health

Accounts (public, except /auth/me):

	POST /auth/register   - Create a voter account
	POST /auth/login      - Check password, send login code
	POST /auth/verify-otp - Exchange login code for a bearer token
	GET  /auth/me         - Current member

Members (Authorization: Bearer):

	GET  /elections                - Elections for the member's division
	GET  /elections/{id}           - Election with voting state
	GET  /elections/{id}/candidates - Active candidates
	POST /elections/{id}/vote      - Cast a vote
	GET  /elections/{id}/results   - Results (completed only)

Administration (bearer token with admin role):

	GET    /admin/elections                - All elections
	POST   /admin/elections                - Create election
	POST   /admin/elections/{id}/candidates - Add candidate
	POST   /admin/elections/{id}/cancel    - Cancel election
	DELETE /admin/elections/{id}           - Delete election without votes
	GET    /admin/elections/{id}/votes     - Vote audit trail
	POST   /admin/elections/{id}/reconcile - Recount counters
	DELETE /admin/candidates/{id}          - Deactivate candidate
	POST   /admin/users/{id}/deactivate    - Deactivate account

Every route except /health and / is wrapped in middleware.WithLogging.
*/
package router
