// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the unionvote API.

# Handler Types

Each handler is a struct over the services it needs:

  - AccountHandler: registration, password + OTP login, current member
  - ElectionHandler: election listing, detail and candidates
  - VotingHandler: ballot submission
  - ResultsHandler: results of completed elections
  - AdminHandler: election management, audit and reconciliation

Handlers decode the request, call one service method and encode the
result. Authentication happens earlier in middleware.RequireMember; the
caller is read with middleware.UserFrom.

# Election Lifecycle

Elections move through upcoming → active → completed by their date window.
The stored status is refreshed on every read and never trusted for voting
decisions. Cancelled is terminal.

	POST /admin/elections                 → CreateElection
	POST /admin/elections/{id}/candidates → AddCandidate (upcoming only)
	POST /admin/elections/{id}/cancel     → CancelElection

# Voting Flow

	POST /auth/login      → Login (sends a one-time code)
	POST /auth/verify-otp → VerifyOTP (returns bearer token)
	POST /elections/{id}/vote → SubmitVote

A member votes at most once per election. A second attempt returns 409 with
code DUPLICATE_VOTE; a store outage returns 503 with Retry-After so clients
can tell the two apart.

# Errors

All service errors go through middleware.DomainError, which sets the status
and the code field of the JSON error body.
*/
package handlers
