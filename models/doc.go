// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Request Types

Types for parsing incoming JSON:

  - RegisterRequest: email, password, national_id, full_name, division
  - LoginRequest: email, password
  - VerifyOTPRequest: email, code
  - CreateElectionRequest: title, dates, division, max_candidates, secret_ballot
  - AddCandidateRequest: candidate profile
  - CastVoteRequest: candidate_id

# Response Types

  - TokenResponse: bearer token and expiry
  - ElectionDetail: election plus has_voted and can_vote
  - VoteReceipt: vote_id, timestamp
  - Results: ranked per-candidate vote share
  - AuditEntry: one vote of the audit trail
  - ReconcileReport: counters before and after a recount
  - ErrorResponse: error, code, message

# Domain Types

Persisted records carry both json and bson tags so the SQL and Mongo stores
share one shape:

  - User: member identity and eligibility (division, role, active)
  - Election: ballot event with date window and counters
  - Candidate: belongs to one election, carries a vote counter
  - Vote: append-only fact, unique per (voter, election)
  - OTP: outstanding one-time passcode hash

# Constants

Status values:

	StatusUpcoming  = "upcoming"
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"

Roles:

	RoleVoter = "voter"
	RoleAdmin = "admin"

Divisions are listed in Divisions; DivisionAll is only valid as an election
scope.
*/
package models
