// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"errors"
	"time"

	"github.com/danielhkuo/unionvote/models"
)

var (
	// ErrNotFound is returned when a record does not exist, or when a
	// conditional write matched nothing.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned on unique-constraint violations and on writes
	// refused because other records depend on the target.
	ErrConflict = errors.New("conflicting record")

	// ErrUnavailable wraps connection failures and timeouts. Callers may retry.
	ErrUnavailable = errors.New("store unavailable")
)

// Store is the durable entity store. Implementations must enforce uniqueness
// of (voter, election) for votes and of email and national ID for users at
// the storage layer.
type Store interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	SetUserActive(ctx context.Context, id string, active bool) error

	// SaveOTP replaces any outstanding code for the user.
	SaveOTP(ctx context.Context, otp *models.OTP) error
	// ConsumeOTP deletes the user's code if it matches codeHash, has not
	// expired at now and has seen fewer than maxAttempts wrong guesses.
	// Returns ErrNotFound otherwise. A wrong guess is counted against the
	// outstanding code, which is discarded once maxAttempts is reached.
	ConsumeOTP(ctx context.Context, userID, codeHash string, now time.Time, maxAttempts int) error

	CreateElection(ctx context.Context, e *models.Election) error
	GetElection(ctx context.Context, id string) (*models.Election, error)
	// ListElections returns elections scoped to division or to
	// models.DivisionAll, ordered by start date. An empty division returns
	// every election.
	ListElections(ctx context.Context, division string) ([]models.Election, error)
	// UpdateElectionStatus writes status unless the stored status is
	// cancelled. It is a no-op when the value is unchanged.
	UpdateElectionStatus(ctx context.Context, id, status string) error
	// DeleteElection removes an election and its candidates. Returns
	// ErrConflict while votes reference it.
	DeleteElection(ctx context.Context, id string) error

	CreateCandidate(ctx context.Context, c *models.Candidate) error
	GetCandidate(ctx context.Context, id string) (*models.Candidate, error)
	// ListCandidates returns an election's candidates in creation order.
	ListCandidates(ctx context.Context, electionID string, includeInactive bool) ([]models.Candidate, error)
	// DeactivateCandidate soft-deletes a candidate. Returns ErrConflict once
	// the candidate has votes.
	DeactivateCandidate(ctx context.Context, id string) error

	// RecordVote inserts the vote and increments the candidate and election
	// counters as one atomic unit. Returns ErrConflict if the voter already
	// voted in the election and ErrNotFound if the candidate is no longer an
	// active candidate of the election. Nothing is applied on error.
	RecordVote(ctx context.Context, v *models.Vote) error
	HasVoted(ctx context.Context, voterID, electionID string) (bool, error)
	CountVotes(ctx context.Context, electionID string) (int, error)
	// ListVotes returns an election's votes ordered by cast time.
	ListVotes(ctx context.Context, electionID string) ([]models.Vote, error)
	// Reconcile recomputes candidate and election counters from the vote log.
	Reconcile(ctx context.Context, electionID string) (*models.ReconcileReport, error)

	Close() error
}
