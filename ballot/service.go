// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ballot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/unionvote/auth"
	"github.com/danielhkuo/unionvote/models"
	"github.com/danielhkuo/unionvote/store"
)

// Service runs the election lifecycle, ballot submission and results
// aggregation on top of a store. It holds no mutable state of its own and is
// safe for concurrent use.
type Service struct {
	store store.Store
	now   func() time.Time
}

type Option func(*Service)

// WithClock overrides the wall clock, for tests
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(st store.Store, opts ...Option) *Service {
	s := &Service{store: st, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the service clock
func (s *Service) Now() time.Time {
	return s.now()
}

// Origin is the audit metadata attached to a vote
type Origin struct {
	IPHash    string
	UserAgent string
}

// refresh derives the election's status and persists it when it changed.
// The stored value is advisory, so a failed write is logged and the derived
// status is still returned.
func (s *Service) refresh(ctx context.Context, e *models.Election, now time.Time) string {
	status := DeriveStatus(e, now)
	if status != e.Status {
		if err := s.store.UpdateElectionStatus(ctx, e.ID, status); err != nil {
			slog.Warn("failed to persist election status", "election_id", e.ID, "status", status, "error", err)
		}
		e.Status = status
	}
	return status
}

func (s *Service) loadElection(ctx context.Context, id string) (*models.Election, error) {
	e, err := s.store.GetElection(ctx, id)
	if err != nil {
		return nil, fromStore(err, ErrNotFound, ErrConflict)
	}
	s.refresh(ctx, e, s.now())
	return e, nil
}

// visibleElection loads an election the member is allowed to see. Elections
// of other divisions are reported as not found.
func (s *Service) visibleElection(ctx context.Context, member *models.User, id string) (*models.Election, error) {
	e, err := s.loadElection(ctx, id)
	if err != nil {
		return nil, err
	}
	if member.Role != models.RoleAdmin && !CanSee(e, member.Division) {
		return nil, fmt.Errorf("election %s: %w", id, ErrNotFound)
	}
	return e, nil
}

// ListElections returns the elections visible to member with fresh status.
// Admins see every election.
func (s *Service) ListElections(ctx context.Context, member *models.User) ([]models.Election, error) {
	division := member.Division
	if member.Role == models.RoleAdmin {
		division = ""
	}

	elections, err := s.store.ListElections(ctx, division)
	if err != nil {
		return nil, fromStore(err, ErrNotFound, ErrConflict)
	}
	now := s.now()
	for i := range elections {
		s.refresh(ctx, &elections[i], now)
	}
	return elections, nil
}

// GetElection returns one election with fresh status plus the member's
// voting state
func (s *Service) GetElection(ctx context.Context, member *models.User, id string) (*models.ElectionDetail, error) {
	e, err := s.visibleElection(ctx, member, id)
	if err != nil {
		return nil, err
	}

	hasVoted, err := s.store.HasVoted(ctx, member.ID, e.ID)
	if err != nil {
		return nil, fromStore(err, ErrNotFound, ErrConflict)
	}

	return &models.ElectionDetail{
		Election: *e,
		HasVoted: hasVoted,
		CanVote:  !hasVoted && member.Active && e.Status == models.StatusActive && CanSee(e, member.Division),
	}, nil
}

// ListCandidates returns the active candidates of an election in creation
// order
func (s *Service) ListCandidates(ctx context.Context, member *models.User, electionID string) ([]models.Candidate, error) {
	e, err := s.visibleElection(ctx, member, electionID)
	if err != nil {
		return nil, err
	}

	candidates, err := s.store.ListCandidates(ctx, e.ID, false)
	if err != nil {
		return nil, fromStore(err, ErrNotFound, ErrConflict)
	}
	return candidates, nil
}

// SubmitVote records voter's choice of candidateID in electionID. At most one
// vote per voter and election is ever recorded; later attempts fail with
// ErrDuplicateVote and leave every counter untouched.
func (s *Service) SubmitVote(ctx context.Context, voter *models.User, electionID, candidateID string, origin Origin) (*models.VoteReceipt, error) {
	e, err := s.store.GetElection(ctx, electionID)
	if err != nil {
		return nil, fromStore(err, ErrNotFound, ErrConflict)
	}

	// One clock reading decides both the persisted status and eligibility
	now := s.now()
	s.refresh(ctx, e, now)
	if !voter.Active || !CanVote(e, voter.Division, now) {
		return nil, fmt.Errorf("election %s (%s, %s) for %s member: %w",
			e.ID, e.Status, e.Division, voter.Division, ErrNotEligible)
	}

	c, err := s.store.GetCandidate(ctx, candidateID)
	if err != nil {
		return nil, fromStore(err, ErrInvalidCandidate, ErrConflict)
	}
	if !c.Active || c.ElectionID != e.ID {
		return nil, fmt.Errorf("candidate %s: %w", candidateID, ErrInvalidCandidate)
	}

	vote := &models.Vote{
		ID:          uuid.NewString(),
		VoterID:     voter.ID,
		ElectionID:  e.ID,
		CandidateID: c.ID,
		CastAt:      now.UTC(),
		IPHash:      origin.IPHash,
		UserAgent:   origin.UserAgent,
		Verified:    true, // bearer tokens are only issued after OTP verification
	}

	// A concurrent deactivation surfaces as not found inside the transaction
	if err := s.store.RecordVote(ctx, vote); err != nil {
		err = fromStore(err, ErrInvalidCandidate, ErrDuplicateVote)
		slog.Info("vote rejected", "election_id", e.ID, "voter_id", voter.ID, "error", err)
		return nil, err
	}

	slog.Info("vote recorded", "election_id", e.ID, "vote_id", vote.ID)

	return &models.VoteReceipt{VoteID: vote.ID, Timestamp: vote.CastAt}, nil
}

// Results computes per-candidate vote share. Only completed elections have
// results; counters are checked against the vote log first and repaired if
// they drifted.
func (s *Service) Results(ctx context.Context, member *models.User, electionID string) (*models.Results, error) {
	e, err := s.visibleElection(ctx, member, electionID)
	if err != nil {
		return nil, err
	}

	status := e.Status
	if status != models.StatusCompleted {
		return nil, fmt.Errorf("election %s is %s: %w", e.ID, status, ErrResultsNotAvailable)
	}

	candidates, err := s.store.ListCandidates(ctx, e.ID, false)
	if err != nil {
		return nil, fromStore(err, ErrNotFound, ErrConflict)
	}

	consistent, err := s.countersConsistent(ctx, e, candidates)
	if err != nil {
		return nil, err
	}
	if !consistent {
		slog.Warn("vote counters drifted, reconciling", "election_id", e.ID)
		if _, err := s.store.Reconcile(ctx, e.ID); err != nil {
			return nil, fromStore(err, ErrNotFound, ErrConflict)
		}
		if e, err = s.store.GetElection(ctx, e.ID); err != nil {
			return nil, fromStore(err, ErrNotFound, ErrConflict)
		}
		if candidates, err = s.store.ListCandidates(ctx, e.ID, false); err != nil {
			return nil, fromStore(err, ErrNotFound, ErrConflict)
		}
	}

	results := ComputeResults(e, status, candidates)
	return &results, nil
}

// countersConsistent checks sum(candidate counts) == total votes == vote log
// size
func (s *Service) countersConsistent(ctx context.Context, e *models.Election, candidates []models.Candidate) (bool, error) {
	sum := 0
	for _, c := range candidates {
		sum += c.VoteCount
	}
	if sum != e.TotalVotes {
		return false, nil
	}

	logged, err := s.store.CountVotes(ctx, e.ID)
	if err != nil {
		return false, fromStore(err, ErrNotFound, ErrConflict)
	}
	return logged == e.TotalVotes, nil
}

// Administration

// CreateElection validates and stores a new election owned by creator
func (s *Service) CreateElection(ctx context.Context, creator *models.User, req models.CreateElectionRequest) (*models.Election, error) {
	req.Title = strings.TrimSpace(req.Title)
	switch {
	case req.Title == "":
		return nil, fmt.Errorf("title is required: %w", ErrInvalidInput)
	case req.StartDate.IsZero() || req.EndDate.IsZero():
		return nil, fmt.Errorf("start_date and end_date are required: %w", ErrInvalidInput)
	case !req.EndDate.After(req.StartDate):
		return nil, fmt.Errorf("end_date must be after start_date: %w", ErrInvalidInput)
	case req.Division != models.DivisionAll && !models.IsDivision(req.Division):
		return nil, fmt.Errorf("unknown division %q: %w", req.Division, ErrInvalidInput)
	case req.MaxCandidates < 1:
		return nil, fmt.Errorf("max_candidates must be at least 1: %w", ErrInvalidInput)
	}

	id, err := auth.GenerateID(16)
	if err != nil {
		return nil, err
	}

	now := s.now()
	e := &models.Election{
		ID:            id,
		Title:         req.Title,
		Description:   req.Description,
		StartDate:     req.StartDate.UTC(),
		EndDate:       req.EndDate.UTC(),
		Division:      req.Division,
		MaxCandidates: req.MaxCandidates,
		SecretBallot:  req.SecretBallot,
		CreatedBy:     creator.ID,
		CreatedAt:     now.UTC(),
	}
	e.Status = DeriveStatus(e, now)

	if err := s.store.CreateElection(ctx, e); err != nil {
		return nil, fromStore(err, ErrNotFound, ErrConflict)
	}

	slog.Info("election created", "election_id", e.ID, "division", e.Division, "creator", creator.ID)
	return e, nil
}

// AddCandidate adds a candidate to an upcoming election
func (s *Service) AddCandidate(ctx context.Context, electionID string, req models.AddCandidateRequest) (*models.Candidate, error) {
	e, err := s.loadElection(ctx, electionID)
	if err != nil {
		return nil, err
	}
	if e.Status != models.StatusUpcoming {
		return nil, fmt.Errorf("election %s is %s, candidates can only be added before it starts: %w", e.ID, e.Status, ErrConflict)
	}

	req.FullName = strings.TrimSpace(req.FullName)
	req.MembershipID = strings.TrimSpace(req.MembershipID)
	if req.Division == "" && e.Division != models.DivisionAll {
		req.Division = e.Division
	}
	switch {
	case req.FullName == "":
		return nil, fmt.Errorf("full_name is required: %w", ErrInvalidInput)
	case req.MembershipID == "":
		return nil, fmt.Errorf("membership_id is required: %w", ErrInvalidInput)
	case !models.IsDivision(req.Division):
		return nil, fmt.Errorf("unknown division %q: %w", req.Division, ErrInvalidInput)
	case e.Division != models.DivisionAll && req.Division != e.Division:
		return nil, fmt.Errorf("candidate division %s does not match election division %s: %w", req.Division, e.Division, ErrInvalidInput)
	}

	existing, err := s.store.ListCandidates(ctx, e.ID, false)
	if err != nil {
		return nil, fromStore(err, ErrNotFound, ErrConflict)
	}
	if len(existing) >= e.MaxCandidates {
		return nil, fmt.Errorf("election %s already has %d candidates: %w", e.ID, len(existing), ErrConflict)
	}
	for _, c := range existing {
		if c.MembershipID == req.MembershipID {
			return nil, fmt.Errorf("member %s is already a candidate: %w", req.MembershipID, ErrConflict)
		}
	}

	id, err := auth.GenerateID(12)
	if err != nil {
		return nil, err
	}
	c := &models.Candidate{
		ID:           id,
		ElectionID:   e.ID,
		FullName:     req.FullName,
		MembershipID: req.MembershipID,
		Division:     req.Division,
		Position:     req.Position,
		Manifesto:    req.Manifesto,
		Experience:   req.Experience,
		Active:       true,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.CreateCandidate(ctx, c); err != nil {
		return nil, fromStore(err, ErrNotFound, ErrConflict)
	}

	slog.Info("candidate added", "election_id", e.ID, "candidate_id", c.ID)
	return c, nil
}

// DeactivateCandidate soft-deletes a candidate that has not received votes
func (s *Service) DeactivateCandidate(ctx context.Context, candidateID string) error {
	if err := s.store.DeactivateCandidate(ctx, candidateID); err != nil {
		return fromStore(err, ErrNotFound, ErrConflict)
	}
	slog.Info("candidate deactivated", "candidate_id", candidateID)
	return nil
}

// CancelElection moves an upcoming or active election to the terminal
// cancelled status. Cancelling twice is a no-op.
func (s *Service) CancelElection(ctx context.Context, electionID string) (*models.Election, error) {
	e, err := s.loadElection(ctx, electionID)
	if err != nil {
		return nil, err
	}
	switch e.Status {
	case models.StatusCancelled:
		return e, nil
	case models.StatusCompleted:
		return nil, fmt.Errorf("election %s is completed: %w", e.ID, ErrConflict)
	}

	if err := s.store.UpdateElectionStatus(ctx, e.ID, models.StatusCancelled); err != nil {
		return nil, fromStore(err, ErrNotFound, ErrConflict)
	}
	e.Status = models.StatusCancelled

	slog.Info("election cancelled", "election_id", e.ID)
	return e, nil
}

// DeleteElection removes an election that no vote references
func (s *Service) DeleteElection(ctx context.Context, electionID string) error {
	if err := s.store.DeleteElection(ctx, electionID); err != nil {
		return fromStore(err, ErrNotFound, ErrConflict)
	}
	slog.Info("election deleted", "election_id", electionID)
	return nil
}

// AuditVotes lists an election's votes. Candidate choices are withheld for
// secret ballots.
func (s *Service) AuditVotes(ctx context.Context, electionID string) ([]models.AuditEntry, error) {
	e, err := s.loadElection(ctx, electionID)
	if err != nil {
		return nil, err
	}

	votes, err := s.store.ListVotes(ctx, e.ID)
	if err != nil {
		return nil, fromStore(err, ErrNotFound, ErrConflict)
	}

	entries := make([]models.AuditEntry, 0, len(votes))
	for _, v := range votes {
		entry := models.AuditEntry{
			VoteID:    v.ID,
			VoterID:   v.VoterID,
			CastAt:    v.CastAt,
			IPHash:    v.IPHash,
			UserAgent: v.UserAgent,
			Verified:  v.Verified,
		}
		if !e.SecretBallot {
			entry.CandidateID = v.CandidateID
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Reconcile recounts an election's counters from its vote log
func (s *Service) Reconcile(ctx context.Context, electionID string) (*models.ReconcileReport, error) {
	report, err := s.store.Reconcile(ctx, electionID)
	if err != nil {
		return nil, fromStore(err, ErrNotFound, ErrConflict)
	}
	if report.Changed {
		slog.Warn("vote counters repaired", "election_id", electionID,
			"total_before", report.TotalVotesBefore, "total_after", report.TotalVotesAfter)
	}
	return report, nil
}
