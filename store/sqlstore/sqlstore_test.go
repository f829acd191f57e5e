// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package sqlstore_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/danielhkuo/unionvote/models"
	"github.com/danielhkuo/unionvote/store"
	"github.com/danielhkuo/unionvote/store/sqlstore"
	"github.com/danielhkuo/unionvote/testutil"
)

type fixture struct {
	st       *sqlstore.Store
	admin    *models.User
	election *models.Election
	alice    *models.Candidate
	bob      *models.Candidate
}

func setup(t *testing.T) *fixture {
	t.Helper()
	st := testutil.SetupTestStore(t)
	admin := testutil.CreateTestUser(t, st, "IT", models.RoleAdmin)
	now := time.Now()
	e := testutil.CreateTestElection(t, st, admin, "IT", now.Add(-time.Hour), now.Add(time.Hour))
	return &fixture{
		st:       st,
		admin:    admin,
		election: e,
		alice:    testutil.AddTestCandidate(t, st, e.ID, "Alice", "IT"),
		bob:      testutil.AddTestCandidate(t, st, e.ID, "Bob", "IT"),
	}
}

func (f *fixture) vote(t *testing.T, voter *models.User, candidateID string) error {
	t.Helper()
	return f.st.RecordVote(context.Background(), &models.Vote{
		ID:          fmt.Sprintf("v-%s-%s", voter.ID, f.election.ID),
		VoterID:     voter.ID,
		ElectionID:  f.election.ID,
		CandidateID: candidateID,
		CastAt:      time.Now(),
		Verified:    true,
	})
}

// counters returns the election total and per-candidate counts
func (f *fixture) counters(t *testing.T) (int, map[string]int) {
	t.Helper()
	ctx := context.Background()
	e, err := f.st.GetElection(ctx, f.election.ID)
	if err != nil {
		t.Fatal(err)
	}
	candidates, err := f.st.ListCandidates(ctx, f.election.ID, true)
	if err != nil {
		t.Fatal(err)
	}
	counts := map[string]int{}
	for _, c := range candidates {
		counts[c.ID] = c.VoteCount
	}
	return e.TotalVotes, counts
}

func TestUsers(t *testing.T) {
	st := testutil.SetupTestStore(t)
	ctx := context.Background()
	u := testutil.CreateTestUser(t, st, "Legal", models.RoleVoter)

	got, err := st.GetUserByEmail(ctx, u.Email)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != u.ID || got.NationalID != u.NationalID || !got.Active {
		t.Errorf("Unexpected user: %+v", got)
	}

	dup := *u
	dup.ID = "other"
	if err := st.CreateUser(ctx, &dup); !errors.Is(err, store.ErrConflict) {
		t.Errorf("Expected ErrConflict for duplicate email, got %v", err)
	}

	if _, err := st.GetUser(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	if err := st.SetUserActive(ctx, u.ID, false); err != nil {
		t.Fatal(err)
	}
	if got, _ := st.GetUser(ctx, u.ID); got.Active {
		t.Error("Expected user to be inactive")
	}
	if err := st.SetUserActive(ctx, "missing", false); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestOTP(t *testing.T) {
	st := testutil.SetupTestStore(t)
	ctx := context.Background()
	u := testutil.CreateTestUser(t, st, "Legal", models.RoleVoter)
	now := time.Now()

	save := func(hash string, expires time.Time) {
		t.Helper()
		if err := st.SaveOTP(ctx, &models.OTP{UserID: u.ID, CodeHash: hash, ExpiresAt: expires}); err != nil {
			t.Fatal(err)
		}
	}

	save("first", now.Add(time.Minute))
	save("second", now.Add(time.Minute))

	const limit = 3
	if err := st.ConsumeOTP(ctx, u.ID, "first", now, limit); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Replaced code should be gone, got %v", err)
	}
	if err := st.ConsumeOTP(ctx, u.ID, "second", now, limit); err != nil {
		t.Errorf("Expected code to verify, got %v", err)
	}
	if err := st.ConsumeOTP(ctx, u.ID, "second", now, limit); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Code must be single use, got %v", err)
	}

	save("late", now.Add(-time.Second))
	if err := st.ConsumeOTP(ctx, u.ID, "late", now, limit); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expired code should be rejected, got %v", err)
	}

	// Wrong guesses use up the code
	save("guarded", now.Add(time.Minute))
	for i := 0; i < limit; i++ {
		if err := st.ConsumeOTP(ctx, u.ID, "guess", now, limit); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("Guess %d: expected ErrNotFound, got %v", i+1, err)
		}
	}
	var remaining int
	if err := st.DB().QueryRow(`SELECT COUNT(*) FROM otp_code WHERE user_id = $1`, u.ID).Scan(&remaining); err != nil {
		t.Fatal(err)
	}
	if remaining != 0 {
		t.Errorf("Expected code discarded after %d wrong guesses, %d left", limit, remaining)
	}
	if err := st.ConsumeOTP(ctx, u.ID, "guarded", now, limit); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected locked out code to be rejected, got %v", err)
	}

	// Saving a new code resets the count
	save("fresh", now.Add(time.Minute))
	if err := st.ConsumeOTP(ctx, u.ID, "guess", now, limit); !errors.Is(err, store.ErrNotFound) {
		t.Fatal(err)
	}
	if err := st.ConsumeOTP(ctx, u.ID, "fresh", now, limit); err != nil {
		t.Errorf("Expected fresh code to verify, got %v", err)
	}
}

func TestRecordVote(t *testing.T) {
	f := setup(t)
	voter := testutil.CreateTestUser(t, f.st, "IT", models.RoleVoter)

	if err := f.vote(t, voter, f.alice.ID); err != nil {
		t.Fatalf("RecordVote failed: %v", err)
	}

	total, counts := f.counters(t)
	if total != 1 || counts[f.alice.ID] != 1 || counts[f.bob.ID] != 0 {
		t.Errorf("Unexpected counters: total=%d counts=%v", total, counts)
	}

	voted, err := f.st.HasVoted(context.Background(), voter.ID, f.election.ID)
	if err != nil || !voted {
		t.Errorf("Expected HasVoted true, got %v (%v)", voted, err)
	}
}

func TestRecordVote_Duplicate(t *testing.T) {
	f := setup(t)
	voter := testutil.CreateTestUser(t, f.st, "IT", models.RoleVoter)
	if err := f.vote(t, voter, f.alice.ID); err != nil {
		t.Fatal(err)
	}

	// Different vote ID, same voter and election
	err := f.st.RecordVote(context.Background(), &models.Vote{
		ID:          "second",
		VoterID:     voter.ID,
		ElectionID:  f.election.ID,
		CandidateID: f.bob.ID,
		CastAt:      time.Now(),
	})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("Expected ErrConflict, got %v", err)
	}

	total, counts := f.counters(t)
	if total != 1 || counts[f.bob.ID] != 0 {
		t.Errorf("Rejected vote changed counters: total=%d counts=%v", total, counts)
	}
}

func TestRecordVote_InactiveCandidateRollsBack(t *testing.T) {
	f := setup(t)
	if err := f.st.DeactivateCandidate(context.Background(), f.bob.ID); err != nil {
		t.Fatal(err)
	}
	voter := testutil.CreateTestUser(t, f.st, "IT", models.RoleVoter)

	if err := f.vote(t, voter, f.bob.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	n, err := f.st.CountVotes(context.Background(), f.election.ID)
	if err != nil {
		t.Fatal(err)
	}
	total, _ := f.counters(t)
	if n != 0 || total != 0 {
		t.Errorf("Expected nothing applied, got %d votes and total %d", n, total)
	}
}

func TestRecordVote_ConcurrentSameVoter(t *testing.T) {
	f := setup(t)
	voter := testutil.CreateTestUser(t, f.st, "IT", models.RoleVoter)

	const attempts = 10
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.st.RecordVote(context.Background(), &models.Vote{
				ID:          fmt.Sprintf("attempt-%d", i),
				VoterID:     voter.ID,
				ElectionID:  f.election.ID,
				CandidateID: f.alice.ID,
				CastAt:      time.Now(),
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case !errors.Is(err, store.ErrConflict):
			t.Errorf("Unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("Expected exactly one vote recorded, got %d", succeeded)
	}

	total, counts := f.counters(t)
	if total != 1 || counts[f.alice.ID] != 1 {
		t.Errorf("Unexpected counters: total=%d counts=%v", total, counts)
	}
}

func TestUpdateElectionStatus(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	if err := f.st.UpdateElectionStatus(ctx, f.election.ID, models.StatusCancelled); err != nil {
		t.Fatal(err)
	}
	if err := f.st.UpdateElectionStatus(ctx, f.election.ID, models.StatusCompleted); err != nil {
		t.Fatal(err)
	}

	e, err := f.st.GetElection(ctx, f.election.ID)
	if err != nil {
		t.Fatal(err)
	}
	if e.Status != models.StatusCancelled {
		t.Errorf("Cancelled status was overwritten with %s", e.Status)
	}
}

func TestListElections(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	now := time.Now()
	testutil.CreateTestElection(t, f.st, f.admin, models.DivisionAll, now.Add(-2*time.Hour), now)
	testutil.CreateTestElection(t, f.st, f.admin, "Sales", now, now.Add(time.Hour))

	tests := []struct {
		division string
		expected int
	}{
		{"IT", 2},
		{"Sales", 2},
		{"Legal", 1},
		{"", 3},
	}
	for _, tt := range tests {
		got, err := f.st.ListElections(ctx, tt.division)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != tt.expected {
			t.Errorf("division %q: expected %d elections, got %d", tt.division, tt.expected, len(got))
		}
	}

	all, _ := f.st.ListElections(ctx, "")
	for i := 1; i < len(all); i++ {
		if all[i].StartDate.Before(all[i-1].StartDate) {
			t.Errorf("Elections not ordered by start date: %v", all)
		}
	}
}

func TestDeactivateCandidate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	voter := testutil.CreateTestUser(t, f.st, "IT", models.RoleVoter)
	if err := f.vote(t, voter, f.alice.ID); err != nil {
		t.Fatal(err)
	}

	if err := f.st.DeactivateCandidate(ctx, f.alice.ID); !errors.Is(err, store.ErrConflict) {
		t.Errorf("Expected ErrConflict for candidate with votes, got %v", err)
	}
	if err := f.st.DeactivateCandidate(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := f.st.DeactivateCandidate(ctx, f.bob.ID); err != nil {
		t.Fatal(err)
	}

	active, _ := f.st.ListCandidates(ctx, f.election.ID, false)
	all, _ := f.st.ListCandidates(ctx, f.election.ID, true)
	if len(active) != 1 || len(all) != 2 {
		t.Errorf("Expected 1 active of 2, got %d of %d", len(active), len(all))
	}
}

func TestDeleteElection(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	voter := testutil.CreateTestUser(t, f.st, "IT", models.RoleVoter)
	if err := f.vote(t, voter, f.alice.ID); err != nil {
		t.Fatal(err)
	}

	if err := f.st.DeleteElection(ctx, f.election.ID); !errors.Is(err, store.ErrConflict) {
		t.Errorf("Expected ErrConflict with votes, got %v", err)
	}

	now := time.Now()
	empty := testutil.CreateTestElection(t, f.st, f.admin, "IT", now.Add(time.Hour), now.Add(2*time.Hour))
	c := testutil.AddTestCandidate(t, f.st, empty.ID, "Carol", "IT")
	if err := f.st.DeleteElection(ctx, empty.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.st.GetCandidate(ctx, c.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected candidates removed with election, got %v", err)
	}
	if err := f.st.DeleteElection(ctx, empty.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestReconcile(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := f.vote(t, testutil.CreateTestUser(t, f.st, "IT", models.RoleVoter), f.alice.ID); err != nil {
			t.Fatal(err)
		}
	}

	report, err := f.st.Reconcile(ctx, f.election.ID)
	if err != nil {
		t.Fatal(err)
	}
	if report.Changed || report.TotalVotesAfter != 3 {
		t.Errorf("Expected consistent counters, got %+v", report)
	}

	if _, err := f.st.DB().Exec(`UPDATE candidate SET vote_count = 7 WHERE id = $1`, f.alice.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.st.DB().Exec(`UPDATE election SET total_votes = 1 WHERE id = $1`, f.election.ID); err != nil {
		t.Fatal(err)
	}

	report, err = f.st.Reconcile(ctx, f.election.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !report.Changed || report.TotalVotesBefore != 1 || report.TotalVotesAfter != 3 {
		t.Errorf("Unexpected report: %+v", report)
	}

	total, counts := f.counters(t)
	if total != 3 || counts[f.alice.ID] != 3 || counts[f.bob.ID] != 0 {
		t.Errorf("Counters not repaired: total=%d counts=%v", total, counts)
	}

	if _, err := f.st.Reconcile(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestUnavailable(t *testing.T) {
	f := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.st.GetElection(ctx, f.election.ID); !errors.Is(err, store.ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable for cancelled context, got %v", err)
	}
}

func TestOpen_RejectsUnknownDriver(t *testing.T) {
	if _, err := sqlstore.Open(context.Background(), "mysql", "x"); err == nil {
		t.Error("Expected error for unsupported driver")
	}
}

func TestOpen_SQLitePragmas(t *testing.T) {
	testCases := []struct {
		name        string
		query       string
		busyTimeout int
	}{
		{"defaults", "", 5000},
		{"caller override kept", "?_pragma=busy_timeout(250)", 250},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dsn := "file:" + filepath.Join(t.TempDir(), "plain.db") + tc.query
			st, err := sqlstore.Open(context.Background(), sqlstore.SQLite, dsn)
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			defer st.Close()

			var foreignKeys, busyTimeout int
			if err := st.DB().QueryRow(`PRAGMA foreign_keys`).Scan(&foreignKeys); err != nil {
				t.Fatal(err)
			}
			if err := st.DB().QueryRow(`PRAGMA busy_timeout`).Scan(&busyTimeout); err != nil {
				t.Fatal(err)
			}
			if foreignKeys != 1 {
				t.Errorf("Expected foreign keys enforced, got %d", foreignKeys)
			}
			if busyTimeout != tc.busyTimeout {
				t.Errorf("Expected busy timeout %d, got %d", tc.busyTimeout, busyTimeout)
			}
		})
	}
}
