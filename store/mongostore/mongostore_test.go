// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package mongostore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/danielhkuo/unionvote/models"
	"github.com/danielhkuo/unionvote/store"
)

// openTestStore connects to MONGO_URL, which must point at a replica set.
// Each test gets its own database, dropped on cleanup.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("MONGO_URL")
	if uri == "" {
		t.Skip("MONGO_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	database := fmt.Sprintf("unionvote_test_%d", time.Now().UnixNano())
	st, err := Open(ctx, uri, database)
	if err != nil {
		t.Fatalf("Failed to open mongo store: %v", err)
	}
	t.Cleanup(func() {
		st.client.Database(database).Drop(context.Background())
		st.Close()
	})
	return st
}

func seed(t *testing.T, st *Store) (*models.Election, *models.Candidate, []*models.User) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	voters := make([]*models.User, 3)
	for i := range voters {
		voters[i] = &models.User{
			ID:         fmt.Sprintf("u%d", i),
			Email:      fmt.Sprintf("u%d@union.test", i),
			NationalID: fmt.Sprintf("NID-%d", i),
			FullName:   "Member",
			Division:   "IT",
			Role:       models.RoleVoter,
			Active:     true,
			CreatedAt:  now,
		}
		if err := st.CreateUser(ctx, voters[i]); err != nil {
			t.Fatal(err)
		}
	}

	e := &models.Election{
		ID:            "e1",
		Title:         "Steward",
		StartDate:     now.Add(-time.Hour),
		EndDate:       now.Add(time.Hour),
		Status:        models.StatusActive,
		Division:      "IT",
		MaxCandidates: 5,
		CreatedBy:     "admin",
		CreatedAt:     now,
	}
	if err := st.CreateElection(ctx, e); err != nil {
		t.Fatal(err)
	}

	c := &models.Candidate{
		ID:           "c1",
		ElectionID:   e.ID,
		FullName:     "Alice",
		MembershipID: "M-1",
		Division:     "IT",
		Active:       true,
		CreatedAt:    now,
	}
	if err := st.CreateCandidate(ctx, c); err != nil {
		t.Fatal(err)
	}
	return e, c, voters
}

func TestMongoUsers(t *testing.T) {
	st := openTestStore(t)
	_, _, voters := seed(t, st)
	ctx := context.Background()

	dup := *voters[0]
	dup.ID = "other"
	if err := st.CreateUser(ctx, &dup); !errors.Is(err, store.ErrConflict) {
		t.Errorf("Expected ErrConflict for duplicate email, got %v", err)
	}
	if _, err := st.GetUser(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestMongoOTP(t *testing.T) {
	st := openTestStore(t)
	_, _, voters := seed(t, st)
	ctx := context.Background()
	now := time.Now().UTC()
	id := voters[0].ID
	const limit = 3

	if err := st.SaveOTP(ctx, &models.OTP{UserID: id, CodeHash: "right", ExpiresAt: now.Add(time.Minute)}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < limit; i++ {
		if err := st.ConsumeOTP(ctx, id, "wrong", now, limit); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("Guess %d: expected ErrNotFound, got %v", i+1, err)
		}
	}
	if err := st.ConsumeOTP(ctx, id, "right", now, limit); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected code discarded after %d wrong guesses, got %v", limit, err)
	}

	if err := st.SaveOTP(ctx, &models.OTP{UserID: id, CodeHash: "right", ExpiresAt: now.Add(time.Minute)}); err != nil {
		t.Fatal(err)
	}
	if err := st.ConsumeOTP(ctx, id, "right", now, limit); err != nil {
		t.Errorf("Expected fresh code to verify, got %v", err)
	}
}

func TestMongoRecordVote(t *testing.T) {
	st := openTestStore(t)
	e, c, voters := seed(t, st)
	ctx := context.Background()

	vote := func(id string, voter *models.User) error {
		return st.RecordVote(ctx, &models.Vote{
			ID:          id,
			VoterID:     voter.ID,
			ElectionID:  e.ID,
			CandidateID: c.ID,
			CastAt:      time.Now().UTC(),
			Verified:    true,
		})
	}

	if err := vote("v1", voters[0]); err != nil {
		t.Fatalf("RecordVote failed: %v", err)
	}
	if err := vote("v2", voters[0]); !errors.Is(err, store.ErrConflict) {
		t.Errorf("Expected ErrConflict for second vote, got %v", err)
	}

	// Concurrent attempts by another member
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := vote(fmt.Sprintf("race-%d", i), voters[1]); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	if succeeded != 1 {
		t.Errorf("Expected exactly one concurrent vote recorded, got %d", succeeded)
	}

	got, err := st.GetElection(ctx, e.ID)
	if err != nil {
		t.Fatal(err)
	}
	cand, err := st.GetCandidate(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.TotalVotes != 2 || cand.VoteCount != 2 {
		t.Errorf("Expected counters at 2, got total=%d candidate=%d", got.TotalVotes, cand.VoteCount)
	}

	report, err := st.Reconcile(ctx, e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if report.Changed {
		t.Errorf("Counters should already be consistent: %+v", report)
	}

	if err := st.DeleteElection(ctx, e.ID); !errors.Is(err, store.ErrConflict) {
		t.Errorf("Expected ErrConflict deleting election with votes, got %v", err)
	}
}
