// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danielhkuo/unionvote/auth"
	"github.com/danielhkuo/unionvote/cliparse"
	"github.com/danielhkuo/unionvote/models"
	"github.com/danielhkuo/unionvote/store"
	"github.com/danielhkuo/unionvote/store/sqlstore"
)

// TestPassword is the password of every fixture account
const TestPassword = "correct-horse"

var seq atomic.Int64

// SetupTestStore creates a fresh SQLite database with the full schema in a
// temporary directory. It is closed when the test ends.
func SetupTestStore(t *testing.T) *sqlstore.Store {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "unionvote.db")

	st, err := sqlstore.Open(context.Background(), sqlstore.SQLite, dsn)
	if err != nil {
		t.Fatalf("Failed to open test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	return st
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:         3318,
		DatabaseURL:  "file::memory:",
		DatabaseType: cliparse.DatabaseSQLite,
		JWTSecret:    "test-jwt-secret",
		OTPSecret:    "test-otp-secret",
		OTPTTL:       5 * time.Minute,
		TokenTTL:     time.Hour,
	}
}

// CreateTestUser stores an active member of division with the given role
func CreateTestUser(t *testing.T, st store.Store, division, role string) *models.User {
	t.Helper()

	n := seq.Add(1)
	id, _ := auth.GenerateID(16)
	hash, err := auth.HashPassword(TestPassword)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	u := &models.User{
		ID:           id,
		Email:        fmt.Sprintf("member%d@union.test", n),
		NationalID:   fmt.Sprintf("NID-%06d", n),
		FullName:     fmt.Sprintf("Member %d", n),
		PasswordHash: hash,
		Division:     division,
		Role:         role,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	}
	if err := st.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return u
}

// CreateTestElection stores an election open from start to end. The stored
// status reflects the window at creation time.
func CreateTestElection(t *testing.T, st store.Store, creator *models.User, division string, start, end time.Time) *models.Election {
	t.Helper()

	now := time.Now()
	status := models.StatusActive
	switch {
	case now.Before(start):
		status = models.StatusUpcoming
	case now.After(end):
		status = models.StatusCompleted
	}

	id, _ := auth.GenerateID(16)
	e := &models.Election{
		ID:            id,
		Title:         "Test Election",
		Description:   "A test election",
		StartDate:     start.UTC(),
		EndDate:       end.UTC(),
		Status:        status,
		Division:      division,
		MaxCandidates: 10,
		CreatedBy:     creator.ID,
		CreatedAt:     now.UTC(),
	}
	if err := st.CreateElection(context.Background(), e); err != nil {
		t.Fatalf("Failed to create test election: %v", err)
	}
	return e
}

// AddTestCandidate adds an active candidate and returns it
func AddTestCandidate(t *testing.T, st store.Store, electionID, name, division string) *models.Candidate {
	t.Helper()

	id, _ := auth.GenerateID(12)
	c := &models.Candidate{
		ID:           id,
		ElectionID:   electionID,
		FullName:     name,
		MembershipID: fmt.Sprintf("M-%06d", seq.Add(1)),
		Division:     division,
		Position:     "Steward",
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	}
	if err := st.CreateCandidate(context.Background(), c); err != nil {
		t.Fatalf("Failed to create test candidate: %v", err)
	}
	return c
}

// TokenFor issues a bearer token for u signed with cfg's secret
func TokenFor(t *testing.T, cfg cliparse.Config, u *models.User) string {
	t.Helper()

	token, _, err := auth.IssueToken(u, cfg.JWTSecret, time.Now(), cfg.TokenTTL)
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}
	return token
}

// BearerHeader returns request headers authenticating as u
func BearerHeader(t *testing.T, cfg cliparse.Config, u *models.User) map[string]string {
	t.Helper()
	return map[string]string{"Authorization": "Bearer " + TokenFor(t, cfg, u)}
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}

// AssertErrorCode checks the code field of a JSON error body
func AssertErrorCode(t *testing.T, w *httptest.ResponseRecorder, expected string) {
	t.Helper()
	var resp models.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode error response: %v (body: %s)", err, w.Body.String())
	}
	if resp.Code != expected {
		t.Errorf("Expected error code %s, got %s (message: %s)", expected, resp.Code, resp.Message)
	}
}
