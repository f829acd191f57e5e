// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/danielhkuo/unionvote/ballot"
	"github.com/danielhkuo/unionvote/cliparse"
	"github.com/danielhkuo/unionvote/members"
	"github.com/danielhkuo/unionvote/middleware"
	"github.com/danielhkuo/unionvote/models"
	"github.com/danielhkuo/unionvote/store/sqlstore"
	"github.com/danielhkuo/unionvote/testutil"
)

// codeSender keeps the last login code per email
type codeSender struct {
	mu    sync.Mutex
	codes map[string]string
}

func (s *codeSender) SendOTP(ctx context.Context, u *models.User, code string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.codes == nil {
		s.codes = map[string]string{}
	}
	s.codes[u.Email] = code
	return nil
}

func (s *codeSender) last(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[email]
}

type testEnv struct {
	st       *sqlstore.Store
	cfg      cliparse.Config
	ballot   *ballot.Service
	accounts *members.Service
	sender   *codeSender
	admin    *models.User
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		st:     testutil.SetupTestStore(t),
		cfg:    testutil.GetTestConfig(),
		sender: &codeSender{},
	}
	env.ballot = ballot.NewService(env.st)
	env.accounts = members.NewService(env.st, members.Config{
		JWTSecret: env.cfg.JWTSecret,
		OTPSecret: env.cfg.OTPSecret,
		OTPTTL:    env.cfg.OTPTTL,
		TokenTTL:  env.cfg.TokenTTL,
	}, env.sender)
	env.admin = testutil.CreateTestUser(t, env.st, "IT", models.RoleAdmin)
	return env
}

// activeElection creates an election of division that is open now
func (env *testEnv) activeElection(t *testing.T, division string) *models.Election {
	t.Helper()
	now := time.Now()
	return testutil.CreateTestElection(t, env.st, env.admin, division, now.Add(-time.Hour), now.Add(time.Hour))
}

// completedElection creates an election whose window has closed
func (env *testEnv) completedElection(t *testing.T, division string) *models.Election {
	t.Helper()
	now := time.Now()
	return testutil.CreateTestElection(t, env.st, env.admin, division, now.Add(-2*time.Hour), now.Add(-time.Hour))
}

// as attaches u to the request the way RequireMember does
func as(r *http.Request, u *models.User) *http.Request {
	return r.WithContext(middleware.WithUser(r.Context(), u))
}
