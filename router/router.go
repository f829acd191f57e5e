// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"log/slog"
	"net/http"

	"github.com/danielhkuo/unionvote/ballot"
	"github.com/danielhkuo/unionvote/cliparse"
	"github.com/danielhkuo/unionvote/handlers"
	"github.com/danielhkuo/unionvote/members"
	"github.com/danielhkuo/unionvote/middleware"
	"github.com/danielhkuo/unionvote/store"
)

// MembersConfig extracts the account settings from cfg
func MembersConfig(cfg cliparse.Config) members.Config {
	return members.Config{
		JWTSecret: cfg.JWTSecret,
		OTPSecret: cfg.OTPSecret,
		OTPTTL:    cfg.OTPTTL,
		TokenTTL:  cfg.TokenTTL,
	}
}

// NewRouter wires the services on st with the default OTP sender
func NewRouter(st store.Store, cfg cliparse.Config) *http.ServeMux {
	slog.Warn("login codes are written to the log; configure a delivery gateway before production use")
	return NewRouterWithServices(
		ballot.NewService(st),
		members.NewService(st, MembersConfig(cfg), members.LogSender{}),
		cfg,
	)
}

func NewRouterWithServices(svc *ballot.Service, accounts *members.Service, cfg cliparse.Config) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	accountHandler := handlers.NewAccountHandler(accounts)
	electionHandler := handlers.NewElectionHandler(svc)
	votingHandler := handlers.NewVotingHandler(svc, cfg)
	resultsHandler := handlers.NewResultsHandler(svc)
	adminHandler := handlers.NewAdminHandler(svc, accounts)

	member := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.WithLogging(middleware.RequireMember(accounts, h))
	}
	admin := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.WithLogging(middleware.RequireAdmin(accounts, h))
	}

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Accounts (public, except /auth/me)
	mux.HandleFunc("POST /auth/register", middleware.WithLogging(accountHandler.Register))
	mux.HandleFunc("POST /auth/login", middleware.WithLogging(accountHandler.Login))
	mux.HandleFunc("POST /auth/verify-otp", middleware.WithLogging(accountHandler.VerifyOTP))
	mux.HandleFunc("GET /auth/me", member(accountHandler.Me))

	// Member operations
	mux.HandleFunc("GET /elections", member(electionHandler.ListElections))
	mux.HandleFunc("GET /elections/{id}", member(electionHandler.GetElection))
	mux.HandleFunc("GET /elections/{id}/candidates", member(electionHandler.ListCandidates))
	mux.HandleFunc("POST /elections/{id}/vote", member(votingHandler.SubmitVote))
	mux.HandleFunc("GET /elections/{id}/results", member(resultsHandler.GetResults))

	// Administration
	mux.HandleFunc("GET /admin/elections", admin(adminHandler.ListElections))
	mux.HandleFunc("POST /admin/elections", admin(adminHandler.CreateElection))
	mux.HandleFunc("POST /admin/elections/{id}/candidates", admin(adminHandler.AddCandidate))
	mux.HandleFunc("POST /admin/elections/{id}/cancel", admin(adminHandler.CancelElection))
	mux.HandleFunc("DELETE /admin/elections/{id}", admin(adminHandler.DeleteElection))
	mux.HandleFunc("GET /admin/elections/{id}/votes", admin(adminHandler.ListVotes))
	mux.HandleFunc("POST /admin/elections/{id}/reconcile", admin(adminHandler.Reconcile))
	mux.HandleFunc("DELETE /admin/candidates/{id}", admin(adminHandler.DeactivateCandidate))
	mux.HandleFunc("POST /admin/users/{id}/deactivate", admin(adminHandler.DeactivateUser))

	// Root endpoint
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("unionvote API v1"))
	})

	return mux
}
