// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the unionvote API server.

unionvote runs division-scoped union elections: members register, log in
with a password plus a one-time code, and cast exactly one ballot per
election while it is open. Results are sealed until the election completes.

# Starting the Server

The server reads a .env file if present, then environment variables or CLI
flags:

	JWT_SECRET=... OTP_SECRET=... DATABASE_URL=file:unionvote.db go run .

Or with flags:

	go run . -p 3318 -t postgres -d "postgres://..." -jwt-secret ... -otp-secret ...

# Configuration

Required settings:

  - DATABASE_URL (-d): SQLite DSN, PostgreSQL connection string or MongoDB URI
  - JWT_SECRET (-jwt-secret): bearer token signing secret
  - OTP_SECRET (-otp-secret): secret for login code and IP hashing

Optional settings:

  - PORT (-p): Server port (default: 3318)
  - DATABASE_TYPE (-t): sqlite, postgres or mongo (default: sqlite)
  - MONGO_DATABASE (-mongo-db): MongoDB database name (default: unionvote)
  - OTP_TTL (-otp-ttl): login code lifetime (default: 5m)
  - TOKEN_TTL (-token-ttl): bearer token lifetime (default: 12h)
  - LOG_LEVEL (-log-level): debug, info, warn or error (default: info)

# Architecture

  - handlers: HTTP request handlers (accounts, elections, voting, results, admin)
  - router: Route definitions using Go 1.22+ routing
  - middleware: CORS, logging, JSON helpers, bearer authentication
  - ballot: election lifecycle, vote submission and results
  - members: registration, two-step login and token authentication
  - store: storage interface with SQL (store/sqlstore) and MongoDB (store/mongostore) backends
  - auth: IDs, password and code hashing, tokens
  - db: SQL schema
  - cliparse: Configuration parsing

Maintenance tasks live in cmd/unionvote-admin.
*/
package main
