// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles SQL schema creation.

# Schema Creation

CreateSchema initializes all required tables:

	if err := db.CreateSchema(ctx, conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.
The same DDL runs on PostgreSQL and SQLite.

# Tables

  - member: identity, division, role, active flag
  - otp_code: one outstanding passcode hash per member and its wrong-guess count
  - election: date window, status, division scope, total_votes counter
  - candidate: per-election candidates with vote_count counter
  - vote: append-only ballots, one per (voter_id, election_id)

# Relationships

	election 1──* candidate   (ON DELETE CASCADE)
	election 1──* vote        (ON DELETE RESTRICT)
	candidate 1──* vote       (ON DELETE RESTRICT)
	member 1──* vote
	member 1──1 otp_code

An election with votes cannot be deleted.
*/
package db
