// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package store defines the entity store contract shared by the SQL and Mongo
backends.

Implementations live in subpackages:

  - sqlstore: PostgreSQL (lib/pq) and SQLite (modernc.org/sqlite)
  - mongostore: MongoDB
  - backend: opens one of the above from a database type

Errors are reported through three sentinels, wrapped with context:

	errors.Is(err, store.ErrNotFound)
	errors.Is(err, store.ErrConflict)
	errors.Is(err, store.ErrUnavailable)

The one-vote-per-election guarantee is a storage constraint. RecordVote must
fail with ErrConflict for a second (voter, election) pair no matter how many
processes race on it.
*/
package store
