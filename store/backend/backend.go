// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package backend opens the store implementation named by a database type.
package backend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/danielhkuo/unionvote/cliparse"
	"github.com/danielhkuo/unionvote/store"
	"github.com/danielhkuo/unionvote/store/mongostore"
	"github.com/danielhkuo/unionvote/store/sqlstore"
)

// connectTimeout bounds the initial connect, ping and schema setup
const connectTimeout = 15 * time.Second

// Options selects and addresses a store
type Options struct {
	Type          string // cliparse.DatabaseSQLite, DatabasePostgres or DatabaseMongo
	URL           string
	MongoDatabase string
}

// FromConfig extracts store options from the server configuration
func FromConfig(cfg cliparse.Config) Options {
	return Options{
		Type:          cfg.DatabaseType,
		URL:           cfg.DatabaseURL,
		MongoDatabase: cfg.MongoDatabase,
	}
}

// Open connects to the configured store and prepares its schema or indexes
func Open(ctx context.Context, opts Options) (store.Store, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	var (
		st  store.Store
		err error
	)
	switch opts.Type {
	case cliparse.DatabaseSQLite:
		st, err = sqlstore.Open(ctx, sqlstore.SQLite, opts.URL)
	case cliparse.DatabasePostgres:
		st, err = sqlstore.Open(ctx, sqlstore.Postgres, opts.URL)
	case cliparse.DatabaseMongo:
		if opts.MongoDatabase == "" {
			opts.MongoDatabase = "unionvote"
		}
		st, err = mongostore.Open(ctx, opts.URL, opts.MongoDatabase)
	default:
		return nil, fmt.Errorf("unsupported database type %q", opts.Type)
	}
	if err != nil {
		return nil, err
	}

	slog.Info("store ready", "type", opts.Type)
	return st, nil
}
