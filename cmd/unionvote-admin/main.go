// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Command unionvote-admin runs maintenance tasks against the election store:
// schema setup, bootstrap administrator accounts and counter reconciliation.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/danielhkuo/unionvote/ballot"
	"github.com/danielhkuo/unionvote/cliparse"
	"github.com/danielhkuo/unionvote/members"
	"github.com/danielhkuo/unionvote/models"
	"github.com/danielhkuo/unionvote/store"
	"github.com/danielhkuo/unionvote/store/backend"
)

func main() {
	if err := cliparse.LoadEnv(); err != nil {
		slog.Error("Error loading .env", "error", err)
		os.Exit(1)
	}

	app := &cli.App{
		Name:  "unionvote-admin",
		Usage: "maintenance tasks for the unionvote election store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Aliases:  []string{"d"},
				Usage:    "database URL or DSN",
				EnvVars:  []string{"DATABASE_URL"},
				Required: true,
			},
			&cli.StringFlag{
				Name:    "database-type",
				Aliases: []string{"t"},
				Usage:   "sqlite, postgres or mongo",
				EnvVars: []string{"DATABASE_TYPE"},
				Value:   cliparse.DatabaseSQLite,
			},
			&cli.StringFlag{
				Name:    "mongo-db",
				Usage:   "MongoDB database name",
				EnvVars: []string{"MONGO_DATABASE"},
				Value:   "unionvote",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "create tables or indexes",
				Action: migrate,
			},
			{
				Name:   "create-admin",
				Usage:  "create an administrator account",
				Action: createAdmin,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "password", EnvVars: []string{"ADMIN_PASSWORD"}, Required: true},
					&cli.StringFlag{Name: "national-id", Required: true},
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "division", Value: "Operations"},
				},
			},
			{
				Name:   "reconcile",
				Usage:  "recount an election's counters from its vote log",
				Action: reconcile,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "election", Aliases: []string{"e"}, Required: true},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func openStore(c *cli.Context) (store.Store, error) {
	return backend.Open(c.Context, backend.Options{
		Type:          c.String("database-type"),
		URL:           c.String("database-url"),
		MongoDatabase: c.String("mongo-db"),
	})
}

// migrate relies on the stores creating their schema when opened
func migrate(c *cli.Context) error {
	st, err := openStore(c)
	if err != nil {
		return err
	}
	defer st.Close()

	fmt.Fprintf(c.App.Writer, "%s store is ready\n", c.String("database-type"))
	return nil
}

func createAdmin(c *cli.Context) error {
	st, err := openStore(c)
	if err != nil {
		return err
	}
	defer st.Close()

	// Token and OTP secrets are not needed to create an account
	svc := members.NewService(st, members.Config{}, members.LogSender{})
	u, err := svc.CreateAdmin(c.Context, models.RegisterRequest{
		Email:      c.String("email"),
		Password:   c.String("password"),
		NationalID: c.String("national-id"),
		FullName:   c.String("name"),
		Division:   c.String("division"),
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "created admin %s (%s)\n", u.Email, u.ID)
	return nil
}

func reconcile(c *cli.Context) error {
	st, err := openStore(c)
	if err != nil {
		return err
	}
	defer st.Close()

	report, err := ballot.NewService(st).Reconcile(c.Context, c.String("election"))
	if err != nil {
		return err
	}

	w := c.App.Writer
	if !report.Changed {
		fmt.Fprintf(w, "election %s: %s votes, counters consistent\n",
			report.ElectionID, humanize.Comma(int64(report.TotalVotesAfter)))
		return nil
	}

	fmt.Fprintf(w, "election %s: total %s -> %s\n", report.ElectionID,
		humanize.Comma(int64(report.TotalVotesBefore)), humanize.Comma(int64(report.TotalVotesAfter)))
	for _, cc := range report.Candidates {
		if cc.Before != cc.After {
			fmt.Fprintf(w, "  candidate %s: %s -> %s\n", cc.CandidateID,
				humanize.Comma(int64(cc.Before)), humanize.Comma(int64(cc.After)))
		}
	}
	return nil
}
