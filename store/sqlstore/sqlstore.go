// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/danielhkuo/unionvote/db"
	"github.com/danielhkuo/unionvote/models"
	"github.com/danielhkuo/unionvote/store"
)

// Supported database types
const (
	Postgres = "postgres"
	SQLite   = "sqlite"
)

// Store implements store.Store on database/sql
type Store struct {
	db     *sql.DB
	driver string
}

var _ store.Store = (*Store)(nil)

// Open connects to the database, verifies the connection and creates the
// schema. driver is Postgres or SQLite.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	if driver != Postgres && driver != SQLite {
		return nil, fmt.Errorf("unsupported database type %q", driver)
	}

	if driver == SQLite {
		dsn = sqliteDSN(dsn)
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == SQLite {
		// SQLite allows one writer; a single connection turns lock
		// contention into queueing in the pool.
		conn.SetMaxOpenConns(1)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, classify(fmt.Errorf("database ping failed: %w", err))
	}

	if err := db.CreateSchema(ctx, conn); err != nil {
		conn.Close()
		return nil, err
	}

	return New(conn, driver), nil
}

// sqlitePragmas are applied to every SQLite connection unless the DSN sets
// them already. Foreign keys are off by default in SQLite.
var sqlitePragmas = []string{"foreign_keys(1)", "busy_timeout(5000)"}

func sqliteDSN(dsn string) string {
	for _, p := range sqlitePragmas {
		name, _, _ := strings.Cut(p, "(")
		if strings.Contains(dsn, "_pragma="+name) {
			continue
		}
		sep := "&"
		if !strings.Contains(dsn, "?") {
			sep = "?"
		}
		dsn += sep + "_pragma=" + p
	}
	return dsn
}

// New wraps an existing connection. The schema must already exist.
func New(conn *sql.DB, driver string) *Store {
	return &Store{db: conn, driver: driver}
}

// DB exposes the underlying connection for tests and maintenance
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

// forUpdate returns the row-locking clause for the current driver. SQLite
// serializes writers already.
func (s *Store) forUpdate() string {
	if s.driver == Postgres {
		return " FOR UPDATE"
	}
	return ""
}

type scanner interface {
	Scan(dest ...any) error
}

// Users

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO member (id, email, national_id, full_name, password_hash, division, role, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, u.ID, u.Email, u.NationalID, u.FullName, u.PasswordHash, u.Division, u.Role, u.Active, u.CreatedAt.UTC())
	if err != nil {
		return classify(fmt.Errorf("insert member: %w", err))
	}
	return nil
}

const memberColumns = `id, email, national_id, full_name, password_hash, division, role, active, created_at`

func scanUser(row scanner) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.NationalID, &u.FullName, &u.PasswordHash,
		&u.Division, &u.Role, &u.Active, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM member WHERE id = $1`, id))
	if err != nil {
		return nil, classify(fmt.Errorf("query member %s: %w", id, err))
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM member WHERE email = $1`, email))
	if err != nil {
		return nil, classify(fmt.Errorf("query member by email: %w", err))
	}
	return u, nil
}

func (s *Store) SetUserActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE member SET active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return classify(fmt.Errorf("update member: %w", err))
	}
	return expectOne(res, "member "+id)
}

// One-time passcodes

func (s *Store) SaveOTP(ctx context.Context, otp *models.OTP) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(fmt.Errorf("begin transaction: %w", err))
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM otp_code WHERE user_id = $1`, otp.UserID); err != nil {
		return classify(fmt.Errorf("delete otp: %w", err))
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO otp_code (user_id, code_hash, expires_at)
		VALUES ($1, $2, $3)
	`, otp.UserID, otp.CodeHash, otp.ExpiresAt.UTC())
	if err != nil {
		return classify(fmt.Errorf("insert otp: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return classify(fmt.Errorf("commit otp: %w", err))
	}
	return nil
}

func (s *Store) ConsumeOTP(ctx context.Context, userID, codeHash string, now time.Time, maxAttempts int) error {
	var expiresAt time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT expires_at FROM otp_code WHERE user_id = $1 AND code_hash = $2 AND attempts < $3
	`, userID, codeHash, maxAttempts).Scan(&expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return s.failOTP(ctx, userID, maxAttempts)
	}
	if err != nil {
		return classify(fmt.Errorf("query otp: %w", err))
	}

	// The conditional delete makes concurrent attempts with the same code
	// race for a single row; only one sees RowsAffected == 1.
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM otp_code WHERE user_id = $1 AND code_hash = $2 AND attempts < $3
	`, userID, codeHash, maxAttempts)
	if err != nil {
		return classify(fmt.Errorf("delete otp: %w", err))
	}
	if err := expectOne(res, "otp"); err != nil {
		return err
	}

	if !now.Before(expiresAt) {
		return fmt.Errorf("otp expired: %w", store.ErrNotFound)
	}
	return nil
}

// failOTP counts a wrong guess and drops the code once it is used up
func (s *Store) failOTP(ctx context.Context, userID string, maxAttempts int) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE otp_code SET attempts = attempts + 1 WHERE user_id = $1`, userID); err != nil {
		return classify(fmt.Errorf("count otp attempt: %w", err))
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM otp_code WHERE user_id = $1 AND attempts >= $2`, userID, maxAttempts); err != nil {
		return classify(fmt.Errorf("discard otp: %w", err))
	}
	return fmt.Errorf("otp mismatch: %w", store.ErrNotFound)
}

// Elections

const electionColumns = `id, title, description, start_date, end_date, status, division,
	max_candidates, total_votes, secret_ballot, created_by, created_at`

func scanElection(row scanner) (*models.Election, error) {
	var e models.Election
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.StartDate, &e.EndDate,
		&e.Status, &e.Division, &e.MaxCandidates, &e.TotalVotes, &e.SecretBallot,
		&e.CreatedBy, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) CreateElection(ctx context.Context, e *models.Election) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO election (id, title, description, start_date, end_date, status, division,
			max_candidates, total_votes, secret_ballot, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, e.ID, e.Title, e.Description, e.StartDate.UTC(), e.EndDate.UTC(), e.Status, e.Division,
		e.MaxCandidates, e.TotalVotes, e.SecretBallot, e.CreatedBy, e.CreatedAt.UTC())
	if err != nil {
		return classify(fmt.Errorf("insert election: %w", err))
	}
	return nil
}

func (s *Store) GetElection(ctx context.Context, id string) (*models.Election, error) {
	e, err := scanElection(s.db.QueryRowContext(ctx,
		`SELECT `+electionColumns+` FROM election WHERE id = $1`, id))
	if err != nil {
		return nil, classify(fmt.Errorf("query election %s: %w", id, err))
	}
	return e, nil
}

func (s *Store) ListElections(ctx context.Context, division string) ([]models.Election, error) {
	var rows *sql.Rows
	var err error
	if division == "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+electionColumns+` FROM election
			ORDER BY start_date, id
		`)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+electionColumns+` FROM election
			WHERE division = $1 OR division = $2
			ORDER BY start_date, id
		`, division, models.DivisionAll)
	}
	if err != nil {
		return nil, classify(fmt.Errorf("query elections: %w", err))
	}
	defer rows.Close()

	elections := []models.Election{}
	for rows.Next() {
		e, err := scanElection(rows)
		if err != nil {
			return nil, classify(fmt.Errorf("scan election: %w", err))
		}
		elections = append(elections, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("iterate elections: %w", err))
	}
	return elections, nil
}

func (s *Store) UpdateElectionStatus(ctx context.Context, id, status string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE election SET status = $1
		WHERE id = $2 AND status <> $1 AND status <> $3
	`, status, id, models.StatusCancelled)
	if err != nil {
		return classify(fmt.Errorf("update election status: %w", err))
	}
	return nil
}

func (s *Store) DeleteElection(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(fmt.Errorf("begin transaction: %w", err))
	}
	defer tx.Rollback()

	var found string
	err = tx.QueryRowContext(ctx, `SELECT id FROM election WHERE id = $1`+s.forUpdate(), id).Scan(&found)
	if err != nil {
		return classify(fmt.Errorf("query election %s: %w", id, err))
	}

	var votes int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM vote WHERE election_id = $1`, id).Scan(&votes)
	if err != nil {
		return classify(fmt.Errorf("count votes: %w", err))
	}
	if votes > 0 {
		return fmt.Errorf("election %s has %d votes: %w", id, votes, store.ErrConflict)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM candidate WHERE election_id = $1`, id); err != nil {
		return classify(fmt.Errorf("delete candidates: %w", err))
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM election WHERE id = $1`, id); err != nil {
		return classify(fmt.Errorf("delete election: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return classify(fmt.Errorf("commit delete: %w", err))
	}
	return nil
}

// Candidates

const candidateColumns = `id, election_id, full_name, membership_id, division, position,
	manifesto, experience, active, vote_count, created_at`

func scanCandidate(row scanner) (*models.Candidate, error) {
	var c models.Candidate
	err := row.Scan(&c.ID, &c.ElectionID, &c.FullName, &c.MembershipID, &c.Division,
		&c.Position, &c.Manifesto, &c.Experience, &c.Active, &c.VoteCount, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) CreateCandidate(ctx context.Context, c *models.Candidate) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO candidate (id, election_id, full_name, membership_id, division, position,
			manifesto, experience, active, vote_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, c.ID, c.ElectionID, c.FullName, c.MembershipID, c.Division, c.Position,
		c.Manifesto, c.Experience, c.Active, c.VoteCount, c.CreatedAt.UTC())
	if err != nil {
		return classify(fmt.Errorf("insert candidate: %w", err))
	}
	return nil
}

func (s *Store) GetCandidate(ctx context.Context, id string) (*models.Candidate, error) {
	c, err := scanCandidate(s.db.QueryRowContext(ctx,
		`SELECT `+candidateColumns+` FROM candidate WHERE id = $1`, id))
	if err != nil {
		return nil, classify(fmt.Errorf("query candidate %s: %w", id, err))
	}
	return c, nil
}

func (s *Store) ListCandidates(ctx context.Context, electionID string, includeInactive bool) ([]models.Candidate, error) {
	query := `SELECT ` + candidateColumns + ` FROM candidate WHERE election_id = $1`
	if !includeInactive {
		query += ` AND active = TRUE`
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, electionID)
	if err != nil {
		return nil, classify(fmt.Errorf("query candidates: %w", err))
	}
	defer rows.Close()

	candidates := []models.Candidate{}
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, classify(fmt.Errorf("scan candidate: %w", err))
		}
		candidates = append(candidates, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("iterate candidates: %w", err))
	}
	return candidates, nil
}

func (s *Store) DeactivateCandidate(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE candidate SET active = FALSE WHERE id = $1 AND vote_count = 0
	`, id)
	if err != nil {
		return classify(fmt.Errorf("deactivate candidate: %w", err))
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}

	// Nothing matched: either missing or already holding votes
	if _, err := s.GetCandidate(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("candidate %s has votes: %w", id, store.ErrConflict)
}

// Votes

func (s *Store) RecordVote(ctx context.Context, v *models.Vote) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(fmt.Errorf("begin transaction: %w", err))
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO vote (id, voter_id, election_id, candidate_id, cast_at, ip_hash, user_agent, verified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, v.ID, v.VoterID, v.ElectionID, v.CandidateID, v.CastAt.UTC(), v.IPHash, v.UserAgent, v.Verified)
	if err != nil {
		return classify(fmt.Errorf("insert vote: %w", err))
	}

	// Election before candidate: Reconcile locks the election row first, so
	// both paths acquire locks in the same order.
	res, err := tx.ExecContext(ctx, `
		UPDATE election SET total_votes = total_votes + 1 WHERE id = $1
	`, v.ElectionID)
	if err != nil {
		return classify(fmt.Errorf("increment election total: %w", err))
	}
	if err := expectOne(res, "election "+v.ElectionID); err != nil {
		return err
	}

	res, err = tx.ExecContext(ctx, `
		UPDATE candidate SET vote_count = vote_count + 1
		WHERE id = $1 AND election_id = $2 AND active = TRUE
	`, v.CandidateID, v.ElectionID)
	if err != nil {
		return classify(fmt.Errorf("increment candidate count: %w", err))
	}
	if err := expectOne(res, "active candidate "+v.CandidateID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return classify(fmt.Errorf("commit vote: %w", err))
	}
	return nil
}

func (s *Store) HasVoted(ctx context.Context, voterID, electionID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM vote
			WHERE voter_id = $1 AND election_id = $2
		)
	`, voterID, electionID).Scan(&exists)
	if err != nil {
		return false, classify(fmt.Errorf("query vote existence: %w", err))
	}
	return exists, nil
}

func (s *Store) CountVotes(ctx context.Context, electionID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM vote WHERE election_id = $1
	`, electionID).Scan(&count)
	if err != nil {
		return 0, classify(fmt.Errorf("count votes: %w", err))
	}
	return count, nil
}

func (s *Store) ListVotes(ctx context.Context, electionID string) ([]models.Vote, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, voter_id, election_id, candidate_id, cast_at, ip_hash, user_agent, verified
		FROM vote
		WHERE election_id = $1
		ORDER BY cast_at, id
	`, electionID)
	if err != nil {
		return nil, classify(fmt.Errorf("query votes: %w", err))
	}
	defer rows.Close()

	votes := []models.Vote{}
	for rows.Next() {
		var v models.Vote
		err := rows.Scan(&v.ID, &v.VoterID, &v.ElectionID, &v.CandidateID,
			&v.CastAt, &v.IPHash, &v.UserAgent, &v.Verified)
		if err != nil {
			return nil, classify(fmt.Errorf("scan vote: %w", err))
		}
		votes = append(votes, v)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("iterate votes: %w", err))
	}
	return votes, nil
}

func (s *Store) Reconcile(ctx context.Context, electionID string) (*models.ReconcileReport, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify(fmt.Errorf("begin transaction: %w", err))
	}
	defer tx.Rollback()

	report := &models.ReconcileReport{ElectionID: electionID, Candidates: []models.CandidateCount{}}
	err = tx.QueryRowContext(ctx,
		`SELECT total_votes FROM election WHERE id = $1`+s.forUpdate(), electionID,
	).Scan(&report.TotalVotesBefore)
	if err != nil {
		return nil, classify(fmt.Errorf("query election %s: %w", electionID, err))
	}

	counts := map[string]int{}
	rows, err := tx.QueryContext(ctx, `
		SELECT candidate_id, COUNT(*) FROM vote
		WHERE election_id = $1
		GROUP BY candidate_id
	`, electionID)
	if err != nil {
		return nil, classify(fmt.Errorf("count votes: %w", err))
	}
	for rows.Next() {
		var candidateID string
		var n int
		if err := rows.Scan(&candidateID, &n); err != nil {
			rows.Close()
			return nil, classify(fmt.Errorf("scan vote count: %w", err))
		}
		counts[candidateID] = n
		report.TotalVotesAfter += n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("iterate vote counts: %w", err))
	}

	stored := []models.CandidateCount{}
	rows, err = tx.QueryContext(ctx, `
		SELECT id, vote_count FROM candidate
		WHERE election_id = $1
		ORDER BY created_at, id
	`, electionID)
	if err != nil {
		return nil, classify(fmt.Errorf("query candidates: %w", err))
	}
	for rows.Next() {
		var cc models.CandidateCount
		if err := rows.Scan(&cc.CandidateID, &cc.Before); err != nil {
			rows.Close()
			return nil, classify(fmt.Errorf("scan candidate: %w", err))
		}
		cc.After = counts[cc.CandidateID]
		stored = append(stored, cc)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("iterate candidates: %w", err))
	}

	for _, cc := range stored {
		if cc.Before != cc.After {
			_, err := tx.ExecContext(ctx, `UPDATE candidate SET vote_count = $1 WHERE id = $2`, cc.After, cc.CandidateID)
			if err != nil {
				return nil, classify(fmt.Errorf("update candidate count: %w", err))
			}
			report.Changed = true
		}
		report.Candidates = append(report.Candidates, cc)
	}

	if report.TotalVotesBefore != report.TotalVotesAfter {
		_, err := tx.ExecContext(ctx, `UPDATE election SET total_votes = $1 WHERE id = $2`, report.TotalVotesAfter, electionID)
		if err != nil {
			return nil, classify(fmt.Errorf("update election total: %w", err))
		}
		report.Changed = true
	}

	if err := tx.Commit(); err != nil {
		return nil, classify(fmt.Errorf("commit reconcile: %w", err))
	}
	return report, nil
}

func expectOne(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return classify(fmt.Errorf("rows affected: %w", err))
	}
	if n != 1 {
		return fmt.Errorf("%s: %w", what, store.ErrNotFound)
	}
	return nil
}
