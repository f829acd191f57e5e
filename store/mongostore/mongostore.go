// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/danielhkuo/unionvote/models"
	"github.com/danielhkuo/unionvote/store"
)

// Collection names
const (
	usersCollection      = "users"
	otpCollection        = "otps"
	electionsCollection  = "elections"
	candidatesCollection = "candidates"
	votesCollection      = "votes"
)

// Store implements store.Store on MongoDB. Vote recording runs in a
// multi-document transaction, so the server must be a replica set or
// sharded cluster.
type Store struct {
	client     *mongo.Client
	users      *mongo.Collection
	otps       *mongo.Collection
	elections  *mongo.Collection
	candidates *mongo.Collection
	votes      *mongo.Collection
}

var _ store.Store = (*Store)(nil)

// Open connects to uri, selects database and ensures indexes exist
func Open(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, classify(fmt.Errorf("mongo connect: %w", err))
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, classify(fmt.Errorf("mongo ping: %w", err))
	}

	s := New(client, database)
	if err := s.EnsureIndexes(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// New wraps a connected client
func New(client *mongo.Client, database string) *Store {
	d := client.Database(database)
	return &Store{
		client:     client,
		users:      d.Collection(usersCollection),
		otps:       d.Collection(otpCollection),
		elections:  d.Collection(electionsCollection),
		candidates: d.Collection(candidatesCollection),
		votes:      d.Collection(votesCollection),
	}
}

// EnsureIndexes creates the unique indexes the store relies on. The compound
// votes index is what rejects a second ballot from the same member.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	specs := []struct {
		coll  *mongo.Collection
		model mongo.IndexModel
	}{
		{s.users, mongo.IndexModel{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{s.users, mongo.IndexModel{
			Keys:    bson.D{{Key: "nationalId", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{s.elections, mongo.IndexModel{
			Keys: bson.D{{Key: "division", Value: 1}, {Key: "startDate", Value: 1}},
		}},
		{s.candidates, mongo.IndexModel{
			Keys: bson.D{{Key: "electionId", Value: 1}, {Key: "createdAt", Value: 1}},
		}},
		{s.votes, mongo.IndexModel{
			Keys:    bson.D{{Key: "voterId", Value: 1}, {Key: "electionId", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("voter_election_unique"),
		}},
		{s.votes, mongo.IndexModel{
			Keys: bson.D{{Key: "electionId", Value: 1}, {Key: "castAt", Value: 1}},
		}},
	}

	for _, spec := range specs {
		if _, err := spec.coll.Indexes().CreateOne(ctx, spec.model); err != nil {
			return classify(fmt.Errorf("create index on %s: %w", spec.coll.Name(), err))
		}
	}
	return nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// inTransaction runs fn in a session transaction. WithTransaction retries on
// transient transaction errors and commit uncertainty.
func (s *Store) inTransaction(ctx context.Context, fn func(sc mongo.SessionContext) error) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return classify(fmt.Errorf("start session: %w", err))
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return classify(err)
}

// Users

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	if _, err := s.users.InsertOne(ctx, u); err != nil {
		return classify(fmt.Errorf("insert user: %w", err))
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, classify(fmt.Errorf("find user %s: %w", id, err))
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.users.FindOne(ctx, bson.M{"email": email}).Decode(&u); err != nil {
		return nil, classify(fmt.Errorf("find user by email: %w", err))
	}
	return &u, nil
}

func (s *Store) SetUserActive(ctx context.Context, id string, active bool) error {
	res, err := s.users.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"active": active}})
	if err != nil {
		return classify(fmt.Errorf("update user: %w", err))
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("user %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// One-time passcodes

func (s *Store) SaveOTP(ctx context.Context, otp *models.OTP) error {
	_, err := s.otps.ReplaceOne(ctx, bson.M{"_id": otp.UserID}, otp, options.Replace().SetUpsert(true))
	if err != nil {
		return classify(fmt.Errorf("save otp: %w", err))
	}
	return nil
}

func (s *Store) ConsumeOTP(ctx context.Context, userID, codeHash string, now time.Time, maxAttempts int) error {
	var otp models.OTP
	err := s.otps.FindOneAndDelete(ctx, bson.M{
		"_id":      userID,
		"codeHash": codeHash,
		"attempts": bson.M{"$lt": maxAttempts},
	}).Decode(&otp)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return s.failOTP(ctx, userID, maxAttempts)
	}
	if err != nil {
		return classify(fmt.Errorf("consume otp: %w", err))
	}
	if !now.Before(otp.ExpiresAt) {
		return fmt.Errorf("otp expired: %w", store.ErrNotFound)
	}
	return nil
}

// failOTP counts a wrong guess and drops the code once it is used up
func (s *Store) failOTP(ctx context.Context, userID string, maxAttempts int) error {
	if _, err := s.otps.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$inc": bson.M{"attempts": 1}}); err != nil {
		return classify(fmt.Errorf("count otp attempt: %w", err))
	}
	if _, err := s.otps.DeleteOne(ctx, bson.M{"_id": userID, "attempts": bson.M{"$gte": maxAttempts}}); err != nil {
		return classify(fmt.Errorf("discard otp: %w", err))
	}
	return fmt.Errorf("otp mismatch: %w", store.ErrNotFound)
}

// Elections

func (s *Store) CreateElection(ctx context.Context, e *models.Election) error {
	if _, err := s.elections.InsertOne(ctx, e); err != nil {
		return classify(fmt.Errorf("insert election: %w", err))
	}
	return nil
}

func (s *Store) GetElection(ctx context.Context, id string) (*models.Election, error) {
	var e models.Election
	if err := s.elections.FindOne(ctx, bson.M{"_id": id}).Decode(&e); err != nil {
		return nil, classify(fmt.Errorf("find election %s: %w", id, err))
	}
	return &e, nil
}

func (s *Store) ListElections(ctx context.Context, division string) ([]models.Election, error) {
	filter := bson.M{}
	if division != "" {
		filter = bson.M{"division": bson.M{"$in": bson.A{division, models.DivisionAll}}}
	}
	opts := options.Find().SetSort(bson.D{{Key: "startDate", Value: 1}, {Key: "_id", Value: 1}})

	cur, err := s.elections.Find(ctx, filter, opts)
	if err != nil {
		return nil, classify(fmt.Errorf("find elections: %w", err))
	}
	elections := []models.Election{}
	if err := cur.All(ctx, &elections); err != nil {
		return nil, classify(fmt.Errorf("decode elections: %w", err))
	}
	return elections, nil
}

func (s *Store) UpdateElectionStatus(ctx context.Context, id, status string) error {
	filter := bson.M{
		"_id": id,
		"status": bson.M{"$nin": bson.A{status, models.StatusCancelled}},
	}
	if _, err := s.elections.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"status": status}}); err != nil {
		return classify(fmt.Errorf("update election status: %w", err))
	}
	return nil
}

func (s *Store) DeleteElection(ctx context.Context, id string) error {
	return s.inTransaction(ctx, func(sc mongo.SessionContext) error {
		if err := s.elections.FindOne(sc, bson.M{"_id": id}).Err(); err != nil {
			return fmt.Errorf("find election %s: %w", id, err)
		}
		votes, err := s.votes.CountDocuments(sc, bson.M{"electionId": id})
		if err != nil {
			return fmt.Errorf("count votes: %w", err)
		}
		if votes > 0 {
			return fmt.Errorf("election %s has %d votes: %w", id, votes, store.ErrConflict)
		}
		if _, err := s.candidates.DeleteMany(sc, bson.M{"electionId": id}); err != nil {
			return fmt.Errorf("delete candidates: %w", err)
		}
		if _, err := s.elections.DeleteOne(sc, bson.M{"_id": id}); err != nil {
			return fmt.Errorf("delete election: %w", err)
		}
		return nil
	})
}

// Candidates

func (s *Store) CreateCandidate(ctx context.Context, c *models.Candidate) error {
	if _, err := s.candidates.InsertOne(ctx, c); err != nil {
		return classify(fmt.Errorf("insert candidate: %w", err))
	}
	return nil
}

func (s *Store) GetCandidate(ctx context.Context, id string) (*models.Candidate, error) {
	var c models.Candidate
	if err := s.candidates.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		return nil, classify(fmt.Errorf("find candidate %s: %w", id, err))
	}
	return &c, nil
}

func (s *Store) ListCandidates(ctx context.Context, electionID string, includeInactive bool) ([]models.Candidate, error) {
	filter := bson.M{"electionId": electionID}
	if !includeInactive {
		filter["active"] = true
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})

	cur, err := s.candidates.Find(ctx, filter, opts)
	if err != nil {
		return nil, classify(fmt.Errorf("find candidates: %w", err))
	}
	candidates := []models.Candidate{}
	if err := cur.All(ctx, &candidates); err != nil {
		return nil, classify(fmt.Errorf("decode candidates: %w", err))
	}
	return candidates, nil
}

func (s *Store) DeactivateCandidate(ctx context.Context, id string) error {
	res, err := s.candidates.UpdateOne(ctx,
		bson.M{"_id": id, "voteCount": 0},
		bson.M{"$set": bson.M{"active": false}},
	)
	if err != nil {
		return classify(fmt.Errorf("deactivate candidate: %w", err))
	}
	if res.MatchedCount == 1 {
		return nil
	}
	if _, err := s.GetCandidate(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("candidate %s has votes: %w", id, store.ErrConflict)
}

// Votes

func (s *Store) RecordVote(ctx context.Context, v *models.Vote) error {
	return s.inTransaction(ctx, func(sc mongo.SessionContext) error {
		if _, err := s.votes.InsertOne(sc, v); err != nil {
			return fmt.Errorf("insert vote: %w", err)
		}

		res, err := s.elections.UpdateOne(sc,
			bson.M{"_id": v.ElectionID},
			bson.M{"$inc": bson.M{"totalVotes": 1}},
		)
		if err != nil {
			return fmt.Errorf("increment election total: %w", err)
		}
		if res.MatchedCount != 1 {
			return fmt.Errorf("election %s: %w", v.ElectionID, store.ErrNotFound)
		}

		res, err = s.candidates.UpdateOne(sc,
			bson.M{"_id": v.CandidateID, "electionId": v.ElectionID, "active": true},
			bson.M{"$inc": bson.M{"voteCount": 1}},
		)
		if err != nil {
			return fmt.Errorf("increment candidate count: %w", err)
		}
		if res.MatchedCount != 1 {
			return fmt.Errorf("active candidate %s: %w", v.CandidateID, store.ErrNotFound)
		}
		return nil
	})
}

func (s *Store) HasVoted(ctx context.Context, voterID, electionID string) (bool, error) {
	n, err := s.votes.CountDocuments(ctx,
		bson.M{"voterId": voterID, "electionId": electionID},
		options.Count().SetLimit(1),
	)
	if err != nil {
		return false, classify(fmt.Errorf("count votes: %w", err))
	}
	return n > 0, nil
}

func (s *Store) CountVotes(ctx context.Context, electionID string) (int, error) {
	n, err := s.votes.CountDocuments(ctx, bson.M{"electionId": electionID})
	if err != nil {
		return 0, classify(fmt.Errorf("count votes: %w", err))
	}
	return int(n), nil
}

func (s *Store) ListVotes(ctx context.Context, electionID string) ([]models.Vote, error) {
	opts := options.Find().SetSort(bson.D{{Key: "castAt", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.votes.Find(ctx, bson.M{"electionId": electionID}, opts)
	if err != nil {
		return nil, classify(fmt.Errorf("find votes: %w", err))
	}
	votes := []models.Vote{}
	if err := cur.All(ctx, &votes); err != nil {
		return nil, classify(fmt.Errorf("decode votes: %w", err))
	}
	return votes, nil
}

func (s *Store) Reconcile(ctx context.Context, electionID string) (*models.ReconcileReport, error) {
	var report *models.ReconcileReport
	err := s.inTransaction(ctx, func(sc mongo.SessionContext) error {
		report = &models.ReconcileReport{ElectionID: electionID, Candidates: []models.CandidateCount{}}

		var e models.Election
		if err := s.elections.FindOne(sc, bson.M{"_id": electionID}).Decode(&e); err != nil {
			return fmt.Errorf("find election %s: %w", electionID, err)
		}
		report.TotalVotesBefore = e.TotalVotes

		pipeline := mongo.Pipeline{
			{{Key: "$match", Value: bson.M{"electionId": electionID}}},
			{{Key: "$group", Value: bson.M{"_id": "$candidateId", "count": bson.M{"$sum": 1}}}},
		}
		cur, err := s.votes.Aggregate(sc, pipeline)
		if err != nil {
			return fmt.Errorf("aggregate votes: %w", err)
		}
		var groups []struct {
			CandidateID string `bson:"_id"`
			Count       int    `bson:"count"`
		}
		if err := cur.All(sc, &groups); err != nil {
			return fmt.Errorf("decode vote counts: %w", err)
		}
		counts := map[string]int{}
		for _, g := range groups {
			counts[g.CandidateID] = g.Count
			report.TotalVotesAfter += g.Count
		}

		opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
		ccur, err := s.candidates.Find(sc, bson.M{"electionId": electionID}, opts)
		if err != nil {
			return fmt.Errorf("find candidates: %w", err)
		}
		var candidates []models.Candidate
		if err := ccur.All(sc, &candidates); err != nil {
			return fmt.Errorf("decode candidates: %w", err)
		}

		for _, c := range candidates {
			cc := models.CandidateCount{CandidateID: c.ID, Before: c.VoteCount, After: counts[c.ID]}
			if cc.Before != cc.After {
				_, err := s.candidates.UpdateOne(sc, bson.M{"_id": c.ID}, bson.M{"$set": bson.M{"voteCount": cc.After}})
				if err != nil {
					return fmt.Errorf("update candidate count: %w", err)
				}
				report.Changed = true
			}
			report.Candidates = append(report.Candidates, cc)
		}

		// Always written: the write conflicts with any concurrent RecordVote
		// transaction touching this election, so one of them retries.
		_, err = s.elections.UpdateOne(sc, bson.M{"_id": electionID}, bson.M{"$set": bson.M{"totalVotes": report.TotalVotesAfter}})
		if err != nil {
			return fmt.Errorf("update election total: %w", err)
		}
		if report.TotalVotesBefore != report.TotalVotesAfter {
			report.Changed = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrConflict), errors.Is(err, store.ErrUnavailable):
		return err
	case errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", store.ErrConflict, err)
	case mongo.IsTimeout(err), mongo.IsNetworkError(err),
		errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled),
		errors.Is(err, mongo.ErrClientDisconnected):
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return err
}
