package models

import "time"

// Election status constants
const (
	StatusUpcoming  = "upcoming"
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Member role constants
const (
	RoleVoter = "voter"
	RoleAdmin = "admin"
)

// DivisionAll scopes an election to every division. It is not a valid
// member division.
const DivisionAll = "All"

// Divisions is the fixed set of union divisions.
var Divisions = []string{
	"Finance",
	"IT",
	"Operations",
	"Human Resources",
	"Marketing",
	"Legal",
	"Engineering",
	"Sales",
}

// IsDivision reports whether d names a member division
func IsDivision(d string) bool {
	for _, div := range Divisions {
		if div == d {
			return true
		}
	}
	return false
}

// Request types

type RegisterRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	NationalID string `json:"national_id"`
	FullName   string `json:"full_name"`
	Division   string `json:"division"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type VerifyOTPRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type CreateElectionRequest struct {
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	StartDate     time.Time `json:"start_date"`
	EndDate       time.Time `json:"end_date"`
	Division      string    `json:"division"`
	MaxCandidates int       `json:"max_candidates"`
	SecretBallot  bool      `json:"secret_ballot"`
}

type AddCandidateRequest struct {
	FullName     string `json:"full_name"`
	MembershipID string `json:"membership_id"`
	Division     string `json:"division"`
	Position     string `json:"position"`
	Manifesto    string `json:"manifesto"`
	Experience   string `json:"experience"`
}

type CastVoteRequest struct {
	CandidateID string `json:"candidate_id"`
}

// Response types

type RegisterResponse struct {
	UserID string `json:"user_id"`
}

type LoginResponse struct {
	OTPRequired  bool      `json:"otp_required"`
	OTPExpiresAt time.Time `json:"otp_expires_at"`
}

type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ElectionDetail struct {
	Election Election `json:"election"`
	HasVoted bool     `json:"has_voted"`
	CanVote  bool     `json:"can_vote"`
	OpensIn  string   `json:"opens_in,omitempty"`
	ClosesIn string   `json:"closes_in,omitempty"`
}

// VoteReceipt is returned once a vote has been durably recorded
type VoteReceipt struct {
	VoteID    string    `json:"vote_id"`
	Timestamp time.Time `json:"timestamp"`
}

type CandidateResult struct {
	CandidateID string  `json:"candidate_id"`
	FullName    string  `json:"full_name"`
	Position    string  `json:"position"`
	Division    string  `json:"division"`
	VoteCount   int     `json:"vote_count"`
	Percentage  float64 `json:"percentage"`
	Rank        int     `json:"rank"` // 1-indexed ranking
}

type Results struct {
	ElectionID string            `json:"election_id"`
	Title      string            `json:"title"`
	Status     string            `json:"status"`
	TotalVotes int               `json:"total_votes"`
	Candidates []CandidateResult `json:"candidates"`
}

// AuditEntry is one row of the vote audit trail. CandidateID is omitted for
// secret ballots.
type AuditEntry struct {
	VoteID      string    `json:"vote_id"`
	VoterID     string    `json:"voter_id"`
	CandidateID string    `json:"candidate_id,omitempty"`
	CastAt      time.Time `json:"cast_at"`
	IPHash      string    `json:"ip_hash,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty"`
	Verified    bool      `json:"verified"`
}

type CandidateCount struct {
	CandidateID string `json:"candidate_id"`
	Before      int    `json:"before"`
	After       int    `json:"after"`
}

// ReconcileReport describes a recount of an election's counters from its
// vote log
type ReconcileReport struct {
	ElectionID       string           `json:"election_id"`
	TotalVotesBefore int              `json:"total_votes_before"`
	TotalVotesAfter  int              `json:"total_votes_after"`
	Candidates       []CandidateCount `json:"candidates"`
	Changed          bool             `json:"changed"`
}

// Domain types

type User struct {
	ID           string    `json:"id" bson:"_id"`
	Email        string    `json:"email" bson:"email"`
	NationalID   string    `json:"-" bson:"nationalId"`
	FullName     string    `json:"full_name" bson:"fullName"`
	PasswordHash string    `json:"-" bson:"passwordHash"`
	Division     string    `json:"division" bson:"division"`
	Role         string    `json:"role" bson:"role"`
	Active       bool      `json:"active" bson:"active"`
	CreatedAt    time.Time `json:"created_at" bson:"createdAt"`
}

type Election struct {
	ID            string    `json:"id" bson:"_id"`
	Title         string    `json:"title" bson:"title"`
	Description   string    `json:"description" bson:"description"`
	StartDate     time.Time `json:"start_date" bson:"startDate"`
	EndDate       time.Time `json:"end_date" bson:"endDate"`
	Status        string    `json:"status" bson:"status"`
	Division      string    `json:"division" bson:"division"`
	MaxCandidates int       `json:"max_candidates" bson:"maxCandidates"`
	TotalVotes    int       `json:"total_votes" bson:"totalVotes"`
	SecretBallot  bool      `json:"secret_ballot" bson:"secretBallot"`
	CreatedBy     string    `json:"created_by" bson:"createdBy"`
	CreatedAt     time.Time `json:"created_at" bson:"createdAt"`
}

type Candidate struct {
	ID           string    `json:"id" bson:"_id"`
	ElectionID   string    `json:"election_id" bson:"electionId"`
	FullName     string    `json:"full_name" bson:"fullName"`
	MembershipID string    `json:"membership_id" bson:"membershipId"`
	Division     string    `json:"division" bson:"division"`
	Position     string    `json:"position" bson:"position"`
	Manifesto    string    `json:"manifesto" bson:"manifesto"`
	Experience   string    `json:"experience" bson:"experience"`
	Active       bool      `json:"active" bson:"active"`
	VoteCount    int       `json:"vote_count" bson:"voteCount"`
	CreatedAt    time.Time `json:"created_at" bson:"createdAt"`
}

type Vote struct {
	ID          string    `json:"id" bson:"_id"`
	VoterID     string    `json:"voter_id" bson:"voterId"`
	ElectionID  string    `json:"election_id" bson:"electionId"`
	CandidateID string    `json:"candidate_id" bson:"candidateId"`
	CastAt      time.Time `json:"cast_at" bson:"castAt"`
	IPHash      string    `json:"-" bson:"ipHash"`    // Never expose in JSON
	UserAgent   string    `json:"-" bson:"userAgent"` // Never expose in JSON
	Verified    bool      `json:"verified" bson:"verified"`
}

// OTP is an outstanding one-time passcode. Only the HMAC of the code is kept.
type OTP struct {
	UserID    string    `bson:"_id"`
	CodeHash  string    `bson:"codeHash"`
	ExpiresAt time.Time `bson:"expiresAt"`
	Attempts  int       `bson:"attempts"` // wrong guesses so far
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}
