// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package members

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/danielhkuo/unionvote/auth"
	"github.com/danielhkuo/unionvote/ballot"
	"github.com/danielhkuo/unionvote/models"
	"github.com/danielhkuo/unionvote/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid email, password or code")
	ErrAccountExists      = errors.New("an account with this email or national ID already exists")
	ErrAccountInactive    = errors.New("account is deactivated")
)

// OTPSender delivers a login code to a member
type OTPSender interface {
	SendOTP(ctx context.Context, user *models.User, code string, expiresAt time.Time) error
}

// LogSender writes codes to the log at Info level. It stands in for an email
// or SMS gateway in development and must not be used in production.
type LogSender struct{}

func (LogSender) SendOTP(ctx context.Context, user *models.User, code string, expiresAt time.Time) error {
	slog.Info("otp issued (development sender, code not delivered)",
		"user_id", user.ID, "email", user.Email, "code", code, "expires_at", expiresAt)
	return nil
}

// DefaultOTPAttempts is the number of wrong codes tolerated before the
// outstanding code is discarded
const DefaultOTPAttempts = 5

// Config holds the secrets and lifetimes used by the account flows
type Config struct {
	JWTSecret      string
	OTPSecret      string
	OTPTTL         time.Duration
	TokenTTL       time.Duration
	OTPMaxAttempts int
}

// Service implements registration, two-step login and token authentication
type Service struct {
	store  store.Store
	cfg    Config
	sender OTPSender
	now    func() time.Time
}

func NewService(st store.Store, cfg Config, sender OTPSender) *Service {
	if sender == nil {
		sender = LogSender{}
	}
	if cfg.OTPMaxAttempts <= 0 {
		cfg.OTPMaxAttempts = DefaultOTPAttempts
	}
	return &Service{store: st, cfg: cfg, sender: sender, now: time.Now}
}

// Register creates a voter account
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	return s.create(ctx, req, models.RoleVoter)
}

// CreateAdmin creates an administrator account. Used by the admin CLI.
func (s *Service) CreateAdmin(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	return s.create(ctx, req, models.RoleAdmin)
}

func (s *Service) create(ctx context.Context, req models.RegisterRequest, role string) (*models.User, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	req.NationalID = strings.TrimSpace(req.NationalID)
	req.FullName = strings.TrimSpace(req.FullName)
	switch {
	case req.NationalID == "":
		return nil, fmt.Errorf("national_id is required: %w", ballot.ErrInvalidInput)
	case req.FullName == "":
		return nil, fmt.Errorf("full_name is required: %w", ballot.ErrInvalidInput)
	case !models.IsDivision(req.Division):
		return nil, fmt.Errorf("unknown division %q: %w", req.Division, ballot.ErrInvalidInput)
	}

	hash, err := auth.HashPassword(req.Password)
	if errors.Is(err, auth.ErrInvalidPassword) {
		return nil, fmt.Errorf("password must be %d to %d bytes long: %w",
			auth.MinPasswordLength, auth.MaxPasswordLength, ballot.ErrInvalidInput)
	}
	if err != nil {
		return nil, err
	}

	id, err := auth.GenerateID(16)
	if err != nil {
		return nil, err
	}

	u := &models.User{
		ID:           id,
		Email:        email,
		NationalID:   req.NationalID,
		FullName:     req.FullName,
		PasswordHash: hash,
		Division:     req.Division,
		Role:         role,
		Active:       true,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrAccountExists
		}
		return nil, storeError(err)
	}

	slog.Info("member registered", "user_id", u.ID, "division", u.Division, "role", u.Role)
	return u, nil
}

// Login checks the password and sends a one-time passcode. It returns the
// code's expiry.
func (s *Service) Login(ctx context.Context, emailAddr, password string) (time.Time, error) {
	u, err := s.userByEmail(ctx, emailAddr)
	if err != nil {
		return time.Time{}, err
	}
	if err := auth.CheckPassword(u.PasswordHash, password); err != nil {
		return time.Time{}, ErrInvalidCredentials
	}
	if !u.Active {
		return time.Time{}, ErrAccountInactive
	}

	code, err := auth.GenerateOTP()
	if err != nil {
		return time.Time{}, err
	}
	expiresAt := s.now().Add(s.cfg.OTPTTL).UTC()
	otp := &models.OTP{
		UserID:    u.ID,
		CodeHash:  auth.HashOTP(u.ID, code, s.cfg.OTPSecret),
		ExpiresAt: expiresAt,
	}
	if err := s.store.SaveOTP(ctx, otp); err != nil {
		return time.Time{}, storeError(err)
	}
	if err := s.sender.SendOTP(ctx, u, code, expiresAt); err != nil {
		return time.Time{}, fmt.Errorf("failed to send otp: %w", err)
	}

	slog.Info("otp sent", "user_id", u.ID)
	return expiresAt, nil
}

// VerifyOTP consumes a valid code and issues a bearer token
func (s *Service) VerifyOTP(ctx context.Context, emailAddr, code string) (*models.TokenResponse, error) {
	u, err := s.userByEmail(ctx, emailAddr)
	if err != nil {
		return nil, err
	}
	if !u.Active {
		return nil, ErrAccountInactive
	}

	code = strings.TrimSpace(code)
	err = s.store.ConsumeOTP(ctx, u.ID, auth.HashOTP(u.ID, code, s.cfg.OTPSecret), s.now(), s.cfg.OTPMaxAttempts)
	if errors.Is(err, store.ErrNotFound) {
		slog.Info("otp rejected", "user_id", u.ID)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, storeError(err)
	}

	token, expiresAt, err := auth.IssueToken(u, s.cfg.JWTSecret, s.now(), s.cfg.TokenTTL)
	if err != nil {
		return nil, err
	}

	slog.Info("member authenticated", "user_id", u.ID)
	return &models.TokenResponse{Token: token, ExpiresAt: expiresAt}, nil
}

// Authenticate resolves a bearer token to an active member. The account is
// reloaded so deactivation and division changes take effect immediately.
func (s *Service) Authenticate(ctx context.Context, token string) (*models.User, error) {
	claims, err := auth.ParseToken(token, s.cfg.JWTSecret)
	if err != nil {
		return nil, err
	}

	u, err := s.store.GetUser(ctx, claims.Subject)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: unknown subject", auth.ErrInvalidToken)
	}
	if err != nil {
		return nil, storeError(err)
	}
	if !u.Active {
		return nil, ErrAccountInactive
	}
	return u, nil
}

// Deactivate soft-deletes an account
func (s *Service) Deactivate(ctx context.Context, userID string) error {
	if err := s.store.SetUserActive(ctx, userID, false); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("user %s: %w", userID, ballot.ErrNotFound)
		}
		return storeError(err)
	}
	slog.Info("member deactivated", "user_id", userID)
	return nil
}

func (s *Service) userByEmail(ctx context.Context, emailAddr string) (*models.User, error) {
	email, err := normalizeEmail(emailAddr)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	u, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, storeError(err)
	}
	return u, nil
}

func normalizeEmail(addr string) (string, error) {
	parsed, err := mail.ParseAddress(strings.TrimSpace(addr))
	if err != nil || parsed.Name != "" {
		return "", fmt.Errorf("invalid email %q: %w", addr, ballot.ErrInvalidInput)
	}
	return strings.ToLower(parsed.Address), nil
}

func storeError(err error) error {
	if errors.Is(err, store.ErrUnavailable) {
		return fmt.Errorf("%w: %v", ballot.ErrStoreUnavailable, err)
	}
	return err
}
