package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"recordstack/internal/types"
)

// TokenStore persists single-use verification and reset tokens, satisfied
// by db.TokenRepository.
type TokenStore interface {
	CreateVerificationToken(ctx context.Context, t *types.EmailVerificationToken) error
	RedeemVerificationToken(ctx context.Context, token string, maxAge time.Duration) (string, error)
	CreateResetToken(ctx context.Context, t *types.PasswordResetToken) error
	RedeemResetToken(ctx context.Context, token string, maxAge time.Duration) (string, error)
}

// Notifier hands account emails to the delivery queue. Delivery is
// asynchronous; enqueue failures are logged and never abort the account
// flow that triggered them.
type Notifier interface {
	SendVerificationEmail(ctx context.Context, recipient, token string) error
	SendPasswordResetEmail(ctx context.Context, recipient, token string) error
}

// QuotaInitializer makes sure quota state exists for a principal.
type QuotaInitializer interface {
	GetOrInitQuotaState(ctx context.Context, userID, email string) error
}

// ServiceConfig carries the auth service dependencies and token lifetimes.
type ServiceConfig struct {
	Profiles ProfileStore
	Tokens   TokenStore
	Notifier Notifier
	Quota    QuotaInitializer
	Hasher   PasswordHasher
	Codec    *AccessTokenCodec
	Clock    types.Clock
	Logger   *slog.Logger

	VerificationTokenTTL  time.Duration
	PasswordResetTokenTTL time.Duration
}

// Service implements the account flows.
type Service struct {
	profiles ProfileStore
	tokens   TokenStore
	notifier Notifier
	quota    QuotaInitializer
	hasher   PasswordHasher
	codec    *AccessTokenCodec
	clock    types.Clock
	logger   *slog.Logger

	verificationTTL time.Duration
	resetTTL        time.Duration
}

func NewService(cfg ServiceConfig) *Service {
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Service{
		profiles:        cfg.Profiles,
		tokens:          cfg.Tokens,
		notifier:        cfg.Notifier,
		quota:           cfg.Quota,
		hasher:          cfg.Hasher,
		codec:           cfg.Codec,
		clock:           clock,
		logger:          cfg.Logger,
		verificationTTL: cfg.VerificationTokenTTL,
		resetTTL:        cfg.PasswordResetTokenTTL,
	}
}

// SignupRequest is the validated signup payload.
type SignupRequest struct {
	Email            string `json:"email" validate:"required,email"`
	Password         string `json:"password" validate:"required,min=8"`
	FirstName        string `json:"first_name,omitempty"`
	LastName         string `json:"last_name" validate:"required"`
	OrganizationName string `json:"organization_name,omitempty"`
}

// Signup creates an account on the FREE plan and mails a verification token.
// A duplicate email surfaces as DUPLICATE_RESOURCE. The verification email
// is queued best-effort: the account exists even if the queue is down, and
// the user can request a resend.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (*types.UserProfile, error) {
	hash, err := s.hasher.GenerateFromPassword(req.Password)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to hash password", err)
	}

	freePlan := types.PlanFree
	profile := &types.UserProfile{
		UserID:           "user_" + uuid.NewString(),
		Email:            CanonicalizeEmail(req.Email),
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		OrganizationName: req.OrganizationName,
		PlanName:         &freePlan,
		IsActive:         true,
		PasswordHash:     hash,
	}
	if err := s.profiles.Create(ctx, profile); err != nil {
		return nil, err
	}

	s.logger.Info("account created", "user_id", profile.UserID, "plan", freePlan)
	s.issueVerificationToken(ctx, profile)
	return profile, nil
}

// LoginResult carries the issued access token and the account it belongs to.
type LoginResult struct {
	AccessToken string             `json:"access_token"`
	Profile     *types.UserProfile `json:"profile"`
}

// Login verifies credentials and issues an access token. A missing account
// and a wrong password produce the same INVALID_CREDENTIALS answer so the
// endpoint cannot be used to enumerate emails.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	profile, err := s.profiles.GetByEmail(ctx, CanonicalizeEmail(email))
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeNotFound {
			return nil, invalidCredentials()
		}
		return nil, err
	}

	if err := s.hasher.CompareHashAndPassword(profile.PasswordHash, password); err != nil {
		s.logger.Warn("login failed: wrong password", "user_id", profile.UserID)
		return nil, invalidCredentials()
	}

	if !profile.IsActive {
		return nil, types.NewAppError(types.ErrCodeAccountInactive, "account is deactivated", nil)
	}

	// Accounts that predate quota tracking get their window on first login.
	if err := s.quota.GetOrInitQuotaState(ctx, profile.UserID, profile.Email); err != nil {
		s.logger.Error("quota state init failed", "user_id", profile.UserID, "error", err)
	}

	return &LoginResult{
		AccessToken: s.codec.Issue(profile.UserID),
		Profile:     profile,
	}, nil
}

// VerifyEmail redeems a verification token and marks the account verified.
// Redemption is a single guarded UPDATE, so a token can be spent only once.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	userID, err := s.tokens.RedeemVerificationToken(ctx, token, s.verificationTTL)
	if err != nil {
		return err
	}
	if err := s.profiles.MarkEmailVerified(ctx, userID); err != nil {
		return err
	}
	s.logger.Info("email verified", "user_id", userID)
	return nil
}

// ForgotPassword mails a reset token. The response is identical whether or
// not the email exists.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	profile, err := s.profiles.GetByEmail(ctx, CanonicalizeEmail(email))
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeNotFound {
			return nil
		}
		return err
	}

	token := &types.PasswordResetToken{
		UserID: profile.UserID,
		Token:  uuid.NewString(),
	}
	if err := s.tokens.CreateResetToken(ctx, token); err != nil {
		return err
	}
	if err := s.notifier.SendPasswordResetEmail(ctx, profile.Email, token.Token); err != nil {
		s.logger.Error("password reset email enqueue failed",
			"user_id", profile.UserID, "error", err)
	}
	return nil
}

// ResetPassword redeems a reset token and replaces the stored credential.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	userID, err := s.tokens.RedeemResetToken(ctx, token, s.resetTTL)
	if err != nil {
		return err
	}
	hash, err := s.hasher.GenerateFromPassword(newPassword)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to hash password", err)
	}
	if err := s.profiles.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return err
	}
	s.logger.Info("password reset", "user_id", userID)
	return nil
}

// ResendVerification issues a fresh verification token for an unverified
// account.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	profile, err := s.profiles.GetByEmail(ctx, CanonicalizeEmail(email))
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeNotFound {
			return nil
		}
		return err
	}
	if profile.IsEmailVerified {
		return types.NewAppError(types.ErrCodeValidation, "email address is already verified", nil)
	}
	s.issueVerificationToken(ctx, profile)
	return nil
}

func (s *Service) issueVerificationToken(ctx context.Context, profile *types.UserProfile) {
	token := &types.EmailVerificationToken{
		UserID: profile.UserID,
		Token:  uuid.NewString(),
	}
	if err := s.tokens.CreateVerificationToken(ctx, token); err != nil {
		s.logger.Error("verification token create failed",
			"user_id", profile.UserID, "error", err)
		return
	}
	if err := s.notifier.SendVerificationEmail(ctx, profile.Email, token.Token); err != nil {
		s.logger.Error("verification email enqueue failed",
			"user_id", profile.UserID, "error", err)
	}
}

func invalidCredentials() *types.AppError {
	return types.NewAppError(types.ErrCodeInvalidCredentials, "invalid email or password", nil)
}
