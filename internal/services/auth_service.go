package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	internalauth "github.com/aegisauth/aegis/internal/auth"
	"github.com/aegisauth/aegis/internal/models"
	pkgauth "github.com/aegisauth/aegis/pkg/auth"
	"github.com/aegisauth/aegis/pkg/logger"
	"github.com/google/uuid"
)

// AccountRepository defines the interface for account storage operations
type AccountRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
}

// LoginResult carries everything a successful login hands back
type LoginResult struct {
	AccessToken       string `json:"access_token"`
	RefreshCredential string `json:"refresh_token"`
	ExpiresIn         int    `json:"expires_in"`
}

// AuthService runs the login, refresh, and logout flows. Every attempt
// against the login endpoint leaves a record, including attempts denied
// before credentials were looked at.
type AuthService struct {
	accounts AccountRepository
	attempts *AttemptService
	sessions *SessionService
	config   *ConfigService
	tokens   *internalauth.TokenManager
	logger   *slog.Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(accounts AccountRepository, attempts *AttemptService, sessions *SessionService, config *ConfigService, tokens *internalauth.TokenManager, logger *slog.Logger) *AuthService {
	return &AuthService{
		accounts: accounts,
		attempts: attempts,
		sessions: sessions,
		config:   config,
		tokens:   tokens,
		logger:   logger,
	}
}

// Login runs the full authentication flow. The admission gates come
// first and a denial there is recorded like any other failed attempt,
// so abusive traffic stays visible in the attempt log.
func (s *AuthService) Login(ctx context.Context, email, password, ipAddress, userAgent string) (*LoginResult, *models.AdmissionDecision, error) {
	decision := s.attempts.CanAttemptLogin(ctx, ipAddress)
	if !decision.Allowed {
		if _, err := s.attempts.RecordFailure(ctx, ipAddress, email, userAgent, decision.Reason); err != nil {
			s.logger.Error("failed to record gate denial", slog.Any("error", err))
		}
		switch decision.Reason {
		case models.FailureReasonIPBlocked:
			return nil, decision, models.ErrIPBlocked
		default:
			return nil, decision, models.ErrRateLimitExceeded
		}
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, decision, s.failLogin(ctx, ipAddress, email, userAgent, models.FailureReasonInvalidEmail, models.ErrUnauthorized)
		}
		return nil, decision, fmt.Errorf("failed to look up account: %w", err)
	}

	if account.Locked(time.Now()) {
		return nil, decision, s.failLogin(ctx, ipAddress, email, userAgent, models.FailureReasonAccountLocked, models.ErrAccountLocked)
	}

	if account.Status != models.AccountStatusActive {
		return nil, decision, s.failLogin(ctx, ipAddress, email, userAgent, models.FailureReasonAccountInactive, models.ErrAccountInactive)
	}

	if err := pkgauth.ComparePassword(account.PasswordHash, password); err != nil {
		return nil, decision, s.failLogin(ctx, ipAddress, email, userAgent, models.FailureReasonInvalidPassword, models.ErrUnauthorized)
	}

	if s.config.GetBool(ctx, models.ConfigKeyRequireVerifiedEmail, true) && !account.EmailVerified {
		return nil, decision, s.failLogin(ctx, ipAddress, email, userAgent, models.FailureReasonEmailNotVerified, models.ErrEmailNotVerified)
	}

	if err := s.attempts.RecordSuccess(ctx, ipAddress, email, userAgent, account.ID); err != nil {
		s.logger.Error("failed to record successful attempt",
			slog.String("email", logger.SanitizedEmail(email)),
			slog.Any("error", err))
	}

	result, err := s.issueTokens(ctx, account, ipAddress, userAgent)
	if err != nil {
		return nil, decision, err
	}

	return result, decision, nil
}

// failLogin records the failed attempt and returns the caller-facing
// error. Failure bookkeeping errors are logged, never surfaced over the
// attempt outcome.
func (s *AuthService) failLogin(ctx context.Context, ipAddress, email, userAgent, reason string, outcome error) error {
	if _, err := s.attempts.RecordFailure(ctx, ipAddress, email, userAgent, reason); err != nil {
		s.logger.Error("failed to record failed attempt",
			slog.String("email", logger.SanitizedEmail(email)),
			slog.Any("error", err))
	}
	return outcome
}

// Refresh exchanges a valid refresh credential for a fresh token pair.
// The presented credential's session is revoked and replaced, so each
// credential is usable exactly once.
func (s *AuthService) Refresh(ctx context.Context, credential, ipAddress, userAgent string) (*LoginResult, error) {
	session, err := s.sessions.FindByCredential(ctx, credential)
	if err != nil {
		return nil, err
	}

	// Stamp the session's last use before rotating it out; the revoked
	// row keeps an accurate activity trail.
	if err := s.sessions.Touch(ctx, credential); err != nil {
		s.logger.Warn("failed to update session activity", slog.Any("error", err))
	}

	account, err := s.accounts.GetByID(ctx, session.ActorID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}

	if account.Status != models.AccountStatusActive || account.Locked(time.Now()) {
		if err := s.sessions.Revoke(ctx, credential, ipAddress, account.ID); err != nil {
			s.logger.Error("failed to revoke session for inactive account", slog.Any("error", err))
		}
		return nil, models.ErrUnauthorized
	}

	if err := s.sessions.Revoke(ctx, credential, ipAddress, account.ID); err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("failed to rotate session: %w", err)
	}

	return s.issueTokens(ctx, account, ipAddress, userAgent)
}

// Logout revokes the session behind the presented refresh credential
func (s *AuthService) Logout(ctx context.Context, credential, ipAddress string, actorID uuid.UUID) error {
	err := s.sessions.Revoke(ctx, credential, ipAddress, actorID)
	if errors.Is(err, models.ErrNotFound) {
		// Already gone; logout is idempotent from the client's side.
		return nil
	}
	return err
}

// LogoutAll revokes every active session the actor holds
func (s *AuthService) LogoutAll(ctx context.Context, actorID uuid.UUID, ipAddress string) (int64, error) {
	return s.sessions.RevokeAll(ctx, actorID, ipAddress)
}

func (s *AuthService) issueTokens(ctx context.Context, account *models.Account, ipAddress, userAgent string) (*LoginResult, error) {
	accessToken, err := s.tokens.GenerateAccessToken(account.ID.String(), account.Email, account.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}

	credential, err := pkgauth.GenerateRefreshCredential()
	if err != nil {
		return nil, err
	}

	if _, err := s.sessions.Create(ctx, account.ID, credential, ipAddress, userAgent); err != nil {
		return nil, err
	}

	return &LoginResult{
		AccessToken:       accessToken,
		RefreshCredential: credential,
		ExpiresIn:         int(s.tokens.AccessTokenExpiry().Seconds()),
	}, nil
}
