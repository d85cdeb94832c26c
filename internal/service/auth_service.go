package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/clinic-service/internal/auth"
	"github.com/spec-kit/clinic-service/internal/config"
	"github.com/spec-kit/clinic-service/internal/domain"
	"github.com/spec-kit/clinic-service/internal/events"
	"github.com/spec-kit/clinic-service/internal/repository"
	apperrors "github.com/spec-kit/clinic-service/pkg/util"
)

var (
	errInvalidCredentials = apperrors.NewUnauthorized("invalid credentials")
	errResetInvalid       = apperrors.NewValidationError("reset token invalid or expired", nil)
)

// RefreshRecorder observes refresh-token exchanges.
type RefreshRecorder interface {
	RecordRefresh(outcome string)
}

// IssuedToken is a signed token with its expiry.
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}

// Session is the pair of tokens handed out on login.
type Session struct {
	Claim   domain.Claim
	Access  IssuedToken
	Refresh IssuedToken
}

// RegisterInput carries the fields common to patient and doctor sign-up.
type RegisterInput struct {
	Username string
	Name     string
	Email    string
	Password string
}

// AuthService coordinates registration, login and the token lifecycle.
type AuthService struct {
	users      repository.UserRepository
	wallets    repository.WalletRepository
	sessions   repository.RefreshSessionRepository
	resets     repository.PasswordResetRepository
	dispatcher events.Dispatcher
	codec      *auth.TokenCodec
	metrics    RefreshRecorder
	logger     *zap.Logger
	bcryptCost int
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	UserRepo        repository.UserRepository
	WalletRepo      repository.WalletRepository
	RefreshSessions repository.RefreshSessionRepository
	PasswordResets  repository.PasswordResetRepository
	Dispatcher      events.Dispatcher
	Codec           *auth.TokenCodec
	Metrics         RefreshRecorder
	Logger          *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:      deps.UserRepo,
		wallets:    deps.WalletRepo,
		sessions:   deps.RefreshSessions,
		resets:     deps.PasswordResets,
		dispatcher: deps.Dispatcher,
		codec:      deps.Codec,
		metrics:    deps.Metrics,
		logger:     logger,
		bcryptCost: cfg.BcryptCost,
	}
}

// NewTokenCodec builds the codec from auth configuration.
func NewTokenCodec(cfg config.AuthConfig, opts ...auth.CodecOption) *auth.TokenCodec {
	policies := make(map[domain.TokenKind]auth.Policy)
	for kind, p := range cfg.TokenPolicies() {
		policies[kind] = auth.Policy{Secret: p.Secret, TTL: p.TTL}
	}
	return auth.NewTokenCodec(policies, opts...)
}

// Codec exposes the underlying token codec for middleware usage.
func (s *AuthService) Codec() *auth.TokenCodec {
	return s.codec
}

// RegisterPatient creates a patient account and logs it in.
func (s *AuthService) RegisterPatient(ctx context.Context, in RegisterInput) (*domain.User, *Session, error) {
	return s.register(ctx, in, domain.RolePatient, nil)
}

// RegisterDoctor creates a doctor account pending verification and logs it in.
func (s *AuthService) RegisterDoctor(ctx context.Context, in RegisterInput) (*domain.User, *Session, error) {
	return s.register(ctx, in, domain.RoleUnverifiedDoctor, domain.StatusPtr(domain.VerificationPending))
}

func (s *AuthService) register(ctx context.Context, in RegisterInput, role domain.Role, status *domain.VerificationStatus) (*domain.User, *Session, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Username == "" || in.Email == "" || in.Password == "" || strings.TrimSpace(in.Name) == "" {
		return nil, nil, apperrors.NewValidationError("username, name, email and password required", nil)
	}
	if err := auth.ValidatePasswordStrength(in.Password); err != nil {
		return nil, nil, apperrors.NewValidationError(err.Error(), nil)
	}

	if err := s.ensureUnique(ctx, in.Username, in.Email); err != nil {
		return nil, nil, err
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		Username:           in.Username,
		Name:               strings.TrimSpace(in.Name),
		Email:              in.Email,
		PasswordHash:       hash,
		Role:               role,
		VerificationStatus: status,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, nil, apperrors.NewInternalError(err)
	}
	if s.wallets != nil {
		if err := s.wallets.Create(ctx, user.ID); err != nil {
			s.logger.Warn("wallet creation failed", zap.String("user_id", user.ID), zap.Error(err))
		}
	}

	session, err := s.startSession(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, session, nil
}

func (s *AuthService) ensureUnique(ctx context.Context, username, email string) error {
	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return apperrors.NewConflict("username already exists", map[string]any{"field": "username"})
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewInternalError(err)
	}
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return apperrors.NewConflict("email already exists", map[string]any{"field": "email"})
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewInternalError(err)
	}
	return nil
}

// Login authenticates by username and starts a new refresh session.
func (s *AuthService) Login(ctx context.Context, username, password string) (*domain.User, *Session, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, errInvalidCredentials
		}
		return nil, nil, apperrors.NewInternalError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, nil, errInvalidCredentials
	}

	session, err := s.startSession(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("user logged in", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, session, nil
}

func (s *AuthService) startSession(ctx context.Context, user *domain.User) (*Session, error) {
	claim := user.Claim()
	access, accessExp, err := s.codec.Issue(domain.TokenKindAccess, claim)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	refresh, refreshExp, err := s.codec.Issue(domain.TokenKindRefresh, claim)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if err := s.sessions.Register(ctx, user.ID, refresh, s.codec.TTL(domain.TokenKindRefresh)); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &Session{
		Claim:   claim,
		Access:  IssuedToken{Token: access, ExpiresAt: accessExp},
		Refresh: IssuedToken{Token: refresh, ExpiresAt: refreshExp},
	}, nil
}

// Refresh exchanges a refresh token for a new access token. The user is
// reloaded so role and verification changes since login are picked up.
// The refresh token itself is not rotated, so concurrent refreshes with the
// same cookie all succeed.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.User, *IssuedToken, error) {
	user, token, err := s.refresh(ctx, refreshToken)
	if s.metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = "failed"
		}
		s.metrics.RecordRefresh(outcome)
	}
	return user, token, err
}

func (s *AuthService) refresh(ctx context.Context, refreshToken string) (*domain.User, *IssuedToken, error) {
	if refreshToken == "" {
		return nil, nil, apperrors.NewUnauthorized("refresh token missing")
	}
	claim, err := s.codec.Verify(domain.TokenKindRefresh, refreshToken)
	if err != nil {
		if auth.Classify(err) == auth.TokenErrorSigning {
			return nil, nil, apperrors.NewInternalError(err)
		}
		return nil, nil, apperrors.NewUnauthorized("refresh token invalid or expired")
	}

	active, err := s.sessions.Active(ctx, claim.ID, refreshToken)
	if err != nil {
		return nil, nil, apperrors.NewInternalError(err)
	}
	if !active {
		return nil, nil, apperrors.NewUnauthorized("refresh token revoked")
	}

	user, err := s.users.GetByID(ctx, claim.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NewUnauthorized("user no longer exists")
		}
		return nil, nil, apperrors.NewInternalError(err)
	}

	access, exp, err := s.codec.Issue(domain.TokenKindAccess, user.Claim())
	if err != nil {
		return nil, nil, apperrors.NewInternalError(err)
	}
	return user, &IssuedToken{Token: access, ExpiresAt: exp}, nil
}

// Logout unregisters the refresh session. Unknown or invalid tokens are not
// an error: the caller's session is over either way.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	claim, err := s.codec.Verify(domain.TokenKindRefresh, refreshToken)
	if err != nil {
		s.logger.Debug("logout with unusable refresh token", zap.String("reason", auth.Classify(err).String()))
		return nil
	}
	if err := s.sessions.Revoke(ctx, claim.ID, refreshToken); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}

// RequestPasswordReset issues a PASSWORD_RESET token for the account with email.
// Delivery happens through the notification pipeline.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (*IssuedToken, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("account", nil)
		}
		return nil, apperrors.NewInternalError(err)
	}

	token, exp, err := s.codec.Issue(domain.TokenKindPasswordReset, domain.Claim{ID: user.ID, Role: user.Role})
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	reset := &repository.PasswordReset{UserID: user.ID, TokenHash: repository.HashToken(token), ExpiresAt: exp}
	if err := s.resets.Create(ctx, reset); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	if s.dispatcher != nil {
		event := events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventPasswordResetRequested,
			SubjectID: user.ID,
			Timestamp: time.Now().UTC(),
			Payload:   events.PasswordResetRequestedPayload{Email: user.Email, Token: token, ExpiresAt: exp},
		}
		if err := s.dispatcher.Publish(ctx, event); err != nil {
			s.logger.Warn("password reset delivery failed", zap.String("user_id", user.ID), zap.Error(err))
		}
	}
	return &IssuedToken{Token: token, ExpiresAt: exp}, nil
}

// ConfirmPasswordReset sets a new password and revokes every refresh session.
// Each reset token is redeemed at most once.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	claim, err := s.codec.Verify(domain.TokenKindPasswordReset, token)
	if err != nil {
		if auth.Classify(err) == auth.TokenErrorSigning {
			return apperrors.NewInternalError(err)
		}
		return errResetInvalid
	}
	if err := auth.ValidatePasswordStrength(newPassword); err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}

	reset, err := s.resets.GetByTokenHash(ctx, repository.HashToken(token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errResetInvalid
		}
		return apperrors.NewInternalError(err)
	}
	if reset.UsedAt != nil || reset.UserID != claim.ID {
		return errResetInvalid
	}
	if err := s.resets.MarkUsed(ctx, reset.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errResetInvalid
		}
		return apperrors.NewInternalError(err)
	}

	user, err := s.users.GetByID(ctx, claim.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("account", nil)
		}
		return apperrors.NewInternalError(err)
	}
	if err := s.setPassword(ctx, user, newPassword); err != nil {
		return err
	}
	if err := s.sessions.RevokeAll(ctx, user.ID); err != nil {
		s.logger.Warn("revoking sessions after reset failed", zap.String("user_id", user.ID), zap.Error(err))
	}
	return nil
}

// ChangePassword verifies current password before updating to new hash.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("account", nil)
		}
		return apperrors.NewInternalError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, currentPassword); err != nil {
		return apperrors.NewValidationError("current password incorrect", nil)
	}
	if err := auth.ValidatePasswordStrength(newPassword); err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}
	return s.setPassword(ctx, user, newPassword)
}

func (s *AuthService) setPassword(ctx context.Context, user *domain.User, password string) error {
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	user.PasswordHash = hash
	if err := s.users.Update(ctx, user); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}

// UnlockWallet re-checks the password and issues a WALLET_UNLOCK token.
func (s *AuthService) UnlockWallet(ctx context.Context, claim domain.Claim, password string) (*IssuedToken, error) {
	user, err := s.users.GetByID(ctx, claim.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("account", nil)
		}
		return nil, apperrors.NewInternalError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewForbidden("wallet password incorrect")
	}
	token, exp, err := s.codec.Issue(domain.TokenKindWalletUnlock, domain.Claim{ID: user.ID, Role: user.Role})
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &IssuedToken{Token: token, ExpiresAt: exp}, nil
}
