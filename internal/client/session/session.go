// Package session holds the client's current authenticated identity and
// keeps the default credential and realtime channel in step with it.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/spec-kit/clinic-service/internal/domain"
)

var (
	// ErrRefreshFailed ends the session; callers must not retry.
	ErrRefreshFailed = errors.New("session refresh failed")
	// ErrClosed is returned once the session has been torn down.
	ErrClosed = errors.New("session closed")
)

// Refresh and server logout outlive the request that triggered them, bounded
// by these timeouts instead.
const (
	refreshTimeout = 30 * time.Second
	logoutTimeout  = 10 * time.Second
)

// Identity is what the server returns on login and refresh.
type Identity struct {
	UserID             string                     `json:"id"`
	AccessToken        string                     `json:"accessToken"`
	Role               domain.Role                `json:"role"`
	VerificationStatus *domain.VerificationStatus `json:"verificationStatus,omitempty"`
}

// State is a snapshot of the session.
type State struct {
	IsAuthenticated    bool
	AccessToken        string
	Role               domain.Role
	VerificationStatus *domain.VerificationStatus
}

func guestState() State {
	return State{Role: domain.RoleGuest}
}

// AuthAPI is the server side of refresh and logout.
type AuthAPI interface {
	Refresh(ctx context.Context) (Identity, error)
	Logout(ctx context.Context) error
}

// Credentials is the default Authorization credential for outgoing requests.
type Credentials interface {
	Set(token string)
	Clear()
}

// Binder is the realtime channel tied to the identity.
type Binder interface {
	Connect(ctx context.Context, token, userID string) error
	Disconnect()
}

// Session is the single source of truth for who the client is.
type Session struct {
	api         AuthAPI
	credentials Credentials
	binder      Binder
	logger      *zap.Logger
	refreshes   singleflight.Group

	mu     sync.RWMutex
	state  State
	userID string
	closed bool
}

// New creates an unauthenticated session. binder may be nil.
func New(api AuthAPI, credentials Credentials, binder Binder, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		api:         api,
		credentials: credentials,
		binder:      binder,
		logger:      logger,
		state:       guestState(),
	}
}

// State returns a copy of the current state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.state
	if out.VerificationStatus != nil {
		status := *out.VerificationStatus
		out.VerificationStatus = &status
	}
	return out
}

// Role returns the current role, GUEST when logged out.
func (s *Session) Role() domain.Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Role
}

// UserID returns the id of the held profile, empty when logged out.
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// Login stores the identity, makes its token the default credential and
// then binds the realtime channel to it. An UNVERIFIED_DOCTOR without a
// verification status is stored as is.
func (s *Session) Login(ctx context.Context, id Identity) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if id.Role == domain.RoleUnverifiedDoctor && id.VerificationStatus == nil {
		s.logger.Warn("unverified doctor logged in without verification status", zap.String("user_id", id.UserID))
	}
	state := State{IsAuthenticated: true, AccessToken: id.AccessToken, Role: id.Role}
	if id.VerificationStatus != nil {
		status := *id.VerificationStatus
		state.VerificationStatus = &status
	}
	s.state = state
	s.userID = id.UserID
	s.mu.Unlock()

	s.credentials.Set(id.AccessToken)
	if s.binder == nil {
		return nil
	}
	if err := s.binder.Connect(ctx, id.AccessToken, id.UserID); err != nil {
		s.logger.Warn("realtime connect failed", zap.String("user_id", id.UserID), zap.Error(err))
		return fmt.Errorf("connect realtime channel: %w", err)
	}
	return nil
}

// Logout resets to GUEST, asks the server to drop the refresh token, clears
// the default credential and closes the realtime channel. It never fails:
// server errors are logged. Calling it again yields the same state. The
// server call ignores cancellation of ctx.
func (s *Session) Logout(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.state = guestState()
	s.userID = ""
	s.mu.Unlock()

	logoutCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), logoutTimeout)
	defer cancel()
	if err := s.api.Logout(logoutCtx); err != nil {
		s.logger.Warn("server logout failed", zap.Error(err))
	}
	s.credentials.Clear()
	if s.binder != nil {
		s.binder.Disconnect()
	}
}

// Refresh obtains a new access token with the server-held refresh token.
// Concurrent callers share one server call. On failure the session is
// logged out and the error wraps ErrRefreshFailed.
//
// The shared call does not inherit the caller's cancellation: a caller whose
// ctx ends gets ctx.Err() while the refresh completes and updates the session.
func (s *Session) Refresh(ctx context.Context) (string, error) {
	detached := context.WithoutCancel(ctx)
	results := s.refreshes.DoChan("refresh", func() (any, error) {
		refreshCtx, cancel := context.WithTimeout(detached, refreshTimeout)
		defer cancel()
		return s.refresh(refreshCtx)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-results:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (s *Session) refresh(ctx context.Context) (string, error) {
	if s.isClosed() {
		return "", ErrClosed
	}
	id, err := s.api.Refresh(ctx)
	if err != nil {
		s.Logout(ctx)
		return "", fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	// The realtime channel is best effort here: a refreshed token is still
	// valid for requests when the socket cannot be rebound.
	if err := s.Login(ctx, id); err != nil {
		if errors.Is(err, ErrClosed) {
			return "", err
		}
		s.logger.Warn("realtime rebind after refresh failed", zap.String("user_id", id.UserID), zap.Error(err))
	}
	return id.AccessToken, nil
}

// UpdateVerificationStatus changes the stored status only; no token is reissued.
func (s *Session) UpdateVerificationStatus(status domain.VerificationStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.state.VerificationStatus = &status
}

// Close tears the session down. Later mutations are ignored and the realtime
// channel is closed. The server session is left alone; call Logout first to end it.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	if s.binder != nil {
		s.binder.Disconnect()
	}
}

func (s *Session) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}
