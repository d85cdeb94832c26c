package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/clinic-service/internal/domain"
	"github.com/spec-kit/clinic-service/internal/events"
	apperrors "github.com/spec-kit/clinic-service/pkg/util"
)

const strongPassword = "Str0ng!Pass"

func errorCode(t *testing.T, err error) string {
	t.Helper()
	var de *apperrors.DomainError
	require.True(t, errors.As(err, &de), "expected DomainError, got %v", err)
	return de.Code
}

func registerPatient(t *testing.T, f *authFixture, username string) (*domain.User, *Session) {
	t.Helper()
	user, session, err := f.svc.RegisterPatient(context.Background(), RegisterInput{
		Username: username,
		Name:     "Pat " + username,
		Email:    username + "@example.com",
		Password: strongPassword,
	})
	require.NoError(t, err)
	return user, session
}

func TestAuthService_RegisterPatient(t *testing.T) {
	f := newAuthFixture()
	user, session := registerPatient(t, f, "pat")

	assert.Equal(t, domain.RolePatient, user.Role)
	assert.Nil(t, user.VerificationStatus)
	assert.Equal(t, []string{user.ID}, f.wallets.created)
	assert.Equal(t, 1, f.sessions.count())
	assert.Equal(t, []time.Duration{7 * 24 * time.Hour}, f.sessions.ttls)

	claim, err := f.codec.Verify(domain.TokenKindAccess, session.Access.Token)
	require.NoError(t, err)
	assert.Equal(t, user.Claim(), claim)
}

func TestAuthService_RegisterDoctorStartsPending(t *testing.T) {
	f := newAuthFixture()
	user, session, err := f.svc.RegisterDoctor(context.Background(), RegisterInput{
		Username: "doc", Name: "Dr Doc", Email: "Doc@Example.com", Password: strongPassword,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.RoleUnverifiedDoctor, user.Role)
	assert.Equal(t, "doc@example.com", user.Email)
	require.NotNil(t, session.Claim.VerificationStatus)
	assert.Equal(t, domain.VerificationPending, *session.Claim.VerificationStatus)
}

func TestAuthService_RegisterRejects(t *testing.T) {
	f := newAuthFixture()
	registerPatient(t, f, "taken")

	cases := map[string]struct {
		in   RegisterInput
		code string
	}{
		"weak password":   {RegisterInput{Username: "a", Name: "A", Email: "a@x.io", Password: "weak"}, apperrors.CodeValidation},
		"missing name":    {RegisterInput{Username: "b", Email: "b@x.io", Password: strongPassword}, apperrors.CodeValidation},
		"duplicate user":  {RegisterInput{Username: "taken", Name: "T", Email: "new@x.io", Password: strongPassword}, apperrors.CodeConflict},
		"duplicate email": {RegisterInput{Username: "new", Name: "T", Email: "taken@example.com", Password: strongPassword}, apperrors.CodeConflict},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := f.svc.RegisterPatient(context.Background(), tc.in)
			require.Error(t, err)
			assert.Equal(t, tc.code, errorCode(t, err))
		})
	}
}

func TestAuthService_Login(t *testing.T) {
	f := newAuthFixture()
	user, _ := registerPatient(t, f, "pat")

	got, session, err := f.svc.Login(context.Background(), "pat", strongPassword)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.NotEmpty(t, session.Refresh.Token)

	_, _, err = f.svc.Login(context.Background(), "pat", "Wr0ng!Pass")
	assert.Equal(t, apperrors.CodeUnauthorized, errorCode(t, err))
	_, _, err = f.svc.Login(context.Background(), "nobody", strongPassword)
	assert.Equal(t, apperrors.CodeUnauthorized, errorCode(t, err))
}

func TestAuthService_RefreshPicksUpVerificationChange(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	doctor, session, err := f.svc.RegisterDoctor(ctx, RegisterInput{
		Username: "doc", Name: "Dr", Email: "doc@x.io", Password: strongPassword,
	})
	require.NoError(t, err)

	_, err = f.users.UpdateVerification(ctx, doctor.ID, domain.RoleDoctor, domain.StatusPtr(domain.VerificationVerified))
	require.NoError(t, err)

	*f.now = f.now.Add(20 * time.Minute)
	user, access, err := f.svc.Refresh(ctx, session.Refresh.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleDoctor, user.Role)

	claim, err := f.codec.Verify(domain.TokenKindAccess, access.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleDoctor, claim.Role)
	assert.Equal(t, domain.VerificationVerified, claim.Status())
	assert.Equal(t, []string{"ok"}, f.metrics.outcomes)
}

func TestAuthService_RefreshFailures(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	_, session := registerPatient(t, f, "pat")

	_, _, err := f.svc.Refresh(ctx, "")
	assert.Equal(t, apperrors.CodeUnauthorized, errorCode(t, err))

	_, _, err = f.svc.Refresh(ctx, session.Access.Token)
	assert.Equal(t, apperrors.CodeUnauthorized, errorCode(t, err), "access token is not a refresh token")

	require.NoError(t, f.svc.Logout(ctx, session.Refresh.Token))
	_, _, err = f.svc.Refresh(ctx, session.Refresh.Token)
	assert.Equal(t, apperrors.CodeUnauthorized, errorCode(t, err), "revoked session")

	assert.Equal(t, []string{"failed", "failed", "failed"}, f.metrics.outcomes)
}

func TestAuthService_RefreshExpired(t *testing.T) {
	f := newAuthFixture()
	_, session := registerPatient(t, f, "pat")

	*f.now = session.Refresh.ExpiresAt.Add(time.Second)
	_, _, err := f.svc.Refresh(context.Background(), session.Refresh.Token)
	assert.Equal(t, apperrors.CodeUnauthorized, errorCode(t, err))
}

func TestAuthService_LogoutIgnoresUnusableTokens(t *testing.T) {
	f := newAuthFixture()
	assert.NoError(t, f.svc.Logout(context.Background(), ""))
	assert.NoError(t, f.svc.Logout(context.Background(), "garbage"))
}

func TestAuthService_PasswordResetFlow(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	user, session := registerPatient(t, f, "pat")

	var delivered events.PasswordResetRequestedPayload
	f.dispatcher.Subscribe(events.EventPasswordResetRequested, func(_ context.Context, e events.Event) error {
		delivered = e.Payload.(events.PasswordResetRequestedPayload)
		return nil
	})

	issued, err := f.svc.RequestPasswordReset(ctx, " PAT@example.com ")
	require.NoError(t, err)
	assert.Equal(t, issued.Token, delivered.Token)
	assert.Equal(t, user.Email, delivered.Email)

	err = f.svc.ConfirmPasswordReset(ctx, session.Access.Token, "N3w!Password")
	assert.Equal(t, apperrors.CodeValidation, errorCode(t, err), "access token cannot reset")

	require.NoError(t, f.svc.ConfirmPasswordReset(ctx, issued.Token, "N3w!Password"))
	assert.Equal(t, 0, f.sessions.count())

	_, _, err = f.svc.Login(ctx, "pat", strongPassword)
	assert.Error(t, err)
	_, _, err = f.svc.Login(ctx, "pat", "N3w!Password")
	assert.NoError(t, err)

	err = f.svc.ConfirmPasswordReset(ctx, issued.Token, "An0ther!Pass")
	assert.Equal(t, apperrors.CodeValidation, errorCode(t, err), "reset token is single use")

	_, err = f.svc.RequestPasswordReset(ctx, "unknown@example.com")
	assert.Equal(t, apperrors.CodeNotFound, errorCode(t, err))
}

func TestAuthService_ChangePassword(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	user, _ := registerPatient(t, f, "pat")

	err := f.svc.ChangePassword(ctx, user.ID, "Wr0ng!Pass", "N3w!Password")
	assert.Equal(t, apperrors.CodeValidation, errorCode(t, err))
	require.NoError(t, f.svc.ChangePassword(ctx, user.ID, strongPassword, "N3w!Password"))

	_, _, err = f.svc.Login(ctx, "pat", "N3w!Password")
	assert.NoError(t, err)
}

func TestAuthService_UnlockWallet(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	user, _ := registerPatient(t, f, "pat")

	_, err := f.svc.UnlockWallet(ctx, user.Claim(), "Wr0ng!Pass")
	assert.Equal(t, apperrors.CodeForbidden, errorCode(t, err))

	issued, err := f.svc.UnlockWallet(ctx, user.Claim(), strongPassword)
	require.NoError(t, err)
	claim, err := f.codec.Verify(domain.TokenKindWalletUnlock, issued.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claim.ID)
	assert.Equal(t, testNow.Add(10*time.Minute), issued.ExpiresAt)
}
