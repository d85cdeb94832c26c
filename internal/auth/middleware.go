package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/clinic-service/internal/domain"
	apperrors "github.com/spec-kit/clinic-service/pkg/util"
)

const principalKey = "auth_principal"

type ctxKey struct{}

var errMissingBearer = errors.New("missing authorization header")
var errInvalidBearer = errors.New("invalid authorization header")

// VerificationRecorder observes token verification outcomes.
type VerificationRecorder interface {
	RecordTokenVerification(kind domain.TokenKind, outcome string)
}

// AuthMiddleware validates bearer access tokens and attaches the decoded claim.
type AuthMiddleware struct {
	tokens  *TokenCodec
	metrics VerificationRecorder
}

// NewAuthMiddleware constructs middleware. metrics may be nil.
func NewAuthMiddleware(tokens *TokenCodec, metrics VerificationRecorder) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, metrics: metrics}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	token, err := BearerToken(c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return apperrors.NewUnauthorized(err.Error())
	}

	claim, err := m.Verify(token)
	if err != nil {
		return verificationError(err)
	}

	c.Locals(principalKey, claim)
	c.SetUserContext(WithClaim(c.UserContext(), claim))
	return c.Next()
}

// Verify checks an access token and records the outcome.
func (m *AuthMiddleware) Verify(token string) (domain.Claim, error) {
	claim, err := m.tokens.Verify(domain.TokenKindAccess, token)
	if m.metrics != nil {
		m.metrics.RecordTokenVerification(domain.TokenKindAccess, Classify(err).String())
	}
	return claim, err
}

// verificationError maps codec failures to the 401 variants clients branch on.
func verificationError(err error) error {
	switch Classify(err) {
	case TokenErrorExpired:
		return apperrors.NewAccessTokenExpired("access token expired")
	case TokenErrorSigning:
		return apperrors.NewInternalError(err)
	default:
		return apperrors.NewUnauthorized("invalid access token")
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", errMissingBearer
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", errInvalidBearer
	}
	return strings.TrimSpace(parts[1]), nil
}

// ClaimFromContext retrieves the authenticated identity.
func ClaimFromContext(c *fiber.Ctx) (domain.Claim, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return domain.Claim{}, false
	}
	claim, ok := val.(domain.Claim)
	return claim, ok
}

// WithClaim stores the identity in a standard context.
func WithClaim(ctx context.Context, claim domain.Claim) context.Context {
	return context.WithValue(ctx, ctxKey{}, claim)
}

// ClaimFrom reads an identity stored by WithClaim.
func ClaimFrom(ctx context.Context) (domain.Claim, bool) {
	claim, ok := ctx.Value(ctxKey{}).(domain.Claim)
	return claim, ok
}
