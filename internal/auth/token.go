package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/clinic-service/internal/domain"
)

// Token verification and signing failures. Callers branch with errors.Is or Classify.
var (
	ErrSigning          = errors.New("token signing misconfigured")
	ErrExpiredToken     = errors.New("token expired")
	ErrInvalidSignature = errors.New("token signature invalid")
	ErrMalformedToken   = errors.New("token malformed")
)

// TokenErrorKind is the value form of the codec error taxonomy.
type TokenErrorKind int

const (
	TokenErrorNone TokenErrorKind = iota
	TokenErrorSigning
	TokenErrorExpired
	TokenErrorInvalidSignature
	TokenErrorMalformed
)

func (k TokenErrorKind) String() string {
	switch k {
	case TokenErrorNone:
		return "ok"
	case TokenErrorSigning:
		return "signing"
	case TokenErrorExpired:
		return "expired"
	case TokenErrorInvalidSignature:
		return "invalid_signature"
	case TokenErrorMalformed:
		return "malformed"
	}
	return "unknown"
}

// Classify maps an error returned by the codec to its kind.
func Classify(err error) TokenErrorKind {
	switch {
	case err == nil:
		return TokenErrorNone
	case errors.Is(err, ErrSigning):
		return TokenErrorSigning
	case errors.Is(err, ErrExpiredToken):
		return TokenErrorExpired
	case errors.Is(err, ErrInvalidSignature):
		return TokenErrorInvalidSignature
	default:
		return TokenErrorMalformed
	}
}

// Policy is the secret and lifetime used for one token kind.
type Policy struct {
	Secret string
	TTL    time.Duration
}

// Claims describes JWT payload.
type Claims struct {
	domain.Claim
	Kind domain.TokenKind `json:"kind"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies the four token kinds, each under its own secret.
type TokenCodec struct {
	policies map[domain.TokenKind]Policy
	now      func() time.Time
}

// CodecOption customizes a TokenCodec.
type CodecOption func(*TokenCodec)

// WithClock replaces the time source used for issuing and expiry checks.
func WithClock(now func() time.Time) CodecOption {
	return func(c *TokenCodec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewTokenCodec builds a codec from per-kind policies.
func NewTokenCodec(policies map[domain.TokenKind]Policy, opts ...CodecOption) *TokenCodec {
	copied := make(map[domain.TokenKind]Policy, len(policies))
	for kind, p := range policies {
		copied[kind] = p
	}
	c := &TokenCodec{policies: copied, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the configured lifetime for kind.
func (c *TokenCodec) TTL(kind domain.TokenKind) time.Duration {
	return c.policies[kind].TTL
}

func (c *TokenCodec) policy(kind domain.TokenKind) (Policy, error) {
	p, ok := c.policies[kind]
	if !ok || p.Secret == "" {
		return Policy{}, fmt.Errorf("%w: no secret for %s tokens", ErrSigning, kind)
	}
	if p.TTL <= 0 {
		return Policy{}, fmt.Errorf("%w: no ttl for %s tokens", ErrSigning, kind)
	}
	return p, nil
}

// Issue signs claim as a token of the given kind and returns it with its expiry.
func (c *TokenCodec) Issue(kind domain.TokenKind, claim domain.Claim) (string, time.Time, error) {
	p, err := c.policy(kind)
	if err != nil {
		return "", time.Time{}, err
	}

	issuedAt := c.now().Truncate(time.Second)
	expiresAt := issuedAt.Add(p.TTL)
	claims := &Claims{
		Claim: claim,
		Kind:  kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claim.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(p.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %v", ErrSigning, err)
	}
	return tokenString, expiresAt, nil
}

// Verify validates a token of the given kind and returns its identity claim.
func (c *TokenCodec) Verify(kind domain.TokenKind, tokenStr string) (domain.Claim, error) {
	p, err := c.policy(kind)
	if err != nil {
		return domain.Claim{}, err
	}
	if tokenStr == "" {
		return domain.Claim{}, ErrMalformedToken
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(p.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return domain.Claim{}, translateJWTError(err)
	}
	if !parsed.Valid {
		return domain.Claim{}, ErrInvalidSignature
	}
	if claims.Kind != kind {
		return domain.Claim{}, fmt.Errorf("%w: %s token presented as %s", ErrInvalidSignature, claims.Kind, kind)
	}
	if claims.Claim.ID == "" || !claims.Role.Valid() {
		return domain.Claim{}, ErrMalformedToken
	}

	return decodeClaim(claims), nil
}

// decodeClaim keeps verificationStatus only when the token carried one.
func decodeClaim(claims *Claims) domain.Claim {
	out := domain.Claim{ID: claims.Claim.ID, Role: claims.Role}
	if claims.VerificationStatus != nil && *claims.VerificationStatus != "" {
		out.VerificationStatus = domain.StatusPtr(*claims.VerificationStatus)
	}
	return out
}

func translateJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpiredToken, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
}
