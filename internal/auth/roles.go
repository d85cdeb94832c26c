package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/clinic-service/internal/domain"
	apperrors "github.com/spec-kit/clinic-service/pkg/util"
)

// WalletTokenHeader carries the WALLET_UNLOCK token on wallet routes.
const WalletTokenHeader = "X-Wallet-Token"

// RequireRole ensures the caller holds one of the allowed roles.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		claim, ok := ClaimFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[claim.Role]; !exists {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}

// RequireAnyRole ensures caller is authenticated.
func RequireAnyRole() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := ClaimFromContext(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}

// RequireWalletToken checks the unlock token belongs to the authenticated caller.
// Failures are 403 so clients treat them as wallet-locked rather than logged out.
func RequireWalletToken(tokens *TokenCodec) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claim, ok := ClaimFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		raw := c.Get(WalletTokenHeader)
		if raw == "" {
			return apperrors.NewForbidden("wallet locked")
		}
		walletClaim, err := tokens.Verify(domain.TokenKindWalletUnlock, raw)
		if err != nil {
			if Classify(err) == TokenErrorSigning {
				return apperrors.NewInternalError(err)
			}
			return apperrors.NewForbidden("wallet token invalid")
		}
		if walletClaim.ID != claim.ID {
			return apperrors.NewForbidden("wallet token does not match caller")
		}
		return c.Next()
	}
}
