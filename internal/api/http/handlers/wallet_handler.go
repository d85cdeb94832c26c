package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/clinic-service/internal/api/dto"
	"github.com/spec-kit/clinic-service/internal/auth"
	"github.com/spec-kit/clinic-service/internal/service"
	apperrors "github.com/spec-kit/clinic-service/pkg/util"
)

// WalletHandler exposes wallet unlock and read.
type WalletHandler struct {
	auth    AuthService
	wallets *service.WalletService
}

// NewWalletHandler constructs handler.
func NewWalletHandler(authService AuthService, wallets *service.WalletService) *WalletHandler {
	return &WalletHandler{auth: authService, wallets: wallets}
}

// Unlock handles POST /wallets/unlock.
func (h *WalletHandler) Unlock(c *fiber.Ctx) error {
	claim, ok := auth.ClaimFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.WalletUnlockRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Password == "" {
		return apperrors.NewValidationError("password required", nil)
	}

	token, err := h.auth.UnlockWallet(c.UserContext(), claim, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.WalletUnlockResponse{WalletToken: token.Token, ExpiresAt: token.ExpiresAt}})
}

// Get handles GET /wallets. Runs after auth.RequireWalletToken.
func (h *WalletHandler) Get(c *fiber.Ctx) error {
	claim, ok := auth.ClaimFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	wallet, err := h.wallets.Get(c.UserContext(), claim.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.WalletResponse{
		UserID:    wallet.UserID,
		Balance:   wallet.Balance,
		Currency:  wallet.Currency,
		UpdatedAt: wallet.UpdatedAt,
	}})
}
