package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/clinic-service/internal/api/dto"
	"github.com/spec-kit/clinic-service/internal/auth"
	"github.com/spec-kit/clinic-service/internal/config"
	"github.com/spec-kit/clinic-service/internal/domain"
	"github.com/spec-kit/clinic-service/internal/service"
	apperrors "github.com/spec-kit/clinic-service/pkg/util"
)

// AuthService is the subset of the auth service used over HTTP.
type AuthService interface {
	RegisterPatient(ctx context.Context, in service.RegisterInput) (*domain.User, *service.Session, error)
	RegisterDoctor(ctx context.Context, in service.RegisterInput) (*domain.User, *service.Session, error)
	Login(ctx context.Context, username, password string) (*domain.User, *service.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.User, *service.IssuedToken, error)
	Logout(ctx context.Context, refreshToken string) error
	RequestPasswordReset(ctx context.Context, email string) (*service.IssuedToken, error)
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) error
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
	UnlockWallet(ctx context.Context, claim domain.Claim, password string) (*service.IssuedToken, error)
}

// AuthHandler exposes registration, login and the token lifecycle.
type AuthHandler struct {
	auth         AuthService
	cookie       config.CookieConfig
	exposeResets bool
}

// NewAuthHandler constructs handler. Reset tokens are echoed in responses
// only when exposeResets is set.
func NewAuthHandler(authService AuthService, cookie config.CookieConfig, exposeResets bool) *AuthHandler {
	return &AuthHandler{auth: authService, cookie: cookie, exposeResets: exposeResets}
}

// RegisterPatient handles POST /auth/patients/register.
func (h *AuthHandler) RegisterPatient(c *fiber.Ctx) error {
	return h.register(c, h.auth.RegisterPatient)
}

// RegisterDoctor handles POST /auth/doctors/register.
func (h *AuthHandler) RegisterDoctor(c *fiber.Ctx) error {
	return h.register(c, h.auth.RegisterDoctor)
}

type registerFunc func(context.Context, service.RegisterInput) (*domain.User, *service.Session, error)

func (h *AuthHandler) register(c *fiber.Ctx, fn registerFunc) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	_, session, err := fn(c.UserContext(), service.RegisterInput{
		Username: req.Username,
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}

	h.setRefreshCookie(c, session.Refresh)
	return c.Status(http.StatusCreated).JSON(dto.NewSessionResponse(session.Claim, session.Access.Token, session.Access.ExpiresAt))
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Username == "" || req.Password == "" {
		return apperrors.NewValidationError("username and password required", nil)
	}

	_, session, err := h.auth.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return err
	}

	h.setRefreshCookie(c, session.Refresh)
	return c.JSON(dto.NewSessionResponse(session.Claim, session.Access.Token, session.Access.ExpiresAt))
}

// Refresh handles POST /auth/refresh-token. The refresh token only ever
// travels in the httpOnly cookie.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	user, access, err := h.auth.Refresh(c.UserContext(), c.Cookies(h.cookie.Name))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewSessionResponse(user.Claim(), access.Token, access.ExpiresAt))
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	err := h.auth.Logout(c.UserContext(), c.Cookies(h.cookie.Name))
	h.clearRefreshCookie(c)
	if err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	claim, ok := auth.ClaimFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	return c.JSON(fiber.Map{"data": claim})
}

// RequestPasswordReset handles POST /auth/password/reset/request.
func (h *AuthHandler) RequestPasswordReset(c *fiber.Ctx) error {
	var req dto.PasswordResetRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Email == "" {
		return apperrors.NewValidationError("email required", nil)
	}

	token, err := h.auth.RequestPasswordReset(c.UserContext(), req.Email)
	if err != nil {
		return err
	}
	data := fiber.Map{"expires_at": token.ExpiresAt}
	if h.exposeResets {
		data["reset_token"] = token.Token
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"data": data})
}

// ConfirmPasswordReset handles POST /auth/password/reset/confirm.
func (h *AuthHandler) ConfirmPasswordReset(c *fiber.Ctx) error {
	var req dto.PasswordResetConfirmRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Token == "" || req.NewPassword == "" {
		return apperrors.NewValidationError("token and new_password required", nil)
	}

	if err := h.auth.ConfirmPasswordReset(c.UserContext(), req.Token, req.NewPassword); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ChangePassword handles POST /auth/password/change.
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	claim, ok := auth.ClaimFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.PasswordChangeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		return apperrors.NewValidationError("current_password and new_password required", nil)
	}

	if err := h.auth.ChangePassword(c.UserContext(), claim.ID, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func (h *AuthHandler) setRefreshCookie(c *fiber.Ctx, refresh service.IssuedToken) {
	c.Cookie(&fiber.Cookie{
		Name:     h.cookie.Name,
		Value:    refresh.Token,
		Path:     h.cookie.Path,
		Domain:   h.cookie.Domain,
		Expires:  refresh.ExpiresAt,
		Secure:   h.cookie.Secure,
		HTTPOnly: true,
		SameSite: h.cookie.SameSite,
	})
}

func (h *AuthHandler) clearRefreshCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     h.cookie.Path,
		Domain:   h.cookie.Domain,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		Secure:   h.cookie.Secure,
		HTTPOnly: true,
		SameSite: h.cookie.SameSite,
	})
}
