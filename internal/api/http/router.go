package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/clinic-service/internal/api/http/handlers"
	"github.com/spec-kit/clinic-service/internal/auth"
	"github.com/spec-kit/clinic-service/internal/domain"
	"github.com/spec-kit/clinic-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Wallets        *handlers.WalletHandler
	Notifications  *handlers.NotificationHandler
	Admin          *handlers.AdminHandler
	AuthMiddleware *auth.AuthMiddleware
	Codec          *auth.TokenCodec
	RateLimiter    *RateLimiter
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	limited := func(h fiber.Handler) []fiber.Handler {
		if cfg.RateLimiter == nil {
			return []fiber.Handler{h}
		}
		return []fiber.Handler{cfg.RateLimiter.Middleware(), h}
	}

	authGroup := app.Group("/auth")
	authGroup.Post("/patients/register", limited(cfg.Auth.RegisterPatient)...)
	authGroup.Post("/doctors/register", limited(cfg.Auth.RegisterDoctor)...)
	authGroup.Post("/login", limited(cfg.Auth.Login)...)
	authGroup.Post("/refresh-token", cfg.Auth.Refresh)
	authGroup.Post("/logout", cfg.Auth.Logout)
	authGroup.Post("/password/reset/request", limited(cfg.Auth.RequestPasswordReset)...)
	authGroup.Post("/password/reset/confirm", limited(cfg.Auth.ConfirmPasswordReset)...)

	authGroup.Get("/me", cfg.AuthMiddleware.Handle, auth.RequireAnyRole(), cfg.Auth.Me)
	authGroup.Post("/password/change", cfg.AuthMiddleware.Handle, auth.RequireAnyRole(), cfg.Auth.ChangePassword)

	wallets := app.Group("/wallets", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RolePatient, domain.RoleDoctor))
	wallets.Post("/unlock", cfg.Wallets.Unlock)
	wallets.Get("", auth.RequireWalletToken(cfg.Codec), cfg.Wallets.Get)

	app.Get("/doctors/notifications", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleDoctor, domain.RoleUnverifiedDoctor), cfg.Notifications.List)
	app.Get("/patients/notifications", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RolePatient), cfg.Notifications.List)
	app.Delete("/notifications/:id", cfg.AuthMiddleware.Handle, auth.RequireAnyRole(), cfg.Notifications.Delete)

	admins := app.Group("/admins", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleAdmin))
	admins.Patch("/doctors/:id/verification", cfg.Admin.UpdateDoctorVerification)
}
