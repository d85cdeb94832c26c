package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/clinic-service/internal/auth"
	"github.com/spec-kit/clinic-service/internal/domain"
	"github.com/spec-kit/clinic-service/internal/service"
	apperrors "github.com/spec-kit/clinic-service/pkg/util"
)

// NotificationHandler lists and removes the caller's notifications.
type NotificationHandler struct {
	notifications *service.NotificationService
}

// NewNotificationHandler constructs handler.
func NewNotificationHandler(notifications *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// List handles GET /doctors/notifications and GET /patients/notifications.
func (h *NotificationHandler) List(c *fiber.Ctx) error {
	claim, ok := auth.ClaimFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	list, err := h.notifications.List(c.UserContext(), claim.ID)
	if err != nil {
		return err
	}
	if list == nil {
		list = []domain.Notification{}
	}
	return c.JSON(fiber.Map{"data": list})
}

// Delete handles DELETE /notifications/:id.
func (h *NotificationHandler) Delete(c *fiber.Ctx) error {
	claim, ok := auth.ClaimFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.notifications.Remove(c.UserContext(), claim.ID, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
