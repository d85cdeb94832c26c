package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/clinic-service/internal/api/dto"
	"github.com/spec-kit/clinic-service/internal/auth"
	"github.com/spec-kit/clinic-service/internal/domain"
	"github.com/spec-kit/clinic-service/internal/service"
	apperrors "github.com/spec-kit/clinic-service/pkg/util"
)

// AdminHandler exposes doctor review.
type AdminHandler struct {
	verification *service.VerificationService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(verification *service.VerificationService) *AdminHandler {
	return &AdminHandler{verification: verification}
}

// UpdateDoctorVerification handles PATCH /admins/doctors/:id/verification.
func (h *AdminHandler) UpdateDoctorVerification(c *fiber.Ctx) error {
	claim, ok := auth.ClaimFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.VerificationUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	doctor, err := h.verification.UpdateDoctorVerification(c.UserContext(), claim, c.Params("id"), domain.VerificationStatus(req.Status))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(doctor)})
}
