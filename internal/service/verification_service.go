package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/clinic-service/internal/domain"
	"github.com/spec-kit/clinic-service/internal/events"
	"github.com/spec-kit/clinic-service/internal/repository"
	apperrors "github.com/spec-kit/clinic-service/pkg/util"
)

// VerificationService lets admins review doctor accounts.
type VerificationService struct {
	users      repository.UserRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewVerificationService creates the service.
func NewVerificationService(users repository.UserRepository, dispatcher events.Dispatcher, logger *zap.Logger) *VerificationService {
	return &VerificationService{users: users, dispatcher: dispatcher, logger: logger}
}

// UpdateDoctorVerification records a review decision. VERIFIED promotes the
// account to DOCTOR; any other status keeps it UNVERIFIED_DOCTOR. Tokens
// already issued keep their old claim until the next refresh.
func (s *VerificationService) UpdateDoctorVerification(ctx context.Context, admin domain.Claim, doctorID string, status domain.VerificationStatus) (*domain.User, error) {
	if !status.Valid() {
		return nil, apperrors.NewValidationError("unknown verification status", map[string]any{"status": status})
	}

	doctor, err := s.users.GetByID(ctx, doctorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("doctor", map[string]any{"id": doctorID})
		}
		return nil, apperrors.NewInternalError(err)
	}
	if doctor.Role != domain.RoleDoctor && doctor.Role != domain.RoleUnverifiedDoctor {
		return nil, apperrors.NewValidationError("account is not a doctor", map[string]any{"id": doctorID})
	}

	role := domain.RoleUnverifiedDoctor
	if status == domain.VerificationVerified {
		role = domain.RoleDoctor
	}
	previous := doctor.VerificationStatus

	updated, err := s.users.UpdateVerification(ctx, doctor.ID, role, domain.StatusPtr(status))
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.logger.Info("doctor verification updated",
		zap.String("doctor_id", doctor.ID),
		zap.String("admin_id", admin.ID),
		zap.String("status", string(status)))

	event := events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventDoctorVerificationChanged,
		SubjectID: doctor.ID,
		Actor:     &admin,
		Timestamp: time.Now().UTC(),
		Payload: events.DoctorVerificationChangedPayload{
			OldStatus: previous,
			NewStatus: status,
			Role:      role,
		},
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("verification event handlers failed", zap.String("doctor_id", doctor.ID), zap.Error(err))
	}
	return updated, nil
}
