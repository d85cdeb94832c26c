package events

import (
	"time"

	"github.com/spec-kit/clinic-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventDoctorVerificationChanged EventType = "doctor_verification_changed"
	EventPasswordResetRequested    EventType = "password_reset_requested"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string        `json:"id"`
	Type      EventType     `json:"type"`
	SubjectID string        `json:"subject_id"`
	Actor     *domain.Claim `json:"actor,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Payload   interface{}   `json:"payload"`
}

// DoctorVerificationChangedPayload payload.
type DoctorVerificationChangedPayload struct {
	OldStatus *domain.VerificationStatus `json:"old_status,omitempty"`
	NewStatus domain.VerificationStatus  `json:"new_status"`
	Role      domain.Role                `json:"role"`
}

// PasswordResetRequestedPayload payload. Token is delivered out of band.
type PasswordResetRequestedPayload struct {
	Email     string    `json:"email"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}
