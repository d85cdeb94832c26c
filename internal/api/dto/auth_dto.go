package dto

import (
	"time"

	"github.com/spec-kit/clinic-service/internal/domain"
)

// RegisterRequest payload for patient and doctor sign-up.
type RegisterRequest struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SessionResponse is returned by login, register and refresh-token.
type SessionResponse struct {
	ID                 string                     `json:"id"`
	AccessToken        string                     `json:"accessToken"`
	ExpiresAt          time.Time                  `json:"expiresAt"`
	Role               domain.Role                `json:"role"`
	VerificationStatus *domain.VerificationStatus `json:"verificationStatus,omitempty"`
}

// NewSessionResponse builds the response from a claim and its access token.
func NewSessionResponse(claim domain.Claim, accessToken string, expiresAt time.Time) SessionResponse {
	return SessionResponse{
		ID:                 claim.ID,
		AccessToken:        accessToken,
		ExpiresAt:          expiresAt,
		Role:               claim.Role,
		VerificationStatus: claim.VerificationStatus,
	}
}

// PasswordResetRequest payload.
type PasswordResetRequest struct {
	Email string `json:"email"`
}

// PasswordResetConfirmRequest payload.
type PasswordResetConfirmRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// PasswordChangeRequest payload.
type PasswordChangeRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID                 string                     `json:"id"`
	Username           string                     `json:"username"`
	Name               string                     `json:"name"`
	Email              string                     `json:"email"`
	Role               domain.Role                `json:"role"`
	VerificationStatus *domain.VerificationStatus `json:"verificationStatus,omitempty"`
}

// NewUserResponse maps a user to its public view.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:                 u.ID,
		Username:           u.Username,
		Name:               u.Name,
		Email:              u.Email,
		Role:               u.Role,
		VerificationStatus: u.VerificationStatus,
	}
}
