package domain

import "time"

// User is the account record shared by patients, doctors and admins.
type User struct {
	ID                 string
	Username           string
	Name               string
	Email              string
	PasswordHash       string
	Role               Role
	VerificationStatus *VerificationStatus
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Claim builds the identity claim to embed in tokens for this user.
func (u *User) Claim() Claim {
	claim := Claim{ID: u.ID, Role: u.Role}
	if u.VerificationStatus != nil {
		status := *u.VerificationStatus
		claim.VerificationStatus = &status
	}
	return claim
}
