package domain

// Role enumerates the identities a session can carry.
type Role string

const (
	RoleGuest            Role = "GUEST"
	RolePatient          Role = "PATIENT"
	RoleDoctor           Role = "DOCTOR"
	RoleUnverifiedDoctor Role = "UNVERIFIED_DOCTOR"
	RoleAdmin            Role = "ADMIN"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleGuest, RolePatient, RoleDoctor, RoleUnverifiedDoctor, RoleAdmin:
		return true
	}
	return false
}

// VerificationStatus tracks the review state of a doctor account.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "PENDING"
	VerificationVerified VerificationStatus = "VERIFIED"
	VerificationRejected VerificationStatus = "REJECTED"
)

// Valid reports whether s is one of the known statuses.
func (s VerificationStatus) Valid() bool {
	switch s {
	case VerificationPending, VerificationVerified, VerificationRejected:
		return true
	}
	return false
}

// TokenKind tags a token with the purpose it was issued for.
type TokenKind string

const (
	TokenKindAccess        TokenKind = "ACCESS"
	TokenKindRefresh       TokenKind = "REFRESH"
	TokenKindPasswordReset TokenKind = "PASSWORD_RESET"
	TokenKindWalletUnlock  TokenKind = "WALLET_UNLOCK"
)

// TokenKinds lists every kind the codec knows about.
var TokenKinds = []TokenKind{
	TokenKindAccess,
	TokenKindRefresh,
	TokenKindPasswordReset,
	TokenKindWalletUnlock,
}

// Claim is the identity payload carried by every token.
type Claim struct {
	ID                 string              `json:"id"`
	Role               Role                `json:"role"`
	VerificationStatus *VerificationStatus `json:"verificationStatus,omitempty"`
}

// Status returns the verification status or the empty string.
func (c Claim) Status() VerificationStatus {
	if c.VerificationStatus == nil {
		return ""
	}
	return *c.VerificationStatus
}

// StatusPtr is a helper for building claims and requests.
func StatusPtr(s VerificationStatus) *VerificationStatus {
	return &s
}
