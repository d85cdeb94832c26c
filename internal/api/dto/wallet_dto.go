package dto

import "time"

// WalletUnlockRequest payload.
type WalletUnlockRequest struct {
	Password string `json:"password"`
}

// WalletUnlockResponse carries the WALLET_UNLOCK token.
type WalletUnlockResponse struct {
	WalletToken string    `json:"walletToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// VerificationUpdateRequest payload for admin review.
type VerificationUpdateRequest struct {
	Status string `json:"status"`
}

// WalletResponse is the unlocked wallet view.
type WalletResponse struct {
	UserID    string    `json:"userId"`
	Balance   int64     `json:"balance"`
	Currency  string    `json:"currency"`
	UpdatedAt time.Time `json:"updatedAt"`
}
