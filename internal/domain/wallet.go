package domain

import "time"

// Wallet holds the stored balance for a patient or doctor.
type Wallet struct {
	UserID    string
	Balance   int64
	Currency  string
	UpdatedAt time.Time
}
