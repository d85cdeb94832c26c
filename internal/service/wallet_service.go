package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/clinic-service/internal/domain"
	"github.com/spec-kit/clinic-service/internal/repository"
	apperrors "github.com/spec-kit/clinic-service/pkg/util"
)

// WalletService reads wallets once the caller has unlocked them.
type WalletService struct {
	wallets repository.WalletRepository
}

// NewWalletService creates the service.
func NewWalletService(wallets repository.WalletRepository) *WalletService {
	return &WalletService{wallets: wallets}
}

// Get returns the wallet owned by userID.
func (s *WalletService) Get(ctx context.Context, userID string) (*domain.Wallet, error) {
	wallet, err := s.wallets.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("wallet", nil)
		}
		return nil, apperrors.NewInternalError(err)
	}
	return wallet, nil
}
