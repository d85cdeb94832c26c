package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/clinic-service/internal/domain"
)

// WalletRepository manages wallet rows.
type WalletRepository interface {
	Create(ctx context.Context, userID string) error
	GetByUserID(ctx context.Context, userID string) (*domain.Wallet, error)
}

type walletRepository struct {
	pool *pgxpool.Pool
}

// NewWalletRepository constructs repository.
func NewWalletRepository(pool *pgxpool.Pool) WalletRepository {
	return &walletRepository{pool: pool}
}

func (r *walletRepository) Create(ctx context.Context, userID string) error {
	const query = `
        INSERT INTO wallets (user_id) VALUES ($1)
        ON CONFLICT (user_id) DO NOTHING`
	_, err := r.pool.Exec(ctx, query, userID)
	return err
}

func (r *walletRepository) GetByUserID(ctx context.Context, userID string) (*domain.Wallet, error) {
	const query = `
        SELECT user_id, balance, currency, updated_at
        FROM wallets WHERE user_id=$1`
	var wallet domain.Wallet
	if err := r.pool.QueryRow(ctx, query, userID).Scan(
		&wallet.UserID,
		&wallet.Balance,
		&wallet.Currency,
		&wallet.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &wallet, nil
}
