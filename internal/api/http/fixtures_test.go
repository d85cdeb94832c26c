package http

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/clinic-service/internal/domain"
	"github.com/spec-kit/clinic-service/internal/repository"
)

type memoryUsers struct {
	mu   sync.Mutex
	byID map[string]domain.User
}

func (m *memoryUsers) Create(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	m.byID[user.ID] = *user
	return nil
}

func (m *memoryUsers) Update(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[user.ID] = *user
	return nil
}

func (m *memoryUsers) first(match func(domain.User) bool) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if match(u) {
			cp := u
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memoryUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	return m.first(func(u domain.User) bool { return u.ID == id })
}

func (m *memoryUsers) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	return m.first(func(u domain.User) bool { return u.Username == username })
}

func (m *memoryUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return m.first(func(u domain.User) bool { return u.Email == email })
}

func (m *memoryUsers) UpdateVerification(_ context.Context, id string, role domain.Role, status *domain.VerificationStatus) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	u.Role = role
	u.VerificationStatus = status
	m.byID[id] = u
	return &u, nil
}

type memoryWallets struct {
	mu      sync.Mutex
	wallets map[string]domain.Wallet
}

func (m *memoryWallets) Create(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wallets[userID] = domain.Wallet{UserID: userID, Balance: 2500, Currency: "EGP"}
	return nil
}

func (m *memoryWallets) GetByUserID(_ context.Context, userID string) (*domain.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[userID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &w, nil
}

type memorySessions struct {
	mu     sync.Mutex
	active map[string]string
}

func (m *memorySessions) Register(_ context.Context, userID, token string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active[repository.HashToken(token)] = userID
	return nil
}

func (m *memorySessions) Active(_ context.Context, userID, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active[repository.HashToken(token)] == userID, nil
}

func (m *memorySessions) Revoke(_ context.Context, _ string, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.active, repository.HashToken(token))
	return nil
}

func (m *memorySessions) RevokeAll(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.active {
		if v == userID {
			delete(m.active, k)
		}
	}
	return nil
}

type memoryResets struct {
	mu     sync.Mutex
	byHash map[string]repository.PasswordReset
}

func (m *memoryResets) Create(_ context.Context, reset *repository.PasswordReset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	reset.ID = uuid.NewString()
	reset.CreatedAt = time.Now().UTC()
	m.byHash[reset.TokenHash] = *reset
	return nil
}

func (m *memoryResets) GetByTokenHash(_ context.Context, hash string) (*repository.PasswordReset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reset, ok := m.byHash[hash]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &reset, nil
}

func (m *memoryResets) MarkUsed(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for hash, reset := range m.byHash {
		if reset.ID == id && reset.UsedAt == nil {
			now := time.Now().UTC()
			reset.UsedAt = &now
			m.byHash[hash] = reset
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (m *memoryResets) DeleteExpired(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for hash, reset := range m.byHash {
		if reset.ExpiresAt.Before(cutoff) {
			delete(m.byHash, hash)
			n++
		}
	}
	return n, nil
}

type memoryNotifications struct {
	mu    sync.Mutex
	items []domain.Notification
}

func (m *memoryNotifications) Create(_ context.Context, n *domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, *n)
	return nil
}

func (m *memoryNotifications) ListByRecipient(_ context.Context, recipientID string) ([]domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Notification
	for _, n := range m.items {
		if n.RecipientID == recipientID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *memoryNotifications) Delete(_ context.Context, id, recipientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, n := range m.items {
		if n.ID == id && n.RecipientID == recipientID {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return pgx.ErrNoRows
}
