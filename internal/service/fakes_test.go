package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/clinic-service/internal/auth"
	"github.com/spec-kit/clinic-service/internal/config"
	"github.com/spec-kit/clinic-service/internal/domain"
	"github.com/spec-kit/clinic-service/internal/events"
	"github.com/spec-kit/clinic-service/internal/repository"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		Access:        config.TokenConfig{Secret: "access-secret", TTL: 15 * time.Minute},
		Refresh:       config.TokenConfig{Secret: "refresh-secret", TTL: 7 * 24 * time.Hour},
		PasswordReset: config.TokenConfig{Secret: "reset-secret", TTL: 30 * time.Minute},
		WalletUnlock:  config.TokenConfig{Secret: "wallet-secret", TTL: 10 * time.Minute},
		BcryptCost:    4,
	}
}

type fakeUsers struct {
	mu    sync.Mutex
	byID  map[string]*domain.User
	fail  error
	calls int
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: map[string]*domain.User{}}
}

func (f *fakeUsers) Create(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = testNow
	user.UpdatedAt = testNow
	cp := *user
	f.byID[user.ID] = &cp
	return nil
}

func (f *fakeUsers) Update(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *user
	f.byID[user.ID] = &cp
	return nil
}

func (f *fakeUsers) find(match func(*domain.User) bool) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail != nil {
		return nil, f.fail
	}
	for _, u := range f.byID {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	return f.find(func(u *domain.User) bool { return u.ID == id })
}

func (f *fakeUsers) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	return f.find(func(u *domain.User) bool { return u.Username == username })
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return f.find(func(u *domain.User) bool { return u.Email == email })
}

func (f *fakeUsers) UpdateVerification(_ context.Context, id string, role domain.Role, status *domain.VerificationStatus) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	u.Role = role
	u.VerificationStatus = status
	cp := *u
	return &cp, nil
}

type fakeWallets struct {
	mu      sync.Mutex
	created []string
}

func (f *fakeWallets) Create(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, userID)
	return nil
}

func (f *fakeWallets) GetByUserID(_ context.Context, userID string) (*domain.Wallet, error) {
	return &domain.Wallet{UserID: userID, Currency: "USD"}, nil
}

type fakeResets struct {
	mu     sync.Mutex
	byHash map[string]*repository.PasswordReset
}

func newFakeResets() *fakeResets {
	return &fakeResets{byHash: map[string]*repository.PasswordReset{}}
}

func (f *fakeResets) Create(_ context.Context, reset *repository.PasswordReset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	reset.ID = uuid.NewString()
	reset.CreatedAt = testNow
	cp := *reset
	f.byHash[reset.TokenHash] = &cp
	return nil
}

func (f *fakeResets) GetByTokenHash(_ context.Context, hash string) (*repository.PasswordReset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reset, ok := f.byHash[hash]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *reset
	return &cp, nil
}

func (f *fakeResets) MarkUsed(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, reset := range f.byHash {
		if reset.ID == id && reset.UsedAt == nil {
			used := testNow
			reset.UsedAt = &used
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (f *fakeResets) DeleteExpired(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for hash, reset := range f.byHash {
		if reset.ExpiresAt.Before(cutoff) {
			delete(f.byHash, hash)
			n++
		}
	}
	return n, nil
}

type fakeSessions struct {
	mu     sync.Mutex
	active map[string]string
	ttls   []time.Duration
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{active: map[string]string{}}
}

func (f *fakeSessions) Register(_ context.Context, userID, token string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active[repository.HashToken(token)] = userID
	f.ttls = append(f.ttls, ttl)
	return nil
}

func (f *fakeSessions) Active(_ context.Context, userID, token string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	owner, ok := f.active[repository.HashToken(token)]
	return ok && owner == userID, nil
}

func (f *fakeSessions) Revoke(_ context.Context, _ string, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.active, repository.HashToken(token))
	return nil
}

func (f *fakeSessions) RevokeAll(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for hash, owner := range f.active {
		if owner == userID {
			delete(f.active, hash)
		}
	}
	return nil
}

func (f *fakeSessions) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.active)
}

type fakeNotifications struct {
	mu    sync.Mutex
	items []domain.Notification
}

func (f *fakeNotifications) Create(_ context.Context, n *domain.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n.CreatedAt = testNow
	f.items = append(f.items, *n)
	return nil
}

func (f *fakeNotifications) ListByRecipient(_ context.Context, recipientID string) ([]domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Notification
	for _, n := range f.items {
		if n.RecipientID == recipientID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeNotifications) Delete(_ context.Context, id, recipientID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, n := range f.items {
		if n.ID == id && n.RecipientID == recipientID {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return nil
		}
	}
	return pgx.ErrNoRows
}

type pushed struct {
	userID  string
	event   string
	payload any
}

type fakePusher struct {
	mu     sync.Mutex
	pushes []pushed
}

func (f *fakePusher) Push(userID, event string, payload any) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushes = append(f.pushes, pushed{userID: userID, event: event, payload: payload})
	return 1
}

type refreshCounter struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *refreshCounter) RecordRefresh(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

type authFixture struct {
	svc        *AuthService
	codec      *auth.TokenCodec
	users      *fakeUsers
	wallets    *fakeWallets
	sessions   *fakeSessions
	resets     *fakeResets
	dispatcher events.Dispatcher
	metrics    *refreshCounter
	now        *time.Time
}

func newAuthFixture() *authFixture {
	now := testNow
	f := &authFixture{
		users:      newFakeUsers(),
		wallets:    &fakeWallets{},
		sessions:   newFakeSessions(),
		resets:     newFakeResets(),
		dispatcher: events.NewInMemoryDispatcher(),
		metrics:    &refreshCounter{},
		now:        &now,
	}
	cfg := testAuthConfig()
	f.codec = NewTokenCodec(cfg, auth.WithClock(func() time.Time { return *f.now }))
	f.svc = NewAuthService(cfg, AuthDependencies{
		UserRepo:        f.users,
		WalletRepo:      f.wallets,
		RefreshSessions: f.sessions,
		PasswordResets:  f.resets,
		Dispatcher:      f.dispatcher,
		Codec:           f.codec,
		Metrics:         f.metrics,
	})
	return f
}
