// Package api calls the clinic HTTP API through the intercepting transport.
package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/spec-kit/clinic-service/internal/client/session"
	"github.com/spec-kit/clinic-service/internal/client/transport"
	"github.com/spec-kit/clinic-service/internal/domain"
)

// AuthClient wraps the auth, notification and wallet endpoints.
type AuthClient struct {
	transport   *transport.Client
	refreshPath string
}

// NewAuthClient creates the client. refreshPath is relative to the base URL.
func NewAuthClient(t *transport.Client, refreshPath string) *AuthClient {
	return &AuthClient{transport: t, refreshPath: refreshPath}
}

// Login exchanges credentials for an identity. The server sets the refresh
// cookie on the transport's jar.
func (a *AuthClient) Login(ctx context.Context, username, password string) (session.Identity, error) {
	var id session.Identity
	body := map[string]string{"username": username, "password": password}
	if err := a.transport.DoJSON(transport.NoIntercept(ctx), http.MethodPost, "auth/login", body, &id); err != nil {
		return session.Identity{}, err
	}
	return id, nil
}

// Refresh asks for a new access token. It bypasses the interceptor; the
// session decides what a failed refresh means.
func (a *AuthClient) Refresh(ctx context.Context) (session.Identity, error) {
	var id session.Identity
	if err := a.transport.DoJSON(transport.NoIntercept(ctx), http.MethodPost, a.refreshPath, nil, &id); err != nil {
		return session.Identity{}, err
	}
	if id.AccessToken == "" {
		return session.Identity{}, fmt.Errorf("refresh response without access token")
	}
	return id, nil
}

// Logout invalidates the refresh cookie. Responses are never intercepted.
func (a *AuthClient) Logout(ctx context.Context) error {
	return a.transport.DoJSON(transport.NoIntercept(ctx), http.MethodPost, "auth/logout", nil, nil)
}

// Me returns the claim the server decoded from the current access token.
func (a *AuthClient) Me(ctx context.Context) (domain.Claim, error) {
	var out struct {
		Data domain.Claim `json:"data"`
	}
	if err := a.transport.DoJSON(ctx, http.MethodGet, "auth/me", nil, &out); err != nil {
		return domain.Claim{}, err
	}
	return out.Data, nil
}

// Notifications lists the caller's notifications from the role's inbox.
func (a *AuthClient) Notifications(ctx context.Context, role domain.Role) ([]domain.Notification, error) {
	prefix := "patients"
	if role == domain.RoleDoctor || role == domain.RoleUnverifiedDoctor {
		prefix = "doctors"
	}
	var out struct {
		Data []domain.Notification `json:"data"`
	}
	if err := a.transport.DoJSON(ctx, http.MethodGet, prefix+"/notifications", nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// DeleteNotification removes one notification.
func (a *AuthClient) DeleteNotification(ctx context.Context, id string) error {
	return a.transport.DoJSON(ctx, http.MethodDelete, "notifications/"+url.PathEscape(id), nil, nil)
}

// UnlockWallet returns a wallet token for the X-Wallet-Token header.
func (a *AuthClient) UnlockWallet(ctx context.Context, password string) (string, error) {
	var out struct {
		Data struct {
			WalletToken string `json:"walletToken"`
		} `json:"data"`
	}
	if err := a.transport.DoJSON(ctx, http.MethodPost, "wallets/unlock", map[string]string{"password": password}, &out); err != nil {
		return "", err
	}
	return out.Data.WalletToken, nil
}
