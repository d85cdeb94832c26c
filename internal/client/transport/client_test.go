package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/clinic-service/internal/domain"
)

type fakeSession struct {
	mu           sync.Mutex
	role         domain.Role
	nextToken    string
	refreshErr   error
	refreshCalls int
	logoutCalls  int
}

func (f *fakeSession) Refresh(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshCalls++
	return f.nextToken, f.refreshErr
}

func (f *fakeSession) Logout(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logoutCalls++
}

func (f *fakeSession) Role() domain.Role {
	return f.role
}

func writeError(w http.ResponseWriter, status int, expired bool) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]any{"error": map[string]string{"code": "UNAUTHORIZED", "message": "nope"}}
	if status == http.StatusUnauthorized {
		body["accessTokenExpired"] = expired
	}
	_ = json.NewEncoder(w).Encode(body)
}

type harness struct {
	client  *Client
	session *fakeSession
	nav     *Location
	hits    map[string]int
	mu      sync.Mutex
}

func (h *harness) hit(key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hits[key]++
}

func (h *harness) count(key string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hits[key]
}

func newHarness(t *testing.T, handler func(h *harness, w http.ResponseWriter, r *http.Request)) *harness {
	t.Helper()
	h := &harness{session: &fakeSession{role: domain.RolePatient, nextToken: "fresh"}, nav: &Location{}, hits: map[string]int{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler(h, w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := New(Options{BaseURL: srv.URL, Navigator: h.nav, RefreshPath: "auth/refresh-token"})
	require.NoError(t, err)
	client.Bind(h.session)
	client.Credential().Set("stale")
	h.client = client
	return h
}

func TestClient_RetriesExpiredAccessTokenOnce(t *testing.T) {
	h := newHarness(t, func(h *harness, w http.ResponseWriter, r *http.Request) {
		h.hit(r.Header.Get("Authorization"))
		if r.Header.Get("Authorization") != "Bearer fresh" {
			writeError(w, http.StatusUnauthorized, true)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	var out map[string]bool
	require.NoError(t, h.client.DoJSON(context.Background(), http.MethodGet, "/appointments", nil, &out))
	assert.True(t, out["ok"])
	assert.Equal(t, 1, h.session.refreshCalls)
	assert.Equal(t, 1, h.count("Bearer stale"))
	assert.Equal(t, 1, h.count("Bearer fresh"))
	assert.Equal(t, 0, h.session.logoutCalls)
}

func TestClient_SecondUnauthorizedPropagates(t *testing.T) {
	h := newHarness(t, func(h *harness, w http.ResponseWriter, r *http.Request) {
		h.hit("any")
		writeError(w, http.StatusUnauthorized, true)
	})

	err := h.client.DoJSON(context.Background(), http.MethodGet, "/appointments", nil, nil)
	var respErr *ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, http.StatusUnauthorized, respErr.StatusCode)
	assert.True(t, respErr.AccessTokenExpired)
	assert.Equal(t, 2, h.count("any"))
	assert.Equal(t, 1, h.session.refreshCalls)
	assert.Equal(t, 0, h.session.logoutCalls)
}

func TestClient_InvalidTokenLogsOut(t *testing.T) {
	h := newHarness(t, func(h *harness, w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusUnauthorized, false)
	})

	err := h.client.DoJSON(context.Background(), http.MethodGet, "/appointments", nil, nil)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 0, h.session.refreshCalls)
	assert.Equal(t, 1, h.session.logoutCalls)
}

func TestClient_RefreshEndpointNeverRefreshes(t *testing.T) {
	h := newHarness(t, func(h *harness, w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusUnauthorized, true)
	})

	err := h.client.DoJSON(context.Background(), http.MethodPost, "/auth/refresh-token", nil, nil)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 0, h.session.refreshCalls)
	assert.Equal(t, 1, h.session.logoutCalls)
}

func TestClient_RefreshFailureSurfacesBoth(t *testing.T) {
	h := newHarness(t, func(h *harness, w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusUnauthorized, true)
	})
	refreshErr := errors.New("refresh rejected")
	h.session.refreshErr = refreshErr

	err := h.client.DoJSON(context.Background(), http.MethodGet, "/appointments", nil, nil)
	assert.ErrorIs(t, err, refreshErr)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 1, h.session.refreshCalls)
}

func TestClient_ForbiddenRedirectsByRole(t *testing.T) {
	h := newHarness(t, func(h *harness, w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusForbidden, false)
	})

	for role, want := range map[domain.Role]string{
		domain.RoleAdmin:            "/admin/dashboard",
		domain.RoleDoctor:           "/doctor/dashboard",
		domain.RolePatient:          "/patient/dashboard",
		domain.RoleUnverifiedDoctor: "/",
		domain.RoleGuest:            "/",
	} {
		h.session.role = role
		err := h.client.DoJSON(context.Background(), http.MethodGet, "/admins/doctors", nil, nil)
		assert.ErrorIs(t, err, ErrAuthorization)
		assert.Equal(t, want, h.nav.Current(), "role %s", role)
	}
}

func TestClient_WalletForbiddenIsNotRedirected(t *testing.T) {
	h := newHarness(t, func(h *harness, w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusForbidden, false)
	})

	err := h.client.DoJSON(context.Background(), http.MethodGet, "/wallets", nil, nil)
	var respErr *ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, http.StatusForbidden, respErr.StatusCode)
	assert.Equal(t, "/wallets", respErr.Path)
	assert.Equal(t, 0, h.nav.Visits())
}

func TestClient_ReplaysBodyOnRetry(t *testing.T) {
	var bodies []string
	var mu sync.Mutex
	h := newHarness(t, func(h *harness, w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(raw))
		mu.Unlock()
		if r.Header.Get("Authorization") != "Bearer fresh" {
			writeError(w, http.StatusUnauthorized, true)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, h.client.DoJSON(context.Background(), http.MethodPost, "/appointments", map[string]string{"slot": "9am"}, nil))
	require.Len(t, bodies, 2)
	assert.Equal(t, bodies[0], bodies[1])
	assert.JSONEq(t, `{"slot":"9am"}`, bodies[1])
}

func TestClient_CredentialHandling(t *testing.T) {
	h := newHarness(t, func(h *harness, w http.ResponseWriter, r *http.Request) {
		h.hit(r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	})
	ctx := context.Background()

	require.NoError(t, h.client.DoJSON(ctx, http.MethodGet, "/a", nil, nil))
	req, err := h.client.NewRequest(ctx, http.MethodGet, "/b", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer explicit")
	resp, err := h.client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	h.client.Credential().Clear()
	require.NoError(t, h.client.DoJSON(ctx, http.MethodGet, "/c", nil, nil))

	assert.Equal(t, 1, h.count("Bearer stale"))
	assert.Equal(t, 1, h.count("Bearer explicit"))
	assert.Equal(t, 1, h.count(""))
}

func TestClient_NoInterceptPassesThrough(t *testing.T) {
	h := newHarness(t, func(h *harness, w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusUnauthorized, false)
	})

	err := h.client.DoJSON(NoIntercept(context.Background()), http.MethodPost, "/auth/logout", nil, nil)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 0, h.session.logoutCalls)
}
