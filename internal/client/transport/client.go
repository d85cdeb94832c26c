package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/clinic-service/internal/domain"
)

const (
	walletPathMarker = "/wallets"
	maxErrorBody     = 64 << 10
)

// Session is the identity the interceptor recovers through.
type Session interface {
	Refresh(ctx context.Context) (string, error)
	Logout(ctx context.Context)
	Role() domain.Role
}

type interceptKey struct{}

// NoIntercept marks ctx so responses to requests made with it are returned
// as they are. Resubmitted requests carry the mark, which bounds retries to one.
func NoIntercept(ctx context.Context) context.Context {
	return context.WithValue(ctx, interceptKey{}, true)
}

func intercepted(ctx context.Context) bool {
	skip, _ := ctx.Value(interceptKey{}).(bool)
	return !skip
}

// Options configures a Client.
type Options struct {
	BaseURL     string
	HTTPClient  *http.Client
	Credential  *Credential
	Navigator   Navigator
	RefreshPath string
	Logger      *zap.Logger
}

// Client sends API requests and applies the 401/403 recovery policy.
type Client struct {
	base        *url.URL
	http        *http.Client
	credential  *Credential
	navigator   Navigator
	refreshPath string
	logger      *zap.Logger

	mu      sync.RWMutex
	session Session
}

// New builds a Client. The session is attached later with Bind since the
// session itself talks to the server through this client.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	credential := opts.Credential
	if credential == nil {
		credential = NewCredential()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		base:        base,
		http:        httpClient,
		credential:  credential,
		navigator:   opts.Navigator,
		refreshPath: "/" + strings.TrimLeft(opts.RefreshPath, "/"),
		logger:      logger,
	}, nil
}

// Bind attaches the session used for refresh and logout.
func (c *Client) Bind(session Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = session
}

func (c *Client) currentSession() Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// Credential exposes the default credential holder.
func (c *Client) Credential() *Credential {
	return c.credential
}

// NewRequest builds a request against the base URL with a JSON body.
func (c *Client) NewRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+"/"+strings.TrimLeft(path, "/"), reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// DoJSON sends a request and decodes a successful body into out when non-nil.
func (c *Client) DoJSON(ctx context.Context, method, path string, in, out any) error {
	req, err := c.NewRequest(ctx, method, path, in)
	if err != nil {
		return err
	}
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// Do sends req. Non-2xx responses come back as *ResponseError after the
// recovery policy has run:
//   - 403 outside wallet paths redirects to the role dashboard;
//   - 401 with accessTokenExpired refreshes and resubmits once;
//   - any other 401 logs the session out.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Authorization") == "" {
		if token := c.credential.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, respErr, err := c.send(req)
	if err != nil || respErr == nil {
		return resp, err
	}

	ctx := req.Context()
	session := c.currentSession()
	if !intercepted(ctx) || session == nil {
		return nil, respErr
	}

	switch respErr.StatusCode {
	case http.StatusForbidden:
		if strings.Contains(req.URL.Path, walletPathMarker) {
			return nil, respErr
		}
		if c.navigator != nil {
			c.navigator.Navigate(DashboardPath(session.Role()))
		}
		return nil, respErr

	case http.StatusUnauthorized:
		if !respErr.AccessTokenExpired || c.isRefreshRequest(req) {
			session.Logout(NoIntercept(ctx))
			return nil, respErr
		}
		return c.resend(req, session, respErr)
	}
	return nil, respErr
}

func (c *Client) resend(req *http.Request, session Session, original *ResponseError) (*http.Response, error) {
	ctx := req.Context()
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		c.logger.Warn("request body cannot be replayed", zap.String("path", req.URL.Path))
		return nil, original
	}

	token, err := session.Refresh(ctx)
	if err != nil {
		return nil, errors.Join(original, err)
	}

	retry := req.Clone(NoIntercept(ctx))
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, errors.Join(original, err)
		}
		retry.Body = body
	}
	retry.Header.Set("Authorization", "Bearer "+token)

	resp, respErr, err := c.send(retry)
	if err != nil {
		return nil, err
	}
	if respErr != nil {
		return nil, respErr
	}
	return resp, nil
}

// send performs one round trip and converts non-2xx responses.
func (c *Client) send(req *http.Request) (*http.Response, *ResponseError, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode < http.StatusBadRequest {
		return resp, nil, nil
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return nil, nil, fmt.Errorf("read error body: %w", err)
	}
	return nil, newResponseError(req, resp.StatusCode, body), nil
}

func (c *Client) isRefreshRequest(req *http.Request) bool {
	return strings.HasSuffix(req.URL.Path, c.refreshPath)
}
