// Package client assembles the session core used by clinicctl.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"

	"go.uber.org/zap"

	"github.com/spec-kit/clinic-service/internal/client/api"
	"github.com/spec-kit/clinic-service/internal/client/notify"
	"github.com/spec-kit/clinic-service/internal/client/realtime"
	"github.com/spec-kit/clinic-service/internal/client/session"
	"github.com/spec-kit/clinic-service/internal/client/transport"
	"github.com/spec-kit/clinic-service/internal/config"
	"github.com/spec-kit/clinic-service/internal/domain"
)

// App is one client process: exactly one session and its collaborators.
type App struct {
	Transport *transport.Client
	API       *api.AuthClient
	Binder    *realtime.Binder
	Session   *session.Session
	Inbox     *notify.Inbox

	logger *zap.Logger
}

// New wires the client against cfg. nav receives 403 redirects; may be nil.
func New(cfg config.ClientConfig, nav transport.Navigator, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}

	credential := transport.NewCredential()
	tc, err := transport.New(transport.Options{
		BaseURL:     cfg.ServerURL,
		HTTPClient:  &http.Client{Jar: jar, Timeout: cfg.Timeout()},
		Credential:  credential,
		Navigator:   nav,
		RefreshPath: cfg.RefreshPath,
		Logger:      logger.Named("transport"),
	})
	if err != nil {
		return nil, err
	}

	authClient := api.NewAuthClient(tc, cfg.RefreshPath)
	binder := realtime.NewBinder(cfg.SocketURL, logger.Named("realtime"))
	sess := session.New(authClient, credential, binder, logger.Named("session"))
	tc.Bind(sess)

	inbox := notify.NewInbox(authClient, logger.Named("inbox"))
	binder.On(realtime.EventNotification, inbox.HandlePush)
	binder.On(realtime.EventVerificationStatus, func(data json.RawMessage) {
		var push struct {
			VerificationStatus domain.VerificationStatus `json:"verificationStatus"`
		}
		if err := json.Unmarshal(data, &push); err != nil || !push.VerificationStatus.Valid() {
			logger.Warn("malformed verification push", zap.ByteString("data", data))
			return
		}
		sess.UpdateVerificationStatus(push.VerificationStatus)
	})

	return &App{
		Transport: tc,
		API:       authClient,
		Binder:    binder,
		Session:   sess,
		Inbox:     inbox,
		logger:    logger,
	}, nil
}

// SignIn logs in with credentials, then loads the inbox for the role.
func (a *App) SignIn(ctx context.Context, username, password string) error {
	id, err := a.API.Login(ctx, username, password)
	if err != nil {
		return err
	}
	if err := a.Session.Login(ctx, id); err != nil {
		return err
	}
	if err := a.Inbox.Load(ctx, id.Role); err != nil {
		a.logger.Warn("loading notifications failed", zap.Error(err))
	}
	return nil
}

// Shutdown ends the server session and tears the client down.
func (a *App) Shutdown(ctx context.Context) {
	a.Session.Logout(ctx)
	a.Inbox.Reset()
	a.Session.Close()
}
