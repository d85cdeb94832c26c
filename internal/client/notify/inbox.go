// Package notify keeps the client's notification list in step with pushes.
package notify

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/clinic-service/internal/domain"
)

// Lister loads stored notifications.
type Lister interface {
	Notifications(ctx context.Context, role domain.Role) ([]domain.Notification, error)
}

// Inbox is the client-side notification list.
type Inbox struct {
	lister Lister
	logger *zap.Logger

	mu       sync.RWMutex
	items    []domain.Notification
	watchers []func(domain.Notification)
}

// NewInbox creates an empty inbox.
func NewInbox(lister Lister, logger *zap.Logger) *Inbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Inbox{lister: lister, logger: logger}
}

// Load replaces the list with the server's. Doctors, verified or not, and
// patients have an inbox; other roles clear it.
func (i *Inbox) Load(ctx context.Context, role domain.Role) error {
	if !hasInbox(role) {
		i.Reset()
		return nil
	}
	items, err := i.lister.Notifications(ctx, role)
	if err != nil {
		return err
	}
	i.mu.Lock()
	i.items = items
	i.mu.Unlock()
	return nil
}

func hasInbox(role domain.Role) bool {
	switch role {
	case domain.RoleDoctor, domain.RoleUnverifiedDoctor, domain.RolePatient:
		return true
	}
	return false
}

// Watch registers fn to be called for every pushed notification.
func (i *Inbox) Watch(fn func(domain.Notification)) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.watchers = append(i.watchers, fn)
}

// Add appends n.
func (i *Inbox) Add(n domain.Notification) {
	i.mu.Lock()
	i.items = append(i.items, n)
	watchers := append([]func(domain.Notification){}, i.watchers...)
	i.mu.Unlock()

	for _, fn := range watchers {
		fn(n)
	}
}

// Remove drops the notification with id.
func (i *Inbox) Remove(id string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	kept := i.items[:0]
	for _, n := range i.items {
		if n.ID != id {
			kept = append(kept, n)
		}
	}
	i.items = kept
}

// Reset empties the inbox.
func (i *Inbox) Reset() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.items = nil
}

// Items returns a copy of the list.
func (i *Inbox) Items() []domain.Notification {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return append([]domain.Notification(nil), i.items...)
}

// HandlePush decodes a pushed notification frame.
func (i *Inbox) HandlePush(data json.RawMessage) {
	var n domain.Notification
	if err := json.Unmarshal(data, &n); err != nil {
		i.logger.Warn("malformed notification push", zap.Error(err))
		return
	}
	i.Add(n)
}
