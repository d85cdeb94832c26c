package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/clinic-service/internal/config"
	"github.com/spec-kit/clinic-service/internal/domain"
	"github.com/spec-kit/clinic-service/internal/events"
	"github.com/spec-kit/clinic-service/internal/repository"
	apperrors "github.com/spec-kit/clinic-service/pkg/util"
)

// NotificationEvent is the realtime event name for pushed notifications.
const NotificationEvent = "notification"

// VerificationEvent is pushed alongside the notification when a review lands.
const VerificationEvent = "verification_status"

// Pusher delivers a realtime event to every live connection of a user.
type Pusher interface {
	Push(userID, event string, payload any) int
}

// NotificationService stores notifications, pushes them and reacts to domain events.
type NotificationService struct {
	dispatcher events.Dispatcher
	repo       repository.NotificationRepository
	pusher     Pusher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service. pusher may be nil.
func NewNotificationService(dispatcher events.Dispatcher, repo repository.NotificationRepository, pusher Pusher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		repo:       repo,
		pusher:     pusher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventDoctorVerificationChanged, n.handleDoctorVerificationChanged)
	n.dispatcher.Subscribe(events.EventPasswordResetRequested, n.handlePasswordResetRequested)
}

// Notify stores a notification and pushes it to the recipient's sockets.
func (n *NotificationService) Notify(ctx context.Context, recipientID, title, description string) (*domain.Notification, error) {
	notification := &domain.Notification{
		ID:          uuid.NewString(),
		RecipientID: recipientID,
		Title:       title,
		Description: description,
	}
	if err := n.repo.Create(ctx, notification); err != nil {
		return nil, err
	}
	if n.pusher != nil {
		delivered := n.pusher.Push(recipientID, NotificationEvent, notification)
		n.logger.Debug("notification pushed", zap.String("recipient_id", recipientID), zap.Int("connections", delivered))
	}
	return notification, nil
}

// List returns the caller's notifications.
func (n *NotificationService) List(ctx context.Context, recipientID string) ([]domain.Notification, error) {
	list, err := n.repo.ListByRecipient(ctx, recipientID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return list, nil
}

// Remove deletes one of the caller's notifications.
func (n *NotificationService) Remove(ctx context.Context, recipientID, id string) error {
	if err := n.repo.Delete(ctx, id, recipientID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("notification", map[string]any{"id": id})
		}
		return apperrors.NewInternalError(err)
	}
	return nil
}

func (n *NotificationService) handleDoctorVerificationChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.DoctorVerificationChangedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	n.logger.Info("DoctorVerificationChanged", zap.String("doctor_id", event.SubjectID), zap.Any("payload", payload))

	title := "Account verification updated"
	description := fmt.Sprintf("Your account verification status is now %s.", strings.ToLower(string(payload.NewStatus)))
	if _, err := n.Notify(ctx, event.SubjectID, title, description); err != nil {
		return err
	}
	if n.pusher != nil {
		n.pusher.Push(event.SubjectID, VerificationEvent, map[string]any{"verificationStatus": payload.NewStatus})
	}
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handlePasswordResetRequested(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.PasswordResetRequestedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	n.sendEmailNotificationStub(ctx, event, payload.Email)
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(_ context.Context, event events.Event, to string) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("to", to),
		zap.String("subject_id", event.SubjectID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("subject_id", event.SubjectID),
		zap.String("event_type", string(event.Type)))
}
