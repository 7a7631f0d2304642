package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/medreturn-api/internal/email"
	"github.com/jwalitptl/medreturn-api/internal/model"
	"github.com/jwalitptl/medreturn-api/internal/repository"
	apperrors "github.com/jwalitptl/medreturn-api/pkg/errors"
	"github.com/jwalitptl/medreturn-api/pkg/logger"
	"github.com/jwalitptl/medreturn-api/pkg/metrics"
	"github.com/jwalitptl/medreturn-api/pkg/validator"
)

const resourceName = "notification"

// Service is the notification sink and the lifecycle API behind /notifications.
type Service interface {
	Send(ctx context.Context, notification *model.Notification) error
	SendTemplate(ctx context.Context, tmpl model.NotificationTemplate, vars map[string]string, recipientID, senderID *uuid.UUID) (*model.Notification, error)
	List(ctx context.Context, recipient model.Recipient, filter model.NotificationFilter) ([]*model.Notification, error)
	UnreadCount(ctx context.Context, recipient model.Recipient) (int, error)
	MarkRead(ctx context.Context, id uuid.UUID, recipient model.Recipient) (*model.Notification, error)
	MarkAllRead(ctx context.Context, recipient model.Recipient) (int64, error)
	Archive(ctx context.Context, id uuid.UUID, recipient model.Recipient) (*model.Notification, error)
	Delete(ctx context.Context, id uuid.UUID, recipient model.Recipient) error
	Clear(ctx context.Context, recipient model.Recipient) (int64, error)
}

// Escalation sends high priority admin notices by e-mail.
type Escalation struct {
	Mailer     email.Service
	Recipients []string
}

type service struct {
	repo       repository.NotificationRepository
	validator  validator.Validator
	escalation *Escalation
	logger     *logger.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewService wires the sink. escalation may be nil to disable e-mail.
func NewService(repo repository.NotificationRepository, escalation *Escalation, log *logger.Logger, m *metrics.Metrics) (Service, error) {
	v, err := validator.New(model.TargetRule())
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}
	return &service{
		repo:       repo,
		validator:  v,
		escalation: escalation,
		logger:     log,
		metrics:    m,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Send(ctx context.Context, notification *model.Notification) error {
	if notification == nil {
		return apperrors.BadRequest("notification is required", nil)
	}
	if err := s.validator.Validate(notification); err != nil {
		return apperrors.BadRequest(err.Error(), err)
	}
	if err := notification.CheckAddressing(); err != nil {
		return apperrors.BadRequest(err.Error(), err)
	}

	notification.ID = uuid.New()
	notification.Status = model.NotificationStatusUnread
	notification.CreatedAt = s.now()
	notification.ReadAt = nil
	if notification.RecipientID == nil && !model.IsAudienceTarget(notification.Target) {
		if id, err := uuid.Parse(notification.Target); err == nil {
			notification.RecipientID = &id
		}
	}

	payload, err := json.Marshal(model.NotificationEvent{
		Type:         model.NotificationEventCreated,
		Notification: notification,
	})
	if err != nil {
		return apperrors.Internal(fmt.Errorf("failed to encode notification event: %w", err))
	}
	event := &model.OutboxEvent{
		EventType: model.NotificationEventCreated,
		Payload:   payload,
	}

	if err := s.repo.CreateWithEvent(ctx, notification, event); err != nil {
		s.observe("create", err)
		return apperrors.Internal(fmt.Errorf("failed to create notification: %w", err))
	}
	s.observe("create", nil)
	if s.metrics != nil {
		s.metrics.NotificationsCreated.WithLabelValues(string(notification.Type), string(notification.Priority)).Inc()
	}

	s.logger.Info("notification created",
		"notification_id", notification.ID.String(),
		"type", string(notification.Type),
		"target", notification.Target,
	)

	s.escalate(ctx, notification)
	return nil
}

func (s *service) SendTemplate(ctx context.Context, tmpl model.NotificationTemplate, vars map[string]string, recipientID, senderID *uuid.UUID) (*model.Notification, error) {
	n := tmpl.Instantiate(vars)
	n.SenderID = senderID
	if recipientID != nil {
		n.RecipientID = recipientID
		if n.Target == "" {
			n.Target = recipientID.String()
		}
	}
	if err := s.Send(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *service) escalate(ctx context.Context, n *model.Notification) {
	if s.escalation == nil || s.escalation.Mailer == nil {
		return
	}
	if n.Priority != model.NotificationPriorityHigh || n.Target != model.TargetAdmin {
		return
	}

	for _, to := range s.escalation.Recipients {
		if err := s.escalation.Mailer.SendCustom(ctx, to, n.Title, n.Message); err != nil {
			s.logger.Error(err, "failed to escalate notification",
				"notification_id", n.ID.String(),
				"to", to,
			)
			continue
		}
		if s.metrics != nil {
			s.metrics.NotificationsEmailed.Inc()
		}
	}
}

func (s *service) List(ctx context.Context, recipient model.Recipient, filter model.NotificationFilter) ([]*model.Notification, error) {
	switch filter.Status {
	case "", model.NotificationStatusUnread, model.NotificationStatusRead, model.NotificationStatusArchived:
	default:
		return nil, apperrors.BadRequest(fmt.Sprintf("unknown status %q", filter.Status), nil)
	}

	notifications, err := s.repo.List(ctx, recipient, filter)
	s.observe("list", err)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return notifications, nil
}

func (s *service) UnreadCount(ctx context.Context, recipient model.Recipient) (int, error) {
	count, err := s.repo.CountUnread(ctx, recipient)
	s.observe("count_unread", err)
	if err != nil {
		return 0, apperrors.Internal(err)
	}
	return count, nil
}

// MarkRead moves an unread notification to read. Marking an already read or
// archived notification is a no-op.
func (s *service) MarkRead(ctx context.Context, id uuid.UUID, recipient model.Recipient) (*model.Notification, error) {
	_, err := s.repo.MarkRead(ctx, id, recipient, s.now())
	s.observe("mark_read", err)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return s.get(ctx, id, recipient)
}

func (s *service) MarkAllRead(ctx context.Context, recipient model.Recipient) (int64, error) {
	affected, err := s.repo.MarkAllRead(ctx, recipient, s.now())
	s.observe("mark_all_read", err)
	if err != nil {
		return 0, apperrors.Internal(err)
	}
	return affected, nil
}

func (s *service) Archive(ctx context.Context, id uuid.UUID, recipient model.Recipient) (*model.Notification, error) {
	_, err := s.repo.Archive(ctx, id, recipient, s.now())
	s.observe("archive", err)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return s.get(ctx, id, recipient)
}

func (s *service) Delete(ctx context.Context, id uuid.UUID, recipient model.Recipient) error {
	affected, err := s.repo.Delete(ctx, id, recipient)
	s.observe("delete", err)
	if err != nil {
		return apperrors.Internal(err)
	}
	if affected == 0 {
		return apperrors.NotFound(resourceName, model.ErrNotFound)
	}
	return nil
}

// Clear deletes the recipient's read and archived notifications.
func (s *service) Clear(ctx context.Context, recipient model.Recipient) (int64, error) {
	affected, err := s.repo.DeleteRead(ctx, recipient)
	s.observe("clear", err)
	if err != nil {
		return 0, apperrors.Internal(err)
	}
	return affected, nil
}

func (s *service) get(ctx context.Context, id uuid.UUID, recipient model.Recipient) (*model.Notification, error) {
	n, err := s.repo.Get(ctx, id, recipient)
	if errors.Is(err, model.ErrNotFound) {
		return nil, apperrors.NotFound(resourceName, err)
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return n, nil
}

func (s *service) observe(operation string, err error) {
	if s.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	s.metrics.DatabaseOperations.WithLabelValues(operation, status).Inc()
}
