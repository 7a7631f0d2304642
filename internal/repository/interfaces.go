package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/medreturn-api/internal/model"
)

type (
	// NotificationRepository stores notification records. Every read or
	// mutation is scoped to what the recipient is allowed to see.
	NotificationRepository interface {
		CreateWithEvent(ctx context.Context, notification *model.Notification, event *model.OutboxEvent) error
		Get(ctx context.Context, id uuid.UUID, recipient model.Recipient) (*model.Notification, error)
		List(ctx context.Context, recipient model.Recipient, filter model.NotificationFilter) ([]*model.Notification, error)
		CountUnread(ctx context.Context, recipient model.Recipient) (int, error)
		MarkRead(ctx context.Context, id uuid.UUID, recipient model.Recipient, at time.Time) (int64, error)
		MarkAllRead(ctx context.Context, recipient model.Recipient, at time.Time) (int64, error)
		Archive(ctx context.Context, id uuid.UUID, recipient model.Recipient, at time.Time) (int64, error)
		Delete(ctx context.Context, id uuid.UUID, recipient model.Recipient) (int64, error)
		DeleteRead(ctx context.Context, recipient model.Recipient) (int64, error)
		DeleteArchivedBefore(ctx context.Context, before time.Time) (int64, error)
	}

	OutboxRepository interface {
		GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryAt *time.Time) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
