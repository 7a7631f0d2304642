package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/medreturn-api/internal/model"
	"github.com/jwalitptl/medreturn-api/internal/repository"
)

const (
	// Broadcast rows are shared, so a caller's own status and read time
	// come from their receipt when one exists.
	notificationColumns = `n.id, n.type, n.title, n.message, n.priority, n.target, n.recipient_id, n.sender_id,
		COALESCE(r.status, n.status) AS status, n.link, n.metadata, n.created_at,
		COALESCE(r.read_at, n.read_at) AS read_at`

	maxListLimit = 100
)

type notificationRepository struct {
	BaseRepository
}

func NewNotificationRepository(base BaseRepository) repository.NotificationRepository {
	return &notificationRepository{BaseRepository: base}
}

// visibleFrom renders the FROM and WHERE clauses selecting rows addressed to
// the recipient: directly by recipient ID, by literal target ID, or by the
// recipient's audience. Broadcasts the recipient deleted are excluded.
func visibleFrom(recipient model.Recipient, first int) (string, []interface{}) {
	clause := fmt.Sprintf(` FROM notifications n
		LEFT JOIN notification_receipts r ON r.notification_id = n.id AND r.user_id = $%d
		WHERE (n.recipient_id = $%d OR n.target = $%d OR (n.recipient_id IS NULL AND n.target = $%d))
		AND (r.status IS NULL OR r.status <> 'deleted')`,
		first, first, first+1, first+2,
	)
	return clause, []interface{}{
		recipient.UserID,
		recipient.UserID.String(),
		model.AudienceForRole(recipient.Role),
	}
}

// ownedBy matches rows addressed to the recipient alone. Only these rows are
// mutated in place; broadcasts go through receipts.
func ownedBy(recipient model.Recipient, first int) (string, []interface{}) {
	clause := fmt.Sprintf("(recipient_id = $%d OR target = $%d)", first, first+1)
	return clause, []interface{}{recipient.UserID, recipient.UserID.String()}
}

func (r *notificationRepository) CreateWithEvent(ctx context.Context, n *model.Notification, event *model.OutboxEvent) error {
	if n == nil {
		return fmt.Errorf("notification cannot be nil")
	}

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO notifications (
				id, type, title, message, priority, target, recipient_id, sender_id,
				status, link, metadata, created_at, read_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`
		if _, err := tx.ExecContext(ctx, query,
			n.ID, n.Type, n.Title, n.Message, n.Priority, n.Target, n.RecipientID, n.SenderID,
			n.Status, n.Link, n.Metadata, n.CreatedAt, n.ReadAt,
		); err != nil {
			return fmt.Errorf("failed to insert notification: %w", err)
		}

		if event == nil {
			return nil
		}
		return insertOutboxEvent(ctx, tx, event)
	})
}

func (r *notificationRepository) Get(ctx context.Context, id uuid.UUID, recipient model.Recipient) (*model.Notification, error) {
	from, args := visibleFrom(recipient, 2)
	query := `SELECT ` + notificationColumns + from + ` AND n.id = $1`

	var n model.Notification
	if err := r.db.GetContext(ctx, &n, query, append([]interface{}{id}, args...)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	return &n, nil
}

func (r *notificationRepository) List(ctx context.Context, recipient model.Recipient, filter model.NotificationFilter) ([]*model.Notification, error) {
	from, args := visibleFrom(recipient, 1)
	query := `SELECT ` + notificationColumns + from

	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND COALESCE(r.status, n.status) = $%d", len(args))
	}

	limit := filter.Limit
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY n.created_at DESC LIMIT $%d", len(args))

	notifications := []*model.Notification{}
	if err := r.db.SelectContext(ctx, &notifications, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, recipient model.Recipient) (int, error) {
	from, args := visibleFrom(recipient, 1)
	query := `SELECT COUNT(*)` + from + ` AND COALESCE(r.status, n.status) = 'unread'`

	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, id uuid.UUID, recipient model.Recipient, at time.Time) (int64, error) {
	owned, args := ownedBy(recipient, 3)
	update := `UPDATE notifications SET status = 'read', read_at = $2
		WHERE id = $1 AND status = 'unread' AND ` + owned

	receipt := `INSERT INTO notification_receipts (notification_id, user_id, status, read_at)
		SELECT id, $2::uuid, 'read', $3::timestamptz FROM notifications
		WHERE id = $1 AND recipient_id IS NULL AND target = $4
		ON CONFLICT (notification_id, user_id) DO NOTHING`

	return r.execAll(ctx, "mark notification read",
		statement{update, append([]interface{}{id, at}, args...)},
		statement{receipt, []interface{}{id, recipient.UserID, at, model.AudienceForRole(recipient.Role)}},
	)
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, recipient model.Recipient, at time.Time) (int64, error) {
	owned, args := ownedBy(recipient, 2)
	update := `UPDATE notifications SET status = 'read', read_at = $1
		WHERE status = 'unread' AND ` + owned

	receipts := `INSERT INTO notification_receipts (notification_id, user_id, status, read_at)
		SELECT id, $1::uuid, 'read', $2::timestamptz FROM notifications
		WHERE recipient_id IS NULL AND target = $3
		ON CONFLICT (notification_id, user_id) DO NOTHING`

	return r.execAll(ctx, "mark all notifications read",
		statement{update, append([]interface{}{at}, args...)},
		statement{receipts, []interface{}{recipient.UserID, at, model.AudienceForRole(recipient.Role)}},
	)
}

func (r *notificationRepository) Archive(ctx context.Context, id uuid.UUID, recipient model.Recipient, at time.Time) (int64, error) {
	owned, args := ownedBy(recipient, 3)
	update := `UPDATE notifications SET status = 'archived', read_at = COALESCE(read_at, $2)
		WHERE id = $1 AND status <> 'archived' AND ` + owned

	receipt := `INSERT INTO notification_receipts (notification_id, user_id, status, read_at)
		SELECT id, $2::uuid, 'archived', $3::timestamptz FROM notifications
		WHERE id = $1 AND recipient_id IS NULL AND target = $4
		ON CONFLICT (notification_id, user_id) DO UPDATE
		SET status = 'archived', read_at = COALESCE(notification_receipts.read_at, EXCLUDED.read_at)
		WHERE notification_receipts.status = 'read'`

	return r.execAll(ctx, "archive notification",
		statement{update, append([]interface{}{id, at}, args...)},
		statement{receipt, []interface{}{id, recipient.UserID, at, model.AudienceForRole(recipient.Role)}},
	)
}

func (r *notificationRepository) Delete(ctx context.Context, id uuid.UUID, recipient model.Recipient) (int64, error) {
	owned, args := ownedBy(recipient, 2)
	remove := `DELETE FROM notifications WHERE id = $1 AND ` + owned

	receipt := `INSERT INTO notification_receipts (notification_id, user_id, status)
		SELECT id, $2::uuid, 'deleted' FROM notifications
		WHERE id = $1 AND recipient_id IS NULL AND target = $3
		ON CONFLICT (notification_id, user_id) DO UPDATE
		SET status = 'deleted'
		WHERE notification_receipts.status <> 'deleted'`

	return r.execAll(ctx, "delete notification",
		statement{remove, append([]interface{}{id}, args...)},
		statement{receipt, []interface{}{id, recipient.UserID, model.AudienceForRole(recipient.Role)}},
	)
}

func (r *notificationRepository) DeleteRead(ctx context.Context, recipient model.Recipient) (int64, error) {
	owned, args := ownedBy(recipient, 2)
	remove := `DELETE FROM notifications WHERE status = ANY($1) AND ` + owned

	receipts := `UPDATE notification_receipts SET status = 'deleted'
		WHERE user_id = $1 AND status = ANY($2)`

	statuses := pq.Array([]string{string(model.NotificationStatusRead), string(model.NotificationStatusArchived)})
	return r.execAll(ctx, "clear notifications",
		statement{remove, append([]interface{}{statuses}, args...)},
		statement{receipts, []interface{}{recipient.UserID, statuses}},
	)
}

func (r *notificationRepository) DeleteArchivedBefore(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM notifications WHERE status = 'archived' AND created_at < $1`
	return r.exec(ctx, "purge archived notifications", query, before)
}

type statement struct {
	query string
	args  []interface{}
}

// execAll runs the statements in one transaction and sums the affected rows.
func (r *notificationRepository) execAll(ctx context.Context, op string, stmts ...statement) (int64, error) {
	var total int64
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, st := range stmts {
			result, err := tx.ExecContext(ctx, st.query, st.args...)
			if err != nil {
				return err
			}
			affected, err := result.RowsAffected()
			if err != nil {
				return err
			}
			total += affected
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to %s: %w", op, err)
	}
	return total, nil
}

func (r *notificationRepository) exec(ctx context.Context, op, query string, args ...interface{}) (int64, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to %s: %w", op, err)
	}
	return result.RowsAffected()
}
