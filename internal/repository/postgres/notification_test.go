package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/medreturn-api/internal/model"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

func testRecipient() model.Recipient {
	return model.Recipient{UserID: uuid.New(), Role: model.RoleUser}
}

func TestNotificationRepository_CreateWithEvent(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewNotificationRepository(NewBaseRepository(db))

	owner := uuid.New()
	n := &model.Notification{
		ID:          uuid.New(),
		Type:        model.NotificationTypeChatbot,
		Title:       "Trợ lý ảo",
		Message:     "Xin chào!",
		Priority:    model.NotificationPriorityLow,
		Target:      model.TargetUser,
		RecipientID: &owner,
		Status:      model.NotificationStatusUnread,
		CreatedAt:   time.Now().UTC(),
	}
	event := &model.OutboxEvent{EventType: model.NotificationEventCreated, Payload: json.RawMessage(`{}`)}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO notifications").
		WithArgs(n.ID, n.Type, n.Title, n.Message, n.Priority, n.Target, owner, nil,
			n.Status, nil, sqlmock.AnyArg(), n.CreatedAt, nil).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO outbox_events").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.CreateWithEvent(context.Background(), n, event))
	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, model.OutboxStatusPending, event.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepository_CreateWithEventRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewNotificationRepository(NewBaseRepository(db))

	n := &model.Notification{ID: uuid.New(), Target: model.TargetAdmin, Status: model.NotificationStatusUnread}
	event := &model.OutboxEvent{EventType: model.NotificationEventCreated, Payload: json.RawMessage(`{}`)}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO notifications").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO outbox_events").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.CreateWithEvent(context.Background(), n, event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create outbox event")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepository_GetNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewNotificationRepository(NewBaseRepository(db))
	recipient := testRecipient()
	id := uuid.New()

	mock.ExpectQuery(`SELECT .* FROM notifications n LEFT JOIN notification_receipts r .* AND n.id = \$1$`).
		WithArgs(id, recipient.UserID, recipient.UserID.String(), model.TargetUser).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), id, recipient)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepository_List(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewNotificationRepository(NewBaseRepository(db))
	recipient := model.Recipient{UserID: uuid.New(), Role: model.RoleAdmin}

	id := uuid.New()
	created := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "type", "title", "message", "priority", "target", "recipient_id", "sender_id",
		"status", "link", "metadata", "created_at", "read_at",
	}).AddRow(
		id.String(), "medicine_submission", "Thuốc mới", "Có thuốc mới cần duyệt", "high", "admin", nil, nil,
		"unread", "/admin/medicines", []byte(`{"medicineId":"m-1","batch":"B7"}`), created, nil,
	)

	mock.ExpectQuery(`SELECT .* FROM notifications n .* AND COALESCE\(r.status, n.status\) = \$4 ORDER BY n.created_at DESC LIMIT \$5`).
		WithArgs(recipient.UserID, recipient.UserID.String(), model.TargetAdmin, model.NotificationStatusUnread, 100).
		WillReturnRows(rows)

	got, err := repo.List(context.Background(), recipient, model.NotificationFilter{
		Status: model.NotificationStatusUnread,
		Limit:  500,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, id, got[0].ID)
	assert.Nil(t, got[0].RecipientID)
	assert.Equal(t, "m-1", got[0].Metadata.MedicineID)
	assert.JSONEq(t, `"B7"`, string(got[0].Metadata.Extra["batch"]))
	require.NotNil(t, got[0].Link)
	assert.Equal(t, "/admin/medicines", *got[0].Link)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepository_MarkReadReportsAffectedRows(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewNotificationRepository(NewBaseRepository(db))
	recipient := testRecipient()
	id := uuid.New()
	at := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE notifications SET status = 'read'`).
		WithArgs(id, at, recipient.UserID, recipient.UserID.String()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO notification_receipts .* DO NOTHING`).
		WithArgs(id, recipient.UserID, at, model.TargetUser).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	affected, err := repo.MarkRead(context.Background(), id, recipient, at)
	require.NoError(t, err)
	assert.Zero(t, affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepository_DeleteBroadcastOnlyHidesItForCaller(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewNotificationRepository(NewBaseRepository(db))
	recipient := testRecipient()
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`^DELETE FROM notifications WHERE id = \$1 AND \(recipient_id = \$2 OR target = \$3\)$`).
		WithArgs(id, recipient.UserID, recipient.UserID.String()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO notification_receipts .* 'deleted' .* WHERE id = \$1 AND recipient_id IS NULL AND target = \$3`).
		WithArgs(id, recipient.UserID, model.TargetUser).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	affected, err := repo.Delete(context.Background(), id, recipient)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepository_DeleteOtherAudienceBroadcastAffectsNothing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewNotificationRepository(NewBaseRepository(db))
	recipient := testRecipient()
	adminBroadcast := uuid.New()

	// The receipt insert is scoped to the caller's own audience, so an admin
	// broadcast matches no row for a plain user.
	mock.ExpectBegin()
	mock.ExpectExec(`^DELETE FROM notifications WHERE id = \$1 AND \(recipient_id = \$2 OR target = \$3\)$`).
		WithArgs(adminBroadcast, recipient.UserID, recipient.UserID.String()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO notification_receipts`).
		WithArgs(adminBroadcast, recipient.UserID, model.TargetUser).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	affected, err := repo.Delete(context.Background(), adminBroadcast, recipient)
	require.NoError(t, err)
	assert.Zero(t, affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepository_MarkAllReadLeavesBroadcastRowsShared(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewNotificationRepository(NewBaseRepository(db))
	recipient := testRecipient()
	at := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(`^UPDATE notifications SET status = 'read', read_at = \$1 WHERE status = 'unread' AND \(recipient_id = \$2 OR target = \$3\)$`).
		WithArgs(at, recipient.UserID, recipient.UserID.String()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`INSERT INTO notification_receipts .* WHERE recipient_id IS NULL AND target = \$3 ON CONFLICT`).
		WithArgs(recipient.UserID, at, model.TargetUser).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	affected, err := repo.MarkAllRead(context.Background(), recipient, at)
	require.NoError(t, err)
	assert.Equal(t, int64(5), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepository_ArchiveRollsBackOnReceiptFailure(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewNotificationRepository(NewBaseRepository(db))
	recipient := testRecipient()
	id := uuid.New()
	at := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE notifications SET status = 'archived'`).
		WithArgs(id, at, recipient.UserID, recipient.UserID.String()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO notification_receipts`).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := repo.Archive(context.Background(), id, recipient, at)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to archive notification")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepository_DeleteRead(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewNotificationRepository(NewBaseRepository(db))
	recipient := testRecipient()

	mock.ExpectBegin()
	mock.ExpectExec(`^DELETE FROM notifications WHERE status = ANY\(\$1\) AND \(recipient_id = \$2 OR target = \$3\)$`).
		WithArgs(sqlmock.AnyArg(), recipient.UserID, recipient.UserID.String()).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`UPDATE notification_receipts SET status = 'deleted' WHERE user_id = \$1`).
		WithArgs(recipient.UserID, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	affected, err := repo.DeleteRead(context.Background(), recipient)
	require.NoError(t, err)
	assert.Equal(t, int64(4), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepository_UpdateStatusNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOutboxRepository(NewBaseRepository(db))
	id := uuid.New()

	mock.ExpectExec(`UPDATE outbox_events`).
		WithArgs(string(model.OutboxStatusProcessed), nil, nil, sqlmock.AnyArg(), id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), id, model.OutboxStatusProcessed, nil, nil)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
