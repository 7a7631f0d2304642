package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/medreturn-api/internal/middleware"
	"github.com/jwalitptl/medreturn-api/internal/model"
	"github.com/jwalitptl/medreturn-api/pkg/auth"
	apperrors "github.com/jwalitptl/medreturn-api/pkg/errors"
	"github.com/jwalitptl/medreturn-api/pkg/httputil"
	"github.com/jwalitptl/medreturn-api/pkg/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type MockService struct {
	mock.Mock
}

func (m *MockService) Send(ctx context.Context, n *model.Notification) error {
	return m.Called(ctx, n).Error(0)
}

func (m *MockService) SendTemplate(ctx context.Context, tmpl model.NotificationTemplate, vars map[string]string, recipientID, senderID *uuid.UUID) (*model.Notification, error) {
	args := m.Called(ctx, tmpl, vars, recipientID, senderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Notification), args.Error(1)
}

func (m *MockService) List(ctx context.Context, recipient model.Recipient, filter model.NotificationFilter) ([]*model.Notification, error) {
	args := m.Called(ctx, recipient, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Notification), args.Error(1)
}

func (m *MockService) UnreadCount(ctx context.Context, recipient model.Recipient) (int, error) {
	args := m.Called(ctx, recipient)
	return args.Int(0), args.Error(1)
}

func (m *MockService) MarkRead(ctx context.Context, id uuid.UUID, recipient model.Recipient) (*model.Notification, error) {
	args := m.Called(ctx, id, recipient)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Notification), args.Error(1)
}

func (m *MockService) MarkAllRead(ctx context.Context, recipient model.Recipient) (int64, error) {
	args := m.Called(ctx, recipient)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockService) Archive(ctx context.Context, id uuid.UUID, recipient model.Recipient) (*model.Notification, error) {
	args := m.Called(ctx, id, recipient)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Notification), args.Error(1)
}

func (m *MockService) Delete(ctx context.Context, id uuid.UUID, recipient model.Recipient) error {
	return m.Called(ctx, id, recipient).Error(0)
}

func (m *MockService) Clear(ctx context.Context, recipient model.Recipient) (int64, error) {
	args := m.Called(ctx, recipient)
	return args.Get(0).(int64), args.Error(1)
}

// fakeBroker hands every subscriber the same pre-filled channel.
type fakeBroker struct {
	messages chan []byte
	err      error
}

func (b *fakeBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	return nil
}

func (b *fakeBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.messages, nil
}

func (b *fakeBroker) Close() error { return nil }

type closeNotifyRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func (r *closeNotifyRecorder) CloseNotify() <-chan bool {
	return r.closed
}

type fixture struct {
	router  *gin.Engine
	service *MockService
	broker  *fakeBroker
	jwt     auth.JWTService
	metrics *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	require.NoError(t, middleware.RegisterBindingRules(model.TargetRule()))

	f := &fixture{
		service: new(MockService),
		broker:  &fakeBroker{messages: make(chan []byte, 8)},
		jwt:     auth.NewJWTService("secret", "medreturn", time.Hour),
		metrics: metrics.NewTestMetrics(),
	}
	authMiddleware := middleware.NewAuthMiddleware(f.jwt)
	h := NewHandler(f.service, authMiddleware, f.broker, "notifications", f.metrics)

	f.router = gin.New()
	api := f.router.Group("/api/v1", authMiddleware.Authenticate())
	h.RegisterRoutes(api)
	h.RegisterStreamRoutes(api)
	return f
}

func (f *fixture) request(t *testing.T, method, path, body string, userID uuid.UUID, role string) *httptest.ResponseRecorder {
	t.Helper()
	token, err := f.jwt.GenerateAccessToken(userID, role)
	require.NoError(t, err)

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, out interface{}) httputil.Response {
	t.Helper()
	resp := httputil.Response{Data: out}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestList(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	recipient := model.Recipient{UserID: userID, Role: model.RoleUser}
	stored := []*model.Notification{{ID: uuid.New(), Title: "Đơn thuốc đã được duyệt", Target: userID.String()}}

	f.service.On("List", mock.Anything, recipient, model.NotificationFilter{Status: model.NotificationStatusUnread, Limit: 20}).
		Return(stored, nil)

	w := f.request(t, http.MethodGet, "/api/v1/notifications?status=unread&limit=20", "", userID, model.RoleUser)
	require.Equal(t, http.StatusOK, w.Code)

	var got []model.Notification
	decodeData(t, w, &got)
	require.Len(t, got, 1)
	assert.Equal(t, stored[0].ID, got[0].ID)
	f.service.AssertExpectations(t)
}

func TestList_DefaultLimit(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()

	f.service.On("List", mock.Anything, mock.Anything, model.NotificationFilter{Limit: 100}).
		Return([]*model.Notification{}, nil)

	w := f.request(t, http.MethodGet, "/api/v1/notifications", "", userID, model.RoleUser)
	assert.Equal(t, http.StatusOK, w.Code)
	f.service.AssertExpectations(t)
}

func TestList_Unauthenticated(t *testing.T) {
	f := newFixture(t)

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	f.service.AssertNotCalled(t, "List", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	adminID := uuid.New()

	f.service.On("Send", mock.Anything, mock.MatchedBy(func(n *model.Notification) bool {
		return n.Target == model.TargetUser &&
			n.Priority == model.NotificationPriorityMedium &&
			n.SenderID != nil && *n.SenderID == adminID
	})).Return(nil)

	body := `{"type":"system_announcement","title":"Bảo trì hệ thống","message":"Hệ thống bảo trì lúc 22h","target":"user"}`
	w := f.request(t, http.MethodPost, "/api/v1/notifications", body, adminID, model.RoleAdmin)
	assert.Equal(t, http.StatusCreated, w.Code)
	f.service.AssertExpectations(t)
}

func TestCreate_RequiresPrivilegedRole(t *testing.T) {
	f := newFixture(t)

	body := `{"type":"system_announcement","title":"t","message":"m","target":"user"}`
	w := f.request(t, http.MethodPost, "/api/v1/notifications", body, uuid.New(), model.RoleUser)
	assert.Equal(t, http.StatusForbidden, w.Code)
	f.service.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestCreate_RejectsUnknownTarget(t *testing.T) {
	f := newFixture(t)

	body := `{"type":"system_announcement","title":"t","message":"m","target":"everyone"}`
	w := f.request(t, http.MethodPost, "/api/v1/notifications", body, uuid.New(), model.RoleCollaborator)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "target is invalid", decodeData(t, w, nil).Message)
}

func TestCreate_ServiceValidationError(t *testing.T) {
	f := newFixture(t)

	f.service.On("Send", mock.Anything, mock.Anything).
		Return(apperrors.BadRequest("type must be one of [chatbot]", nil))

	body := `{"type":"bogus","title":"t","message":"m","target":"admin"}`
	w := f.request(t, http.MethodPost, "/api/v1/notifications", body, uuid.New(), model.RoleAdmin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateFromTemplate(t *testing.T) {
	f := newFixture(t)
	recipientID := uuid.New()
	senderID := uuid.New()
	created := &model.Notification{ID: uuid.New(), Title: "Thuốc Panadol đã được duyệt", SenderID: &senderID}

	f.service.On("SendTemplate", mock.Anything,
		mock.MatchedBy(func(tmpl model.NotificationTemplate) bool { return tmpl.ID == "medicine_approved" }),
		map[string]string{"medicine": "Panadol"},
		&recipientID,
		&senderID,
	).Return(created, nil)

	body := `{"template":{"id":"medicine_approved","type":"medicine_review","titleTemplate":"Thuốc {{medicine}} đã được duyệt","messageTemplate":"ok","priority":"medium","defaultTarget":"user"},` +
		`"vars":{"medicine":"Panadol"},"recipientId":"` + recipientID.String() + `"}`
	w := f.request(t, http.MethodPost, "/api/v1/notifications/templated", body, senderID, model.RoleAdmin)
	require.Equal(t, http.StatusCreated, w.Code)

	var got model.Notification
	decodeData(t, w, &got)
	assert.Equal(t, created.ID, got.ID)
	require.NotNil(t, got.SenderID)
	assert.Equal(t, senderID, *got.SenderID)
}

func TestCreateFromTemplate_AudienceWithRecipientRejected(t *testing.T) {
	f := newFixture(t)
	recipientID := uuid.New()

	f.service.On("SendTemplate", mock.Anything, mock.Anything, mock.Anything, &recipientID, mock.Anything).
		Return(nil, apperrors.BadRequest(`recipientId cannot be combined with the "admin" audience`, nil))

	body := `{"template":{"type":"system_announcement","titleTemplate":"t","messageTemplate":"m","priority":"low","defaultTarget":"admin"},` +
		`"recipientId":"` + recipientID.String() + `"}`
	w := f.request(t, http.MethodPost, "/api/v1/notifications/templated", body, uuid.New(), model.RoleAdmin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnreadCount(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()

	f.service.On("UnreadCount", mock.Anything, model.Recipient{UserID: userID, Role: model.RoleUser}).Return(4, nil)

	w := f.request(t, http.MethodGet, "/api/v1/notifications/unread-count", "", userID, model.RoleUser)
	require.Equal(t, http.StatusOK, w.Code)

	var got countResponse
	decodeData(t, w, &got)
	assert.Equal(t, int64(4), got.Count)
}

func TestMarkRead(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	id := uuid.New()
	now := time.Now().UTC()

	f.service.On("MarkRead", mock.Anything, id, mock.Anything).
		Return(&model.Notification{ID: id, Status: model.NotificationStatusRead, ReadAt: &now}, nil)

	w := f.request(t, http.MethodPost, "/api/v1/notifications/"+id.String()+"/read", "", userID, model.RoleUser)
	require.Equal(t, http.StatusOK, w.Code)

	var got model.Notification
	decodeData(t, w, &got)
	assert.Equal(t, model.NotificationStatusRead, got.Status)
}

func TestMarkRead_InvalidID(t *testing.T) {
	f := newFixture(t)

	w := f.request(t, http.MethodPost, "/api/v1/notifications/not-a-uuid/read", "", uuid.New(), model.RoleUser)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	f.service.AssertNotCalled(t, "MarkRead", mock.Anything, mock.Anything, mock.Anything)
}

func TestMarkRead_NotFound(t *testing.T) {
	f := newFixture(t)
	id := uuid.New()

	f.service.On("MarkRead", mock.Anything, id, mock.Anything).
		Return(nil, apperrors.NotFound("notification", model.ErrNotFound))

	w := f.request(t, http.MethodPost, "/api/v1/notifications/"+id.String()+"/read", "", uuid.New(), model.RoleUser)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMarkAllRead(t *testing.T) {
	f := newFixture(t)

	f.service.On("MarkAllRead", mock.Anything, mock.Anything).Return(int64(3), nil)

	w := f.request(t, http.MethodPut, "/api/v1/notifications/read-all", "", uuid.New(), model.RoleUser)
	require.Equal(t, http.StatusOK, w.Code)

	var got countResponse
	decodeData(t, w, &got)
	assert.Equal(t, int64(3), got.Count)
}

func TestArchive(t *testing.T) {
	f := newFixture(t)
	id := uuid.New()

	f.service.On("Archive", mock.Anything, id, mock.Anything).
		Return(&model.Notification{ID: id, Status: model.NotificationStatusArchived}, nil)

	w := f.request(t, http.MethodPut, "/api/v1/notifications/"+id.String()+"/archive", "", uuid.New(), model.RoleUser)
	require.Equal(t, http.StatusOK, w.Code)

	var got model.Notification
	decodeData(t, w, &got)
	assert.Equal(t, model.NotificationStatusArchived, got.Status)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	id := uuid.New()

	f.service.On("Delete", mock.Anything, id, mock.Anything).Return(nil)

	w := f.request(t, http.MethodDelete, "/api/v1/notifications/"+id.String(), "", uuid.New(), model.RoleUser)
	assert.Equal(t, http.StatusOK, w.Code)
	f.service.AssertExpectations(t)
}

func TestDelete_ForeignBroadcastNotFound(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	adminBroadcast := uuid.New()

	f.service.On("Delete", mock.Anything, adminBroadcast, model.Recipient{UserID: userID, Role: model.RoleUser}).
		Return(apperrors.NotFound("notification", model.ErrNotFound))

	w := f.request(t, http.MethodDelete, "/api/v1/notifications/"+adminBroadcast.String(), "", userID, model.RoleUser)
	assert.Equal(t, http.StatusNotFound, w.Code)
	f.service.AssertExpectations(t)
}

func TestClear(t *testing.T) {
	f := newFixture(t)

	f.service.On("Clear", mock.Anything, mock.Anything).Return(int64(7), nil)

	w := f.request(t, http.MethodDelete, "/api/v1/notifications/clear", "", uuid.New(), model.RoleUser)
	require.Equal(t, http.StatusOK, w.Code)

	var got countResponse
	decodeData(t, w, &got)
	assert.Equal(t, int64(7), got.Count)
	f.service.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
}

func TestStream_FiltersByVisibility(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()

	publish := func(n *model.Notification) {
		payload, err := json.Marshal(model.NotificationEvent{Type: model.NotificationEventCreated, Notification: n})
		require.NoError(t, err)
		f.broker.messages <- payload
	}
	publish(&model.Notification{ID: uuid.New(), Title: "for-me", Target: userID.String(), RecipientID: &userID})
	publish(&model.Notification{ID: uuid.New(), Title: "for-admins", Target: model.TargetAdmin})
	f.broker.messages <- []byte("not json")
	publish(&model.Notification{ID: uuid.New(), Title: "for-users", Target: model.TargetUser})
	close(f.broker.messages)

	token, err := f.jwt.GenerateAccessToken(userID, model.RoleUser)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications/stream", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	w := &closeNotifyRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool)}
	f.router.ServeHTTP(w, req)

	body := w.Body.String()
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Contains(t, body, "event:"+model.NotificationEventCreated)
	assert.Contains(t, body, "for-me")
	assert.Contains(t, body, "for-users")
	assert.NotContains(t, body, "for-admins")
}

func TestStream_SubscribeError(t *testing.T) {
	f := newFixture(t)
	f.broker.err = errors.New("redis down")

	w := f.request(t, http.MethodGet, "/api/v1/notifications/stream", "", uuid.New(), model.RoleUser)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
