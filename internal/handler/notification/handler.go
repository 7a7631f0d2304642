package notification

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/medreturn-api/internal/middleware"
	"github.com/jwalitptl/medreturn-api/internal/model"
	notificationService "github.com/jwalitptl/medreturn-api/internal/service/notification"
	apperrors "github.com/jwalitptl/medreturn-api/pkg/errors"
	"github.com/jwalitptl/medreturn-api/pkg/httputil"
	"github.com/jwalitptl/medreturn-api/pkg/messaging"
	"github.com/jwalitptl/medreturn-api/pkg/metrics"
)

const defaultHeartbeat = 25 * time.Second

type Handler struct {
	service   notificationService.Service
	auth      *middleware.AuthMiddleware
	broker    messaging.Broker
	channel   string
	metrics   *metrics.Metrics
	heartbeat time.Duration
}

func NewHandler(service notificationService.Service, auth *middleware.AuthMiddleware, broker messaging.Broker, channel string, m *metrics.Metrics) *Handler {
	return &Handler{
		service:   service,
		auth:      auth,
		broker:    broker,
		channel:   channel,
		metrics:   m,
		heartbeat: defaultHeartbeat,
	}
}

// RegisterRoutes registers the request/response routes. The caller must
// already be authenticated.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	notifications := r.Group("/notifications")
	{
		notifications.GET("", h.List)
		notifications.POST("", h.auth.RequireRole(model.RoleAdmin, model.RoleCollaborator), h.Create)
		notifications.POST("/templated", h.auth.RequireRole(model.RoleAdmin, model.RoleCollaborator), h.CreateFromTemplate)
		notifications.GET("/unread-count", h.UnreadCount)
		notifications.POST("/:id/read", h.MarkRead)
		notifications.PUT("/read-all", h.MarkAllRead)
		notifications.PUT("/:id/archive", h.Archive)
		notifications.DELETE("/clear", h.Clear)
		notifications.DELETE("/:id", h.Delete)
	}
}

// RegisterStreamRoutes registers the long-lived stream, which must not run
// under a request timeout.
func (h *Handler) RegisterStreamRoutes(r *gin.RouterGroup) {
	r.GET("/notifications/stream", h.Stream)
}

type createNotificationRequest struct {
	Type        model.NotificationType     `json:"type" binding:"required"`
	Title       string                     `json:"title" binding:"required"`
	Message     string                     `json:"message" binding:"required"`
	Priority    model.NotificationPriority `json:"priority"`
	Target      string                     `json:"target" binding:"required,notification_target"`
	RecipientID *uuid.UUID                 `json:"recipientId"`
	Link        *string                    `json:"link"`
	Metadata    model.Metadata             `json:"metadata"`
}

type createFromTemplateRequest struct {
	Template    model.NotificationTemplate `json:"template"`
	Vars        map[string]string          `json:"vars"`
	RecipientID *uuid.UUID                 `json:"recipientId"`
}

type countResponse struct {
	Count int64 `json:"count"`
}

func recipientFrom(c *gin.Context) (model.Recipient, bool) {
	recipient, ok := middleware.CurrentRecipient(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
	}
	return recipient, ok
}

func idParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid notification ID", err))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) List(c *gin.Context) {
	recipient, ok := recipientFrom(c)
	if !ok {
		return
	}

	notifications, err := h.service.List(c.Request.Context(), recipient, model.NotificationFilter{
		Status: model.NotificationStatus(c.Query("status")),
		Limit:  httputil.QueryInt(c, "limit", 100),
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, notifications)
}

func (h *Handler) Create(c *gin.Context) {
	sender, ok := recipientFrom(c)
	if !ok {
		return
	}

	var req createNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, middleware.BindingError(err))
		return
	}

	priority := req.Priority
	if priority == "" {
		priority = model.NotificationPriorityMedium
	}
	n := &model.Notification{
		Type:        req.Type,
		Title:       req.Title,
		Message:     req.Message,
		Priority:    priority,
		Target:      req.Target,
		RecipientID: req.RecipientID,
		SenderID:    &sender.UserID,
		Link:        req.Link,
		Metadata:    req.Metadata,
	}

	if err := h.service.Send(c.Request.Context(), n); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, n)
}

func (h *Handler) CreateFromTemplate(c *gin.Context) {
	sender, ok := recipientFrom(c)
	if !ok {
		return
	}

	var req createFromTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, middleware.BindingError(err))
		return
	}

	n, err := h.service.SendTemplate(c.Request.Context(), req.Template, req.Vars, req.RecipientID, &sender.UserID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, n)
}

func (h *Handler) UnreadCount(c *gin.Context) {
	recipient, ok := recipientFrom(c)
	if !ok {
		return
	}

	count, err := h.service.UnreadCount(c.Request.Context(), recipient)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, countResponse{Count: int64(count)})
}

func (h *Handler) MarkRead(c *gin.Context) {
	recipient, ok := recipientFrom(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}

	n, err := h.service.MarkRead(c.Request.Context(), id, recipient)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, n)
}

func (h *Handler) MarkAllRead(c *gin.Context) {
	recipient, ok := recipientFrom(c)
	if !ok {
		return
	}

	updated, err := h.service.MarkAllRead(c.Request.Context(), recipient)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, countResponse{Count: updated})
}

func (h *Handler) Archive(c *gin.Context) {
	recipient, ok := recipientFrom(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}

	n, err := h.service.Archive(c.Request.Context(), id, recipient)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, n)
}

func (h *Handler) Delete(c *gin.Context) {
	recipient, ok := recipientFrom(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), id, recipient); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, gin.H{"id": id})
}

func (h *Handler) Clear(c *gin.Context) {
	recipient, ok := recipientFrom(c)
	if !ok {
		return
	}

	deleted, err := h.service.Clear(c.Request.Context(), recipient)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, countResponse{Count: deleted})
}

// Stream pushes newly created notifications visible to the caller as
// server-sent events until the client disconnects.
func (h *Handler) Stream(c *gin.Context) {
	recipient, ok := recipientFrom(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	messages, err := h.broker.Subscribe(ctx, h.channel)
	if err != nil {
		httputil.RespondWithError(c, apperrors.Internal(err))
		return
	}

	if h.metrics != nil {
		h.metrics.StreamSubscribers.Inc()
		defer h.metrics.StreamSubscribers.Dec()
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	logger := zerolog.Ctx(ctx)
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-heartbeat.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		case msg, ok := <-messages:
			if !ok {
				return false
			}
			var event model.NotificationEvent
			if err := json.Unmarshal(msg, &event); err != nil || event.Notification == nil {
				logger.Warn().Err(err).Msg("skipping malformed notification event")
				return true
			}
			if event.Notification.VisibleTo(recipient) {
				c.SSEvent(event.Type, event.Notification)
			}
			return true
		}
	})
}
