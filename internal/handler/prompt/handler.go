package prompt

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/medreturn-api/internal/middleware"
	"github.com/jwalitptl/medreturn-api/internal/prompt"
	apperrors "github.com/jwalitptl/medreturn-api/pkg/errors"
	"github.com/jwalitptl/medreturn-api/pkg/httputil"
)

// Sessions is the prompt session store; *prompt.Registry implements it.
type Sessions interface {
	Mount(ctx context.Context, owner uuid.UUID) (uuid.UUID, prompt.View, error)
	View(id, owner uuid.UUID) (prompt.View, error)
	Interact(id, owner uuid.UUID) (prompt.View, error)
	Dismiss(id, owner uuid.UUID) (prompt.View, error)
	Unmount(id, owner uuid.UUID) error
}

type Handler struct {
	sessions Sessions
}

func NewHandler(sessions Sessions) *Handler {
	return &Handler{sessions: sessions}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	prompts := r.Group("/prompts")
	{
		prompts.POST("", h.Mount)
		prompts.GET("/:id", h.View)
		prompts.POST("/:id/interact", h.Interact)
		prompts.POST("/:id/dismiss", h.Dismiss)
		prompts.DELETE("/:id", h.Unmount)
	}
}

type sessionResponse struct {
	ID uuid.UUID `json:"id"`
	prompt.View
}

func sessionError(err error) error {
	if errors.Is(err, prompt.ErrSessionNotFound) {
		return apperrors.NotFound("prompt session", err)
	}
	return apperrors.Internal(err)
}

// target resolves the caller and the :id path parameter.
func target(c *gin.Context) (id, owner uuid.UUID, ok bool) {
	recipient, ok := middleware.CurrentRecipient(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
		return uuid.Nil, uuid.Nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid prompt session ID", err))
		return uuid.Nil, uuid.Nil, false
	}
	return id, recipient.UserID, true
}

// Mount starts a prompt session for the caller. The prompt fires once the
// configured delay passes without an interaction.
func (h *Handler) Mount(c *gin.Context) {
	recipient, ok := middleware.CurrentRecipient(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
		return
	}

	id, view, err := h.sessions.Mount(c.Request.Context(), recipient.UserID)
	if err != nil {
		httputil.RespondWithError(c, apperrors.Internal(err))
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, sessionResponse{ID: id, View: view})
}

func (h *Handler) View(c *gin.Context) {
	id, owner, ok := target(c)
	if !ok {
		return
	}
	view, err := h.sessions.View(id, owner)
	if err != nil {
		httputil.RespondWithError(c, sessionError(err))
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, sessionResponse{ID: id, View: view})
}

func (h *Handler) Interact(c *gin.Context) {
	id, owner, ok := target(c)
	if !ok {
		return
	}
	view, err := h.sessions.Interact(id, owner)
	if err != nil {
		httputil.RespondWithError(c, sessionError(err))
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, sessionResponse{ID: id, View: view})
}

func (h *Handler) Dismiss(c *gin.Context) {
	id, owner, ok := target(c)
	if !ok {
		return
	}
	view, err := h.sessions.Dismiss(id, owner)
	if err != nil {
		httputil.RespondWithError(c, sessionError(err))
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, sessionResponse{ID: id, View: view})
}

func (h *Handler) Unmount(c *gin.Context) {
	id, owner, ok := target(c)
	if !ok {
		return
	}
	if err := h.sessions.Unmount(id, owner); err != nil {
		httputil.RespondWithError(c, sessionError(err))
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, gin.H{"id": id})
}
