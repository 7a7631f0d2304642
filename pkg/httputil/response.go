package httputil

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/medreturn-api/pkg/errors"
)

// Response is the JSON envelope shared by every endpoint.
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// StatusCode maps an error to the HTTP status it should be reported with.
func StatusCode(err error) int {
	appErr, ok := errors.As(err)
	if !ok {
		return http.StatusInternalServerError
	}

	switch appErr.Code {
	case errors.ErrNotFound:
		return http.StatusNotFound
	case errors.ErrBadRequest:
		return http.StatusBadRequest
	case errors.ErrUnauthorized:
		return http.StatusUnauthorized
	case errors.ErrForbidden:
		return http.StatusForbidden
	case errors.ErrConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{
		Status: "success",
		Data:   data,
	})
}

// RespondWithError sends an error response. Internal errors never leak their cause.
func RespondWithError(c *gin.Context, err error) {
	status := StatusCode(err)
	message := "internal server error"
	if appErr, ok := errors.As(err); ok && status != http.StatusInternalServerError {
		message = appErr.Message
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, Response{
		Status:  "error",
		Message: message,
	})
}

// QueryInt reads an integer query parameter, returning def when absent or invalid.
func QueryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
