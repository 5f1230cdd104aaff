package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kanban-platform/replenishment-service/pkg/errors"
)

// APIErrorResponse is the error envelope every endpoint returns
type APIErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Details   map[string]string `json:"details,omitempty"`
	RequestID string            `json:"requestId,omitempty"`
	Timestamp string            `json:"timestamp"`
	Path      string            `json:"path"`
}

func buildErrorResponse(c *gin.Context, appErr *errors.AppError) (APIErrorResponse, string) {
	requestID, _ := c.Get(ContextKeyRequestID)
	reqID, _ := requestID.(string)

	return APIErrorResponse{
		Code:      appErr.Code,
		Message:   appErr.Message,
		Details:   appErr.Details,
		RequestID: reqID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Path:      c.Request.URL.Path,
	}, reqID
}

// ErrorHandler converts errors attached to the gin context into the
// standard envelope. Handlers that respond through ErrorResponder bypass
// this, it catches what other middleware pushes via c.Error.
func ErrorHandler(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		appErr := errors.MapDomainError(c.Errors.Last().Err)
		response, reqID := buildErrorResponse(c, appErr)
		logError(logger, c, appErr, reqID)
		c.JSON(appErr.HTTPStatus, response)
	}
}

// ErrorResponder sends error responses in the standard envelope
type ErrorResponder struct {
	ctx    *gin.Context
	logger *slog.Logger
}

// NewErrorResponder creates a new ErrorResponder
func NewErrorResponder(ctx *gin.Context, logger *slog.Logger) *ErrorResponder {
	return &ErrorResponder{ctx: ctx, logger: logger}
}

// RespondWithError maps err to an AppError and sends it
func (r *ErrorResponder) RespondWithError(err error) {
	r.RespondWithAppError(errors.MapDomainError(err))
}

// RespondWithAppError sends an AppError response and records server-side
// failures on the active span
func (r *ErrorResponder) RespondWithAppError(appErr *errors.AppError) {
	response, reqID := buildErrorResponse(r.ctx, appErr)
	logError(r.logger, r.ctx, appErr, reqID)

	if appErr.HTTPStatus >= http.StatusInternalServerError {
		SetSpanError(r.ctx, appErr)
	}

	r.ctx.JSON(appErr.HTTPStatus, response)
}

// RespondNotFound sends a 404 response
func (r *ErrorResponder) RespondNotFound(resource string) {
	r.RespondWithAppError(errors.ErrNotFound(resource))
}

// RespondBadRequest sends a 400 response
func (r *ErrorResponder) RespondBadRequest(message string) {
	r.RespondWithAppError(errors.ErrBadRequest(message))
}

// RespondInternalError sends a 500 response
func (r *ErrorResponder) RespondInternalError(err error) {
	r.RespondWithAppError(errors.ErrInternal("").Wrap(err))
}

func logError(logger *slog.Logger, c *gin.Context, appErr *errors.AppError, requestID string) {
	// Client errors are expected traffic, only 5xx logs at error level
	logLevel := slog.LevelError
	if appErr.HTTPStatus < http.StatusInternalServerError {
		logLevel = slog.LevelWarn
	}

	attrs := []any{
		"code", appErr.Code,
		"message", appErr.Message,
		"status", appErr.HTTPStatus,
		"path", c.Request.URL.Path,
		"method", c.Request.Method,
		"requestId", requestID,
		"clientIP", c.ClientIP(),
	}

	if appErr.Err != nil {
		attrs = append(attrs, "error", appErr.Err.Error())
	}
	if appErr.Details != nil {
		attrs = append(attrs, "details", appErr.Details)
	}

	logger.Log(c.Request.Context(), logLevel, "API error", attrs...)
}

// AbortWithAppError stops the middleware chain with an error envelope
func AbortWithAppError(c *gin.Context, appErr *errors.AppError) {
	response, _ := buildErrorResponse(c, appErr)
	c.AbortWithStatusJSON(appErr.HTTPStatus, response)
}
