package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/SAP-F-2025/course-progression-service/internal/models"
	"github.com/SAP-F-2025/course-progression-service/internal/services"
	"github.com/SAP-F-2025/course-progression-service/internal/utils"
	"github.com/gin-gonic/gin"
)

// ===== COMMON RESPONSE STRUCTURES =====

// ErrorResponse represents an error response
type ErrorResponse struct {
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
	Code      string      `json:"code,omitempty"`
	Retryable bool        `json:"retryable,omitempty"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ===== REQUEST STRUCTURES =====

// AnswerRequest carries one answer in the wire shape of its question type
type AnswerRequest struct {
	Answer models.Answer `json:"answer"`
}

// NavigateRequest moves through the final test
type NavigateRequest struct {
	Action string `json:"action" validate:"required,oneof=next previous jump"`
	Index  int    `json:"index" validate:"gte=0"`
}

// ReportRequest lists the learners included in a progress report
type ReportRequest struct {
	LearnerIDs []string `json:"learner_ids" validate:"required,min=1,max=500,dive,required"`
}

// ===== BASE HANDLER STRUCT =====

// BaseHandler provides common logging functionality for all handlers
type BaseHandler struct {
	logger *slog.Logger
}

func NewBaseHandler(logger *slog.Logger) BaseHandler {
	return BaseHandler{
		logger: logger,
	}
}

// requestLogger prefers the request-scoped logger set by utils.ContextLogger
func (h *BaseHandler) requestLogger(c *gin.Context) *slog.Logger {
	if _, exists := c.Get("logger"); exists {
		return utils.GetLoggerFromContext(c)
	}
	return h.logger
}

// LogRequest logs incoming HTTP requests with context information
func (h *BaseHandler) LogRequest(c *gin.Context, message string, additionalFields ...interface{}) {
	fields := []interface{}{
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"user_id", h.extractUserID(c),
	}
	fields = append(fields, additionalFields...)

	h.requestLogger(c).Info(message, fields...)
}

// LogError logs error details with context information
func (h *BaseHandler) LogError(c *gin.Context, err error, message string, additionalFields ...interface{}) {
	fields := []interface{}{
		"user_id", h.extractUserID(c),
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"error", err,
	}
	fields = append(fields, additionalFields...)

	h.requestLogger(c).Error(message, fields...)
}

// LogWarn logs warning messages with context
func (h *BaseHandler) LogWarn(c *gin.Context, message string, additionalFields ...interface{}) {
	fields := []interface{}{
		"user_id", h.extractUserID(c),
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
	}
	fields = append(fields, additionalFields...)

	h.requestLogger(c).Warn(message, fields...)
}

func (h *BaseHandler) extractUserID(c *gin.Context) interface{} {
	if userID, exists := c.Get(userIDContextKey); exists {
		return userID
	}
	return nil
}

// RespondWithSuccess sends a consistent success response
func (h *BaseHandler) RespondWithSuccess(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, SuccessResponse{
		Message: message,
		Data:    data,
	})
}

// handleServiceError maps the engine error taxonomy onto HTTP responses. Conflicts are
// no-op successes and answer 200.
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
			Code:    "validation",
		})
		return
	}

	switch {
	case services.IsUnauthorized(err):
		h.LogWarn(c, "Session rejected", "error", err)
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: err.Error(),
			Code:    "unauthorized",
		})
	case services.IsForbidden(err):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: err.Error(),
			Code:    "forbidden",
		})
	case services.IsNotFound(err):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: err.Error(),
			Code:    "not_found",
		})
	case services.IsValidation(err):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: err.Error(),
			Code:    "validation",
		})
	case services.IsConflict(err):
		c.JSON(http.StatusOK, SuccessResponse{
			Message: "No changes applied: " + err.Error(),
		})
	case services.IsTransient(err):
		h.LogError(c, err, "Collaborator unavailable")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Message:   "Service temporarily unavailable, please retry",
			Details:   err.Error(),
			Code:      "transient",
			Retryable: true,
		})
	default:
		h.LogError(c, err, "Unhandled service error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}
