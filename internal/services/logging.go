package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ServiceLogger provides structured logging for engine operations
type ServiceLogger struct {
	logger *slog.Logger
	config LogConfig
}

type LogConfig struct {
	Service     string
	Component   string
	EnableDebug bool
}

func NewServiceLogger(logger *slog.Logger, config LogConfig) *ServiceLogger {
	return &ServiceLogger{
		logger: logger.With("service", config.Service, "component", config.Component),
		config: config,
	}
}

// Logger returns the underlying slog logger with the service attributes attached
func (l *ServiceLogger) Logger() *slog.Logger {
	return l.logger
}

// ===== OPERATION LOGGING =====

// LogOperation writes one line per engine operation. Conflicts are logged as successes
// with their own status since callers treat them as no-ops.
func (l *ServiceLogger) LogOperation(ctx context.Context, operation string, learnerID string, resourceID uint, resourceType string, duration time.Duration, err error) {
	level, status := classifyOutcome(err)
	if level == slog.LevelDebug && !l.config.EnableDebug {
		return
	}

	attrs := []slog.Attr{
		slog.String("operation", operation),
		slog.String("learner_id", learnerID),
		slog.Uint64("resource_id", uint64(resourceID)),
		slog.String("resource_type", resourceType),
		slog.String("status", status),
		slog.Duration("duration", duration),
	}

	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))

		var validationErr ValidationErrors
		if errors.As(err, &validationErr) {
			attrs = append(attrs, slog.Int("validation_errors_count", len(validationErr)))
		}
		var transientErr *TransientError
		if errors.As(err, &transientErr) {
			attrs = append(attrs, slog.String("failed_call", transientErr.Op))
		}
	}

	l.logger.LogAttrs(ctx, level, fmt.Sprintf("%s operation %s", operation, status), attrs...)
}

func classifyOutcome(err error) (slog.Level, string) {
	switch {
	case err == nil:
		return slog.LevelInfo, "success"
	case IsConflict(err):
		return slog.LevelDebug, "conflict"
	case IsValidation(err):
		return slog.LevelWarn, "validation_error"
	case IsUnauthorized(err):
		return slog.LevelWarn, "unauthorized"
	case IsForbidden(err):
		return slog.LevelWarn, "forbidden"
	case IsNotFound(err):
		return slog.LevelInfo, "not_found"
	case IsTransient(err):
		return slog.LevelError, "transient_error"
	}
	return slog.LevelError, "error"
}

// ===== MIDDLEWARE AND HELPERS =====

// ContextualLogger times one operation and logs its result
type ContextualLogger struct {
	logger    *ServiceLogger
	operation string
	learnerID string
	startTime time.Time
	ctx       context.Context
}

func (l *ServiceLogger) WithOperation(ctx context.Context, operation string, learnerID string) *ContextualLogger {
	return &ContextualLogger{
		logger:    l,
		operation: operation,
		learnerID: learnerID,
		startTime: time.Now(),
		ctx:       ctx,
	}
}

func (cl *ContextualLogger) LogResult(resourceID uint, resourceType string, err error) {
	cl.logger.LogOperation(cl.ctx, cl.operation, cl.learnerID, resourceID, resourceType, time.Since(cl.startTime), err)
}

// ===== ERROR FORMATTING HELPERS =====

// FormatError describes err by taxonomy class for API responses
func FormatError(err error) map[string]interface{} {
	if err == nil {
		return nil
	}

	result := map[string]interface{}{
		"message": err.Error(),
		"type":    "unknown",
	}

	var validationErrs ValidationErrors
	switch {
	case errors.As(err, &validationErrs):
		result["type"] = "validation"
		result["count"] = len(validationErrs)

		fields := make([]map[string]interface{}, len(validationErrs))
		for i, validationErr := range validationErrs {
			fields[i] = map[string]interface{}{
				"field":   validationErr.Field,
				"message": validationErr.Message,
				"value":   validationErr.Value,
			}
		}
		result["errors"] = fields
	case IsValidation(err):
		result["type"] = "validation"
	case IsUnauthorized(err):
		result["type"] = "unauthorized"
	case IsForbidden(err):
		result["type"] = "forbidden"
	case IsNotFound(err):
		result["type"] = "not_found"
	case IsConflict(err):
		result["type"] = "conflict"
	case IsTransient(err):
		result["type"] = "transient"
		result["retryable"] = true
	}

	return result
}
