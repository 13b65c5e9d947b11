package services

import (
	"errors"
	"fmt"

	apperrors "github.com/SAP-F-2025/course-progression-service/internal/errors"
	"github.com/SAP-F-2025/course-progression-service/internal/repositories"
)

// ===== COMMON SERVICE ERRORS =====

var (
	ErrNotFound         = errors.New("not found")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrConflict         = errors.New("conflict")
	ErrValidationFailed = errors.New("validation failed")

	// NotFound
	ErrCourseNotFound     = fmt.Errorf("course %w", ErrNotFound)
	ErrChapterNotFound    = fmt.Errorf("chapter %w", ErrNotFound)
	ErrAssessmentNotFound = fmt.Errorf("assessment %w", ErrNotFound)
	ErrAttemptNotFound    = fmt.Errorf("final test attempt %w", ErrNotFound)
	ErrQuizNotOpen        = fmt.Errorf("open quiz session %w", ErrNotFound)
	ErrFinalTestNotOpen   = fmt.Errorf("open final test session %w", ErrNotFound)

	// Unauthorized
	ErrSessionExpired = fmt.Errorf("%w: session expired", ErrUnauthorized)

	// Forbidden
	ErrPreviewOnly        = fmt.Errorf("%w: privileged sessions are preview only", ErrForbidden)
	ErrQuizLocked         = fmt.Errorf("%w: quiz is locked until earlier chapters are completed", ErrForbidden)
	ErrFinalTestLocked    = fmt.Errorf("%w: final test requires every chapter to be completed", ErrForbidden)
	ErrNotEligible        = fmt.Errorf("%w: score is below the certificate threshold", ErrForbidden)
	ErrReportAccessDenied = fmt.Errorf("%w: progress reports require a privileged role", ErrForbidden)

	// Conflict, reported to callers as no-op success
	ErrCompletionPending   = fmt.Errorf("%w: chapter completion already in flight", ErrConflict)
	ErrSubmissionInFlight  = fmt.Errorf("%w: submission already in flight", ErrConflict)
	ErrGenerationInFlight  = fmt.Errorf("%w: certificate generation already in flight", ErrConflict)
	ErrInvalidState        = fmt.Errorf("%w: operation not allowed in current state", ErrConflict)
	ErrSessionClosed       = fmt.Errorf("%w: session closed", ErrConflict)
	ErrAlreadySubmitted    = fmt.Errorf("%w: already submitted", ErrConflict)
	ErrAttemptLimitReached = fmt.Errorf("%w: attempt limit reached", ErrConflict)

	// Validation
	ErrChapterHasQuiz     = fmt.Errorf("%w: chapter is completed by submitting its quiz", ErrValidationFailed)
	ErrUnknownQuestion    = fmt.Errorf("%w: question is not part of this assessment", ErrValidationFailed)
	ErrQuestionOutOfRange = fmt.Errorf("%w: question index out of range", ErrValidationFailed)

	// Transient, retryable
	ErrCertificateNotReady = errors.New("certificate not available yet, retry later")
)

// ===== CUSTOM ERROR TYPES =====

type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

// TransientError wraps a collaborator failure that the user may retry.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// collaboratorError classifies a repository failure into the service taxonomy.
// notFound replaces the generic ErrNotFound when the caller knows what was missing.
func collaboratorError(op string, err error, notFound error) error {
	if err == nil {
		return nil
	}
	switch {
	case repositories.IsNotFoundError(err):
		if notFound == nil {
			notFound = ErrNotFound
		}
		return fmt.Errorf("failed to %s: %w", op, notFound)
	case repositories.IsForbiddenError(err):
		return fmt.Errorf("failed to %s: %w", op, ErrForbidden)
	case repositories.IsConflictError(err):
		return fmt.Errorf("failed to %s: %w", op, ErrConflict)
	}
	return &TransientError{Op: op, Err: err}
}

// ===== ERROR HELPERS =====

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUnauthorized reports an expired or missing session. The caller must re-authenticate.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func IsValidation(err error) bool {
	if errors.Is(err, ErrValidationFailed) {
		return true
	}
	var ve apperrors.ValidationErrors
	return errors.As(err, &ve)
}

func IsTransient(err error) bool {
	if errors.Is(err, ErrCertificateNotReady) {
		return true
	}
	var te *TransientError
	return errors.As(err, &te)
}
