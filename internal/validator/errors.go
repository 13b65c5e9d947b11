package validator

import (
	"fmt"

	apperrors "github.com/SAP-F-2025/course-progression-service/internal/errors"
)

// Field errors are shared with services and handlers through internal/errors.
type (
	ValidationError  = apperrors.ValidationError
	ValidationErrors = apperrors.ValidationErrors
)

func ToValidationErrors(err error) ValidationErrors {
	return apperrors.ToValidationErrors(err)
}

// withIndex qualifies field names with a list position, e.g. questions[2].options.
func withIndex(list string, index int, errs ValidationErrors) ValidationErrors {
	qualified := make(ValidationErrors, 0, len(errs))
	for _, e := range errs {
		e.Field = fmt.Sprintf("%s[%d].%s", list, index, e.Field)
		qualified = append(qualified, e)
	}
	return qualified
}
