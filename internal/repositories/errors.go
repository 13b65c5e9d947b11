package repositories

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrConflict  = errors.New("record already exists")
	ErrForbidden = errors.New("access to record forbidden")
)

// IsNotFoundError treats both ErrNotFound and gorm's not-found error as absent records.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}

func IsConflictError(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, gorm.ErrDuplicatedKey)
}

func IsForbiddenError(err error) bool {
	return errors.Is(err, ErrForbidden)
}
