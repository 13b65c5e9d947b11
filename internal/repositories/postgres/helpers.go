package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/SAP-F-2025/course-progression-service/internal/models"
	"github.com/SAP-F-2025/course-progression-service/internal/repositories"
	"gorm.io/gorm"
)

// SharedHelpers holds queries used by more than one repository.
type SharedHelpers struct {
	db *gorm.DB
}

func NewSharedHelpers(db *gorm.DB) *SharedHelpers {
	return &SharedHelpers{db: db}
}

func (h *SharedHelpers) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return h.db
}

// CountFinalAttempts counts recorded final-test attempts for a learner.
func (h *SharedHelpers) CountFinalAttempts(ctx context.Context, tx *gorm.DB, learnerID string, assessmentID uint) (int64, error) {
	var count int64
	err := h.getDB(tx).WithContext(ctx).
		Model(&models.AttemptResult{}).
		Where("learner_id = ? AND assessment_id = ? AND scope = ?", learnerID, assessmentID, models.ScopeCourse).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count attempts: %w", err)
	}
	return count, nil
}

// LoadAssessment loads an assessment with its ordered questions.
func (h *SharedHelpers) LoadAssessment(ctx context.Context, tx *gorm.DB, query string, args ...interface{}) (*models.Assessment, error) {
	var assessment models.Assessment
	err := h.getDB(tx).WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC, id ASC")
		}).
		Where(query, args...).
		First(&assessment).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &assessment, nil
}

func translateError(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return repositories.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return repositories.ErrConflict
	}
	return err
}

// AutoMigrate creates or updates every table the service owns.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Course{},
		&models.Chapter{},
		&models.Assessment{},
		&models.Question{},
		&models.ChapterCompletion{},
		&models.AttemptResult{},
		&models.Certificate{},
	)
}
