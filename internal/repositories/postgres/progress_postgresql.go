package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/SAP-F-2025/course-progression-service/internal/models"
	"github.com/SAP-F-2025/course-progression-service/internal/repositories"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProgressPostgreSQL struct {
	db *gorm.DB
}

func NewProgressPostgreSQL(db *gorm.DB) repositories.ProgressRepository {
	return &ProgressPostgreSQL{db: db}
}

func (p *ProgressPostgreSQL) GetCompletedChapters(ctx context.Context, learnerID string, courseID uint) ([]uint, error) {
	chapterIDs := make([]uint, 0)
	if err := p.db.WithContext(ctx).
		Model(&models.ChapterCompletion{}).
		Where("learner_id = ? AND course_id = ?", learnerID, courseID).
		Order("completed_at ASC").
		Pluck("chapter_id", &chapterIDs).Error; err != nil {
		return nil, fmt.Errorf("failed to get completed chapters: %w", err)
	}
	return chapterIDs, nil
}

// MarkChapterComplete inserts the completion row once. A repeated call reports ErrConflict
// and leaves the original row untouched.
func (p *ProgressPostgreSQL) MarkChapterComplete(ctx context.Context, learnerID string, courseID, chapterID uint) error {
	completion := &models.ChapterCompletion{
		LearnerID:   learnerID,
		CourseID:    courseID,
		ChapterID:   chapterID,
		CompletedAt: time.Now(),
	}

	result := p.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "learner_id"}, {Name: "chapter_id"}},
			DoNothing: true,
		}).
		Create(completion)
	if result.Error != nil {
		return fmt.Errorf("failed to mark chapter complete: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repositories.ErrConflict
	}
	return nil
}
