package postgres

import (
	"context"
	"fmt"

	"github.com/SAP-F-2025/course-progression-service/internal/models"
	"github.com/SAP-F-2025/course-progression-service/internal/repositories"
	"gorm.io/gorm"
)

type CoursePostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewCoursePostgreSQL(db *gorm.DB) repositories.CourseRepository {
	return &CoursePostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

func (c *CoursePostgreSQL) GetCourse(ctx context.Context, courseID uint) (*models.Course, error) {
	var course models.Course
	if err := c.db.WithContext(ctx).
		Preload("Chapters", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC, id ASC")
		}).
		First(&course, courseID).Error; err != nil {
		return nil, translateError(err)
	}
	if err := c.markQuizChapters(ctx, &course); err != nil {
		return nil, err
	}
	return &course, nil
}

// markQuizChapters sets HasQuiz on every chapter with at least one chapter-scoped assessment.
func (c *CoursePostgreSQL) markQuizChapters(ctx context.Context, course *models.Course) error {
	if len(course.Chapters) == 0 {
		return nil
	}
	chapterIDs := make([]uint, 0, len(course.Chapters))
	for _, chapter := range course.Chapters {
		chapterIDs = append(chapterIDs, chapter.ID)
	}

	quizChapters := make([]uint, 0)
	if err := c.db.WithContext(ctx).
		Model(&models.Assessment{}).
		Where("chapter_id IN ? AND scope = ?", chapterIDs, models.ScopeChapter).
		Distinct().
		Pluck("chapter_id", &quizChapters).Error; err != nil {
		return fmt.Errorf("failed to find quiz chapters: %w", err)
	}

	withQuiz := make(map[uint]struct{}, len(quizChapters))
	for _, id := range quizChapters {
		withQuiz[id] = struct{}{}
	}
	for i := range course.Chapters {
		_, course.Chapters[i].HasQuiz = withQuiz[course.Chapters[i].ID]
	}
	return nil
}

func (c *CoursePostgreSQL) ListChapterAssessments(ctx context.Context, chapterID uint) ([]*models.Assessment, error) {
	assessments := make([]*models.Assessment, 0)
	if err := c.db.WithContext(ctx).
		Where("chapter_id = ? AND scope = ?", chapterID, models.ScopeChapter).
		Order("id ASC").
		Find(&assessments).Error; err != nil {
		return nil, fmt.Errorf("failed to list chapter assessments: %w", err)
	}
	return assessments, nil
}

func (c *CoursePostgreSQL) GetAssessment(ctx context.Context, assessmentID uint) (*models.Assessment, error) {
	return c.helpers.LoadAssessment(ctx, nil, "id = ?", assessmentID)
}

func (c *CoursePostgreSQL) GetFinalTestForCourse(ctx context.Context, courseID uint) (*models.Assessment, error) {
	return c.helpers.LoadAssessment(ctx, nil, "course_id = ? AND scope = ?", courseID, models.ScopeCourse)
}
