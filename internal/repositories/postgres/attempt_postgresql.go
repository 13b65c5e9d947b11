package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/SAP-F-2025/course-progression-service/internal/grading"
	"github.com/SAP-F-2025/course-progression-service/internal/models"
	"github.com/SAP-F-2025/course-progression-service/internal/repositories"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AttemptPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewAttemptPostgreSQL(db *gorm.DB) repositories.AttemptRepository {
	return &AttemptPostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

// SubmitFinalAttempt scores and records a final-test attempt in one transaction. A
// qualifying score also issues the certificate for the attempt, made out to learnerName.
func (a *AttemptPostgreSQL) SubmitFinalAttempt(ctx context.Context, learnerID, learnerName string, assessmentID uint, answers models.AnswerSet) (*models.AttemptResult, error) {
	var result *models.AttemptResult

	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		assessment, err := a.helpers.LoadAssessment(ctx, tx, "id = ? AND scope = ?", assessmentID, models.ScopeCourse)
		if err != nil {
			return err
		}

		count, err := a.helpers.CountFinalAttempts(ctx, tx, learnerID, assessmentID)
		if err != nil {
			return err
		}
		limit := assessment.AttemptLimit()
		if int(count) >= limit {
			return repositories.ErrConflict
		}

		payload, err := json.Marshal(answers)
		if err != nil {
			return fmt.Errorf("failed to encode answers: %w", err)
		}

		scored := grading.Score(assessment.OrderedQuestions(), answers)
		number := int(count) + 1
		result = &models.AttemptResult{
			LearnerID:         learnerID,
			AssessmentID:      assessmentID,
			Scope:             models.ScopeCourse,
			Score:             scored.Percentage(),
			EarnedPoints:      scored.EarnedPoints,
			TotalPoints:       scored.TotalPoints,
			AttemptNumber:     number,
			AttemptsRemaining: limit - number,
			MaxAttempts:       limit,
			Answers:           payload,
			SubmittedAt:       time.Now(),
		}
		if err := tx.Create(result).Error; err != nil {
			return translateError(err)
		}

		if result.Passed() {
			return a.issueCertificate(ctx, tx, assessment, result, learnerName)
		}
		return nil
	})
	if err != nil {
		if repositories.IsConflictError(err) || repositories.IsNotFoundError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to submit final attempt: %w", err)
	}
	return result, nil
}

func (a *AttemptPostgreSQL) issueCertificate(ctx context.Context, tx *gorm.DB, assessment *models.Assessment, result *models.AttemptResult, learnerName string) error {
	var course models.Course
	if err := tx.WithContext(ctx).Select("id", "title").First(&course, assessment.CourseID).Error; err != nil {
		return fmt.Errorf("failed to load course for certificate: %w", err)
	}

	now := time.Now()
	certificate := models.Certificate{
		CertificateNumber: "CERT-" + uuid.NewString(),
		AttemptID:         result.ID,
		AssessmentID:      result.AssessmentID,
		LearnerID:         result.LearnerID,
		LearnerName:       learnerName,
		CourseTitle:       course.Title,
		Score:             result.Score,
		CompletedAt:       result.SubmittedAt,
		IssuedAt:          now,
	}
	if err := tx.WithContext(ctx).
		Where(models.Certificate{AttemptID: result.ID}).
		FirstOrCreate(&certificate).Error; err != nil {
		return fmt.Errorf("failed to issue certificate: %w", err)
	}
	return nil
}

func (a *AttemptPostgreSQL) GetFinalAttempt(ctx context.Context, learnerID string, assessmentID uint) (*models.AttemptResult, error) {
	var result models.AttemptResult
	if err := a.db.WithContext(ctx).
		Where("learner_id = ? AND assessment_id = ? AND scope = ?", learnerID, assessmentID, models.ScopeCourse).
		Order("attempt_number DESC").
		First(&result).Error; err != nil {
		return nil, translateError(err)
	}
	return &result, nil
}

// SaveQuizResult keeps the first stored result for a chapter quiz.
func (a *AttemptPostgreSQL) SaveQuizResult(ctx context.Context, result *models.AttemptResult) error {
	if result.SubmittedAt.IsZero() {
		result.SubmittedAt = time.Now()
	}
	result.Scope = models.ScopeChapter

	err := a.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "learner_id"}, {Name: "assessment_id"}, {Name: "attempt_number"}},
			DoNothing: true,
		}).
		Create(result).Error
	if err != nil {
		return fmt.Errorf("failed to save quiz result: %w", err)
	}
	return nil
}

func (a *AttemptPostgreSQL) GetQuizResult(ctx context.Context, learnerID string, chapterID uint) (*models.AttemptResult, error) {
	var result models.AttemptResult
	if err := a.db.WithContext(ctx).
		Where("learner_id = ? AND chapter_id = ? AND scope = ?", learnerID, chapterID, models.ScopeChapter).
		Order("submitted_at ASC").
		First(&result).Error; err != nil {
		return nil, translateError(err)
	}
	return &result, nil
}
