package postgres

import (
	"testing"

	"github.com/SAP-F-2025/course-progression-service/internal/models"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a private in-memory database with the service schema. One connection
// keeps every query, transactions included, on the same in-memory database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, AutoMigrate(db))
	return db
}

func intPtr(v int) *int { return &v }

func uintPtr(v uint) *uint { return &v }

func choiceQuestion(id, assessmentID uint, order int, points float64) models.Question {
	return models.Question{
		ID:                 id,
		AssessmentID:       assessmentID,
		Type:               models.QuestionSingle,
		Prompt:             "pick one",
		Points:             points,
		Order:              order,
		Options:            []string{"right", "wrong"},
		CorrectOptionIndex: intPtr(0),
	}
}

// seedCourse stores course 1 with chapters 10, 20 and 30 (stored out of order). Chapter 20
// carries quiz 200.
func seedCourse(t *testing.T, db *gorm.DB) {
	t.Helper()
	course := models.Course{
		ID:    1,
		Title: "Go Basics",
		Chapters: []models.Chapter{
			{ID: 30, Title: "Concurrency", Order: 3},
			{ID: 10, Title: "Syntax", Order: 1},
			{ID: 20, Title: "Types", Order: 2},
		},
	}
	require.NoError(t, db.Create(&course).Error)

	quiz := models.Assessment{
		ID:        200,
		Title:     "Types quiz",
		Scope:     models.ScopeChapter,
		CourseID:  1,
		ChapterID: uintPtr(20),
		Questions: []models.Question{
			choiceQuestion(2, 200, 2, 1),
			choiceQuestion(1, 200, 1, 1),
		},
	}
	require.NoError(t, db.Create(&quiz).Error)
}

// seedFinalTest stores final test 900 for course 1. Question i is worth points[i] and its
// correct answer is option 0.
func seedFinalTest(t *testing.T, db *gorm.DB, maxAttempts int, points ...float64) {
	t.Helper()
	final := models.Assessment{
		ID:               900,
		Title:            "Final",
		Scope:            models.ScopeCourse,
		CourseID:         1,
		TimeLimitSeconds: intPtr(600),
		MaxAttempts:      maxAttempts,
	}
	for i, p := range points {
		final.Questions = append(final.Questions, choiceQuestion(uint(901+i), 900, i+1, p))
	}
	require.NoError(t, db.Create(&final).Error)
}

// firstCorrect answers question 901 correctly and every other question wrongly.
func firstCorrect(count int) models.AnswerSet {
	answers := models.AnswerSet{901: models.ChoiceAnswer(0)}
	for i := 1; i < count; i++ {
		answers[uint(901+i)] = models.ChoiceAnswer(1)
	}
	return answers
}
