package models

import (
	"time"

	"gorm.io/datatypes"
)

// ChapterCompletion is one CompletionRecord entry. A chapter appears at most once per
// learner and is never removed by normal flow.
type ChapterCompletion struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	LearnerID   string    `json:"learner_id" gorm:"not null;size:255;uniqueIndex:idx_learner_chapter,priority:1"`
	ChapterID   uint      `json:"chapter_id" gorm:"not null;uniqueIndex:idx_learner_chapter,priority:2"`
	CourseID    uint      `json:"course_id" gorm:"not null;index"`
	CompletedAt time.Time `json:"completed_at"`
}

func (ChapterCompletion) TableName() string {
	return "chapter_completions"
}

// PassThreshold is the inclusive final-test score required for a certificate.
const PassThreshold = 70

// AttemptResult is produced by submitting an assessment. Score is a 0-100 percentage.
// AttemptNumber, AttemptsRemaining and MaxAttempts are only set for final tests.
type AttemptResult struct {
	ID                uint            `json:"id" gorm:"primaryKey"`
	LearnerID         string          `json:"learner_id" gorm:"not null;size:255;uniqueIndex:idx_attempt_learner_assessment,priority:1"`
	AssessmentID      uint            `json:"assessment_id" gorm:"not null;uniqueIndex:idx_attempt_learner_assessment,priority:2"`
	ChapterID         *uint           `json:"chapter_id,omitempty" gorm:"index"`
	Scope             AssessmentScope `json:"scope" gorm:"not null"`
	Score             int             `json:"score"`
	EarnedPoints      float64         `json:"earned_points"`
	TotalPoints       float64         `json:"total_points"`
	AttemptNumber     int             `json:"attempt_number,omitempty" gorm:"uniqueIndex:idx_attempt_learner_assessment,priority:3"`
	AttemptsRemaining int             `json:"attempts_remaining"`
	MaxAttempts       int             `json:"max_attempts,omitempty"`
	Answers           datatypes.JSON  `json:"-" gorm:"type:jsonb"`
	SubmittedAt       time.Time       `json:"submitted_at"`
}

func (AttemptResult) TableName() string {
	return "attempt_results"
}

// Passed reports whether the attempt reaches PassThreshold.
func (r *AttemptResult) Passed() bool {
	return r != nil && r.Score >= PassThreshold
}

// Certificate is issued once per qualifying final-test attempt.
type Certificate struct {
	ID                uint      `json:"id" gorm:"primaryKey"`
	CertificateNumber string    `json:"certificate_number" gorm:"uniqueIndex;size:64"`
	AttemptID         uint      `json:"attempt_id" gorm:"not null;uniqueIndex"`
	AssessmentID      uint      `json:"assessment_id" gorm:"not null;index"`
	LearnerID         string    `json:"learner_id" gorm:"not null;size:255;index"`
	LearnerName       string    `json:"learner_name" gorm:"size:200"`
	CourseTitle       string    `json:"course_title" gorm:"size:200"`
	Score             int       `json:"score"`
	CompletedAt       time.Time `json:"completed_at"`
	IssuedAt          time.Time `json:"issued_at"`
}

func (Certificate) TableName() string {
	return "certificates"
}
