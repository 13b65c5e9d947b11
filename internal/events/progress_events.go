package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the kinds of progression events
type EventType string

const (
	EventChapterCompleted   EventType = "chapter.completed"
	EventQuizSubmitted      EventType = "quiz.submitted"
	EventFinalTestSubmitted EventType = "final_test.submitted"
	EventCertificateIssued  EventType = "certificate.issued"
)

const (
	eventSource  = "course-progression-service"
	eventVersion = "1.0"
)

// ProgressEvent is the envelope for every event published by the service
type ProgressEvent struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	LearnerID string      `json:"learner_id"`
	CourseID  uint        `json:"course_id"`
	Data      interface{} `json:"data"`
}

type ChapterCompletedEvent struct {
	ChapterID          uint `json:"chapter_id"`
	ProgressPercentage int  `json:"progress_percentage"`
	CourseComplete     bool `json:"course_complete"`
}

type QuizSubmittedEvent struct {
	ChapterID    uint    `json:"chapter_id"`
	AssessmentID uint    `json:"assessment_id"`
	Score        int     `json:"score"`
	EarnedPoints float64 `json:"earned_points"`
	TotalPoints  float64 `json:"total_points"`
}

type FinalTestSubmittedEvent struct {
	AssessmentID      uint `json:"assessment_id"`
	AttemptID         uint `json:"attempt_id"`
	Score             int  `json:"score"`
	AttemptNumber     int  `json:"attempt_number"`
	AttemptsRemaining int  `json:"attempts_remaining"`
	AutoSubmitted     bool `json:"auto_submitted"`
	Eligible          bool `json:"eligible"`
}

type CertificateIssuedEvent struct {
	AssessmentID      uint   `json:"assessment_id"`
	CertificateID     uint   `json:"certificate_id"`
	CertificateNumber string `json:"certificate_number"`
	Score             int    `json:"score"`
}

// NewProgressEvent builds an envelope with a fresh id and timestamp
func NewProgressEvent(eventType EventType, learnerID string, courseID uint, data interface{}) *ProgressEvent {
	return &ProgressEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Source:    eventSource,
		Version:   eventVersion,
		LearnerID: learnerID,
		CourseID:  courseID,
		Data:      data,
	}
}
