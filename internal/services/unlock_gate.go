package services

import (
	"github.com/SAP-F-2025/course-progression-service/internal/models"
)

// CompletionChecker answers CompletionRecord membership
type CompletionChecker interface {
	IsCompleted(chapterID uint) bool
}

// IsQuizUnlocked reports whether the quiz attached to chapter is reachable. Every chapter
// ordered strictly before it must be completed; equal orders are never prior to each other.
// Privileged roles bypass gating.
func IsQuizUnlocked(chapter models.Chapter, chapters []models.Chapter, completion CompletionChecker, role models.UserRole) bool {
	if !chapter.HasQuiz {
		return false
	}
	if role.IsPrivileged() {
		return true
	}
	for _, prior := range chapters {
		if prior.Order < chapter.Order && !completion.IsCompleted(prior.ID) {
			return false
		}
	}
	return true
}

// IsFinalTestReachable reports whether the course final test may be opened.
func IsFinalTestReachable(chapters []models.Chapter, completion CompletionChecker, role models.UserRole) bool {
	if role.IsPrivileged() {
		return true
	}
	for _, chapter := range chapters {
		if !completion.IsCompleted(chapter.ID) {
			return false
		}
	}
	return true
}

// ChapterStatus is the derived per-chapter view of the gate and the CompletionRecord
type ChapterStatus struct {
	ChapterID    uint   `json:"chapter_id"`
	Title        string `json:"title"`
	Order        int    `json:"order"`
	HasQuiz      bool   `json:"has_quiz"`
	Completed    bool   `json:"completed"`
	Pending      bool   `json:"pending"`
	QuizUnlocked bool   `json:"quiz_unlocked"`
}

// EvaluateChapters derives the status of every chapter in display order
func EvaluateChapters(chapters []models.Chapter, tracker *ProgressTracker, role models.UserRole) []ChapterStatus {
	statuses := make([]ChapterStatus, 0, len(chapters))
	for _, chapter := range chapters {
		statuses = append(statuses, ChapterStatus{
			ChapterID:    chapter.ID,
			Title:        chapter.Title,
			Order:        chapter.Order,
			HasQuiz:      chapter.HasQuiz,
			Completed:    tracker.IsCompleted(chapter.ID),
			Pending:      tracker.IsPending(chapter.ID),
			QuizUnlocked: IsQuizUnlocked(chapter, chapters, tracker, role),
		})
	}
	return statuses
}
