package services

import (
	"context"
	"sort"
	"sync"

	"github.com/SAP-F-2025/course-progression-service/internal/events"
	"github.com/SAP-F-2025/course-progression-service/internal/grading"
	"github.com/SAP-F-2025/course-progression-service/internal/models"
	"github.com/SAP-F-2025/course-progression-service/internal/repositories"
)

// ProgressTracker holds one learner's CompletionRecord for one course. A chapter enters
// the record only after the progress repository acknowledges it.
type ProgressTracker struct {
	mu        sync.Mutex
	course    *models.Course
	session   models.Session
	repo      repositories.ProgressRepository
	deps      *Dependencies
	completed map[uint]struct{}
	pending   map[uint]struct{}
}

func NewProgressTracker(course *models.Course, session models.Session, completed []uint, deps *Dependencies) *ProgressTracker {
	deps = deps.withDefaults()
	t := &ProgressTracker{
		course:    course,
		session:   session,
		repo:      deps.Repo.Progress(),
		deps:      deps,
		completed: make(map[uint]struct{}, len(completed)),
		pending:   make(map[uint]struct{}),
	}
	for _, id := range completed {
		t.completed[id] = struct{}{}
	}
	return t
}

func (t *ProgressTracker) IsCompleted(chapterID uint) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.completed[chapterID]
	return ok
}

// IsPending reports a completion whose persistence has not resolved yet
func (t *ProgressTracker) IsPending(chapterID uint) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.pending[chapterID]
	return ok
}

// CompletedIDs returns the record in ascending id order
func (t *ProgressTracker) CompletedIDs() []uint {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]uint, 0, len(t.completed))
	for id := range t.completed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (t *ProgressTracker) Percentage() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.percentageLocked()
}

func (t *ProgressTracker) IsCourseComplete() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.courseCompleteLocked()
}

// MarkComplete persists a chapter completion once. It returns true when this call recorded
// the chapter. Repeating a completed chapter is a silent no-op; repeating one that is still
// in flight returns ErrCompletionPending. Persistence failures leave the record unchanged.
func (t *ProgressTracker) MarkComplete(ctx context.Context, chapterID uint) (bool, error) {
	if t.session.Privileged() {
		return false, ErrPreviewOnly
	}
	if _, ok := t.course.Chapter(chapterID); !ok {
		return false, ErrChapterNotFound
	}

	t.mu.Lock()
	if _, ok := t.completed[chapterID]; ok {
		t.mu.Unlock()
		return false, nil
	}
	if _, ok := t.pending[chapterID]; ok {
		t.mu.Unlock()
		return false, ErrCompletionPending
	}
	t.pending[chapterID] = struct{}{}
	t.mu.Unlock()

	err := t.repo.MarkChapterComplete(ctx, t.session.LearnerID, t.course.ID, chapterID)
	alreadyRecorded := repositories.IsConflictError(err)

	t.mu.Lock()
	delete(t.pending, chapterID)
	if err != nil && !alreadyRecorded {
		t.mu.Unlock()
		t.deps.Metrics.ChapterCompletionFailed()
		t.deps.Logger.Error("Failed to persist chapter completion",
			"learner_id", t.session.LearnerID,
			"course_id", t.course.ID,
			"chapter_id", chapterID,
			"error", err)
		return false, collaboratorError("mark chapter complete", err, ErrChapterNotFound)
	}
	t.completed[chapterID] = struct{}{}
	percentage := t.percentageLocked()
	courseComplete := t.courseCompleteLocked()
	t.mu.Unlock()

	if alreadyRecorded {
		t.deps.Logger.Info("Chapter already recorded as complete",
			"learner_id", t.session.LearnerID,
			"chapter_id", chapterID)
		return false, nil
	}

	t.deps.Metrics.ChapterCompleted()
	t.deps.Logger.Info("Chapter completed",
		"learner_id", t.session.LearnerID,
		"course_id", t.course.ID,
		"chapter_id", chapterID,
		"percentage", percentage)
	t.deps.publish(ctx, events.NewProgressEvent(events.EventChapterCompleted, t.session.LearnerID, t.course.ID,
		events.ChapterCompletedEvent{
			ChapterID:          chapterID,
			ProgressPercentage: percentage,
			CourseComplete:     courseComplete,
		}))
	return true, nil
}

func (t *ProgressTracker) percentageLocked() int {
	if len(t.course.Chapters) == 0 {
		return 0
	}
	done := 0
	for _, chapter := range t.course.Chapters {
		if _, ok := t.completed[chapter.ID]; ok {
			done++
		}
	}
	return grading.Percentage(float64(done), float64(len(t.course.Chapters)))
}

func (t *ProgressTracker) courseCompleteLocked() bool {
	for _, chapter := range t.course.Chapters {
		if _, ok := t.completed[chapter.ID]; !ok {
			return false
		}
	}
	return true
}
