package services

import (
	"context"
	"sync"
	"time"

	"github.com/SAP-F-2025/course-progression-service/internal/models"
)

// CourseSession is the engine for one learner in one course. It takes the place of a
// single event loop: chapter, quiz, final test and certificate flows all hang off it.
type CourseSession struct {
	mu          sync.Mutex
	session     models.Session
	course      *models.Course
	chapters    []models.Chapter
	tracker     *ProgressTracker
	quiz        *ChapterQuizSession
	finalTest   *FinalTestSession
	certificate *CertificateGate
	activeID    uint
	lastUsed    time.Time
	closed      bool

	deps *Dependencies
	log  *ServiceLogger
}

// CourseOverview is the course page: progress, gated chapters and final test reachability
type CourseOverview struct {
	CourseID           uint            `json:"course_id"`
	Title              string          `json:"title"`
	Percentage         int             `json:"percentage"`
	Complete           bool            `json:"complete"`
	Chapters           []ChapterStatus `json:"chapters"`
	FinalTestReachable bool            `json:"final_test_reachable"`
	Preview            bool            `json:"preview"`
}

// ChapterView is one chapter with its content and, for quiz chapters, the quiz state
type ChapterView struct {
	Chapter models.Chapter `json:"chapter"`
	Status  ChapterStatus  `json:"status"`
	Quiz    *QuizView      `json:"quiz,omitempty"`
}

// OpenCourseSession loads the course and hydrates the CompletionRecord
func OpenCourseSession(ctx context.Context, deps *Dependencies, session *models.Session, courseID uint) (*CourseSession, error) {
	deps = deps.withDefaults()
	if session == nil {
		return nil, ErrUnauthorized
	}
	if session.Expired(deps.Clock.Now()) {
		return nil, ErrSessionExpired
	}

	course, err := deps.Repo.Course().GetCourse(ctx, courseID)
	if err != nil {
		return nil, collaboratorError("get course", err, ErrCourseNotFound)
	}
	if duplicates := course.DuplicateOrders(); len(duplicates) > 0 {
		deps.Logger.Warn("Course has chapters sharing an order; they do not gate each other",
			"course_id", course.ID,
			"orders", duplicates)
	}

	completed, err := deps.Repo.Progress().GetCompletedChapters(ctx, session.LearnerID, courseID)
	if err != nil {
		return nil, collaboratorError("get completed chapters", err, ErrCourseNotFound)
	}

	return &CourseSession{
		session:  *session,
		course:   course,
		chapters: course.OrderedChapters(),
		tracker:  NewProgressTracker(course, *session, completed, deps),
		lastUsed: deps.Clock.Now(),
		deps:     deps,
		log:      deps.serviceLogger(),
	}, nil
}

func (s *CourseSession) Course() *models.Course {
	return s.course
}

func (s *CourseSession) Session() models.Session {
	return s.session
}

func (s *CourseSession) Tracker() *ProgressTracker {
	return s.tracker
}

func (s *CourseSession) touch() {
	s.mu.Lock()
	s.lastUsed = s.deps.Clock.Now()
	s.mu.Unlock()
}

func (s *CourseSession) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// hasRunningTimer reports an active final test, which must not be evicted
func (s *CourseSession) hasRunningTimer() bool {
	s.mu.Lock()
	finalTest := s.finalTest
	s.mu.Unlock()
	if finalTest == nil {
		return false
	}
	state := finalTest.State()
	return state == FinalTestActive || state == FinalTestConfirming || state == FinalTestSubmitting
}

// ===== COURSE AND CHAPTERS =====

func (s *CourseSession) Overview() CourseOverview {
	return CourseOverview{
		CourseID:           s.course.ID,
		Title:              s.course.Title,
		Percentage:         s.tracker.Percentage(),
		Complete:           s.tracker.IsCourseComplete(),
		Chapters:           EvaluateChapters(s.chapters, s.tracker, s.session.Role),
		FinalTestReachable: IsFinalTestReachable(s.chapters, s.tracker, s.session.Role),
		Preview:            s.session.Privileged(),
	}
}

// OpenChapter makes chapterID the active chapter. Leaving a chapter with an unsubmitted
// quiz discards its answers.
func (s *CourseSession) OpenChapter(ctx context.Context, chapterID uint) (*ChapterView, error) {
	chapter, ok := s.course.Chapter(chapterID)
	if !ok {
		return nil, ErrChapterNotFound
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if s.activeID != chapterID && s.quiz != nil {
		s.quiz.Discard()
		s.quiz = nil
	}
	s.activeID = chapterID
	s.mu.Unlock()

	view := &ChapterView{Chapter: chapter, Status: s.statusOf(chapter)}
	if chapter.HasQuiz {
		quiz, err := s.OpenQuiz(ctx, chapterID)
		if err != nil {
			return nil, err
		}
		quizView := quiz.View()
		view.Quiz = &quizView
	}
	return view, nil
}

// CompleteChapter records a text chapter. Quiz chapters complete through their quiz.
func (s *CourseSession) CompleteChapter(ctx context.Context, chapterID uint) (ChapterStatus, error) {
	op := s.log.WithOperation(ctx, "complete_chapter", s.session.LearnerID)

	chapter, ok := s.course.Chapter(chapterID)
	if !ok {
		op.LogResult(chapterID, "chapter", ErrChapterNotFound)
		return ChapterStatus{}, ErrChapterNotFound
	}
	if chapter.HasQuiz {
		op.LogResult(chapterID, "chapter", ErrChapterHasQuiz)
		return ChapterStatus{}, ErrChapterHasQuiz
	}

	_, err := s.tracker.MarkComplete(ctx, chapterID)
	op.LogResult(chapterID, "chapter", err)
	if err != nil {
		return s.statusOf(chapter), err
	}
	return s.statusOf(chapter), nil
}

func (s *CourseSession) statusOf(chapter models.Chapter) ChapterStatus {
	return ChapterStatus{
		ChapterID:    chapter.ID,
		Title:        chapter.Title,
		Order:        chapter.Order,
		HasQuiz:      chapter.HasQuiz,
		Completed:    s.tracker.IsCompleted(chapter.ID),
		Pending:      s.tracker.IsPending(chapter.ID),
		QuizUnlocked: IsQuizUnlocked(chapter, s.chapters, s.tracker, s.session.Role),
	}
}

// ===== CHAPTER QUIZ =====

// OpenQuiz returns the quiz session of chapterID, loading it when needed. The gate is
// evaluated afresh each time a quiz is not already underway.
func (s *CourseSession) OpenQuiz(ctx context.Context, chapterID uint) (*ChapterQuizSession, error) {
	chapter, ok := s.course.Chapter(chapterID)
	if !ok {
		return nil, ErrChapterNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.quiz != nil && s.quiz.ChapterID() == chapterID && quizUnderway(s.quiz.State()) {
		return s.quiz, nil
	}
	if s.quiz != nil {
		s.quiz.Discard()
		s.quiz = nil
	}

	op := s.log.WithOperation(ctx, "open_quiz", s.session.LearnerID)
	quiz := newChapterQuizSession(chapter, s.course.ID, s.session, s.tracker, s.deps)
	unlocked := IsQuizUnlocked(chapter, s.chapters, s.tracker, s.session.Role)
	if err := quiz.Load(ctx, unlocked); err != nil {
		op.LogResult(chapterID, "quiz", err)
		return nil, err
	}
	op.LogResult(chapterID, "quiz", nil)

	s.quiz = quiz
	s.activeID = chapterID
	return quiz, nil
}

// Quiz returns the open quiz session of chapterID
func (s *CourseSession) Quiz(chapterID uint) (*ChapterQuizSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quiz == nil || s.quiz.ChapterID() != chapterID {
		return nil, ErrQuizNotOpen
	}
	return s.quiz, nil
}

func (s *CourseSession) SubmitQuiz(ctx context.Context, chapterID uint) (*models.AttemptResult, error) {
	quiz, err := s.Quiz(chapterID)
	if err != nil {
		return nil, err
	}
	op := s.log.WithOperation(ctx, "submit_quiz", s.session.LearnerID)
	result, err := quiz.Submit(ctx)
	op.LogResult(chapterID, "quiz", err)
	return result, err
}

func quizUnderway(state QuizState) bool {
	switch state {
	case QuizReady, QuizSubmitting, QuizSubmitted, QuizAlreadySubmitted:
		return true
	}
	return false
}

// ===== FINAL TEST =====

// OpenFinalTest returns the final test session, creating and loading it on first use.
// Learners reach it only once every chapter is complete.
func (s *CourseSession) OpenFinalTest(ctx context.Context) (*FinalTestSession, error) {
	if !IsFinalTestReachable(s.chapters, s.tracker, s.session.Role) {
		return nil, ErrFinalTestLocked
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.finalTest != nil && s.finalTest.State() != FinalTestUnavailable {
		return s.finalTest, nil
	}

	op := s.log.WithOperation(ctx, "open_final_test", s.session.LearnerID)
	finalTest := newFinalTestSession(s.course, s.session, s.deps, s.onFinalSubmitted)
	if err := finalTest.Load(ctx); err != nil {
		finalTest.Close()
		op.LogResult(s.course.ID, "final_test", err)
		return nil, err
	}
	op.LogResult(s.course.ID, "final_test", nil)

	s.finalTest = finalTest
	if finalTest.State() == FinalTestAlreadyAttempted && s.certificate == nil {
		s.certificate = NewCertificateGate(finalTest.Result(), s.session, s.course.ID, s.deps)
	}
	return finalTest, nil
}

// FinalTest returns the open final test session
func (s *CourseSession) FinalTest() (*FinalTestSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalTest == nil {
		return nil, ErrFinalTestNotOpen
	}
	return s.finalTest, nil
}

func (s *CourseSession) onFinalSubmitted(_ context.Context, result *models.AttemptResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.certificate == nil || s.certificate.attempt.ID != result.ID {
		s.certificate = NewCertificateGate(result, s.session, s.course.ID, s.deps)
	}
}

// ===== CERTIFICATE =====

// Certificate returns the gate for the learner's final attempt, fetching the attempt when
// this session has not seen it yet.
func (s *CourseSession) Certificate(ctx context.Context) (*CertificateGate, error) {
	s.mu.Lock()
	if s.certificate != nil {
		gate := s.certificate
		s.mu.Unlock()
		return gate, nil
	}
	s.mu.Unlock()

	if s.session.Privileged() {
		return nil, ErrAttemptNotFound
	}

	assessment, err := s.deps.Repo.Course().GetFinalTestForCourse(ctx, s.course.ID)
	if err != nil {
		return nil, collaboratorError("get final test", err, ErrAssessmentNotFound)
	}
	attempt, err := s.deps.Repo.Attempt().GetFinalAttempt(ctx, s.session.LearnerID, assessment.ID)
	if err != nil {
		return nil, collaboratorError("get final attempt", err, ErrAttemptNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.certificate == nil {
		s.certificate = NewCertificateGate(attempt, s.session, s.course.ID, s.deps)
	}
	return s.certificate, nil
}

// Close discards the open quiz and tears down the final test countdown
func (s *CourseSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.quiz != nil {
		s.quiz.Discard()
		s.quiz = nil
	}
	if s.finalTest != nil {
		s.finalTest.Close()
	}
}
