package services

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/SAP-F-2025/course-progression-service/internal/events"
	"github.com/SAP-F-2025/course-progression-service/internal/grading"
	"github.com/SAP-F-2025/course-progression-service/internal/models"
	"github.com/SAP-F-2025/course-progression-service/internal/repositories"
)

type QuizState string

const (
	QuizNoQuiz           QuizState = "no_quiz"
	QuizLocked           QuizState = "locked"
	QuizLoading          QuizState = "loading"
	QuizReady            QuizState = "ready"
	QuizSubmitting       QuizState = "submitting"
	QuizSubmitted        QuizState = "submitted"
	QuizAlreadySubmitted QuizState = "already_submitted"
	QuizUnavailable      QuizState = "unavailable"
)

// ChapterQuizSession drives one chapter quiz from load to a single submission.
type ChapterQuizSession struct {
	mu         sync.Mutex
	chapter    models.Chapter
	courseID   uint
	session    models.Session
	state      QuizState
	assessment *models.Assessment
	answers    models.AnswerSet
	result     *models.AttemptResult
	discarded  bool

	tracker *ProgressTracker
	deps    *Dependencies
}

// QuizView is a snapshot of the quiz for display
type QuizView struct {
	ChapterID    uint                  `json:"chapter_id"`
	State        QuizState             `json:"state"`
	Preview      bool                  `json:"preview"`
	AssessmentID uint                  `json:"assessment_id,omitempty"`
	Title        string                `json:"title,omitempty"`
	Questions    []models.Question     `json:"questions,omitempty"`
	Answers      models.AnswerSet      `json:"answers,omitempty"`
	Result       *models.AttemptResult `json:"result,omitempty"`
}

func newChapterQuizSession(chapter models.Chapter, courseID uint, session models.Session, tracker *ProgressTracker, deps *Dependencies) *ChapterQuizSession {
	initial := QuizNoQuiz
	if chapter.HasQuiz {
		initial = QuizLocked
	}
	return &ChapterQuizSession{
		chapter:  chapter,
		courseID: courseID,
		session:  session,
		state:    initial,
		answers:  make(models.AnswerSet),
		tracker:  tracker,
		deps:     deps,
	}
}

// Load resolves the entry state. A chapter already in the CompletionRecord goes straight to
// AlreadySubmitted without fetching the answerable form. Fetch failures are returned and the
// session stays in Loading so the caller can drop it and retry.
func (q *ChapterQuizSession) Load(ctx context.Context, unlocked bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.chapter.HasQuiz {
		q.state = QuizNoQuiz
		return nil
	}
	if !unlocked {
		q.state = QuizLocked
		return nil
	}

	if !q.session.Privileged() && q.tracker.IsCompleted(q.chapter.ID) {
		q.state = QuizAlreadySubmitted
		stored, err := q.deps.Repo.Attempt().GetQuizResult(ctx, q.session.LearnerID, q.chapter.ID)
		if err == nil {
			q.result = stored
		} else if !repositories.IsNotFoundError(err) {
			q.deps.Logger.Warn("Failed to load stored quiz result",
				"learner_id", q.session.LearnerID,
				"chapter_id", q.chapter.ID,
				"error", err)
		}
		return nil
	}

	q.state = QuizLoading
	assessments, err := q.deps.Repo.Course().ListChapterAssessments(ctx, q.chapter.ID)
	if err != nil {
		return collaboratorError("list chapter assessments", err, ErrChapterNotFound)
	}
	if len(assessments) == 0 {
		q.state = QuizUnavailable
		return nil
	}

	assessment, err := q.deps.Repo.Course().GetAssessment(ctx, assessments[0].ID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			q.state = QuizUnavailable
			return nil
		}
		return collaboratorError("get assessment", err, ErrAssessmentNotFound)
	}

	q.deps.checkDefinition(assessment)
	q.assessment = assessment
	q.answers = make(models.AnswerSet)
	q.state = QuizReady
	return nil
}

func (q *ChapterQuizSession) State() QuizState {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

func (q *ChapterQuizSession) ChapterID() uint {
	return q.chapter.ID
}

// SetAnswer records an answer. Privileged sessions are preview only.
func (q *ChapterQuizSession) SetAnswer(questionID uint, answer models.Answer) error {
	if q.session.Privileged() {
		return ErrPreviewOnly
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.discarded {
		return ErrSessionClosed
	}
	if q.state == QuizLocked {
		return ErrQuizLocked
	}
	if q.state != QuizReady {
		return ErrInvalidState
	}
	if !hasQuestion(q.assessment, questionID) {
		return ErrUnknownQuestion
	}
	q.answers[questionID] = answer
	return nil
}

// Submit scores the quiz locally and records the chapter as complete. The quiz is only
// Submitted once the completion is persisted; on failure it returns to Ready with the
// answers intact. Repeating a finished submission returns the existing result.
func (q *ChapterQuizSession) Submit(ctx context.Context) (*models.AttemptResult, error) {
	q.mu.Lock()
	switch q.state {
	case QuizSubmitted, QuizAlreadySubmitted:
		result := q.result
		q.mu.Unlock()
		return result, nil
	case QuizSubmitting:
		q.mu.Unlock()
		return nil, ErrSubmissionInFlight
	case QuizReady:
	case QuizLocked:
		q.mu.Unlock()
		return nil, ErrQuizLocked
	default:
		q.mu.Unlock()
		return nil, ErrInvalidState
	}
	if q.session.Privileged() {
		q.mu.Unlock()
		return nil, ErrPreviewOnly
	}
	if q.discarded {
		q.mu.Unlock()
		return nil, ErrSessionClosed
	}

	q.state = QuizSubmitting
	assessment := q.assessment
	answers := copyAnswers(q.answers)
	q.mu.Unlock()

	result, err := q.complete(ctx, assessment, answers)

	q.mu.Lock()
	if err != nil {
		q.state = QuizReady
		q.mu.Unlock()
		return nil, err
	}
	q.state = QuizSubmitted
	q.result = result
	q.mu.Unlock()

	q.deps.Metrics.QuizSubmitted()
	q.deps.publish(ctx, events.NewProgressEvent(events.EventQuizSubmitted, q.session.LearnerID, q.courseID,
		events.QuizSubmittedEvent{
			ChapterID:    q.chapter.ID,
			AssessmentID: assessment.ID,
			Score:        result.Score,
			EarnedPoints: result.EarnedPoints,
			TotalPoints:  result.TotalPoints,
		}))
	return result, nil
}

func (q *ChapterQuizSession) complete(ctx context.Context, assessment *models.Assessment, answers models.AnswerSet) (*models.AttemptResult, error) {
	scored, err := grading.ScoreWithGrader(ctx, assessment.OrderedQuestions(), answers, q.deps.Grader)
	if err != nil {
		return nil, &TransientError{Op: "grade quiz", Err: err}
	}

	if _, err := q.tracker.MarkComplete(ctx, q.chapter.ID); err != nil {
		return nil, err
	}

	chapterID := q.chapter.ID
	result := &models.AttemptResult{
		LearnerID:    q.session.LearnerID,
		AssessmentID: assessment.ID,
		ChapterID:    &chapterID,
		Scope:        models.ScopeChapter,
		Score:        scored.Percentage(),
		EarnedPoints: scored.EarnedPoints,
		TotalPoints:  scored.TotalPoints,
		SubmittedAt:  q.deps.Clock.Now(),
	}
	if payload, err := json.Marshal(answers); err == nil {
		result.Answers = payload
	}

	// The completion is already durable; a lost score only degrades the AlreadySubmitted view.
	if err := q.deps.Repo.Attempt().SaveQuizResult(ctx, result); err != nil {
		q.deps.Logger.Warn("Failed to save quiz result",
			"learner_id", q.session.LearnerID,
			"chapter_id", chapterID,
			"error", err)
	}
	return result, nil
}

// Discard drops in-progress answers when the learner leaves the chapter
func (q *ChapterQuizSession) Discard() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.discarded = true
	if q.state == QuizReady {
		q.answers = make(models.AnswerSet)
	}
}

func (q *ChapterQuizSession) View() QuizView {
	q.mu.Lock()
	defer q.mu.Unlock()

	view := QuizView{
		ChapterID: q.chapter.ID,
		State:     q.state,
		Preview:   q.session.Privileged(),
		Result:    q.result,
	}
	if q.assessment != nil && (q.state == QuizReady || q.state == QuizSubmitting || q.state == QuizSubmitted) {
		view.AssessmentID = q.assessment.ID
		view.Title = q.assessment.Title
		view.Questions = questionsFor(q.assessment, q.session)
		view.Answers = copyAnswers(q.answers)
	}
	return view
}

func hasQuestion(assessment *models.Assessment, questionID uint) bool {
	if assessment == nil {
		return false
	}
	for _, question := range assessment.Questions {
		if question.ID == questionID {
			return true
		}
	}
	return false
}

// questionsFor hides grading keys from learners. Privileged previews see the full definition.
func questionsFor(assessment *models.Assessment, session models.Session) []models.Question {
	questions := assessment.OrderedQuestions()
	if session.Privileged() {
		return questions
	}
	for i := range questions {
		questions[i] = questions[i].ForLearner()
	}
	return questions
}

func copyAnswers(answers models.AnswerSet) models.AnswerSet {
	copied := make(models.AnswerSet, len(answers))
	for id, answer := range answers {
		copied[id] = answer
	}
	return copied
}
