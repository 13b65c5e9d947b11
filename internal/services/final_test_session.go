package services

import (
	"context"
	"sync"
	"time"

	"github.com/SAP-F-2025/course-progression-service/internal/events"
	"github.com/SAP-F-2025/course-progression-service/internal/models"
	"github.com/SAP-F-2025/course-progression-service/internal/repositories"
)

type FinalTestState string

const (
	FinalTestLoading          FinalTestState = "loading"
	FinalTestAlreadyAttempted FinalTestState = "already_attempted"
	FinalTestActive           FinalTestState = "active"
	FinalTestConfirming       FinalTestState = "confirming_submit"
	FinalTestSubmitting       FinalTestState = "submitting"
	FinalTestSubmitted        FinalTestState = "submitted"
	FinalTestUnavailable      FinalTestState = "unavailable"
)

// autoSubmitTimeout bounds the submission fired by the countdown, which has no request context.
const autoSubmitTimeout = 30 * time.Second

// FinalTestSession is the timed final-test state machine. The countdown runs on its own
// goroutine and is torn down on submission or Close; it never fires after Submitted.
type FinalTestSession struct {
	mu         sync.Mutex
	course     *models.Course
	session    models.Session
	state      FinalTestState
	assessment *models.Assessment
	questions  []models.Question
	answers    models.AnswerSet
	current    int
	remaining  int
	result     *models.AttemptResult
	auto       bool
	lastErr    error
	closed     bool

	ticker     Ticker
	stopTicker chan struct{}
	generation int
	done       chan struct{}
	doneOnce   sync.Once

	onSubmitted func(ctx context.Context, result *models.AttemptResult)
	deps        *Dependencies
}

// SubmitSummary is shown by the confirmation gate
type SubmitSummary struct {
	Answered int `json:"answered"`
	Total    int `json:"total"`
}

// FinalTestView is a snapshot of the final test for display
type FinalTestView struct {
	State            FinalTestState        `json:"state"`
	Preview          bool                  `json:"preview"`
	AssessmentID     uint                  `json:"assessment_id,omitempty"`
	Title            string                `json:"title,omitempty"`
	RemainingSeconds int                   `json:"remaining_seconds"`
	CurrentIndex     int                   `json:"current_index"`
	TotalQuestions   int                   `json:"total_questions"`
	Question         *models.Question      `json:"question,omitempty"`
	Answer           *models.Answer        `json:"answer,omitempty"`
	Summary          *SubmitSummary        `json:"summary,omitempty"`
	Result           *models.AttemptResult `json:"result,omitempty"`
	AutoSubmitted    bool                  `json:"auto_submitted"`
	Eligible         bool                  `json:"eligible"`
	LastError        string                `json:"last_error,omitempty"`
}

func newFinalTestSession(course *models.Course, session models.Session, deps *Dependencies, onSubmitted func(context.Context, *models.AttemptResult)) *FinalTestSession {
	return &FinalTestSession{
		course:      course,
		session:     session,
		state:       FinalTestLoading,
		answers:     make(models.AnswerSet),
		done:        make(chan struct{}),
		onSubmitted: onSubmitted,
		deps:        deps,
	}
}

// Load fetches the final test. A learner with a recorded attempt lands in AlreadyAttempted;
// otherwise the countdown starts. Privileged sessions preview the test without a timer.
func (f *FinalTestSession) Load(ctx context.Context) error {
	assessment, err := f.deps.Repo.Course().GetFinalTestForCourse(ctx, f.course.ID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			f.setState(FinalTestUnavailable)
			return nil
		}
		return collaboratorError("get final test", err, ErrAssessmentNotFound)
	}

	f.deps.checkDefinition(assessment)

	var prior *models.AttemptResult
	if !f.session.Privileged() {
		prior, err = f.deps.Repo.Attempt().GetFinalAttempt(ctx, f.session.LearnerID, assessment.ID)
		if err != nil && !repositories.IsNotFoundError(err) {
			return collaboratorError("get final attempt", err, nil)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.assessment = assessment
	f.questions = questionsFor(assessment, f.session)
	f.remaining = assessment.TimeLimit(f.deps.FinalTestDefaultSeconds)

	if prior != nil {
		f.state = FinalTestAlreadyAttempted
		f.result = prior
		return nil
	}

	f.state = FinalTestActive
	if !f.session.Privileged() && !f.closed {
		f.startTimerLocked()
	}
	return nil
}

func (f *FinalTestSession) setState(state FinalTestState) {
	f.mu.Lock()
	f.state = state
	f.mu.Unlock()
}

func (f *FinalTestSession) State() FinalTestState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *FinalTestSession) Remaining() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.remaining
}

func (f *FinalTestSession) Result() *models.AttemptResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result
}

// Done is closed once a submission has settled and its event is published
func (f *FinalTestSession) Done() <-chan struct{} {
	return f.done
}

// ===== COUNTDOWN =====

func (f *FinalTestSession) startTimerLocked() {
	f.generation++
	ticker := f.deps.Clock.NewTicker(time.Second)
	stop := make(chan struct{})
	f.ticker = ticker
	f.stopTicker = stop
	go f.runTimer(ticker, stop, f.generation)
}

func (f *FinalTestSession) stopTimerLocked() {
	f.generation++
	if f.ticker != nil {
		f.ticker.Stop()
		close(f.stopTicker)
		f.ticker = nil
		f.stopTicker = nil
	}
}

func (f *FinalTestSession) runTimer(ticker Ticker, stop <-chan struct{}, generation int) {
	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			if !f.tick(generation) {
				return
			}
		}
	}
}

// tick counts down one second and reports whether the countdown should keep running.
// Reaching zero submits without confirmation.
func (f *FinalTestSession) tick(generation int) bool {
	f.mu.Lock()
	if generation != f.generation || f.closed {
		f.mu.Unlock()
		return false
	}
	if f.state != FinalTestActive && f.state != FinalTestConfirming {
		f.mu.Unlock()
		return false
	}
	if f.remaining > 0 {
		f.remaining--
	}
	if f.remaining > 0 {
		f.mu.Unlock()
		return true
	}
	f.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), autoSubmitTimeout)
	defer cancel()
	if _, err := f.submit(ctx, true); err != nil {
		f.deps.Logger.Error("Automatic final test submission failed",
			"learner_id", f.session.LearnerID,
			"course_id", f.course.ID,
			"error", err)
	}
	return false
}

// ===== NAVIGATION AND ANSWERS =====

func (f *FinalTestSession) SetAnswer(questionID uint, answer models.Answer) error {
	if f.session.Privileged() {
		return ErrPreviewOnly
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != FinalTestActive || f.closed {
		return ErrInvalidState
	}
	if !hasQuestion(f.assessment, questionID) {
		return ErrUnknownQuestion
	}
	f.answers[questionID] = answer
	return nil
}

func (f *FinalTestSession) Next() error {
	return f.navigate(func(current int) int { return current + 1 })
}

func (f *FinalTestSession) Previous() error {
	return f.navigate(func(current int) int { return current - 1 })
}

// JumpTo moves to a zero-based question index
func (f *FinalTestSession) JumpTo(index int) error {
	f.mu.Lock()
	total := len(f.questions)
	f.mu.Unlock()
	if index < 0 || index >= total {
		return ErrQuestionOutOfRange
	}
	return f.navigate(func(int) int { return index })
}

// navigate clamps to the question list and leaves the timer and answers untouched
func (f *FinalTestSession) navigate(move func(current int) int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != FinalTestActive {
		return ErrInvalidState
	}
	next := move(f.current)
	if next < 0 {
		next = 0
	}
	if last := len(f.questions) - 1; next > last {
		next = max(last, 0)
	}
	f.current = next
	return nil
}

// ===== SUBMISSION =====

// RequestSubmit opens the confirmation gate
func (f *FinalTestSession) RequestSubmit() (SubmitSummary, error) {
	if f.session.Privileged() {
		return SubmitSummary{}, ErrPreviewOnly
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != FinalTestActive || f.closed {
		return SubmitSummary{}, ErrInvalidState
	}
	f.state = FinalTestConfirming
	return f.summaryLocked(), nil
}

// CancelSubmit returns to Active with answers and remaining time intact
func (f *FinalTestSession) CancelSubmit() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != FinalTestConfirming {
		return ErrInvalidState
	}
	f.state = FinalTestActive
	return nil
}

func (f *FinalTestSession) ConfirmSubmit(ctx context.Context) (*models.AttemptResult, error) {
	return f.submit(ctx, false)
}

// submit performs the single authoritative submission. The repository result is final; a
// conflict means an attempt already exists and the stored attempt is adopted.
func (f *FinalTestSession) submit(ctx context.Context, auto bool) (*models.AttemptResult, error) {
	f.mu.Lock()
	switch f.state {
	case FinalTestSubmitted, FinalTestAlreadyAttempted:
		result := f.result
		f.mu.Unlock()
		return result, nil
	case FinalTestSubmitting:
		f.mu.Unlock()
		return nil, ErrSubmissionInFlight
	case FinalTestConfirming:
	case FinalTestActive:
		if !auto {
			f.mu.Unlock()
			return nil, ErrInvalidState
		}
	default:
		f.mu.Unlock()
		return nil, ErrInvalidState
	}
	if f.session.Privileged() {
		f.mu.Unlock()
		return nil, ErrPreviewOnly
	}
	if f.closed && !auto {
		f.mu.Unlock()
		return nil, ErrSessionClosed
	}

	f.stopTimerLocked()
	f.state = FinalTestSubmitting
	f.lastErr = nil
	assessmentID := f.assessment.ID
	answers := copyAnswers(f.answers)
	f.mu.Unlock()

	result, err := f.deps.Repo.Attempt().SubmitFinalAttempt(ctx, f.session.LearnerID, f.session.LearnerName, assessmentID, answers)
	if err != nil && repositories.IsConflictError(err) {
		result, err = f.deps.Repo.Attempt().GetFinalAttempt(ctx, f.session.LearnerID, assessmentID)
	}

	f.mu.Lock()
	if err != nil {
		err = collaboratorError("submit final attempt", err, ErrAssessmentNotFound)
		f.state = FinalTestActive
		f.lastErr = err
		if f.remaining > 0 && !f.closed {
			f.startTimerLocked()
		}
		f.mu.Unlock()
		return nil, err
	}
	f.state = FinalTestSubmitted
	f.result = result
	f.auto = auto
	f.mu.Unlock()

	eligible := Eligible(result)
	f.deps.Metrics.FinalSubmitted(auto, eligible)
	f.deps.Logger.Info("Final test submitted",
		"learner_id", f.session.LearnerID,
		"assessment_id", assessmentID,
		"score", result.Score,
		"attempt_number", result.AttemptNumber,
		"auto_submitted", auto)
	f.deps.publish(ctx, events.NewProgressEvent(events.EventFinalTestSubmitted, f.session.LearnerID, f.course.ID,
		events.FinalTestSubmittedEvent{
			AssessmentID:      assessmentID,
			AttemptID:         result.ID,
			Score:             result.Score,
			AttemptNumber:     result.AttemptNumber,
			AttemptsRemaining: result.AttemptsRemaining,
			AutoSubmitted:     auto,
			Eligible:          eligible,
		}))

	if f.onSubmitted != nil {
		f.onSubmitted(ctx, result)
	}
	f.doneOnce.Do(func() { close(f.done) })
	return result, nil
}

// Close tears down the countdown so no stale auto-submit can fire
func (f *FinalTestSession) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.stopTimerLocked()
}

func (f *FinalTestSession) summaryLocked() SubmitSummary {
	answered := 0
	for _, question := range f.questions {
		if answer, ok := f.answers[question.ID]; ok && answer.Answered() {
			answered++
		}
	}
	return SubmitSummary{Answered: answered, Total: len(f.questions)}
}

func (f *FinalTestSession) View() FinalTestView {
	f.mu.Lock()
	defer f.mu.Unlock()

	view := FinalTestView{
		State:            f.state,
		Preview:          f.session.Privileged(),
		RemainingSeconds: f.remaining,
		CurrentIndex:     f.current,
		TotalQuestions:   len(f.questions),
		Result:           f.result,
		AutoSubmitted:    f.auto,
		Eligible:         Eligible(f.result),
	}
	if f.assessment != nil {
		view.AssessmentID = f.assessment.ID
		view.Title = f.assessment.Title
	}
	if f.lastErr != nil {
		view.LastError = f.lastErr.Error()
	}
	if (f.state == FinalTestActive || f.state == FinalTestConfirming) && f.current < len(f.questions) {
		question := f.questions[f.current]
		view.Question = &question
		if answer, ok := f.answers[question.ID]; ok {
			view.Answer = &answer
		}
	}
	if f.state == FinalTestConfirming {
		summary := f.summaryLocked()
		view.Summary = &summary
	}
	return view
}
