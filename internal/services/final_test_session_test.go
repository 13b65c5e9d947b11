package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/SAP-F-2025/course-progression-service/internal/events"
	"github.com/SAP-F-2025/course-progression-service/internal/models"
	"github.com/SAP-F-2025/course-progression-service/internal/repositories"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func loadFinalTest(t *testing.T, fx *fixture, session models.Session, seconds int) *FinalTestSession {
	t.Helper()
	fx.repos.Course.On("GetFinalTestForCourse", mock.Anything, uint(1)).Return(finalTest(seconds), nil)

	f := newFinalTestSession(threeChapterCourse(), session, fx.deps.withDefaults(), nil)
	require.NoError(t, f.Load(context.Background()))
	t.Cleanup(f.Close)
	return f
}

func expectNoPriorAttempt(fx *fixture) {
	fx.repos.Attempt.On("GetFinalAttempt", mock.Anything, "learner-1", uint(900)).
		Return(nil, repositories.ErrNotFound).Once()
}

func waitDone(t *testing.T, f *FinalTestSession) {
	t.Helper()
	select {
	case <-f.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("final test did not reach submitted")
	}
}

func TestFinalTest_AutoSubmitsWhenTimeRunsOut(t *testing.T) {
	fx := newFixture()
	expectNoPriorAttempt(fx)
	stored := &models.AttemptResult{ID: 5, AssessmentID: 900, Score: 67, AttemptNumber: 1, AttemptsRemaining: 0}
	fx.repos.Attempt.On("SubmitFinalAttempt", mock.Anything, "learner-1", "Ada", uint(900), mock.Anything).
		Return(stored, nil).Once()

	f := loadFinalTest(t, fx, learner, 60)
	require.Equal(t, FinalTestActive, f.State())
	require.NoError(t, f.SetAnswer(11, models.ChoiceAnswer(0)))

	ticker := fx.clock.lastTicker()
	require.NotNil(t, ticker)
	ticker.send(t, 60)
	waitDone(t, f)

	assert.Equal(t, FinalTestSubmitted, f.State())
	assert.Equal(t, 0, f.Remaining())
	assert.True(t, ticker.Stopped())
	assert.Same(t, stored, f.Result())

	view := f.View()
	assert.True(t, view.AutoSubmitted)
	assert.False(t, view.Eligible)

	select {
	case ticker.ch <- time.Now():
		t.Fatal("countdown still running after submission")
	default:
	}

	fx.repos.Attempt.AssertNumberOfCalls(t, "SubmitFinalAttempt", 1)
	submitted := fx.publisher.EventsOfType(events.EventFinalTestSubmitted)
	require.Len(t, submitted, 1)
	payload := submitted[0].Data.(events.FinalTestSubmittedEvent)
	assert.True(t, payload.AutoSubmitted)
	assert.Equal(t, 0, payload.AttemptsRemaining)
	assert.Equal(t, float64(1), testutil.ToFloat64(fx.metrics.FinalSubmissions.WithLabelValues("timeout", "failed")))
}

func TestFinalTest_CountdownKeepsAnswersAndPosition(t *testing.T) {
	fx := newFixture()
	expectNoPriorAttempt(fx)

	f := loadFinalTest(t, fx, learner, 60)
	require.NoError(t, f.SetAnswer(12, models.ChoiceAnswer(2)))
	require.NoError(t, f.Next())

	fx.clock.lastTicker().send(t, 10)
	assert.Eventually(t, func() bool { return f.Remaining() == 50 }, time.Second, 5*time.Millisecond)

	view := f.View()
	assert.Equal(t, FinalTestActive, view.State)
	assert.Equal(t, 1, view.CurrentIndex)
	require.NotNil(t, view.Answer)
	assert.Equal(t, 2, *view.Answer.Choice)
	assert.Nil(t, view.Question.CorrectOptionIndex)
}

func TestFinalTest_NavigationClampsToQuestions(t *testing.T) {
	fx := newFixture()
	expectNoPriorAttempt(fx)
	f := loadFinalTest(t, fx, learner, 60)

	require.NoError(t, f.Previous())
	assert.Equal(t, 0, f.View().CurrentIndex)

	for i := 0; i < 5; i++ {
		require.NoError(t, f.Next())
	}
	assert.Equal(t, 2, f.View().CurrentIndex)

	require.NoError(t, f.JumpTo(1))
	assert.Equal(t, 1, f.View().CurrentIndex)

	assert.ErrorIs(t, f.JumpTo(3), ErrQuestionOutOfRange)
	assert.ErrorIs(t, f.JumpTo(-1), ErrQuestionOutOfRange)
	assert.Equal(t, 1, f.View().CurrentIndex)
}

func TestFinalTest_ConfirmationGate(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	expectNoPriorAttempt(fx)
	fx.repos.Attempt.On("SubmitFinalAttempt", mock.Anything, "learner-1", "Ada", uint(900), mock.Anything).
		Return(&models.AttemptResult{ID: 7, AssessmentID: 900, Score: 100, AttemptNumber: 1}, nil).Once()

	f := loadFinalTest(t, fx, learner, 600)
	require.NoError(t, f.SetAnswer(11, models.ChoiceAnswer(0)))

	_, err := f.ConfirmSubmit(ctx)
	assert.ErrorIs(t, err, ErrInvalidState)

	summary, err := f.RequestSubmit()
	require.NoError(t, err)
	assert.Equal(t, SubmitSummary{Answered: 1, Total: 3}, summary)
	assert.Equal(t, FinalTestConfirming, f.State())
	assert.ErrorIs(t, f.SetAnswer(12, models.ChoiceAnswer(2)), ErrInvalidState)
	assert.ErrorIs(t, f.Next(), ErrInvalidState)

	require.NoError(t, f.CancelSubmit())
	assert.Equal(t, FinalTestActive, f.State())
	require.NoError(t, f.SetAnswer(12, models.ChoiceAnswer(2)))
	require.NoError(t, f.SetAnswer(13, models.ChoiceAnswer(3)))

	_, err = f.RequestSubmit()
	require.NoError(t, err)
	result, err := f.ConfirmSubmit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 100, result.Score)
	assert.Equal(t, FinalTestSubmitted, f.State())
	assert.True(t, fx.clock.lastTicker().Stopped())

	again, err := f.ConfirmSubmit(ctx)
	require.NoError(t, err)
	assert.Same(t, result, again)
	fx.repos.Attempt.AssertNumberOfCalls(t, "SubmitFinalAttempt", 1)

	answers := fx.repos.Attempt.Calls[1].Arguments.Get(4).(models.AnswerSet)
	assert.Len(t, answers, 3)
}

func TestFinalTest_FailedSubmitRestartsCountdown(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	expectNoPriorAttempt(fx)
	fx.repos.Attempt.On("SubmitFinalAttempt", mock.Anything, "learner-1", "Ada", uint(900), mock.Anything).
		Return(nil, errors.New("gateway timeout")).Once()
	fx.repos.Attempt.On("SubmitFinalAttempt", mock.Anything, "learner-1", "Ada", uint(900), mock.Anything).
		Return(&models.AttemptResult{ID: 8, AssessmentID: 900, Score: 70, AttemptNumber: 1}, nil).Once()

	f := loadFinalTest(t, fx, learner, 600)
	first := fx.clock.lastTicker()
	require.NoError(t, f.SetAnswer(11, models.ChoiceAnswer(0)))

	_, err := f.RequestSubmit()
	require.NoError(t, err)
	_, err = f.ConfirmSubmit(ctx)
	require.Error(t, err)
	assert.True(t, IsTransient(err))

	assert.Equal(t, FinalTestActive, f.State())
	assert.True(t, first.Stopped())
	assert.Equal(t, 2, fx.clock.tickerCount())
	assert.NotEmpty(t, f.View().LastError)
	require.NotNil(t, f.View().Answer)

	_, err = f.RequestSubmit()
	require.NoError(t, err)
	result, err := f.ConfirmSubmit(ctx)
	require.NoError(t, err)
	assert.True(t, Eligible(result))
	assert.Empty(t, f.View().LastError)
}

func TestFinalTest_FailedAutoSubmitAllowsManualRetry(t *testing.T) {
	fx := newFixture()
	expectNoPriorAttempt(fx)
	fx.repos.Attempt.On("SubmitFinalAttempt", mock.Anything, "learner-1", "Ada", uint(900), mock.Anything).
		Return(nil, errors.New("connection refused")).Once()
	fx.repos.Attempt.On("SubmitFinalAttempt", mock.Anything, "learner-1", "Ada", uint(900), mock.Anything).
		Return(&models.AttemptResult{ID: 9, AssessmentID: 900, Score: 33, AttemptNumber: 1}, nil).Once()

	f := loadFinalTest(t, fx, learner, 2)
	fx.clock.lastTicker().send(t, 2)

	assert.Eventually(t, func() bool {
		return f.State() == FinalTestActive && f.View().LastError != ""
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, fx.clock.tickerCount())
	assert.Equal(t, 0, f.Remaining())

	_, err := f.RequestSubmit()
	require.NoError(t, err)
	result, err := f.ConfirmSubmit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 33, result.Score)
	waitDone(t, f)
}

func TestFinalTest_ConflictAdoptsStoredAttempt(t *testing.T) {
	fx := newFixture()
	expectNoPriorAttempt(fx)
	stored := &models.AttemptResult{ID: 3, AssessmentID: 900, Score: 90, AttemptNumber: 1}
	fx.repos.Attempt.On("SubmitFinalAttempt", mock.Anything, "learner-1", "Ada", uint(900), mock.Anything).
		Return(nil, repositories.ErrConflict).Once()
	fx.repos.Attempt.On("GetFinalAttempt", mock.Anything, "learner-1", uint(900)).Return(stored, nil).Once()

	f := loadFinalTest(t, fx, learner, 600)
	_, err := f.RequestSubmit()
	require.NoError(t, err)

	result, err := f.ConfirmSubmit(context.Background())
	require.NoError(t, err)
	assert.Same(t, stored, result)
	assert.Equal(t, FinalTestSubmitted, f.State())
}

func TestFinalTest_PriorAttemptIsNotReentered(t *testing.T) {
	fx := newFixture()
	prior := &models.AttemptResult{ID: 4, AssessmentID: 900, Score: 80, AttemptNumber: 1}
	fx.repos.Attempt.On("GetFinalAttempt", mock.Anything, "learner-1", uint(900)).Return(prior, nil)

	f := loadFinalTest(t, fx, learner, 600)
	assert.Equal(t, FinalTestAlreadyAttempted, f.State())
	assert.Equal(t, 0, fx.clock.tickerCount())
	assert.ErrorIs(t, f.SetAnswer(11, models.ChoiceAnswer(0)), ErrInvalidState)

	_, err := f.RequestSubmit()
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.True(t, f.View().Eligible)
	fx.repos.Attempt.AssertNotCalled(t, "SubmitFinalAttempt", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestFinalTest_UnavailableWithoutAssessment(t *testing.T) {
	fx := newFixture()
	fx.repos.Course.On("GetFinalTestForCourse", mock.Anything, uint(1)).Return(nil, repositories.ErrNotFound)

	f := newFinalTestSession(threeChapterCourse(), learner, fx.deps.withDefaults(), nil)
	require.NoError(t, f.Load(context.Background()))
	assert.Equal(t, FinalTestUnavailable, f.State())
	assert.Equal(t, 0, fx.clock.tickerCount())
}

func TestFinalTest_DefaultTimeLimit(t *testing.T) {
	fx := newFixture()
	expectNoPriorAttempt(fx)
	fx.deps.FinalTestDefaultSeconds = 900
	fx.repos.Course.On("GetFinalTestForCourse", mock.Anything, uint(1)).Return(finalTest(0), nil)

	f := newFinalTestSession(threeChapterCourse(), learner, fx.deps.withDefaults(), nil)
	require.NoError(t, f.Load(context.Background()))
	defer f.Close()
	assert.Equal(t, 900, f.Remaining())
}

func TestFinalTest_CloseStopsCountdown(t *testing.T) {
	fx := newFixture()
	expectNoPriorAttempt(fx)

	f := loadFinalTest(t, fx, learner, 5)
	ticker := fx.clock.lastTicker()
	f.Close()

	assert.True(t, ticker.Stopped())
	assert.Equal(t, 5, f.Remaining())
	assert.Equal(t, FinalTestActive, f.State())
	_, err := f.RequestSubmit()
	assert.ErrorIs(t, err, ErrInvalidState)
	fx.repos.Attempt.AssertNotCalled(t, "SubmitFinalAttempt", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestFinalTest_PreviewHasNoTimer(t *testing.T) {
	fx := newFixture()
	f := loadFinalTest(t, fx, teacher, 60)

	assert.Equal(t, FinalTestActive, f.State())
	assert.Equal(t, 0, fx.clock.tickerCount())
	require.NoError(t, f.Next())

	view := f.View()
	assert.True(t, view.Preview)
	require.NotNil(t, view.Question)
	assert.NotNil(t, view.Question.CorrectOptionIndex)

	assert.ErrorIs(t, f.SetAnswer(11, models.ChoiceAnswer(0)), ErrPreviewOnly)
	_, err := f.RequestSubmit()
	assert.ErrorIs(t, err, ErrPreviewOnly)
	fx.repos.Attempt.AssertNotCalled(t, "GetFinalAttempt", mock.Anything, mock.Anything, mock.Anything)
}

func TestOpenFinalTest_RequiresEveryChapter(t *testing.T) {
	fx := newFixture()
	cs := openCourse(t, fx, learner, []uint{10, 20})

	_, err := cs.OpenFinalTest(context.Background())
	assert.ErrorIs(t, err, ErrFinalTestLocked)
	assert.False(t, cs.Overview().FinalTestReachable)

	_, err = cs.FinalTest()
	assert.ErrorIs(t, err, ErrFinalTestNotOpen)
}
