package services

import (
	"context"
	"errors"
	"testing"

	"github.com/SAP-F-2025/course-progression-service/internal/events"
	"github.com/SAP-F-2025/course-progression-service/internal/repositories"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestProgressTracker_MarkCompleteIsIdempotent(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	fx.repos.Progress.On("MarkChapterComplete", mock.Anything, "learner-1", uint(1), uint(10)).Return(nil).Once()

	tracker := NewProgressTracker(threeChapterCourse(), learner, nil, fx.deps)

	recorded, err := tracker.MarkComplete(ctx, 10)
	require.NoError(t, err)
	assert.True(t, recorded)
	once := tracker.Percentage()

	recorded, err = tracker.MarkComplete(ctx, 10)
	require.NoError(t, err)
	assert.False(t, recorded)

	assert.Equal(t, once, tracker.Percentage())
	assert.Equal(t, 33, tracker.Percentage())
	fx.repos.Progress.AssertNumberOfCalls(t, "MarkChapterComplete", 1)
	assert.Len(t, fx.publisher.EventsOfType(events.EventChapterCompleted), 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(fx.metrics.ChapterCompletions.WithLabelValues("recorded")))
}

func TestProgressTracker_PercentageIsMonotonic(t *testing.T) {
	fx := newFixture()
	fx.repos.Progress.On("MarkChapterComplete", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	tracker := NewProgressTracker(threeChapterCourse(), learner, nil, fx.deps)
	assert.Equal(t, 0, tracker.Percentage())
	assert.False(t, tracker.IsCourseComplete())

	previous := 0
	for _, id := range []uint{30, 10, 20} {
		_, err := tracker.MarkComplete(context.Background(), id)
		require.NoError(t, err)
		current := tracker.Percentage()
		assert.GreaterOrEqual(t, current, previous)
		previous = current
	}

	assert.Equal(t, 100, tracker.Percentage())
	assert.True(t, tracker.IsCourseComplete())
	assert.Equal(t, []uint{10, 20, 30}, tracker.CompletedIDs())

	published := fx.publisher.EventsOfType(events.EventChapterCompleted)
	require.Len(t, published, 3)
	last := published[2].Data.(events.ChapterCompletedEvent)
	assert.True(t, last.CourseComplete)
	assert.Equal(t, 100, last.ProgressPercentage)
}

func TestProgressTracker_IgnoresCompletionsOutsideCourse(t *testing.T) {
	fx := newFixture()
	tracker := NewProgressTracker(threeChapterCourse(), learner, []uint{10, 999}, fx.deps)

	assert.Equal(t, 33, tracker.Percentage())

	_, err := tracker.MarkComplete(context.Background(), 999)
	assert.ErrorIs(t, err, ErrChapterNotFound)
	assert.True(t, IsNotFound(err))
}

func TestProgressTracker_EmptyCourse(t *testing.T) {
	fx := newFixture()
	course := threeChapterCourse()
	course.Chapters = nil

	tracker := NewProgressTracker(course, learner, nil, fx.deps)
	assert.Equal(t, 0, tracker.Percentage())
}

func TestProgressTracker_PersistenceFailureDoesNotAdvance(t *testing.T) {
	fx := newFixture()
	fx.repos.Progress.On("MarkChapterComplete", mock.Anything, "learner-1", uint(1), uint(10)).
		Return(errors.New("connection reset")).Once()
	fx.repos.Progress.On("MarkChapterComplete", mock.Anything, "learner-1", uint(1), uint(10)).
		Return(nil).Once()

	tracker := NewProgressTracker(threeChapterCourse(), learner, nil, fx.deps)

	recorded, err := tracker.MarkComplete(context.Background(), 10)
	require.Error(t, err)
	assert.False(t, recorded)
	assert.True(t, IsTransient(err))
	assert.False(t, tracker.IsCompleted(10))
	assert.False(t, tracker.IsPending(10))
	assert.Empty(t, fx.publisher.GetPublishedEvents())

	recorded, err = tracker.MarkComplete(context.Background(), 10)
	require.NoError(t, err)
	assert.True(t, recorded)
	assert.True(t, tracker.IsCompleted(10))
}

func TestProgressTracker_ServerConflictIsNoopSuccess(t *testing.T) {
	fx := newFixture()
	fx.repos.Progress.On("MarkChapterComplete", mock.Anything, "learner-1", uint(1), uint(10)).
		Return(repositories.ErrConflict).Once()

	tracker := NewProgressTracker(threeChapterCourse(), learner, nil, fx.deps)

	recorded, err := tracker.MarkComplete(context.Background(), 10)
	require.NoError(t, err)
	assert.False(t, recorded)
	assert.True(t, tracker.IsCompleted(10))
	assert.Empty(t, fx.publisher.GetPublishedEvents())
}

func TestProgressTracker_RejectsConcurrentCompletion(t *testing.T) {
	fx := newFixture()
	entered := make(chan struct{})
	release := make(chan struct{})
	fx.repos.Progress.On("MarkChapterComplete", mock.Anything, "learner-1", uint(1), uint(10)).
		Run(func(mock.Arguments) {
			close(entered)
			<-release
		}).
		Return(nil).Once()

	tracker := NewProgressTracker(threeChapterCourse(), learner, nil, fx.deps)

	done := make(chan error, 1)
	go func() {
		_, err := tracker.MarkComplete(context.Background(), 10)
		done <- err
	}()
	<-entered

	assert.True(t, tracker.IsPending(10))
	assert.False(t, tracker.IsCompleted(10))

	_, err := tracker.MarkComplete(context.Background(), 10)
	assert.ErrorIs(t, err, ErrCompletionPending)
	assert.True(t, IsConflict(err))

	close(release)
	require.NoError(t, <-done)
	assert.True(t, tracker.IsCompleted(10))
	fx.repos.Progress.AssertNumberOfCalls(t, "MarkChapterComplete", 1)
}

func TestProgressTracker_PrivilegedNeverWrites(t *testing.T) {
	fx := newFixture()
	tracker := NewProgressTracker(threeChapterCourse(), teacher, nil, fx.deps)

	_, err := tracker.MarkComplete(context.Background(), 10)
	assert.ErrorIs(t, err, ErrPreviewOnly)
	fx.repos.Progress.AssertNotCalled(t, "MarkChapterComplete", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
