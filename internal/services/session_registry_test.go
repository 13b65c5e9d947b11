package services

import (
	"context"
	"testing"
	"time"

	"github.com/SAP-F-2025/course-progression-service/internal/models"
	"github.com/SAP-F-2025/course-progression-service/internal/repositories"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func registryFixture() (*fixture, *SessionRegistry) {
	fx := newFixture()
	fx.repos.Course.On("GetCourse", mock.Anything, uint(1)).Return(threeChapterCourse(), nil)
	fx.repos.Progress.On("GetCompletedChapters", mock.Anything, mock.Anything, uint(1)).Return([]uint{10}, nil)
	return fx, NewSessionRegistry(fx.deps, 30*time.Minute)
}

func TestSessionRegistry_ReusesSessionPerLearnerAndCourse(t *testing.T) {
	fx, registry := registryFixture()
	ctx := context.Background()

	first, err := registry.Acquire(ctx, &learner, 1)
	require.NoError(t, err)
	second, err := registry.Acquire(ctx, &learner, 1)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, registry.Len())
	assert.Equal(t, 33, first.Overview().Percentage)
	fx.repos.Course.AssertNumberOfCalls(t, "GetCourse", 1)

	other := models.Session{LearnerID: "learner-2", Role: models.RoleStudent}
	third, err := registry.Acquire(ctx, &other, 1)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, 2, registry.Len())
	assert.Equal(t, float64(2), testutil.ToFloat64(fx.metrics.ActiveSessions))
}

func TestSessionRegistry_RoleChangeReplacesSession(t *testing.T) {
	_, registry := registryFixture()
	ctx := context.Background()

	first, err := registry.Acquire(ctx, &learner, 1)
	require.NoError(t, err)

	promoted := learner
	promoted.Role = models.RoleAdmin
	second, err := registry.Acquire(ctx, &promoted, 1)
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.True(t, second.Overview().Preview)
	assert.Equal(t, 1, registry.Len())

	_, err = first.OpenChapter(ctx, 10)
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestSessionRegistry_RejectsInvalidSessions(t *testing.T) {
	fx, registry := registryFixture()
	ctx := context.Background()

	_, err := registry.Acquire(ctx, nil, 1)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = registry.Acquire(ctx, &models.Session{Role: models.RoleStudent}, 1)
	assert.ErrorIs(t, err, ErrUnauthorized)

	expired := learner
	expired.ExpiresAt = fx.clock.Now().Add(-time.Minute)
	_, err = registry.Acquire(ctx, &expired, 1)
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.True(t, IsUnauthorized(err))

	assert.Zero(t, registry.Len())
	fx.repos.Course.AssertNotCalled(t, "GetCourse", mock.Anything, mock.Anything)
}

func TestSessionRegistry_UnknownCourse(t *testing.T) {
	fx := newFixture()
	fx.repos.Course.On("GetCourse", mock.Anything, uint(42)).Return(nil, repositories.ErrNotFound)
	registry := NewSessionRegistry(fx.deps, time.Minute)

	_, err := registry.Acquire(context.Background(), &learner, 42)
	assert.ErrorIs(t, err, ErrCourseNotFound)
	assert.Zero(t, registry.Len())
}

func TestSessionRegistry_EvictsIdleSessions(t *testing.T) {
	fx, registry := registryFixture()
	ctx := context.Background()

	_, err := registry.Acquire(ctx, &learner, 1)
	require.NoError(t, err)

	fx.clock.Advance(10 * time.Minute)
	assert.Zero(t, registry.EvictIdle())

	fx.clock.Advance(31 * time.Minute)
	assert.Equal(t, 1, registry.EvictIdle())
	assert.Zero(t, registry.Len())
	assert.Zero(t, testutil.ToFloat64(fx.metrics.ActiveSessions))
}

func TestSessionRegistry_KeepsSessionsWithRunningCountdown(t *testing.T) {
	fx := newFixture()
	fx.repos.Course.On("GetCourse", mock.Anything, uint(1)).Return(threeChapterCourse(), nil)
	fx.repos.Progress.On("GetCompletedChapters", mock.Anything, "learner-1", uint(1)).Return([]uint{10, 20, 30}, nil)
	fx.repos.Course.On("GetFinalTestForCourse", mock.Anything, uint(1)).Return(finalTest(1800), nil)
	fx.repos.Attempt.On("GetFinalAttempt", mock.Anything, "learner-1", uint(900)).Return(nil, repositories.ErrNotFound)
	registry := NewSessionRegistry(fx.deps, time.Minute)
	ctx := context.Background()

	cs, err := registry.Acquire(ctx, &learner, 1)
	require.NoError(t, err)
	_, err = cs.OpenFinalTest(ctx)
	require.NoError(t, err)

	fx.clock.Advance(time.Hour)
	assert.Zero(t, registry.EvictIdle())
	assert.Equal(t, 1, registry.Len())

	registry.CloseAll()
	assert.Zero(t, registry.Len())
	assert.True(t, fx.clock.lastTicker().Stopped())
}

func TestSessionRegistry_RunEvictsOnTick(t *testing.T) {
	fx, registry := registryFixture()
	ctx, cancel := context.WithCancel(context.Background())

	_, err := registry.Acquire(ctx, &learner, 1)
	require.NoError(t, err)

	stopped := make(chan struct{})
	go func() {
		registry.Run(ctx, time.Minute)
		close(stopped)
	}()
	require.Eventually(t, func() bool { return fx.clock.tickerCount() == 1 }, time.Second, 5*time.Millisecond)

	fx.clock.Advance(time.Hour)
	fx.clock.lastTicker().send(t, 1)
	assert.Eventually(t, func() bool { return registry.Len() == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("registry loop did not stop")
	}
	assert.True(t, fx.clock.lastTicker().Stopped())
}

func TestSessionRegistry_Release(t *testing.T) {
	_, registry := registryFixture()
	ctx := context.Background()

	cs, err := registry.Acquire(ctx, &learner, 1)
	require.NoError(t, err)

	registry.Release("learner-1", 1)
	assert.Zero(t, registry.Len())
	_, err = cs.OpenQuiz(ctx, 20)
	assert.ErrorIs(t, err, ErrSessionClosed)

	registry.Release("learner-1", 1)
}
