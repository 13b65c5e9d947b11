package repositories_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/SAP-F-2025/course-progression-service/internal/cache"
	"github.com/SAP-F-2025/course-progression-service/internal/models"
	"github.com/SAP-F-2025/course-progression-service/internal/repositories"
	"github.com/SAP-F-2025/course-progression-service/internal/repositories/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// memoryCache keeps JSON payloads like the redis implementation does
type memoryCache struct {
	mock.Mock
	entries map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]byte)}
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = payload
	return nil
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	payload, ok := m.entries[key]
	if !ok {
		return cache.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (m *memoryCache) Delete(ctx context.Context, key string) error {
	delete(m.entries, key)
	return nil
}

func (m *memoryCache) DeletePattern(ctx context.Context, pattern string) error {
	args := m.Called(ctx, pattern)
	return args.Error(0)
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestCachedCourseRepository_ServesRepeatReadsFromCache(t *testing.T) {
	ctx := context.Background()
	next := &mocks.CourseRepository{}
	next.On("GetCourse", mock.Anything, uint(1)).Return(&models.Course{
		ID:    1,
		Title: "Go Basics",
		Chapters: []models.Chapter{
			{ID: 10, CourseID: 1, Title: "Syntax", Order: 1},
		},
	}, nil).Once()

	repo := repositories.NewCachedCourseRepository(next, newMemoryCache(), time.Minute, discard)

	first, err := repo.GetCourse(ctx, 1)
	require.NoError(t, err)
	second, err := repo.GetCourse(ctx, 1)
	require.NoError(t, err)

	assert.Equal(t, first.Title, second.Title)
	require.Len(t, second.Chapters, 1)
	assert.Equal(t, uint(10), second.Chapters[0].ID)
	next.AssertNumberOfCalls(t, "GetCourse", 1)
}

func TestCachedCourseRepository_KeepsGradingKeys(t *testing.T) {
	ctx := context.Background()
	correct := 2
	next := &mocks.CourseRepository{}
	next.On("GetAssessment", mock.Anything, uint(200)).Return(&models.Assessment{
		ID:    200,
		Scope: models.ScopeChapter,
		Questions: []models.Question{
			{ID: 1, Type: models.QuestionSingle, Options: []string{"a", "b", "c"}, CorrectOptionIndex: &correct},
		},
	}, nil).Once()

	repo := repositories.NewCachedCourseRepository(next, newMemoryCache(), time.Minute, discard)

	_, err := repo.GetAssessment(ctx, 200)
	require.NoError(t, err)
	cached, err := repo.GetAssessment(ctx, 200)
	require.NoError(t, err)

	require.Len(t, cached.Questions, 1)
	require.NotNil(t, cached.Questions[0].CorrectOptionIndex)
	assert.Equal(t, 2, *cached.Questions[0].CorrectOptionIndex)
	next.AssertNumberOfCalls(t, "GetAssessment", 1)
}

func TestCachedCourseRepository_DoesNotCacheErrors(t *testing.T) {
	ctx := context.Background()
	next := &mocks.CourseRepository{}
	next.On("GetFinalTestForCourse", mock.Anything, uint(1)).Return(nil, repositories.ErrNotFound).Once()
	next.On("GetFinalTestForCourse", mock.Anything, uint(1)).Return(&models.Assessment{ID: 900}, nil).Once()

	repo := repositories.NewCachedCourseRepository(next, newMemoryCache(), time.Minute, discard)

	_, err := repo.GetFinalTestForCourse(ctx, 1)
	assert.True(t, repositories.IsNotFoundError(err))

	assessment, err := repo.GetFinalTestForCourse(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, uint(900), assessment.ID)
}

func TestCachedCourseRepository_InvalidateCourse(t *testing.T) {
	ctx := context.Background()
	next := &mocks.CourseRepository{}
	next.On("GetCourse", mock.Anything, uint(1)).Return(&models.Course{ID: 1, Title: "v1"}, nil).Once()
	next.On("GetCourse", mock.Anything, uint(1)).Return(&models.Course{ID: 1, Title: "v2"}, nil).Once()
	memory := newMemoryCache()
	memory.On("DeletePattern", mock.Anything, "assessment:*").Return(nil).Once()

	repo := repositories.NewCachedCourseRepository(next, memory, time.Minute, discard)
	cached := repo.(*repositories.CachedCourseRepository)

	_, err := repo.GetCourse(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, cached.InvalidateCourse(ctx, 1))

	course, err := repo.GetCourse(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "v2", course.Title)
	memory.AssertExpectations(t)
}

func TestCachedCourseRepository_DisabledWithoutTTL(t *testing.T) {
	next := &mocks.CourseRepository{}
	repo := repositories.NewCachedCourseRepository(next, newMemoryCache(), 0, discard)
	assert.Same(t, next, repo)
}

func TestRepositoryErrors(t *testing.T) {
	assert.True(t, repositories.IsNotFoundError(errors.Join(errors.New("query"), repositories.ErrNotFound)))
	assert.True(t, repositories.IsConflictError(repositories.ErrConflict))
	assert.False(t, repositories.IsForbiddenError(repositories.ErrNotFound))
}
