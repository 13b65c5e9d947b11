package repositories

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/course-progression-service/internal/cache"
	"github.com/SAP-F-2025/course-progression-service/internal/models"
)

const (
	courseKeyPrefix     = "course:"
	assessmentKeyPrefix = "assessment:"
)

// CachedCourseRepository serves course definitions from redis. Definitions are read-only
// for this service, so entries only expire by TTL or InvalidateCourse.
type CachedCourseRepository struct {
	next   CourseRepository
	cache  cache.CacheService
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedCourseRepository(next CourseRepository, cacheService cache.CacheService, ttl time.Duration, logger *slog.Logger) CourseRepository {
	if cacheService == nil || ttl <= 0 {
		return next
	}
	return &CachedCourseRepository{
		next:   next,
		cache:  cacheService,
		ttl:    ttl,
		logger: logger,
	}
}

func courseKey(courseID uint) string {
	return fmt.Sprintf("%s%d", courseKeyPrefix, courseID)
}

func chapterAssessmentsKey(chapterID uint) string {
	return fmt.Sprintf("%schapter:%d", assessmentKeyPrefix, chapterID)
}

func assessmentKey(assessmentID uint) string {
	return fmt.Sprintf("%s%d", assessmentKeyPrefix, assessmentID)
}

func finalTestKey(courseID uint) string {
	return fmt.Sprintf("%scourse:%d", assessmentKeyPrefix, courseID)
}

func (r *CachedCourseRepository) GetCourse(ctx context.Context, courseID uint) (*models.Course, error) {
	var course models.Course
	if r.lookup(ctx, courseKey(courseID), &course) {
		return &course, nil
	}

	loaded, err := r.next.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	r.store(ctx, courseKey(courseID), loaded)
	return loaded, nil
}

func (r *CachedCourseRepository) ListChapterAssessments(ctx context.Context, chapterID uint) ([]*models.Assessment, error) {
	var assessments []*models.Assessment
	if r.lookup(ctx, chapterAssessmentsKey(chapterID), &assessments) {
		return assessments, nil
	}

	loaded, err := r.next.ListChapterAssessments(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	r.store(ctx, chapterAssessmentsKey(chapterID), loaded)
	return loaded, nil
}

func (r *CachedCourseRepository) GetAssessment(ctx context.Context, assessmentID uint) (*models.Assessment, error) {
	var assessment models.Assessment
	if r.lookup(ctx, assessmentKey(assessmentID), &assessment) {
		return &assessment, nil
	}

	loaded, err := r.next.GetAssessment(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	r.store(ctx, assessmentKey(assessmentID), loaded)
	return loaded, nil
}

func (r *CachedCourseRepository) GetFinalTestForCourse(ctx context.Context, courseID uint) (*models.Assessment, error) {
	var assessment models.Assessment
	if r.lookup(ctx, finalTestKey(courseID), &assessment) {
		return &assessment, nil
	}

	loaded, err := r.next.GetFinalTestForCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	r.store(ctx, finalTestKey(courseID), loaded)
	return loaded, nil
}

// InvalidateCourse drops the cached course and every cached assessment
func (r *CachedCourseRepository) InvalidateCourse(ctx context.Context, courseID uint) error {
	if err := r.cache.Delete(ctx, courseKey(courseID)); err != nil {
		return err
	}
	return r.cache.DeletePattern(ctx, assessmentKeyPrefix+"*")
}

// lookup reports a hit. Cache errors other than a miss are logged and treated as a miss.
func (r *CachedCourseRepository) lookup(ctx context.Context, key string, dest interface{}) bool {
	err := r.cache.Get(ctx, key, dest)
	if err == nil {
		return true
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		r.logger.Warn("Course cache read failed", "key", key, "error", err)
	}
	return false
}

func (r *CachedCourseRepository) store(ctx context.Context, key string, value interface{}) {
	if err := r.cache.Set(ctx, key, value, r.ttl); err != nil {
		r.logger.Warn("Course cache write failed", "key", key, "error", err)
	}
}
