package services

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/SAP-F-2025/course-progression-service/internal/events"
	"github.com/SAP-F-2025/course-progression-service/internal/metrics"
	"github.com/SAP-F-2025/course-progression-service/internal/models"
	"github.com/SAP-F-2025/course-progression-service/internal/repositories/mocks"
)

type fakeTicker struct {
	ch      chan time.Time
	mu      sync.Mutex
	stopped bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *fakeTicker) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// send delivers n ticks, failing the test if the countdown stops receiving
func (t *fakeTicker) send(tb testing.TB, n int) {
	tb.Helper()
	for i := 0; i < n; i++ {
		select {
		case t.ch <- time.Now():
		case <-time.After(2 * time.Second):
			tb.Fatalf("countdown stopped receiving after %d ticks", i)
		}
	}
}

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) NewTicker(time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	ticker := &fakeTicker{ch: make(chan time.Time)}
	c.tickers = append(c.tickers, ticker)
	return ticker
}

func (c *fakeClock) tickerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

func (c *fakeClock) lastTicker() *fakeTicker {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.tickers) == 0 {
		return nil
	}
	return c.tickers[len(c.tickers)-1]
}

type fixture struct {
	repos     *mocks.Set
	clock     *fakeClock
	publisher *events.MockEventPublisher
	metrics   *metrics.Metrics
	deps      *Dependencies
}

func newFixture() *fixture {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repos := mocks.NewSet()
	clock := newFakeClock()
	publisher := events.NewMockEventPublisher(logger)
	m := metrics.New()
	return &fixture{
		repos:     repos,
		clock:     clock,
		publisher: publisher,
		metrics:   m,
		deps: &Dependencies{
			Repo:      repos.Repository(),
			Publisher: publisher,
			Metrics:   m,
			Logger:    logger,
			Clock:     clock,
		},
	}
}

var (
	learner = models.Session{LearnerID: "learner-1", LearnerName: "Ada", Role: models.RoleStudent}
	teacher = models.Session{LearnerID: "teacher-1", LearnerName: "Grace", Role: models.RoleTeacher}
)

func intPtr(v int) *int { return &v }

// threeChapterCourse has chapters ordered 1, 2, 3; chapter 20 carries a quiz.
func threeChapterCourse() *models.Course {
	return &models.Course{
		ID:    1,
		Title: "Go Basics",
		Chapters: []models.Chapter{
			{ID: 30, CourseID: 1, Title: "Concurrency", Order: 3},
			{ID: 10, CourseID: 1, Title: "Syntax", Order: 1},
			{ID: 20, CourseID: 1, Title: "Types", Order: 2, HasQuiz: true},
		},
	}
}

func singleChoice(id uint, correct int) models.Question {
	return models.Question{
		ID:                 id,
		Type:               models.QuestionSingle,
		Prompt:             "pick one",
		Points:             1,
		Order:              int(id),
		Options:            []string{"a", "b", "c", "d"},
		CorrectOptionIndex: intPtr(correct),
	}
}

// chapterQuiz has four single choice questions whose correct answer is option 1.
func chapterQuiz() *models.Assessment {
	chapterID := uint(20)
	return &models.Assessment{
		ID:        200,
		Title:     "Types quiz",
		Scope:     models.ScopeChapter,
		CourseID:  1,
		ChapterID: &chapterID,
		Questions: []models.Question{
			singleChoice(1, 1), singleChoice(2, 1), singleChoice(3, 1), singleChoice(4, 1),
		},
	}
}

func finalTest(seconds int) *models.Assessment {
	return &models.Assessment{
		ID:               900,
		Title:            "Final",
		Scope:            models.ScopeCourse,
		CourseID:         1,
		TimeLimitSeconds: intPtr(seconds),
		MaxAttempts:      1,
		Questions: []models.Question{
			singleChoice(11, 0), singleChoice(12, 2), singleChoice(13, 3),
		},
	}
}

type completionSet map[uint]bool

func (c completionSet) IsCompleted(id uint) bool { return c[id] }
