package services

import (
	"context"
	"sync"
	"time"

	"github.com/SAP-F-2025/course-progression-service/internal/models"
)

type sessionKey struct {
	learnerID string
	courseID  uint
}

// SessionRegistry holds one CourseSession per learner and course. Sessions are created on
// first use and evicted after idling, except while a final test countdown is running.
type SessionRegistry struct {
	mu          sync.Mutex
	sessions    map[sessionKey]*CourseSession
	deps        *Dependencies
	idleTimeout time.Duration
}

func NewSessionRegistry(deps *Dependencies, idleTimeout time.Duration) *SessionRegistry {
	return &SessionRegistry{
		sessions:    make(map[sessionKey]*CourseSession),
		deps:        deps.withDefaults(),
		idleTimeout: idleTimeout,
	}
}

// Acquire returns the course session for the caller, opening it when needed. An expired
// session context is rejected before any state is touched.
func (r *SessionRegistry) Acquire(ctx context.Context, session *models.Session, courseID uint) (*CourseSession, error) {
	if session == nil || session.LearnerID == "" {
		return nil, ErrUnauthorized
	}
	if session.Expired(r.deps.Clock.Now()) {
		return nil, ErrSessionExpired
	}

	key := sessionKey{learnerID: session.LearnerID, courseID: courseID}

	r.mu.Lock()
	existing, ok := r.sessions[key]
	if ok && existing.Session().Role == session.Role {
		r.mu.Unlock()
		existing.touch()
		return existing, nil
	}
	r.mu.Unlock()

	opened, err := OpenCourseSession(ctx, r.deps, session, courseID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.sessions[key]; ok {
		if current.Session().Role == session.Role {
			opened.Close()
			current.touch()
			return current, nil
		}
		current.Close()
		r.deps.Metrics.SessionClosed()
	}
	r.sessions[key] = opened
	r.deps.Metrics.SessionOpened()
	return opened, nil
}

// Release closes and forgets the session of learnerID in courseID
func (r *SessionRegistry) Release(learnerID string, courseID uint) {
	key := sessionKey{learnerID: learnerID, courseID: courseID}

	r.mu.Lock()
	session, ok := r.sessions[key]
	delete(r.sessions, key)
	r.mu.Unlock()

	if ok {
		session.Close()
		r.deps.Metrics.SessionClosed()
	}
}

func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// EvictIdle closes sessions idle for longer than the idle timeout and returns how many went
func (r *SessionRegistry) EvictIdle() int {
	if r.idleTimeout <= 0 {
		return 0
	}
	cutoff := r.deps.Clock.Now().Add(-r.idleTimeout)

	r.mu.Lock()
	evicted := make([]*CourseSession, 0)
	for key, session := range r.sessions {
		if session.idleSince().Before(cutoff) && !session.hasRunningTimer() {
			evicted = append(evicted, session)
			delete(r.sessions, key)
		}
	}
	r.mu.Unlock()

	for _, session := range evicted {
		session.Close()
		r.deps.Metrics.SessionClosed()
	}
	if len(evicted) > 0 {
		r.deps.Logger.Info("Evicted idle course sessions", "count", len(evicted))
	}
	return len(evicted)
}

// Run evicts idle sessions every interval until ctx is done
func (r *SessionRegistry) Run(ctx context.Context, interval time.Duration) {
	ticker := r.deps.Clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			r.EvictIdle()
		}
	}
}

// CloseAll tears down every session, stopping all countdowns
func (r *SessionRegistry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[sessionKey]*CourseSession)
	r.mu.Unlock()

	for _, session := range sessions {
		session.Close()
		r.deps.Metrics.SessionClosed()
	}
}
