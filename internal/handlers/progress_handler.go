package handlers

import (
	"log/slog"
	"net/http"

	"github.com/SAP-F-2025/course-progression-service/internal/services"
	"github.com/gin-gonic/gin"
)

// ProgressHandler serves the course page, chapters and text-chapter completion
type ProgressHandler struct {
	BaseHandler
	registry *services.SessionRegistry
}

func NewProgressHandler(registry *services.SessionRegistry, logger *slog.Logger) *ProgressHandler {
	return &ProgressHandler{
		BaseHandler: NewBaseHandler(logger),
		registry:    registry,
	}
}

// acquireCourse resolves the caller's CourseSession for the :course_id path parameter
func (h *BaseHandler) acquireCourse(c *gin.Context, registry *services.SessionRegistry) (*services.CourseSession, bool) {
	session, ok := SessionFromContext(c)
	if !ok {
		return nil, false
	}
	courseID := ParseIDParam(c, "course_id")
	if courseID == 0 {
		return nil, false
	}

	cs, err := registry.Acquire(c.Request.Context(), session, courseID)
	if err != nil {
		h.handleServiceError(c, err)
		return nil, false
	}
	return cs, true
}

// GetCourse returns progress, gated chapters and final test reachability
// @Router /courses/{course_id} [get]
func (h *ProgressHandler) GetCourse(c *gin.Context) {
	cs, ok := h.acquireCourse(c, h.registry)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, cs.Overview())
}

// GetChapter opens a chapter, discarding answers of a quiz left behind
// @Router /courses/{course_id}/chapters/{chapter_id} [get]
func (h *ProgressHandler) GetChapter(c *gin.Context) {
	cs, ok := h.acquireCourse(c, h.registry)
	if !ok {
		return
	}
	chapterID := ParseIDParam(c, "chapter_id")
	if chapterID == 0 {
		return
	}

	view, err := cs.OpenChapter(c.Request.Context(), chapterID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// CompleteChapter marks a text chapter as complete
// @Router /courses/{course_id}/chapters/{chapter_id}/complete [post]
func (h *ProgressHandler) CompleteChapter(c *gin.Context) {
	cs, ok := h.acquireCourse(c, h.registry)
	if !ok {
		return
	}
	chapterID := ParseIDParam(c, "chapter_id")
	if chapterID == 0 {
		return
	}

	h.LogRequest(c, "Completing chapter", "chapter_id", chapterID)

	status, err := cs.CompleteChapter(c.Request.Context(), chapterID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "Chapter completed", gin.H{
		"chapter":    status,
		"percentage": cs.Tracker().Percentage(),
		"complete":   cs.Tracker().IsCourseComplete(),
	})
}

// LeaveCourse closes the caller's course session, stopping any countdown
// @Router /courses/{course_id}/session [delete]
func (h *ProgressHandler) LeaveCourse(c *gin.Context) {
	session, ok := SessionFromContext(c)
	if !ok {
		return
	}
	courseID := ParseIDParam(c, "course_id")
	if courseID == 0 {
		return
	}

	h.registry.Release(session.LearnerID, courseID)
	c.Status(http.StatusNoContent)
}

// ReleaseLearner lets staff tear down a learner's session
// @Router /courses/{course_id}/sessions/{learner_id} [delete]
func (h *ProgressHandler) ReleaseLearner(c *gin.Context) {
	session, ok := SessionFromContext(c)
	if !ok {
		return
	}
	if !session.Privileged() {
		h.handleServiceError(c, services.ErrForbidden)
		return
	}
	courseID := ParseIDParam(c, "course_id")
	if courseID == 0 {
		return
	}
	learnerID := ParseStringIDParam(c, "learner_id")
	if learnerID == "" {
		return
	}

	h.LogRequest(c, "Releasing learner session", "course_id", courseID, "learner_id", learnerID)
	h.registry.Release(learnerID, courseID)
	c.Status(http.StatusNoContent)
}
