package handlers

import (
	"log/slog"
	"net/http"

	"github.com/SAP-F-2025/course-progression-service/internal/services"
	"github.com/gin-gonic/gin"
)

// QuizHandler drives chapter quizzes
type QuizHandler struct {
	BaseHandler
	registry *services.SessionRegistry
}

func NewQuizHandler(registry *services.SessionRegistry, logger *slog.Logger) *QuizHandler {
	return &QuizHandler{
		BaseHandler: NewBaseHandler(logger),
		registry:    registry,
	}
}

// GetQuiz opens the chapter quiz, re-evaluating the unlock gate
// @Router /courses/{course_id}/chapters/{chapter_id}/quiz [get]
func (h *QuizHandler) GetQuiz(c *gin.Context) {
	cs, ok := h.acquireCourse(c, h.registry)
	if !ok {
		return
	}
	chapterID := ParseIDParam(c, "chapter_id")
	if chapterID == 0 {
		return
	}

	quiz, err := cs.OpenQuiz(c.Request.Context(), chapterID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, quiz.View())
}

// SetAnswer records one answer on the open quiz
// @Router /courses/{course_id}/chapters/{chapter_id}/quiz/answers/{question_id} [put]
func (h *QuizHandler) SetAnswer(c *gin.Context) {
	cs, ok := h.acquireCourse(c, h.registry)
	if !ok {
		return
	}
	chapterID := ParseIDParam(c, "chapter_id")
	if chapterID == 0 {
		return
	}
	questionID := ParseIDParam(c, "question_id")
	if questionID == 0 {
		return
	}

	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	quiz, err := cs.Quiz(chapterID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	if err := quiz.SetAnswer(questionID, req.Answer); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, quiz.View())
}

// SubmitQuiz scores the quiz and completes the chapter
// @Router /courses/{course_id}/chapters/{chapter_id}/quiz/submit [post]
func (h *QuizHandler) SubmitQuiz(c *gin.Context) {
	cs, ok := h.acquireCourse(c, h.registry)
	if !ok {
		return
	}
	chapterID := ParseIDParam(c, "chapter_id")
	if chapterID == 0 {
		return
	}

	h.LogRequest(c, "Submitting chapter quiz", "chapter_id", chapterID)

	result, err := cs.SubmitQuiz(c.Request.Context(), chapterID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "Quiz submitted", gin.H{
		"result":     result,
		"percentage": cs.Tracker().Percentage(),
	})
}
