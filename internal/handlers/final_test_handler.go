package handlers

import (
	"log/slog"
	"net/http"

	"github.com/SAP-F-2025/course-progression-service/internal/services"
	"github.com/SAP-F-2025/course-progression-service/internal/validator"
	"github.com/gin-gonic/gin"
)

// FinalTestHandler drives the timed final test
type FinalTestHandler struct {
	BaseHandler
	registry  *services.SessionRegistry
	validator *validator.Validator
}

func NewFinalTestHandler(registry *services.SessionRegistry, validator *validator.Validator, logger *slog.Logger) *FinalTestHandler {
	return &FinalTestHandler{
		BaseHandler: NewBaseHandler(logger),
		registry:    registry,
		validator:   validator,
	}
}

// openFinalTest returns the running final test, starting it on first use
func (h *FinalTestHandler) openFinalTest(c *gin.Context) (*services.FinalTestSession, bool) {
	cs, ok := h.acquireCourse(c, h.registry)
	if !ok {
		return nil, false
	}

	finalTest, err := cs.OpenFinalTest(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return nil, false
	}
	return finalTest, true
}

// GetFinalTest starts or resumes the final test
// @Router /courses/{course_id}/final-test [get]
func (h *FinalTestHandler) GetFinalTest(c *gin.Context) {
	finalTest, ok := h.openFinalTest(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, finalTest.View())
}

// SetAnswer records an answer without touching the countdown
// @Router /courses/{course_id}/final-test/answers/{question_id} [put]
func (h *FinalTestHandler) SetAnswer(c *gin.Context) {
	finalTest, ok := h.openFinalTest(c)
	if !ok {
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

	if err := finalTest.SetAnswer(questionID, req.Answer); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, finalTest.View())
}

// Navigate moves to the next, previous or a specific question
// @Router /courses/{course_id}/final-test/navigate [post]
func (h *FinalTestHandler) Navigate(c *gin.Context) {
	finalTest, ok := h.openFinalTest(c)
	if !ok {
		return
	}

	var req NavigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	var err error
	switch req.Action {
	case "next":
		err = finalTest.Next()
	case "previous":
		err = finalTest.Previous()
	case "jump":
		err = finalTest.JumpTo(req.Index)
	}
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, finalTest.View())
}

// RequestSubmit opens the confirmation gate and returns the answered count
// @Router /courses/{course_id}/final-test/submit/request [post]
func (h *FinalTestHandler) RequestSubmit(c *gin.Context) {
	finalTest, ok := h.openFinalTest(c)
	if !ok {
		return
	}

	summary, err := finalTest.RequestSubmit()
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// CancelSubmit returns to the test with answers and time intact
// @Router /courses/{course_id}/final-test/submit/cancel [post]
func (h *FinalTestHandler) CancelSubmit(c *gin.Context) {
	finalTest, ok := h.openFinalTest(c)
	if !ok {
		return
	}

	if err := finalTest.CancelSubmit(); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, finalTest.View())
}

// ConfirmSubmit performs the single authoritative submission
// @Router /courses/{course_id}/final-test/submit/confirm [post]
func (h *FinalTestHandler) ConfirmSubmit(c *gin.Context) {
	finalTest, ok := h.openFinalTest(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Submitting final test")

	if _, err := finalTest.ConfirmSubmit(c.Request.Context()); err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "Final test submitted", finalTest.View())
}
