package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/SAP-F-2025/course-progression-service/internal/services"
	"github.com/SAP-F-2025/course-progression-service/internal/validator"
	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReportHandler exports progress workbooks for course staff
type ReportHandler struct {
	BaseHandler
	reports   *services.ReportService
	validator *validator.Validator
}

func NewReportHandler(reports *services.ReportService, validator *validator.Validator, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{
		BaseHandler: NewBaseHandler(logger),
		reports:     reports,
		validator:   validator,
	}
}

// ExportProgress returns an xlsx workbook for the listed learners
// @Router /courses/{course_id}/reports/progress [post]
func (h *ReportHandler) ExportProgress(c *gin.Context) {
	session, ok := SessionFromContext(c)
	if !ok {
		return
	}
	courseID := ParseIDParam(c, "course_id")
	if courseID == 0 {
		return
	}

	var req ReportRequest
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

	h.LogRequest(c, "Exporting progress report", "course_id", courseID, "learners", len(req.LearnerIDs))

	data, err := h.reports.ExportProgressReport(c.Request.Context(), session, courseID, req.LearnerIDs)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("course-%d-progress.xlsx", courseID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}
