package handlers

import (
	"log/slog"
	"net/http"

	"github.com/SAP-F-2025/course-progression-service/internal/metrics"
	"github.com/SAP-F-2025/course-progression-service/internal/services"
	"github.com/SAP-F-2025/course-progression-service/internal/validator"
	"github.com/gin-gonic/gin"
)

type HandlerManager struct {
	progressHandler    *ProgressHandler
	quizHandler        *QuizHandler
	finalTestHandler   *FinalTestHandler
	certificateHandler *CertificateHandler
	reportHandler      *ReportHandler
	auth               gin.HandlerFunc
	metrics            *metrics.Metrics
}

func NewHandlerManager(
	registry *services.SessionRegistry,
	reports *services.ReportService,
	validator *validator.Validator,
	auth gin.HandlerFunc,
	m *metrics.Metrics,
	logger *slog.Logger,
) *HandlerManager {
	return &HandlerManager{
		progressHandler:    NewProgressHandler(registry, logger),
		quizHandler:        NewQuizHandler(registry, logger),
		finalTestHandler:   NewFinalTestHandler(registry, validator, logger),
		certificateHandler: NewCertificateHandler(registry, logger),
		reportHandler:      NewReportHandler(reports, validator, logger),
		auth:               auth,
		metrics:            m,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", HealthCheck)
	if hm.metrics != nil {
		router.GET("/metrics", hm.metrics.PrometheusHandler())
	}

	v1 := router.Group("/api/v1")
	v1.Use(hm.auth)
	{
		courses := v1.Group("/courses/:course_id")
		{
			courses.GET("", hm.progressHandler.GetCourse)
			courses.DELETE("/session", hm.progressHandler.LeaveCourse)
			courses.DELETE("/sessions/:learner_id", hm.progressHandler.ReleaseLearner)

			// Chapters and quizzes
			courses.GET("/chapters/:chapter_id", hm.progressHandler.GetChapter)
			courses.POST("/chapters/:chapter_id/complete", hm.progressHandler.CompleteChapter)
			courses.GET("/chapters/:chapter_id/quiz", hm.quizHandler.GetQuiz)
			courses.PUT("/chapters/:chapter_id/quiz/answers/:question_id", hm.quizHandler.SetAnswer)
			courses.POST("/chapters/:chapter_id/quiz/submit", hm.quizHandler.SubmitQuiz)

			// Final test
			courses.GET("/final-test", hm.finalTestHandler.GetFinalTest)
			courses.PUT("/final-test/answers/:question_id", hm.finalTestHandler.SetAnswer)
			courses.POST("/final-test/navigate", hm.finalTestHandler.Navigate)
			courses.POST("/final-test/submit/request", hm.finalTestHandler.RequestSubmit)
			courses.POST("/final-test/submit/cancel", hm.finalTestHandler.CancelSubmit)
			courses.POST("/final-test/submit/confirm", hm.finalTestHandler.ConfirmSubmit)

			// Certificate
			courses.GET("/certificate", hm.certificateHandler.GetCertificate)
			courses.POST("/certificate", hm.certificateHandler.GenerateCertificate)

			// Reports
			courses.POST("/reports/progress", hm.reportHandler.ExportProgress)
		}
	}
}

// HealthCheck reports liveness
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "course-progression-service",
	})
}
