package handlers

import (
	"log/slog"
	"net/http"

	"github.com/SAP-F-2025/course-progression-service/internal/services"
	"github.com/gin-gonic/gin"
)

// CertificateHandler serves the certificate of the caller's final attempt
type CertificateHandler struct {
	BaseHandler
	registry *services.SessionRegistry
}

func NewCertificateHandler(registry *services.SessionRegistry, logger *slog.Logger) *CertificateHandler {
	return &CertificateHandler{
		BaseHandler: NewBaseHandler(logger),
		registry:    registry,
	}
}

// GetCertificate reports eligibility and any certificate already generated
// @Router /courses/{course_id}/certificate [get]
func (h *CertificateHandler) GetCertificate(c *gin.Context) {
	cs, ok := h.acquireCourse(c, h.registry)
	if !ok {
		return
	}

	gate, err := cs.Certificate(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gate.View())
}

// GenerateCertificate fetches the certificate for a passing attempt
// @Router /courses/{course_id}/certificate [post]
func (h *CertificateHandler) GenerateCertificate(c *gin.Context) {
	cs, ok := h.acquireCourse(c, h.registry)
	if !ok {
		return
	}

	gate, err := cs.Certificate(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.LogRequest(c, "Generating certificate")

	certificate, err := gate.Generate(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "Certificate generated", certificate)
}
