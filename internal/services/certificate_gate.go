package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/SAP-F-2025/course-progression-service/internal/events"
	"github.com/SAP-F-2025/course-progression-service/internal/models"
	"github.com/SAP-F-2025/course-progression-service/internal/repositories"
)

type CertificateState string

const (
	CertificateNotGenerated CertificateState = "not_generated"
	CertificateGenerating   CertificateState = "generating"
	CertificateGenerated    CertificateState = "generated"
	CertificateFailed       CertificateState = "failed"
)

// Eligible reports whether an attempt qualifies for a certificate. The threshold is inclusive.
func Eligible(result *models.AttemptResult) bool {
	return result.Passed()
}

// CertificateGate runs the generate/view flow for one final-test attempt
type CertificateGate struct {
	mu          sync.Mutex
	attempt     *models.AttemptResult
	session     models.Session
	courseID    uint
	state       CertificateState
	certificate *models.Certificate
	lastErr     error
	deps        *Dependencies
}

// CertificateView is a snapshot of the gate for display
type CertificateView struct {
	State       CertificateState    `json:"state"`
	Eligible    bool                `json:"eligible"`
	CanGenerate bool                `json:"can_generate"`
	Score       int                 `json:"score"`
	Certificate *models.Certificate `json:"certificate,omitempty"`
	LastError   string              `json:"last_error,omitempty"`
}

func NewCertificateGate(attempt *models.AttemptResult, session models.Session, courseID uint, deps *Dependencies) *CertificateGate {
	return &CertificateGate{
		attempt:  attempt,
		session:  session,
		courseID: courseID,
		state:    CertificateNotGenerated,
		deps:     deps.withDefaults(),
	}
}

func (g *CertificateGate) State() CertificateState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// CanGenerate is false for every below-threshold attempt regardless of retries
func (g *CertificateGate) CanGenerate() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.canGenerateLocked()
}

func (g *CertificateGate) canGenerateLocked() bool {
	return Eligible(g.attempt) && g.state != CertificateGenerating
}

// Generate fetches the certificate. A missing certificate moves the gate to Failed with a
// retryable error. Once Generated, repeated calls return the same certificate identity.
func (g *CertificateGate) Generate(ctx context.Context) (*models.Certificate, error) {
	g.mu.Lock()
	if !Eligible(g.attempt) {
		g.mu.Unlock()
		return nil, ErrNotEligible
	}
	if g.state == CertificateGenerating {
		g.mu.Unlock()
		return nil, ErrGenerationInFlight
	}
	previous := g.state
	g.state = CertificateGenerating
	g.mu.Unlock()

	certificate, err := g.deps.Repo.Certificate().GetCertificate(ctx, g.session.LearnerID, g.attempt.AssessmentID)

	g.mu.Lock()
	if err != nil {
		if previous == CertificateGenerated && g.certificate != nil {
			g.state = CertificateGenerated
			cached := g.certificate
			g.mu.Unlock()
			g.deps.Logger.Warn("Certificate refetch failed, serving cached certificate",
				"learner_id", g.session.LearnerID,
				"certificate_id", cached.ID,
				"error", err)
			return cached, nil
		}

		g.state = CertificateFailed
		if repositories.IsNotFoundError(err) {
			g.lastErr = fmt.Errorf("failed to get certificate: %w", ErrCertificateNotReady)
		} else {
			g.lastErr = collaboratorError("get certificate", err, nil)
		}
		failure := g.lastErr
		g.mu.Unlock()
		return nil, failure
	}

	if previous == CertificateGenerated && g.certificate != nil {
		original := g.certificate
		g.state = CertificateGenerated
		g.mu.Unlock()
		if certificate.ID != original.ID {
			g.deps.Logger.Warn("Certificate identity changed on refetch, keeping original",
				"learner_id", g.session.LearnerID,
				"original_id", original.ID,
				"fetched_id", certificate.ID)
		}
		return original, nil
	}

	g.state = CertificateGenerated
	g.certificate = certificate
	g.lastErr = nil
	g.mu.Unlock()

	g.deps.Metrics.CertificateIssued()
	g.deps.publish(ctx, events.NewProgressEvent(events.EventCertificateIssued, g.session.LearnerID, g.courseID,
		events.CertificateIssuedEvent{
			AssessmentID:      g.attempt.AssessmentID,
			CertificateID:     certificate.ID,
			CertificateNumber: certificate.CertificateNumber,
			Score:             certificate.Score,
		}))
	return certificate, nil
}

func (g *CertificateGate) View() CertificateView {
	g.mu.Lock()
	defer g.mu.Unlock()

	view := CertificateView{
		State:       g.state,
		Eligible:    Eligible(g.attempt),
		CanGenerate: g.canGenerateLocked(),
		Certificate: g.certificate,
	}
	if g.attempt != nil {
		view.Score = g.attempt.Score
	}
	if g.lastErr != nil {
		view.LastError = g.lastErr.Error()
	}
	return view
}
