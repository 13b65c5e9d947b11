package services

import (
	"context"
	"log/slog"

	"github.com/SAP-F-2025/course-progression-service/internal/events"
	"github.com/SAP-F-2025/course-progression-service/internal/grading"
	"github.com/SAP-F-2025/course-progression-service/internal/metrics"
	"github.com/SAP-F-2025/course-progression-service/internal/models"
	"github.com/SAP-F-2025/course-progression-service/internal/repositories"
	"github.com/SAP-F-2025/course-progression-service/internal/validator"
)

// Dependencies carries the collaborators shared by every course session
type Dependencies struct {
	Repo      repositories.Repository
	Publisher events.EventPublisher
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	Clock     Clock

	// Grader is optional. Without it only single and multiple choice questions earn points.
	Grader grading.ExternalGrader

	// Validator flags authoring errors in loaded assessments. Optional.
	Validator *validator.Validator

	FinalTestDefaultSeconds int
}

func (d *Dependencies) withDefaults() *Dependencies {
	deps := *d
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = NewRealClock()
	}
	if deps.FinalTestDefaultSeconds <= 0 {
		deps.FinalTestDefaultSeconds = models.DefaultFinalTestSeconds
	}
	return &deps
}

func (d *Dependencies) serviceLogger() *ServiceLogger {
	return NewServiceLogger(d.Logger, LogConfig{Service: "course-progression", Component: "engine"})
}

// publish sends an event without letting a broker failure affect the engine state
func (d *Dependencies) publish(ctx context.Context, event *events.ProgressEvent) {
	if d.Publisher == nil {
		return
	}
	if err := d.Publisher.PublishProgressEvent(context.WithoutCancel(ctx), event); err != nil {
		d.Logger.Warn("Failed to publish progress event",
			"event_type", event.Type,
			"learner_id", event.LearnerID,
			"error", err)
	}
}

// checkDefinition logs authoring errors in a loaded assessment. The engine still serves it.
func (d *Dependencies) checkDefinition(assessment *models.Assessment) {
	if d.Validator == nil || assessment == nil {
		return
	}
	if err := d.Validator.ValidateAssessment(assessment); err != nil {
		d.Logger.Warn("Assessment definition has authoring errors",
			"assessment_id", assessment.ID,
			"error", err)
	}
}
