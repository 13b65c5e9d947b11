package repositories

import (
	"context"

	"github.com/SAP-F-2025/course-progression-service/internal/models"
)

// CourseRepository serves the read-only authoring side: courses, chapters and assessments.
type CourseRepository interface {
	GetCourse(ctx context.Context, courseID uint) (*models.Course, error)
	// ListChapterAssessments returns an empty slice when the chapter has no quiz.
	ListChapterAssessments(ctx context.Context, chapterID uint) ([]*models.Assessment, error)
	// GetAssessment includes the full question list.
	GetAssessment(ctx context.Context, assessmentID uint) (*models.Assessment, error)
	GetFinalTestForCourse(ctx context.Context, courseID uint) (*models.Assessment, error)
}

// ProgressRepository persists the learner's CompletionRecord.
type ProgressRepository interface {
	GetCompletedChapters(ctx context.Context, learnerID string, courseID uint) ([]uint, error)
	// MarkChapterComplete is called at most once per chapter per learner by the engine.
	// Implementations report ErrConflict when the chapter is already recorded.
	MarkChapterComplete(ctx context.Context, learnerID string, courseID, chapterID uint) error
}

// AttemptRepository stores quiz results and performs authoritative final-test scoring.
type AttemptRepository interface {
	// SubmitFinalAttempt must reject a submission beyond the attempt limit with ErrConflict.
	// learnerName is printed on the certificate a passing attempt issues.
	SubmitFinalAttempt(ctx context.Context, learnerID, learnerName string, assessmentID uint, answers models.AnswerSet) (*models.AttemptResult, error)
	// GetFinalAttempt returns the latest recorded final-test attempt or ErrNotFound.
	GetFinalAttempt(ctx context.Context, learnerID string, assessmentID uint) (*models.AttemptResult, error)
	SaveQuizResult(ctx context.Context, result *models.AttemptResult) error
	GetQuizResult(ctx context.Context, learnerID string, chapterID uint) (*models.AttemptResult, error)
}

// CertificateRepository fetches the certificate for a qualifying final-test attempt.
type CertificateRepository interface {
	// GetCertificate returns ErrNotFound when no certificate exists for the attempt.
	GetCertificate(ctx context.Context, learnerID string, assessmentID uint) (*models.Certificate, error)
}

// Repository aggregates every collaborator the engine depends on.
type Repository interface {
	Course() CourseRepository
	Progress() ProgressRepository
	Attempt() AttemptRepository
	Certificate() CertificateRepository
}

type repository struct {
	course      CourseRepository
	progress    ProgressRepository
	attempt     AttemptRepository
	certificate CertificateRepository
}

// NewRepository assembles a Repository from its parts.
func NewRepository(course CourseRepository, progress ProgressRepository, attempt AttemptRepository, certificate CertificateRepository) Repository {
	return &repository{
		course:      course,
		progress:    progress,
		attempt:     attempt,
		certificate: certificate,
	}
}

func (r *repository) Course() CourseRepository           { return r.course }
func (r *repository) Progress() ProgressRepository       { return r.progress }
func (r *repository) Attempt() AttemptRepository         { return r.attempt }
func (r *repository) Certificate() CertificateRepository { return r.certificate }
