// Package mocks provides testify mocks of the repository contracts.
package mocks

import (
	"context"

	"github.com/SAP-F-2025/course-progression-service/internal/models"
	"github.com/SAP-F-2025/course-progression-service/internal/repositories"
	"github.com/stretchr/testify/mock"
)

type CourseRepository struct {
	mock.Mock
}

func (m *CourseRepository) GetCourse(ctx context.Context, courseID uint) (*models.Course, error) {
	args := m.Called(ctx, courseID)
	course, _ := args.Get(0).(*models.Course)
	return course, args.Error(1)
}

func (m *CourseRepository) ListChapterAssessments(ctx context.Context, chapterID uint) ([]*models.Assessment, error) {
	args := m.Called(ctx, chapterID)
	assessments, _ := args.Get(0).([]*models.Assessment)
	return assessments, args.Error(1)
}

func (m *CourseRepository) GetAssessment(ctx context.Context, assessmentID uint) (*models.Assessment, error) {
	args := m.Called(ctx, assessmentID)
	assessment, _ := args.Get(0).(*models.Assessment)
	return assessment, args.Error(1)
}

func (m *CourseRepository) GetFinalTestForCourse(ctx context.Context, courseID uint) (*models.Assessment, error) {
	args := m.Called(ctx, courseID)
	assessment, _ := args.Get(0).(*models.Assessment)
	return assessment, args.Error(1)
}

type ProgressRepository struct {
	mock.Mock
}

func (m *ProgressRepository) GetCompletedChapters(ctx context.Context, learnerID string, courseID uint) ([]uint, error) {
	args := m.Called(ctx, learnerID, courseID)
	ids, _ := args.Get(0).([]uint)
	return ids, args.Error(1)
}

func (m *ProgressRepository) MarkChapterComplete(ctx context.Context, learnerID string, courseID, chapterID uint) error {
	args := m.Called(ctx, learnerID, courseID, chapterID)
	return args.Error(0)
}

type AttemptRepository struct {
	mock.Mock
}

func (m *AttemptRepository) SubmitFinalAttempt(ctx context.Context, learnerID, learnerName string, assessmentID uint, answers models.AnswerSet) (*models.AttemptResult, error) {
	args := m.Called(ctx, learnerID, learnerName, assessmentID, answers)
	result, _ := args.Get(0).(*models.AttemptResult)
	return result, args.Error(1)
}

func (m *AttemptRepository) GetFinalAttempt(ctx context.Context, learnerID string, assessmentID uint) (*models.AttemptResult, error) {
	args := m.Called(ctx, learnerID, assessmentID)
	result, _ := args.Get(0).(*models.AttemptResult)
	return result, args.Error(1)
}

func (m *AttemptRepository) SaveQuizResult(ctx context.Context, result *models.AttemptResult) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

func (m *AttemptRepository) GetQuizResult(ctx context.Context, learnerID string, chapterID uint) (*models.AttemptResult, error) {
	args := m.Called(ctx, learnerID, chapterID)
	result, _ := args.Get(0).(*models.AttemptResult)
	return result, args.Error(1)
}

type CertificateRepository struct {
	mock.Mock
}

func (m *CertificateRepository) GetCertificate(ctx context.Context, learnerID string, assessmentID uint) (*models.Certificate, error) {
	args := m.Called(ctx, learnerID, assessmentID)
	certificate, _ := args.Get(0).(*models.Certificate)
	return certificate, args.Error(1)
}

// Set bundles one mock per contract behind a repositories.Repository
type Set struct {
	Course      *CourseRepository
	Progress    *ProgressRepository
	Attempt     *AttemptRepository
	Certificate *CertificateRepository
}

func NewSet() *Set {
	return &Set{
		Course:      new(CourseRepository),
		Progress:    new(ProgressRepository),
		Attempt:     new(AttemptRepository),
		Certificate: new(CertificateRepository),
	}
}

func (s *Set) Repository() repositories.Repository {
	return repositories.NewRepository(s.Course, s.Progress, s.Attempt, s.Certificate)
}
