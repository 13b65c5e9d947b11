package services

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/SAP-F-2025/course-progression-service/internal/models"
	"github.com/SAP-F-2025/course-progression-service/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestReportService_ExportProgressReport(t *testing.T) {
	fx := newFixture()
	repo := fx.repos
	repo.Course.On("GetCourse", mock.Anything, uint(1)).Return(threeChapterCourse(), nil)
	repo.Course.On("GetFinalTestForCourse", mock.Anything, uint(1)).Return(finalTest(1800), nil)

	repo.Progress.On("GetCompletedChapters", mock.Anything, "learner-1", uint(1)).Return([]uint{10, 20, 30}, nil)
	repo.Attempt.On("GetQuizResult", mock.Anything, "learner-1", uint(20)).Return(&models.AttemptResult{Score: 75}, nil)
	repo.Attempt.On("GetFinalAttempt", mock.Anything, "learner-1", uint(900)).
		Return(&models.AttemptResult{ID: 5, Score: 80, AttemptNumber: 1}, nil)
	repo.Certificate.On("GetCertificate", mock.Anything, "learner-1", uint(900)).
		Return(&models.Certificate{CertificateNumber: "CERT-1"}, nil)

	repo.Progress.On("GetCompletedChapters", mock.Anything, "learner-2", uint(1)).Return([]uint{10}, nil)
	repo.Attempt.On("GetQuizResult", mock.Anything, "learner-2", uint(20)).Return(nil, repositories.ErrNotFound)
	repo.Attempt.On("GetFinalAttempt", mock.Anything, "learner-2", uint(900)).Return(nil, repositories.ErrNotFound)

	repo.Progress.On("GetCompletedChapters", mock.Anything, "learner-3", uint(1)).Return([]uint{10, 20}, nil)
	repo.Attempt.On("GetQuizResult", mock.Anything, "learner-3", uint(20)).Return(&models.AttemptResult{Score: 50}, nil)
	repo.Attempt.On("GetFinalAttempt", mock.Anything, "learner-3", uint(900)).Return(nil, repositories.ErrNotFound)

	service := NewReportService(fx.deps.Repo, fx.deps.Logger)
	data, err := service.ExportProgressReport(context.Background(), &teacher, 1, []string{"learner-1", "learner-2", "learner-3"})
	require.NoError(t, err)

	workbook, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer workbook.Close()

	summary, err := workbook.GetRows("Summary")
	require.NoError(t, err)
	require.Len(t, summary, 4)
	assert.Equal(t, "Learner", summary[0][0])
	assert.Equal(t, []string{"learner-1", "100"}, summary[1][:2])
	assert.Equal(t, "80", summary[1][3])
	assert.Equal(t, "CERT-1", summary[1][6])
	assert.Equal(t, []string{"learner-2", "33"}, summary[2][:2])

	// Same rounding as the in-session tracker.
	tracker := NewProgressTracker(threeChapterCourse(), learner, []uint{10, 20}, fx.deps)
	assert.Equal(t, []string{"learner-3", strconv.Itoa(tracker.Percentage())}, summary[3][:2])
	assert.Equal(t, "67", summary[3][1])

	chapters, err := workbook.GetRows("Chapters")
	require.NoError(t, err)
	require.Len(t, chapters, 10)
	assert.Equal(t, []string{"learner-1", "1", "Syntax"}, chapters[1][:3])
	assert.Equal(t, "Types", chapters[2][2])
	assert.Equal(t, "75", chapters[2][5])

	repo.Certificate.AssertNotCalled(t, "GetCertificate", mock.Anything, "learner-2", mock.Anything)
}

func TestReportService_RequiresPrivilegedRole(t *testing.T) {
	fx := newFixture()
	service := NewReportService(fx.deps.Repo, fx.deps.Logger)

	_, err := service.ExportProgressReport(context.Background(), &learner, 1, []string{"learner-1"})
	assert.ErrorIs(t, err, ErrReportAccessDenied)
	assert.True(t, IsForbidden(err))

	_, err = service.ExportProgressReport(context.Background(), nil, 1, nil)
	assert.ErrorIs(t, err, ErrReportAccessDenied)
	fx.repos.Course.AssertNotCalled(t, "GetCourse", mock.Anything, mock.Anything)
}

func TestReportService_CollaboratorFailure(t *testing.T) {
	fx := newFixture()
	fx.repos.Course.On("GetCourse", mock.Anything, uint(1)).Return(threeChapterCourse(), nil)
	fx.repos.Course.On("GetFinalTestForCourse", mock.Anything, uint(1)).Return(nil, repositories.ErrNotFound)
	fx.repos.Progress.On("GetCompletedChapters", mock.Anything, "learner-1", uint(1)).Return(nil, errors.New("too many connections"))

	service := NewReportService(fx.deps.Repo, fx.deps.Logger)
	_, err := service.ExportProgressReport(context.Background(), &teacher, 1, []string{"learner-1"})
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}
