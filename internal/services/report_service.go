package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SAP-F-2025/course-progression-service/internal/grading"
	"github.com/SAP-F-2025/course-progression-service/internal/models"
	"github.com/SAP-F-2025/course-progression-service/internal/repositories"
	"github.com/xuri/excelize/v2"
)

const (
	chapterSheet = "Chapters"
	summarySheet = "Summary"
)

// ReportService exports learner progress for course staff
type ReportService struct {
	repo   repositories.Repository
	logger *slog.Logger
}

func NewReportService(repo repositories.Repository, logger *slog.Logger) *ReportService {
	return &ReportService{
		repo:   repo,
		logger: logger,
	}
}

// learnerProgress is one learner's row set in the report
type learnerProgress struct {
	learnerID   string
	completed   map[uint]struct{}
	quizScores  map[uint]int
	final       *models.AttemptResult
	certificate *models.Certificate
}

// ExportProgressReport builds an xlsx workbook with one row per learner and chapter, plus
// a summary sheet with course percentage, final score and certificate number.
func (s *ReportService) ExportProgressReport(ctx context.Context, session *models.Session, courseID uint, learnerIDs []string) ([]byte, error) {
	if session == nil || !session.Privileged() {
		return nil, ErrReportAccessDenied
	}

	s.logger.Info("Exporting progress report",
		"course_id", courseID,
		"learners", len(learnerIDs),
		"requested_by", session.LearnerID)

	course, err := s.repo.Course().GetCourse(ctx, courseID)
	if err != nil {
		return nil, collaboratorError("get course", err, ErrCourseNotFound)
	}

	finalTest, err := s.repo.Course().GetFinalTestForCourse(ctx, courseID)
	if err != nil && !repositories.IsNotFoundError(err) {
		return nil, collaboratorError("get final test", err, nil)
	}

	rows := make([]learnerProgress, 0, len(learnerIDs))
	for _, learnerID := range learnerIDs {
		progress, err := s.loadLearner(ctx, course, finalTest, learnerID)
		if err != nil {
			return nil, err
		}
		rows = append(rows, progress)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	if _, err := f.NewSheet(chapterSheet); err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}

	if err := writeRow(f, summarySheet, 1, []interface{}{
		"Learner", "Progress %", "Course Complete", "Final Score", "Attempt", "Attempts Remaining", "Certificate",
	}); err != nil {
		return nil, err
	}
	if err := writeRow(f, chapterSheet, 1, []interface{}{
		"Learner", "Order", "Chapter", "Has Quiz", "Completed", "Quiz Score",
	}); err != nil {
		return nil, err
	}

	chapters := course.OrderedChapters()
	chapterRow := 2
	for i, progress := range rows {
		done := 0
		for _, chapter := range chapters {
			_, completed := progress.completed[chapter.ID]
			if completed {
				done++
			}
			var quizScore interface{} = ""
			if score, ok := progress.quizScores[chapter.ID]; ok {
				quizScore = score
			}
			if err := writeRow(f, chapterSheet, chapterRow, []interface{}{
				progress.learnerID, chapter.Order, chapter.Title, chapter.HasQuiz, completed, quizScore,
			}); err != nil {
				return nil, err
			}
			chapterRow++
		}

		percentage := grading.Percentage(float64(done), float64(len(chapters)))
		summary := []interface{}{progress.learnerID, percentage, done == len(chapters), "", "", "", ""}
		if progress.final != nil {
			summary[3] = progress.final.Score
			summary[4] = progress.final.AttemptNumber
			summary[5] = progress.final.AttemptsRemaining
		}
		if progress.certificate != nil {
			summary[6] = progress.certificate.CertificateNumber
		}
		if err := writeRow(f, summarySheet, i+2, summary); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *ReportService) loadLearner(ctx context.Context, course *models.Course, finalTest *models.Assessment, learnerID string) (learnerProgress, error) {
	progress := learnerProgress{
		learnerID:  learnerID,
		completed:  make(map[uint]struct{}),
		quizScores: make(map[uint]int),
	}

	completed, err := s.repo.Progress().GetCompletedChapters(ctx, learnerID, course.ID)
	if err != nil {
		return progress, collaboratorError("get completed chapters", err, nil)
	}
	for _, id := range completed {
		progress.completed[id] = struct{}{}
	}

	for _, chapter := range course.Chapters {
		if !chapter.HasQuiz {
			continue
		}
		result, err := s.repo.Attempt().GetQuizResult(ctx, learnerID, chapter.ID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				continue
			}
			return progress, collaboratorError("get quiz result", err, nil)
		}
		progress.quizScores[chapter.ID] = result.Score
	}

	if finalTest == nil {
		return progress, nil
	}
	progress.final, err = s.repo.Attempt().GetFinalAttempt(ctx, learnerID, finalTest.ID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return progress, nil
		}
		return progress, collaboratorError("get final attempt", err, nil)
	}
	if Eligible(progress.final) {
		progress.certificate, err = s.repo.Certificate().GetCertificate(ctx, learnerID, finalTest.ID)
		if err != nil && !repositories.IsNotFoundError(err) {
			return progress, collaboratorError("get certificate", err, nil)
		}
	}
	return progress, nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("failed to resolve cell: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d of %s: %w", row, sheet, err)
	}
	return nil
}
