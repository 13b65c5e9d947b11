package grading

import (
	"context"
	"fmt"
	"math"

	"github.com/SAP-F-2025/course-progression-service/internal/models"
)

// QuestionResult is the outcome for a single question.
type QuestionResult struct {
	QuestionID uint    `json:"question_id"`
	Points     float64 `json:"points"`
	Earned     float64 `json:"earned"`
	Correct    bool    `json:"correct"`
	Graded     bool    `json:"graded"` // false when no local key and no external grade was supplied
}

// Result is the outcome of scoring a question set.
type Result struct {
	EarnedPoints float64          `json:"earned_points"`
	TotalPoints  float64          `json:"total_points"`
	Questions    []QuestionResult `json:"questions"`
}

// Percentage is round(100 * earned / total), with an empty total scoring 0.
func (r Result) Percentage() int {
	return Percentage(r.EarnedPoints, r.TotalPoints)
}

func Percentage(earned, total float64) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * earned / total))
}

// ExternalGrader supplies points for question types the engine cannot grade locally
// (numerical, match, subjective). ok=false means no grade is available yet.
type ExternalGrader interface {
	Grade(ctx context.Context, question models.Question, answer models.Answer) (points float64, ok bool, err error)
}

// Score grades single and multiple choice questions locally. Other types count toward
// TotalPoints only. Unanswered questions score zero.
func Score(questions []models.Question, answers models.AnswerSet) Result {
	result := Result{Questions: make([]QuestionResult, 0, len(questions))}
	for _, q := range questions {
		qr := scoreLocal(q, answers[q.ID])
		result.TotalPoints += qr.Points
		result.EarnedPoints += qr.Earned
		result.Questions = append(result.Questions, qr)
	}
	return result
}

// ScoreWithGrader behaves like Score but asks grader for the types without a local key.
// Grader points are clamped to [0, question points].
func ScoreWithGrader(ctx context.Context, questions []models.Question, answers models.AnswerSet, grader ExternalGrader) (Result, error) {
	if grader == nil {
		return Score(questions, answers), nil
	}

	result := Result{Questions: make([]QuestionResult, 0, len(questions))}
	for _, q := range questions {
		answer := answers[q.ID]
		qr := scoreLocal(q, answer)
		if !qr.Graded {
			points, ok, err := grader.Grade(ctx, q, answer)
			if err != nil {
				return Result{}, fmt.Errorf("failed to grade question %d: %w", q.ID, err)
			}
			if ok {
				qr.Graded = true
				qr.Earned = math.Max(0, math.Min(points, qr.Points))
				qr.Correct = qr.Earned == qr.Points
			}
		}
		result.TotalPoints += qr.Points
		result.EarnedPoints += qr.Earned
		result.Questions = append(result.Questions, qr)
	}
	return result, nil
}

func scoreLocal(q models.Question, answer models.Answer) QuestionResult {
	qr := QuestionResult{QuestionID: q.ID, Points: q.PointValue()}

	switch q.Type {
	case models.QuestionSingle:
		qr.Graded = true
		qr.Correct = singleCorrect(q, answer)
	case models.QuestionMultiple:
		qr.Graded = true
		qr.Correct = multipleCorrect(q, answer)
	}

	if qr.Correct {
		qr.Earned = qr.Points
	}
	return qr
}

func singleCorrect(q models.Question, answer models.Answer) bool {
	if q.CorrectOptionIndex == nil {
		return false
	}
	idx, ok := answer.ChoiceIndex()
	return ok && idx == *q.CorrectOptionIndex
}

// multipleCorrect is all-or-nothing set equality; order and duplicates are ignored.
func multipleCorrect(q models.Question, answer models.Answer) bool {
	if !answer.Answered() {
		return false
	}
	correct := make(map[int]struct{}, len(q.CorrectOptionIndexes))
	for _, idx := range q.CorrectOptionIndexes {
		correct[idx] = struct{}{}
	}
	return setEqual(correct, answer.ChoiceSet())
}

func setEqual(a, b map[int]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
