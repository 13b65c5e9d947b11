package validator

import (
	"strings"

	"github.com/SAP-F-2025/course-progression-service/internal/models"
)

// QuestionValidator checks authored question definitions against their type
type QuestionValidator struct{}

func NewQuestionValidator() *QuestionValidator {
	return &QuestionValidator{}
}

// ValidateQuestion returns ValidationErrors naming every problem found
func (v *QuestionValidator) ValidateQuestion(question *models.Question) error {
	var errs ValidationErrors

	if strings.TrimSpace(question.Prompt) == "" {
		errs = append(errs, ValidationError{Field: "prompt", Message: "is required", Rule: "required"})
	}
	if question.Points < 0 {
		errs = append(errs, ValidationError{Field: "points", Message: "must be positive", Value: question.Points, Rule: "gte"})
	}

	switch question.Type {
	case models.QuestionSingle:
		errs = append(errs, v.validateSingle(question)...)
	case models.QuestionMultiple:
		errs = append(errs, v.validateMultiple(question)...)
	case models.QuestionNumerical:
		if strings.TrimSpace(question.CorrectText) == "" {
			errs = append(errs, ValidationError{Field: "correct_text", Message: "is required for numerical questions", Rule: "required"})
		}
	case models.QuestionMatch:
		if len(question.Pairs) == 0 {
			errs = append(errs, ValidationError{Field: "pairs", Message: "must have at least 1 pair", Rule: "min"})
		}
	case models.QuestionSubjective:
	default:
		errs = append(errs, ValidationError{Field: "type", Message: "unsupported question type", Value: question.Type, Rule: "question_type"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ValidateBatch validates every question, prefixing field names with the question position
func (v *QuestionValidator) ValidateBatch(questions []models.Question) error {
	var errs ValidationErrors
	for i := range questions {
		if err := v.ValidateQuestion(&questions[i]); err != nil {
			if qErrs, ok := err.(ValidationErrors); ok {
				errs = append(errs, withIndex("questions", i, qErrs)...)
			}
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (v *QuestionValidator) validateSingle(question *models.Question) ValidationErrors {
	var errs ValidationErrors
	if len(question.Options) < 2 {
		errs = append(errs, ValidationError{Field: "options", Message: "must have at least 2 options", Rule: "min"})
	}
	if question.CorrectOptionIndex == nil {
		errs = append(errs, ValidationError{Field: "correct_option_index", Message: "is required for single choice questions", Rule: "required"})
	} else if !inRange(*question.CorrectOptionIndex, len(question.Options)) {
		errs = append(errs, ValidationError{
			Field:   "correct_option_index",
			Message: "does not match any option",
			Value:   *question.CorrectOptionIndex,
			Rule:    "option_index",
		})
	}
	return errs
}

func (v *QuestionValidator) validateMultiple(question *models.Question) ValidationErrors {
	var errs ValidationErrors
	if len(question.Options) < 2 {
		errs = append(errs, ValidationError{Field: "options", Message: "must have at least 2 options", Rule: "min"})
	}
	if len(question.CorrectOptionIndexes) == 0 {
		errs = append(errs, ValidationError{Field: "correct_option_indexes", Message: "must have at least 1 correct answer", Rule: "min"})
	}
	for _, index := range question.CorrectOptionIndexes {
		if !inRange(index, len(question.Options)) {
			errs = append(errs, ValidationError{
				Field:   "correct_option_indexes",
				Message: "does not match any option",
				Value:   index,
				Rule:    "option_index",
			})
		}
	}
	return errs
}

func inRange(index, length int) bool {
	return index >= 0 && index < length
}
