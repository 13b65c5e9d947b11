package models

import (
	"sort"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AssessmentScope string

const (
	ScopeChapter AssessmentScope = "chapter"
	ScopeCourse  AssessmentScope = "course"
)

// DefaultFinalTestSeconds applies when a final test has no time limit configured.
const DefaultFinalTestSeconds = 1800

type Assessment struct {
	ID               uint            `json:"id" gorm:"primaryKey"`
	Title            string          `json:"title" gorm:"not null;size:200;index" validate:"required,min=1,max=200"`
	Scope            AssessmentScope `json:"scope" gorm:"not null;index" validate:"required,oneof=chapter course"`
	CourseID         uint            `json:"course_id" gorm:"not null;index"`
	ChapterID        *uint           `json:"chapter_id" gorm:"index"`
	TimeLimitSeconds *int            `json:"time_limit_seconds" validate:"omitempty,min=0"`
	MaxAttempts      int             `json:"max_attempts" gorm:"default:1" validate:"min=0,max=10"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Questions []Question `json:"questions" gorm:"foreignKey:AssessmentID" validate:"dive"`
}

func (Assessment) TableName() string {
	return "assessments"
}

// TimeLimit returns the configured limit, or fallback when unset or zero.
func (a *Assessment) TimeLimit(fallback int) int {
	if a.TimeLimitSeconds == nil || *a.TimeLimitSeconds <= 0 {
		return fallback
	}
	return *a.TimeLimitSeconds
}

// AttemptLimit returns MaxAttempts, treating unset as a single attempt.
func (a *Assessment) AttemptLimit() int {
	if a.MaxAttempts <= 0 {
		return 1
	}
	return a.MaxAttempts
}

// OrderedQuestions returns the questions sorted by Order, ties broken by ID.
func (a *Assessment) OrderedQuestions() []Question {
	questions := make([]Question, len(a.Questions))
	copy(questions, a.Questions)
	sort.SliceStable(questions, func(i, j int) bool {
		if questions[i].Order == questions[j].Order {
			return questions[i].ID < questions[j].ID
		}
		return questions[i].Order < questions[j].Order
	})
	return questions
}

type QuestionType string

const (
	QuestionSingle     QuestionType = "single"
	QuestionMultiple   QuestionType = "multiple"
	QuestionNumerical  QuestionType = "numerical"
	QuestionMatch      QuestionType = "match"
	QuestionSubjective QuestionType = "subjective"
)

// AutoGradable reports whether the scoring engine grades this type locally.
func (t QuestionType) AutoGradable() bool {
	return t == QuestionSingle || t == QuestionMultiple
}

type MatchPair struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

type Question struct {
	ID           uint         `json:"id" gorm:"primaryKey"`
	AssessmentID uint         `json:"assessment_id" gorm:"not null;index"`
	Type         QuestionType `json:"type" gorm:"not null" validate:"required,question_type"`
	Prompt       string       `json:"prompt" gorm:"type:text;not null" validate:"required"`
	Points       float64      `json:"points" gorm:"default:1" validate:"gte=0"`
	Order        int          `json:"order" gorm:"column:sort_order"`

	// single / multiple
	Options              datatypes.JSONSlice[string] `json:"options,omitempty" gorm:"type:jsonb"`
	CorrectOptionIndex   *int                        `json:"correct_option_index,omitempty"`
	CorrectOptionIndexes datatypes.JSONSlice[int]    `json:"correct_option_indexes,omitempty" gorm:"type:jsonb"`

	// numerical
	CorrectText string `json:"correct_text,omitempty"`

	// match
	Pairs datatypes.JSONSlice[MatchPair] `json:"pairs,omitempty" gorm:"type:jsonb"`

	// subjective, guidance only
	SampleAnswer string `json:"sample_answer,omitempty" gorm:"type:text"`
}

func (Question) TableName() string {
	return "questions"
}

// PointValue returns Points, defaulting to 1 when unset.
func (q *Question) PointValue() float64 {
	if q.Points <= 0 {
		return 1
	}
	return q.Points
}

// ForLearner strips grading keys so the question can be shown to a learner.
func (q Question) ForLearner() Question {
	q.CorrectOptionIndex = nil
	q.CorrectOptionIndexes = nil
	q.CorrectText = ""
	q.SampleAnswer = ""
	return q
}
