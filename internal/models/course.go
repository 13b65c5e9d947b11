package models

import (
	"sort"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Course struct {
	ID          uint    `json:"id" gorm:"primaryKey"`
	Title       string  `json:"title" gorm:"not null;size:200" validate:"required,min=1,max=200"`
	Description *string `json:"description" gorm:"type:text"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Chapters []Chapter `json:"chapters" gorm:"foreignKey:CourseID" validate:"dive"`
}

func (Course) TableName() string {
	return "courses"
}

// Chapter is immutable from the engine's point of view. Order is unique within a course
// and defines sequencing. HasQuiz is not stored; the repository derives it from the
// chapter-scoped assessments when the course is loaded.
type Chapter struct {
	ID          uint                       `json:"id" gorm:"primaryKey"`
	CourseID    uint                       `json:"course_id" gorm:"not null;index"`
	Title       string                     `json:"title" gorm:"not null;size:200" validate:"required"`
	Order       int                        `json:"order" gorm:"column:sort_order;not null"`
	Content     string                     `json:"content" gorm:"type:text"`
	Attachments datatypes.JSONSlice[string] `json:"attachments" gorm:"type:jsonb"`
	HasQuiz     bool                       `json:"has_quiz" gorm:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Chapter) TableName() string {
	return "chapters"
}

// OrderedChapters returns the chapters sorted by Order, ties broken by ID.
func (c *Course) OrderedChapters() []Chapter {
	chapters := make([]Chapter, len(c.Chapters))
	copy(chapters, c.Chapters)
	sort.SliceStable(chapters, func(i, j int) bool {
		if chapters[i].Order == chapters[j].Order {
			return chapters[i].ID < chapters[j].ID
		}
		return chapters[i].Order < chapters[j].Order
	})
	return chapters
}

func (c *Course) Chapter(id uint) (Chapter, bool) {
	for _, ch := range c.Chapters {
		if ch.ID == id {
			return ch, true
		}
	}
	return Chapter{}, false
}

// DuplicateOrders reports chapter orders used more than once. Duplicates are an
// authoring error; the engine only surfaces them.
func (c *Course) DuplicateOrders() []int {
	seen := make(map[int]int, len(c.Chapters))
	for _, ch := range c.Chapters {
		seen[ch.Order]++
	}
	var dups []int
	for order, n := range seen {
		if n > 1 {
			dups = append(dups, order)
		}
	}
	sort.Ints(dups)
	return dups
}
