package models

import (
	"time"

	"gorm.io/gorm"
)

// DefaultSecondsPerQuestion applies when a class has no explicit timing
// configured. A question answered slower than this is marked timed out.
const DefaultSecondsPerQuestion = 6

type Class struct {
	ID            uint   `json:"id" gorm:"primaryKey"`
	ClassLabel    string `json:"class_label" gorm:"uniqueIndex;not null;size:10" validate:"required,class_label"`
	YearGroup     int    `json:"year_group" gorm:"not null" validate:"required,min=1,max=11"`
	TestStartDate *time.Time `json:"test_start_date"`

	// Quiz configuration
	MinTable           int `json:"min_table" gorm:"default:2" validate:"min=1,max=19"`
	MaxTable           int `json:"max_table" gorm:"default:12" validate:"min=1,max=19"`
	QuestionCount      int `json:"question_count" gorm:"default:25" validate:"min=1,max=100"`
	SecondsPerQuestion int `json:"seconds_per_question" validate:"omitempty,oneof=0 3 6 9 12"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Computed fields (not stored)
	PupilCount int `json:"pupil_count" gorm:"-"`
}

func (Class) TableName() string {
	return "classes"
}

// QuestionTimeout is the single authoritative per-question time limit for
// both submission flows: the class setting when present, otherwise the
// service-wide default.
func (c *Class) QuestionTimeout() time.Duration {
	secs := c.SecondsPerQuestion
	if secs <= 0 {
		secs = DefaultSecondsPerQuestion
	}
	return time.Duration(secs) * time.Second
}

// YearFromLabel derives the year group encoded in a class label's trailing
// digit (e.g. "M4" -> 4). Returns 0 when the label carries no digit.
func YearFromLabel(label string) int {
	if label == "" {
		return 0
	}
	last := label[len(label)-1]
	if last < '0' || last > '9' {
		return 0
	}
	return int(last - '0')
}
