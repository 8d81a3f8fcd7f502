package models

import (
	"time"

	"gorm.io/datatypes"
)

// Attempt is one quiz session by a pupil. It is immutable once completed
// except for the single finishing update that sets the scoring fields.
//
// Score, MaxScore and Percent are nullable/zero-tolerant because rows written
// by earlier versions of the schema carry only a subset of them; AttemptPct
// in the attainment service normalizes whatever is present.
type Attempt struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	StudentID  uint   `json:"student_id" gorm:"not null;index"`
	ClassLabel string `json:"class_label" gorm:"size:10;index"`

	StartedAt  time.Time  `json:"started_at" gorm:"not null"`
	FinishedAt *time.Time `json:"finished_at"`

	Score             *float64 `json:"score"`
	MaxScore          int      `json:"max_score"`
	Percent           *float64 `json:"percent"`
	AvgResponseTimeMs int      `json:"avg_response_time_ms"`
	Completed         bool     `json:"completed" gorm:"default:false;index"`

	// Client metadata captured at start (user agent, app version).
	ClientInfo datatypes.JSON `json:"client_info,omitempty"`

	CreatedAt time.Time `json:"created_at"`

	// Relations
	Student   Student          `json:"student,omitempty" gorm:"foreignKey:StudentID"`
	Questions []QuestionRecord `json:"questions,omitempty" gorm:"foreignKey:AttemptID"`
}

func (Attempt) TableName() string {
	return "attempts"
}

// QuestionRecord is one question within an attempt. Written once; the only
// later mutation is the per-question answer flow filling in the next
// unanswered record.
type QuestionRecord struct {
	ID        uint `json:"id" gorm:"primaryKey"`
	AttemptID uint `json:"attempt_id" gorm:"not null;index"`
	StudentID uint `json:"student_id" gorm:"not null;index"`
	QIndex    int  `json:"q_index" gorm:"not null"`

	TableNum     int `json:"table_num" gorm:"not null;index"`
	Multiplicand int `json:"multiplicand" gorm:"not null"`
	Multiplier   int `json:"multiplier" gorm:"not null"`

	CorrectAnswer int  `json:"correct_answer" gorm:"not null"`
	GivenAnswer   *int `json:"given_answer"`
	IsCorrect     bool `json:"is_correct" gorm:"index"`
	TimedOut      bool `json:"timed_out"`

	ResponseTimeMs int        `json:"response_time_ms"`
	ServedAt       *time.Time `json:"served_at"`
	AnsweredAt     *time.Time `json:"answered_at"`

	CreatedAt time.Time `json:"created_at"`
}

func (QuestionRecord) TableName() string {
	return "question_records"
}
