package models

import (
	"time"

	"gorm.io/gorm"
)

// Student is a pupil account. Usernames are generated and unique; the PIN is
// stored as a bcrypt hash, never in clear.
type Student struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	FirstName string `json:"first_name" gorm:"not null;size:60" validate:"required,min=1,max=60"`
	LastName  string `json:"last_name" gorm:"not null;size:60" validate:"required,min=1,max=60"`
	Username  string `json:"username" gorm:"uniqueIndex;not null;size:80"`
	PinHash   string `json:"-" gorm:"not null;size:255"`

	ClassID uint `json:"class_id" gorm:"not null;index"`
	// ClassLabel is denormalized onto the pupil (and their attempts) so
	// reporting queries do not join through classes.
	ClassLabel string `json:"class_label" gorm:"size:10;index"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Class    Class     `json:"class,omitempty" gorm:"foreignKey:ClassID"`
	Attempts []Attempt `json:"attempts,omitempty" gorm:"foreignKey:StudentID"`
}

func (Student) TableName() string {
	return "students"
}

// FullName joins the pupil's names for display in dashboards and exports.
func (s *Student) FullName() string {
	return s.FirstName + " " + s.LastName
}
