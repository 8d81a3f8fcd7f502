package models

import (
	"time"

	"gorm.io/gorm"
)

type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleTeacher UserRole = "teacher"
	RoleAdmin   UserRole = "admin"
)

// Teacher is a staff account. Role is mutable by an admin; class access is
// granted through TeacherClass rows (admins bypass the link check).
type Teacher struct {
	ID           uint     `json:"id" gorm:"primaryKey"`
	Email        string   `json:"email" gorm:"uniqueIndex;not null;size:255" validate:"required,email"`
	PasswordHash string   `json:"-" gorm:"not null;size:255"`
	FullName     string   `json:"full_name" gorm:"not null;size:100" validate:"required,min=1,max=100"`
	Role         UserRole `json:"role" gorm:"default:teacher;size:20" validate:"omitempty,oneof=teacher admin"`

	IsActive    bool       `json:"is_active" gorm:"default:true"`
	LastLoginAt *time.Time `json:"last_login_at"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Classes []Class `json:"classes,omitempty" gorm:"many2many:teacher_classes"`
}

func (Teacher) TableName() string {
	return "teachers"
}

// TeacherClass links a teacher to a class they may view. Per-class reads are
// denied when no row exists and the caller is not an admin.
type TeacherClass struct {
	TeacherID uint      `json:"teacher_id" gorm:"primaryKey;autoIncrement:false"`
	ClassID   uint      `json:"class_id" gorm:"primaryKey;autoIncrement:false"`
	CreatedAt time.Time `json:"created_at"`
}

func (TeacherClass) TableName() string {
	return "teacher_classes"
}
