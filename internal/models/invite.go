package models

import (
	"time"
)

// TeacherInvite is an admin-issued token letting a new teacher set their own
// password. Invites are single use and expire.
type TeacherInvite struct {
	ID       uint     `json:"id" gorm:"primaryKey"`
	Email    string   `json:"email" gorm:"not null;index;size:255" validate:"required,email"`
	FullName string   `json:"full_name" gorm:"not null;size:100" validate:"required"`
	Role     UserRole `json:"role" gorm:"default:teacher;size:20" validate:"omitempty,oneof=teacher admin"`

	Token      string     `json:"-" gorm:"uniqueIndex;not null;size:64"`
	ExpiresAt  time.Time  `json:"expires_at"`
	AcceptedAt *time.Time `json:"accepted_at"`

	CreatedAt time.Time `json:"created_at"`
}

func (TeacherInvite) TableName() string {
	return "teacher_invites"
}

// Usable reports whether the invite can still be redeemed.
func (i *TeacherInvite) Usable(now time.Time) bool {
	return i.AcceptedAt == nil && now.Before(i.ExpiresAt)
}
