package postgres

import (
	"context"

	"github.com/bmtt-school/times-tables-service/internal/repositories"
	"gorm.io/gorm"
)

// Manager wires all PostgreSQL repositories over one gorm.DB. Begin returns
// a transaction-scoped manager over the same interfaces.
type Manager struct {
	db *gorm.DB

	teacher repositories.TeacherRepository
	class   repositories.ClassRepository
	student repositories.StudentRepository
	attempt repositories.AttemptRepository
	invite  repositories.InviteRepository
}

func NewManager(db *gorm.DB) *Manager {
	return &Manager{
		db:      db,
		teacher: NewTeacherPostgreSQL(db),
		class:   NewClassPostgreSQL(db),
		student: NewStudentPostgreSQL(db),
		attempt: NewAttemptPostgreSQL(db),
		invite:  NewInvitePostgreSQL(db),
	}
}

func (m *Manager) Teacher() repositories.TeacherRepository { return m.teacher }
func (m *Manager) Class() repositories.ClassRepository     { return m.class }
func (m *Manager) Student() repositories.StudentRepository { return m.student }
func (m *Manager) Attempt() repositories.AttemptRepository { return m.attempt }
func (m *Manager) Invite() repositories.InviteRepository   { return m.invite }

func (m *Manager) Begin(ctx context.Context) (repositories.Repository, error) {
	tx := m.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return NewManager(tx), nil
}

func (m *Manager) Commit(ctx context.Context) error {
	return m.db.Commit().Error
}

func (m *Manager) Rollback(ctx context.Context) error {
	return m.db.Rollback().Error
}
