package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/bmtt-school/times-tables-service/internal/models"
	"gorm.io/gorm"
)

// Repository aggregates per-entity repositories. One implementation exists
// per process, built once in main over a shared gorm.DB.
type Repository interface {
	Teacher() TeacherRepository
	Class() ClassRepository
	Student() StudentRepository
	Attempt() AttemptRepository
	Invite() InviteRepository
}

// TransactionRepository is implemented by repositories that can open a
// transaction-scoped view of themselves.
type TransactionRepository interface {
	Repository
	Begin(ctx context.Context) (Repository, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type TeacherRepository interface {
	Create(ctx context.Context, teacher *models.Teacher) error
	GetByID(ctx context.Context, id uint) (*models.Teacher, error)
	GetByEmail(ctx context.Context, email string) (*models.Teacher, error)
	Update(ctx context.Context, teacher *models.Teacher) error
	UpdateRole(ctx context.Context, id uint, role models.UserRole) error
	List(ctx context.Context, filters TeacherFilters) ([]*models.Teacher, int64, error)

	// Class linkage
	SetClasses(ctx context.Context, teacherID uint, classIDs []uint) error
	HasClassAccess(ctx context.Context, teacherID, classID uint) (bool, error)
	GetClassIDs(ctx context.Context, teacherID uint) ([]uint, error)
	RemoveClassLinks(ctx context.Context, classID uint) error
}

type ClassRepository interface {
	Create(ctx context.Context, class *models.Class) error
	GetByID(ctx context.Context, id uint) (*models.Class, error)
	GetByLabel(ctx context.Context, label string) (*models.Class, error)
	List(ctx context.Context) ([]*models.Class, error)
	ListByYear(ctx context.Context, yearGroup int) ([]*models.Class, error)
	Update(ctx context.Context, class *models.Class) error
	Delete(ctx context.Context, id uint) error
	CountPupils(ctx context.Context, id uint) (int64, error)
}

type StudentRepository interface {
	Create(ctx context.Context, student *models.Student) error
	GetByID(ctx context.Context, id uint) (*models.Student, error)
	GetByUsername(ctx context.Context, username string) (*models.Student, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	ListByClass(ctx context.Context, classID uint) ([]*models.Student, error)
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, id uint) error
}

type AttemptRepository interface {
	Create(ctx context.Context, attempt *models.Attempt) error
	GetByID(ctx context.Context, id uint) (*models.Attempt, error)
	GetByIDWithQuestions(ctx context.Context, id uint) (*models.Attempt, error)
	Update(ctx context.Context, attempt *models.Attempt) error
	List(ctx context.Context, filters AttemptFilters) ([]*models.Attempt, int64, error)
	ListCompletedByStudent(ctx context.Context, studentID uint, since *time.Time) ([]*models.Attempt, error)
	ListCompletedByClass(ctx context.Context, classLabel string, since *time.Time) ([]*models.Attempt, error)
	GetClassStats(ctx context.Context, classLabel string) (*ClassAttemptStats, error)

	// Question records
	CreateQuestionRecords(ctx context.Context, records []*models.QuestionRecord) error
	UpdateQuestionRecord(ctx context.Context, record *models.QuestionRecord) error
	FirstUnanswered(ctx context.Context, attemptID uint) (*models.QuestionRecord, error)
	CountUnanswered(ctx context.Context, attemptID uint) (int64, error)
	TableCounts(ctx context.Context, filters HeatmapFilters) ([]TableCount, error)

	// Cascading cleanup; foreign keys do not cascade here
	DeleteByStudent(ctx context.Context, studentID uint) error
}

type InviteRepository interface {
	Create(ctx context.Context, invite *models.TeacherInvite) error
	GetByToken(ctx context.Context, token string) (*models.TeacherInvite, error)
	MarkAccepted(ctx context.Context, id uint, at time.Time) error
}

// IsNotFoundError reports whether an error is the store's missing-row error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
