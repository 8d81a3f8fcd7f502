package services

import (
	"context"
	"time"

	"github.com/bmtt-school/times-tables-service/internal/models"
	"github.com/bmtt-school/times-tables-service/internal/repositories"
	"github.com/stretchr/testify/mock"
)

// MockTeacherRepository is a mock implementation of TeacherRepository
type MockTeacherRepository struct {
	mock.Mock
}

func (m *MockTeacherRepository) Create(ctx context.Context, teacher *models.Teacher) error {
	args := m.Called(ctx, teacher)
	return args.Error(0)
}

func (m *MockTeacherRepository) GetByID(ctx context.Context, id uint) (*models.Teacher, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Teacher), args.Error(1)
}

func (m *MockTeacherRepository) GetByEmail(ctx context.Context, email string) (*models.Teacher, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Teacher), args.Error(1)
}

func (m *MockTeacherRepository) Update(ctx context.Context, teacher *models.Teacher) error {
	args := m.Called(ctx, teacher)
	return args.Error(0)
}

func (m *MockTeacherRepository) UpdateRole(ctx context.Context, id uint, role models.UserRole) error {
	args := m.Called(ctx, id, role)
	return args.Error(0)
}

func (m *MockTeacherRepository) List(ctx context.Context, filters repositories.TeacherFilters) ([]*models.Teacher, int64, error) {
	args := m.Called(ctx, filters)
	return args.Get(0).([]*models.Teacher), args.Get(1).(int64), args.Error(2)
}

func (m *MockTeacherRepository) SetClasses(ctx context.Context, teacherID uint, classIDs []uint) error {
	args := m.Called(ctx, teacherID, classIDs)
	return args.Error(0)
}

func (m *MockTeacherRepository) HasClassAccess(ctx context.Context, teacherID, classID uint) (bool, error) {
	args := m.Called(ctx, teacherID, classID)
	return args.Bool(0), args.Error(1)
}

func (m *MockTeacherRepository) GetClassIDs(ctx context.Context, teacherID uint) ([]uint, error) {
	args := m.Called(ctx, teacherID)
	return args.Get(0).([]uint), args.Error(1)
}

func (m *MockTeacherRepository) RemoveClassLinks(ctx context.Context, classID uint) error {
	args := m.Called(ctx, classID)
	return args.Error(0)
}

// MockClassRepository is a mock implementation of ClassRepository
type MockClassRepository struct {
	mock.Mock
}

func (m *MockClassRepository) Create(ctx context.Context, class *models.Class) error {
	args := m.Called(ctx, class)
	return args.Error(0)
}

func (m *MockClassRepository) GetByID(ctx context.Context, id uint) (*models.Class, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Class), args.Error(1)
}

func (m *MockClassRepository) GetByLabel(ctx context.Context, label string) (*models.Class, error) {
	args := m.Called(ctx, label)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Class), args.Error(1)
}

func (m *MockClassRepository) List(ctx context.Context) ([]*models.Class, error) {
	args := m.Called(ctx)
	return args.Get(0).([]*models.Class), args.Error(1)
}

func (m *MockClassRepository) ListByYear(ctx context.Context, yearGroup int) ([]*models.Class, error) {
	args := m.Called(ctx, yearGroup)
	return args.Get(0).([]*models.Class), args.Error(1)
}

func (m *MockClassRepository) Update(ctx context.Context, class *models.Class) error {
	args := m.Called(ctx, class)
	return args.Error(0)
}

func (m *MockClassRepository) Delete(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockClassRepository) CountPupils(ctx context.Context, id uint) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

// MockStudentRepository is a mock implementation of StudentRepository
type MockStudentRepository struct {
	mock.Mock
}

func (m *MockStudentRepository) Create(ctx context.Context, student *models.Student) error {
	args := m.Called(ctx, student)
	return args.Error(0)
}

func (m *MockStudentRepository) GetByID(ctx context.Context, id uint) (*models.Student, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Student), args.Error(1)
}

func (m *MockStudentRepository) GetByUsername(ctx context.Context, username string) (*models.Student, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Student), args.Error(1)
}

func (m *MockStudentRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

func (m *MockStudentRepository) ListByClass(ctx context.Context, classID uint) ([]*models.Student, error) {
	args := m.Called(ctx, classID)
	return args.Get(0).([]*models.Student), args.Error(1)
}

func (m *MockStudentRepository) Update(ctx context.Context, student *models.Student) error {
	args := m.Called(ctx, student)
	return args.Error(0)
}

func (m *MockStudentRepository) Delete(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockAttemptRepository is a mock implementation of AttemptRepository
type MockAttemptRepository struct {
	mock.Mock
}

func (m *MockAttemptRepository) Create(ctx context.Context, attempt *models.Attempt) error {
	args := m.Called(ctx, attempt)
	return args.Error(0)
}

func (m *MockAttemptRepository) GetByID(ctx context.Context, id uint) (*models.Attempt, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Attempt), args.Error(1)
}

func (m *MockAttemptRepository) GetByIDWithQuestions(ctx context.Context, id uint) (*models.Attempt, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Attempt), args.Error(1)
}

func (m *MockAttemptRepository) Update(ctx context.Context, attempt *models.Attempt) error {
	args := m.Called(ctx, attempt)
	return args.Error(0)
}

func (m *MockAttemptRepository) List(ctx context.Context, filters repositories.AttemptFilters) ([]*models.Attempt, int64, error) {
	args := m.Called(ctx, filters)
	return args.Get(0).([]*models.Attempt), args.Get(1).(int64), args.Error(2)
}

func (m *MockAttemptRepository) ListCompletedByStudent(ctx context.Context, studentID uint, since *time.Time) ([]*models.Attempt, error) {
	args := m.Called(ctx, studentID, since)
	return args.Get(0).([]*models.Attempt), args.Error(1)
}

func (m *MockAttemptRepository) ListCompletedByClass(ctx context.Context, classLabel string, since *time.Time) ([]*models.Attempt, error) {
	args := m.Called(ctx, classLabel, since)
	return args.Get(0).([]*models.Attempt), args.Error(1)
}

func (m *MockAttemptRepository) GetClassStats(ctx context.Context, classLabel string) (*repositories.ClassAttemptStats, error) {
	args := m.Called(ctx, classLabel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repositories.ClassAttemptStats), args.Error(1)
}

func (m *MockAttemptRepository) CreateQuestionRecords(ctx context.Context, records []*models.QuestionRecord) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

func (m *MockAttemptRepository) UpdateQuestionRecord(ctx context.Context, record *models.QuestionRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockAttemptRepository) FirstUnanswered(ctx context.Context, attemptID uint) (*models.QuestionRecord, error) {
	args := m.Called(ctx, attemptID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.QuestionRecord), args.Error(1)
}

func (m *MockAttemptRepository) CountUnanswered(ctx context.Context, attemptID uint) (int64, error) {
	args := m.Called(ctx, attemptID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAttemptRepository) TableCounts(ctx context.Context, filters repositories.HeatmapFilters) ([]repositories.TableCount, error) {
	args := m.Called(ctx, filters)
	return args.Get(0).([]repositories.TableCount), args.Error(1)
}

func (m *MockAttemptRepository) DeleteByStudent(ctx context.Context, studentID uint) error {
	args := m.Called(ctx, studentID)
	return args.Error(0)
}

// MockInviteRepository is a mock implementation of InviteRepository
type MockInviteRepository struct {
	mock.Mock
}

func (m *MockInviteRepository) Create(ctx context.Context, invite *models.TeacherInvite) error {
	args := m.Called(ctx, invite)
	return args.Error(0)
}

func (m *MockInviteRepository) GetByToken(ctx context.Context, token string) (*models.TeacherInvite, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TeacherInvite), args.Error(1)
}

func (m *MockInviteRepository) MarkAccepted(ctx context.Context, id uint, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

// MockRepository aggregates the entity mocks and acts as its own
// transaction scope.
type MockRepository struct {
	teacher *MockTeacherRepository
	class   *MockClassRepository
	student *MockStudentRepository
	attempt *MockAttemptRepository
	invite  *MockInviteRepository
}

func newMockRepository() *MockRepository {
	return &MockRepository{
		teacher: new(MockTeacherRepository),
		class:   new(MockClassRepository),
		student: new(MockStudentRepository),
		attempt: new(MockAttemptRepository),
		invite:  new(MockInviteRepository),
	}
}

func (m *MockRepository) Teacher() repositories.TeacherRepository { return m.teacher }
func (m *MockRepository) Class() repositories.ClassRepository     { return m.class }
func (m *MockRepository) Student() repositories.StudentRepository { return m.student }
func (m *MockRepository) Attempt() repositories.AttemptRepository { return m.attempt }
func (m *MockRepository) Invite() repositories.InviteRepository   { return m.invite }

func (m *MockRepository) Begin(ctx context.Context) (repositories.Repository, error) { return m, nil }
func (m *MockRepository) Commit(ctx context.Context) error                           { return nil }
func (m *MockRepository) Rollback(ctx context.Context) error                         { return nil }
