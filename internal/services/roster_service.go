package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/bmtt-school/times-tables-service/internal/auth"
	"github.com/bmtt-school/times-tables-service/internal/models"
	"github.com/bmtt-school/times-tables-service/internal/repositories"
	"github.com/bmtt-school/times-tables-service/internal/validator"
	"github.com/xuri/excelize/v2"
)

// RosterService owns class and pupil administration, including credential
// issuance and the xlsx bulk import.
type RosterService interface {
	CreateClass(ctx context.Context, req *CreateClassRequest) (*models.Class, error)
	GetClass(ctx context.Context, id uint) (*models.Class, error)
	ListClasses(ctx context.Context) ([]*models.Class, error)
	ClassesForTeacher(ctx context.Context, teacherID uint, admin bool) ([]*models.Class, error)
	UpdateClass(ctx context.Context, id uint, req *UpdateClassRequest) (*models.Class, error)
	DeleteClass(ctx context.Context, id uint) error

	CreatePupil(ctx context.Context, req *CreatePupilRequest) (*PupilCredentials, error)
	ListPupils(ctx context.Context, classID uint) ([]*models.Student, error)
	DeletePupil(ctx context.Context, id uint) error
	ResetPin(ctx context.Context, id uint) (*PupilCredentials, error)
	ImportPupils(ctx context.Context, classID uint, r io.Reader) (*ImportResult, error)

	ListTeachers(ctx context.Context, req *ListTeachersRequest) ([]*models.Teacher, int64, error)
	SetTeacherRole(ctx context.Context, teacherID uint, role models.UserRole) error
	SetTeacherClasses(ctx context.Context, teacherID uint, classIDs []uint) error
}

// ===== REQUEST / RESPONSE TYPES =====

type CreateClassRequest struct {
	ClassLabel         string     `json:"class_label" validate:"required,class_label"`
	YearGroup          int        `json:"year_group" validate:"omitempty,min=1,max=11"`
	TestStartDate      *time.Time `json:"test_start_date"`
	MinTable           int        `json:"min_table" validate:"omitempty,min=1,max=19"`
	MaxTable           int        `json:"max_table" validate:"omitempty,min=1,max=19"`
	QuestionCount      int        `json:"question_count" validate:"omitempty,min=1,max=100"`
	SecondsPerQuestion int        `json:"seconds_per_question" validate:"omitempty,oneof=0 3 6 9 12"`
}

type UpdateClassRequest struct {
	YearGroup          *int       `json:"year_group" validate:"omitempty,min=1,max=11"`
	TestStartDate      *time.Time `json:"test_start_date"`
	MinTable           *int       `json:"min_table" validate:"omitempty,min=1,max=19"`
	MaxTable           *int       `json:"max_table" validate:"omitempty,min=1,max=19"`
	QuestionCount      *int       `json:"question_count" validate:"omitempty,min=1,max=100"`
	SecondsPerQuestion *int       `json:"seconds_per_question" validate:"omitempty,oneof=0 3 6 9 12"`
}

type CreatePupilRequest struct {
	FirstName string `json:"first_name" validate:"required,min=1,max=60"`
	LastName  string `json:"last_name" validate:"required,min=1,max=60"`
	ClassID   uint   `json:"class_id" validate:"required"`
}

// PupilCredentials carries the one-time clear-text PIN issued at creation or
// reset. The PIN is never retrievable afterwards.
type PupilCredentials struct {
	Student  *models.Student `json:"student"`
	Username string          `json:"username"`
	Pin      string          `json:"pin"`
}

type ListTeachersRequest struct {
	Role   string `json:"role" validate:"omitempty,oneof=teacher admin"`
	Limit  int    `json:"limit" validate:"omitempty,min=1,max=200"`
	Offset int    `json:"offset" validate:"omitempty,min=0"`
}

type ImportResult struct {
	Created  []*PupilCredentials `json:"created"`
	Failures []ImportRowError    `json:"failures"`
}

type ImportRowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ===== IMPLEMENTATION =====

type rosterService struct {
	repo      repositories.TransactionRepository
	validator *validator.Validator
	logger    *slog.Logger
}

func NewRosterService(repo repositories.TransactionRepository, v *validator.Validator, logger *slog.Logger) RosterService {
	return &rosterService{
		repo:      repo,
		validator: v,
		logger:    logger,
	}
}

// ===== CLASSES =====

func (s *rosterService) CreateClass(ctx context.Context, req *CreateClassRequest) (*models.Class, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	if _, err := s.repo.Class().GetByLabel(ctx, req.ClassLabel); err == nil {
		return nil, ErrClassLabelTaken
	} else if !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to check class label: %w", err)
	}

	year := req.YearGroup
	if year == 0 {
		year = models.YearFromLabel(req.ClassLabel)
	}
	if year == 0 {
		return nil, NewValidationError("year_group", "year group missing and not derivable from label", req.ClassLabel)
	}

	class := &models.Class{
		ClassLabel:         req.ClassLabel,
		YearGroup:          year,
		TestStartDate:      req.TestStartDate,
		MinTable:           valueOr(req.MinTable, 2),
		MaxTable:           valueOr(req.MaxTable, 12),
		QuestionCount:      valueOr(req.QuestionCount, 25),
		SecondsPerQuestion: req.SecondsPerQuestion,
	}
	if class.MinTable > class.MaxTable {
		return nil, NewValidationError("min_table", "min_table exceeds max_table", class.MinTable)
	}

	if err := s.repo.Class().Create(ctx, class); err != nil {
		return nil, fmt.Errorf("failed to create class: %w", err)
	}

	s.logger.Info("Class created", "class_label", class.ClassLabel, "year_group", class.YearGroup)
	return class, nil
}

func (s *rosterService) GetClass(ctx context.Context, id uint) (*models.Class, error) {
	class, err := s.repo.Class().GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrClassNotFound
		}
		return nil, fmt.Errorf("failed to load class: %w", err)
	}

	count, err := s.repo.Class().CountPupils(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to count pupils: %w", err)
	}
	class.PupilCount = int(count)
	return class, nil
}

func (s *rosterService) ListClasses(ctx context.Context) ([]*models.Class, error) {
	classes, err := s.repo.Class().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list classes: %w", err)
	}
	for _, class := range classes {
		count, err := s.repo.Class().CountPupils(ctx, class.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to count pupils: %w", err)
		}
		class.PupilCount = int(count)
	}
	return classes, nil
}

// ClassesForTeacher returns the classes a staff member may report on: every
// class for an admin, linked classes only for a teacher.
func (s *rosterService) ClassesForTeacher(ctx context.Context, teacherID uint, admin bool) ([]*models.Class, error) {
	if admin {
		return s.ListClasses(ctx)
	}

	ids, err := s.repo.Teacher().GetClassIDs(ctx, teacherID)
	if err != nil {
		return nil, fmt.Errorf("failed to load class links: %w", err)
	}

	classes := make([]*models.Class, 0, len(ids))
	for _, id := range ids {
		class, err := s.repo.Class().GetByID(ctx, id)
		if err != nil {
			// A link can outrace a concurrent class delete; skip it.
			if repositories.IsNotFoundError(err) {
				continue
			}
			return nil, fmt.Errorf("failed to load class: %w", err)
		}
		count, err := s.repo.Class().CountPupils(ctx, class.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to count pupils: %w", err)
		}
		class.PupilCount = int(count)
		classes = append(classes, class)
	}
	return classes, nil
}

func (s *rosterService) UpdateClass(ctx context.Context, id uint, req *UpdateClassRequest) (*models.Class, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	class, err := s.repo.Class().GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrClassNotFound
		}
		return nil, fmt.Errorf("failed to load class: %w", err)
	}

	if req.YearGroup != nil {
		class.YearGroup = *req.YearGroup
	}
	if req.TestStartDate != nil {
		class.TestStartDate = req.TestStartDate
	}
	if req.MinTable != nil {
		class.MinTable = *req.MinTable
	}
	if req.MaxTable != nil {
		class.MaxTable = *req.MaxTable
	}
	if req.QuestionCount != nil {
		class.QuestionCount = *req.QuestionCount
	}
	if req.SecondsPerQuestion != nil {
		class.SecondsPerQuestion = *req.SecondsPerQuestion
	}
	if class.MinTable > class.MaxTable {
		return nil, NewValidationError("min_table", "min_table exceeds max_table", class.MinTable)
	}

	if err := s.repo.Class().Update(ctx, class); err != nil {
		return nil, fmt.Errorf("failed to update class: %w", err)
	}

	s.logger.Info("Class updated", "class_label", class.ClassLabel)
	return class, nil
}

// DeleteClass removes a class and everything under it, one transaction for
// the whole cascade.
func (s *rosterService) DeleteClass(ctx context.Context, id uint) (err error) {
	class, err := s.repo.Class().GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrClassNotFound
		}
		return fmt.Errorf("failed to load class: %w", err)
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.(repositories.TransactionRepository).Rollback(ctx)
		}
	}()

	pupils, err := tx.Student().ListByClass(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to list pupils: %w", err)
	}
	for _, pupil := range pupils {
		if err = tx.Attempt().DeleteByStudent(ctx, pupil.ID); err != nil {
			return fmt.Errorf("failed to delete attempts: %w", err)
		}
		if err = tx.Student().Delete(ctx, pupil.ID); err != nil {
			return fmt.Errorf("failed to delete pupil: %w", err)
		}
	}
	if err = tx.Teacher().RemoveClassLinks(ctx, id); err != nil {
		return fmt.Errorf("failed to remove class links: %w", err)
	}
	if err = tx.Class().Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete class: %w", err)
	}

	if err = tx.(repositories.TransactionRepository).Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("Class deleted", "class_label", class.ClassLabel, "pupils_removed", len(pupils))
	return nil
}

// ===== PUPILS =====

func (s *rosterService) CreatePupil(ctx context.Context, req *CreatePupilRequest) (*PupilCredentials, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	class, err := s.repo.Class().GetByID(ctx, req.ClassID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrClassNotFound
		}
		return nil, fmt.Errorf("failed to load class: %w", err)
	}

	return s.issuePupil(ctx, s.repo, req.FirstName, req.LastName, class)
}

func (s *rosterService) issuePupil(ctx context.Context, repo repositories.Repository, first, last string, class *models.Class) (*PupilCredentials, error) {
	username, err := auth.GenerateUsername(ctx, first, last, repo.Student().UsernameExists)
	if err != nil {
		return nil, fmt.Errorf("failed to generate username: %w", err)
	}

	pin, err := auth.GeneratePin()
	if err != nil {
		return nil, fmt.Errorf("failed to generate pin: %w", err)
	}
	pinHash, err := auth.HashCredential(pin)
	if err != nil {
		return nil, fmt.Errorf("failed to hash pin: %w", err)
	}

	student := &models.Student{
		FirstName:  strings.TrimSpace(first),
		LastName:   strings.TrimSpace(last),
		Username:   username,
		PinHash:    pinHash,
		ClassID:    class.ID,
		ClassLabel: class.ClassLabel,
	}
	if err := repo.Student().Create(ctx, student); err != nil {
		return nil, fmt.Errorf("failed to create pupil: %w", err)
	}

	s.logger.Info("Pupil created", "username", username, "class_label", class.ClassLabel)
	return &PupilCredentials{Student: student, Username: username, Pin: pin}, nil
}

func (s *rosterService) ListPupils(ctx context.Context, classID uint) ([]*models.Student, error) {
	if _, err := s.repo.Class().GetByID(ctx, classID); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrClassNotFound
		}
		return nil, fmt.Errorf("failed to load class: %w", err)
	}

	pupils, err := s.repo.Student().ListByClass(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pupils: %w", err)
	}
	return pupils, nil
}

func (s *rosterService) DeletePupil(ctx context.Context, id uint) (err error) {
	pupil, err := s.repo.Student().GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrPupilNotFound
		}
		return fmt.Errorf("failed to load pupil: %w", err)
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.(repositories.TransactionRepository).Rollback(ctx)
		}
	}()

	if err = tx.Attempt().DeleteByStudent(ctx, id); err != nil {
		return fmt.Errorf("failed to delete attempts: %w", err)
	}
	if err = tx.Student().Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete pupil: %w", err)
	}

	if err = tx.(repositories.TransactionRepository).Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("Pupil deleted", "username", pupil.Username)
	return nil
}

func (s *rosterService) ResetPin(ctx context.Context, id uint) (*PupilCredentials, error) {
	pupil, err := s.repo.Student().GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrPupilNotFound
		}
		return nil, fmt.Errorf("failed to load pupil: %w", err)
	}

	pin, err := auth.GeneratePin()
	if err != nil {
		return nil, fmt.Errorf("failed to generate pin: %w", err)
	}
	pinHash, err := auth.HashCredential(pin)
	if err != nil {
		return nil, fmt.Errorf("failed to hash pin: %w", err)
	}

	pupil.PinHash = pinHash
	if err := s.repo.Student().Update(ctx, pupil); err != nil {
		return nil, fmt.Errorf("failed to update pupil: %w", err)
	}

	s.logger.Info("Pupil PIN reset", "username", pupil.Username)
	return &PupilCredentials{Student: pupil, Username: pupil.Username, Pin: pin}, nil
}

// ImportPupils reads an xlsx roster, one pupil per row: first name, last
// name. Rows with problems are reported individually; good rows still go in.
func (s *rosterService) ImportPupils(ctx context.Context, classID uint, r io.Reader) (*ImportResult, error) {
	class, err := s.repo.Class().GetByID(ctx, classID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrClassNotFound
		}
		return nil, fmt.Errorf("failed to load class: %w", err)
	}

	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, NewValidationError("file", "not a readable xlsx workbook", nil)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, NewValidationError("file", "workbook has no sheets", nil)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet: %w", err)
	}

	result := &ImportResult{}
	for i, row := range rows {
		rowNum := i + 1
		if rowNum == 1 && isHeaderRow(row) {
			continue
		}
		first, last := cell(row, 0), cell(row, 1)
		if first == "" || last == "" {
			result.Failures = append(result.Failures, ImportRowError{
				Row:     rowNum,
				Message: "first and last name are required",
			})
			continue
		}

		creds, err := s.issuePupil(ctx, s.repo, first, last, class)
		if err != nil {
			s.logger.Warn("Import row failed", "row", rowNum, "error", err)
			result.Failures = append(result.Failures, ImportRowError{
				Row:     rowNum,
				Message: "could not create pupil",
			})
			continue
		}
		result.Created = append(result.Created, creds)
	}

	s.logger.Info("Roster import finished",
		"class_label", class.ClassLabel,
		"created", len(result.Created),
		"failed", len(result.Failures))
	return result, nil
}

// ===== TEACHER ADMIN =====

func (s *rosterService) ListTeachers(ctx context.Context, req *ListTeachersRequest) ([]*models.Teacher, int64, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, 0, err
	}

	filters := repositories.TeacherFilters{
		Limit:  valueOr(req.Limit, 50),
		Offset: req.Offset,
	}
	if req.Role != "" {
		filters.Role = &req.Role
	}

	teachers, total, err := s.repo.Teacher().List(ctx, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list teachers: %w", err)
	}
	return teachers, total, nil
}

func (s *rosterService) SetTeacherRole(ctx context.Context, teacherID uint, role models.UserRole) error {
	if role != models.RoleTeacher && role != models.RoleAdmin {
		return NewValidationError("role", "role must be teacher or admin", role)
	}

	if _, err := s.repo.Teacher().GetByID(ctx, teacherID); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrTeacherNotFound
		}
		return fmt.Errorf("failed to load teacher: %w", err)
	}

	if err := s.repo.Teacher().UpdateRole(ctx, teacherID, role); err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}

	s.logger.Info("Teacher role changed", "teacher_id", teacherID, "role", role)
	return nil
}

func (s *rosterService) SetTeacherClasses(ctx context.Context, teacherID uint, classIDs []uint) error {
	if _, err := s.repo.Teacher().GetByID(ctx, teacherID); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrTeacherNotFound
		}
		return fmt.Errorf("failed to load teacher: %w", err)
	}
	for _, classID := range classIDs {
		if _, err := s.repo.Class().GetByID(ctx, classID); err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrClassNotFound
			}
			return fmt.Errorf("failed to load class: %w", err)
		}
	}

	if err := s.repo.Teacher().SetClasses(ctx, teacherID, classIDs); err != nil {
		return fmt.Errorf("failed to set classes: %w", err)
	}

	s.logger.Info("Teacher classes updated", "teacher_id", teacherID, "class_count", len(classIDs))
	return nil
}

// ===== HELPERS =====

func valueOr(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func isHeaderRow(row []string) bool {
	first := strings.ToLower(cell(row, 0))
	return first == "first" || first == "first name" || first == "first_name" || first == "firstname"
}
