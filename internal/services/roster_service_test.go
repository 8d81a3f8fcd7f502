package services

import (
	"context"
	"testing"
	"unicode"

	"github.com/bmtt-school/times-tables-service/internal/auth"
	"github.com/bmtt-school/times-tables-service/internal/models"
	"github.com/bmtt-school/times-tables-service/internal/repositories"
	"github.com/bmtt-school/times-tables-service/internal/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newRosterFixture() (*MockRepository, RosterService) {
	repo := newMockRepository()
	svc := NewRosterService(repo, validator.New(), testLogger())
	return repo, svc
}

func TestCreateClass(t *testing.T) {
	ctx := context.Background()

	t.Run("derives year group from label", func(t *testing.T) {
		repo, svc := newRosterFixture()
		repo.class.On("GetByLabel", ctx, "M4").Return(nil, gorm.ErrRecordNotFound)
		repo.class.On("Create", ctx, mock.Anything).Return(nil)

		class, err := svc.CreateClass(ctx, &CreateClassRequest{ClassLabel: "M4"})
		require.NoError(t, err)
		assert.Equal(t, 4, class.YearGroup)
		assert.Equal(t, 2, class.MinTable)
		assert.Equal(t, 12, class.MaxTable)
		assert.Equal(t, 25, class.QuestionCount)
	})

	t.Run("duplicate label conflicts", func(t *testing.T) {
		repo, svc := newRosterFixture()
		repo.class.On("GetByLabel", ctx, "M4").Return(&models.Class{ClassLabel: "M4"}, nil)

		_, err := svc.CreateClass(ctx, &CreateClassRequest{ClassLabel: "M4"})
		assert.ErrorIs(t, err, ErrClassLabelTaken)
	})

	t.Run("min table above max table", func(t *testing.T) {
		repo, svc := newRosterFixture()
		repo.class.On("GetByLabel", ctx, "M4").Return(nil, gorm.ErrRecordNotFound)

		_, err := svc.CreateClass(ctx, &CreateClassRequest{
			ClassLabel: "M4",
			MinTable:   9,
			MaxTable:   3,
		})
		require.Error(t, err)
		assert.True(t, IsValidation(err))
	})
}

func TestCreatePupil(t *testing.T) {
	ctx := context.Background()
	class := &models.Class{ID: 4, ClassLabel: "M4", YearGroup: 4}

	repo, svc := newRosterFixture()
	repo.class.On("GetByID", ctx, uint(4)).Return(class, nil)
	repo.student.On("UsernameExists", ctx, mock.Anything).Return(false, nil)
	repo.student.On("Create", ctx, mock.Anything).Return(nil)

	creds, err := svc.CreatePupil(ctx, &CreatePupilRequest{
		FirstName: "Sam",
		LastName:  "Allen",
		ClassID:   4,
	})
	require.NoError(t, err)

	assert.Equal(t, "sama1", creds.Username)
	require.Len(t, creds.Pin, 4)
	for _, r := range creds.Pin {
		assert.True(t, unicode.IsDigit(r))
	}
	// Stored hash matches the one-time PIN, clear PIN is not persisted.
	assert.True(t, auth.CheckCredential(creds.Student.PinHash, creds.Pin))
	assert.NotEqual(t, creds.Pin, creds.Student.PinHash)
	assert.Equal(t, "M4", creds.Student.ClassLabel)
}

func TestDeletePupil_CascadesAttempts(t *testing.T) {
	ctx := context.Background()
	pupil := &models.Student{ID: 7, Username: "sama1"}

	repo, svc := newRosterFixture()
	repo.student.On("GetByID", ctx, uint(7)).Return(pupil, nil)
	repo.attempt.On("DeleteByStudent", ctx, uint(7)).Return(nil)
	repo.student.On("Delete", ctx, uint(7)).Return(nil)

	require.NoError(t, svc.DeletePupil(ctx, 7))
	repo.attempt.AssertCalled(t, "DeleteByStudent", ctx, uint(7))
	repo.student.AssertCalled(t, "Delete", ctx, uint(7))
}

func TestDeleteClass_CascadesPupils(t *testing.T) {
	ctx := context.Background()
	class := &models.Class{ID: 4, ClassLabel: "M4"}
	pupils := []*models.Student{{ID: 7}, {ID: 8}}

	repo, svc := newRosterFixture()
	repo.class.On("GetByID", ctx, uint(4)).Return(class, nil)
	repo.student.On("ListByClass", ctx, uint(4)).Return(pupils, nil)
	repo.attempt.On("DeleteByStudent", ctx, mock.Anything).Return(nil)
	repo.student.On("Delete", ctx, mock.Anything).Return(nil)
	repo.teacher.On("RemoveClassLinks", ctx, uint(4)).Return(nil)
	repo.class.On("Delete", ctx, uint(4)).Return(nil)

	require.NoError(t, svc.DeleteClass(ctx, 4))
	repo.attempt.AssertNumberOfCalls(t, "DeleteByStudent", 2)
	repo.student.AssertNumberOfCalls(t, "Delete", 2)
	// Teacher links to the class must not outlive it.
	repo.teacher.AssertCalled(t, "RemoveClassLinks", ctx, uint(4))
	repo.class.AssertCalled(t, "Delete", ctx, uint(4))
}

func TestResetPin(t *testing.T) {
	ctx := context.Background()
	oldHash, _ := auth.HashCredential("1111")
	pupil := &models.Student{ID: 7, Username: "sama1", PinHash: oldHash}

	repo, svc := newRosterFixture()
	repo.student.On("GetByID", ctx, uint(7)).Return(pupil, nil)
	repo.student.On("Update", ctx, pupil).Return(nil)

	creds, err := svc.ResetPin(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, creds.Pin, 4)
	assert.NotEqual(t, oldHash, pupil.PinHash)
	assert.True(t, auth.CheckCredential(pupil.PinHash, creds.Pin))
}

func TestClassesForTeacher(t *testing.T) {
	ctx := context.Background()

	t.Run("teacher sees linked classes only", func(t *testing.T) {
		repo, svc := newRosterFixture()
		repo.teacher.On("GetClassIDs", ctx, uint(3)).Return([]uint{4, 6}, nil)
		repo.class.On("GetByID", ctx, uint(4)).Return(&models.Class{ID: 4, ClassLabel: "M4"}, nil)
		repo.class.On("GetByID", ctx, uint(6)).Return(&models.Class{ID: 6, ClassLabel: "R6"}, nil)
		repo.class.On("CountPupils", ctx, mock.Anything).Return(int64(28), nil)

		classes, err := svc.ClassesForTeacher(ctx, 3, false)
		require.NoError(t, err)
		require.Len(t, classes, 2)
		assert.Equal(t, "M4", classes[0].ClassLabel)
		assert.Equal(t, 28, classes[0].PupilCount)
	})

	t.Run("admin sees every class without link lookups", func(t *testing.T) {
		repo, svc := newRosterFixture()
		repo.class.On("List", ctx).Return([]*models.Class{{ID: 4}, {ID: 6}, {ID: 9}}, nil)
		repo.class.On("CountPupils", ctx, mock.Anything).Return(int64(0), nil)

		classes, err := svc.ClassesForTeacher(ctx, 2, true)
		require.NoError(t, err)
		assert.Len(t, classes, 3)
		repo.teacher.AssertNotCalled(t, "GetClassIDs", mock.Anything, mock.Anything)
	})
}

func TestListTeachers(t *testing.T) {
	ctx := context.Background()

	t.Run("passes role filter and default page size", func(t *testing.T) {
		repo, svc := newRosterFixture()
		repo.teacher.On("List", ctx, mock.MatchedBy(func(f repositories.TeacherFilters) bool {
			return f.Role != nil && *f.Role == "admin" && f.Limit == 50 && f.Offset == 0
		})).Return([]*models.Teacher{{ID: 2, Role: models.RoleAdmin}}, int64(1), nil)

		teachers, total, err := svc.ListTeachers(ctx, &ListTeachersRequest{Role: "admin"})
		require.NoError(t, err)
		assert.Len(t, teachers, 1)
		assert.Equal(t, int64(1), total)
	})

	t.Run("rejects unknown role", func(t *testing.T) {
		_, svc := newRosterFixture()
		_, _, err := svc.ListTeachers(ctx, &ListTeachersRequest{Role: "superuser"})
		require.Error(t, err)
		assert.True(t, IsValidation(err))
	})
}

func TestSetTeacherRole(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid role", func(t *testing.T) {
		_, svc := newRosterFixture()
		err := svc.SetTeacherRole(ctx, 3, models.UserRole("superuser"))
		require.Error(t, err)
		assert.True(t, IsValidation(err))
	})

	t.Run("promotes to admin", func(t *testing.T) {
		repo, svc := newRosterFixture()
		repo.teacher.On("GetByID", ctx, uint(3)).Return(&models.Teacher{ID: 3}, nil)
		repo.teacher.On("UpdateRole", ctx, uint(3), models.RoleAdmin).Return(nil)

		require.NoError(t, svc.SetTeacherRole(ctx, 3, models.RoleAdmin))
	})
}
