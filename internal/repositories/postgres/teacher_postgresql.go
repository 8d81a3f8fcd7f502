package postgres

import (
	"context"

	"github.com/bmtt-school/times-tables-service/internal/models"
	"github.com/bmtt-school/times-tables-service/internal/repositories"
	"gorm.io/gorm"
)

type TeacherPostgreSQL struct {
	db *gorm.DB
}

func NewTeacherPostgreSQL(db *gorm.DB) repositories.TeacherRepository {
	return &TeacherPostgreSQL{db: db}
}

func (t *TeacherPostgreSQL) Create(ctx context.Context, teacher *models.Teacher) error {
	return t.db.WithContext(ctx).Create(teacher).Error
}

func (t *TeacherPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Teacher, error) {
	var teacher models.Teacher
	if err := t.db.WithContext(ctx).First(&teacher, id).Error; err != nil {
		return nil, err
	}
	return &teacher, nil
}

func (t *TeacherPostgreSQL) GetByEmail(ctx context.Context, email string) (*models.Teacher, error) {
	var teacher models.Teacher
	if err := t.db.WithContext(ctx).Where("email = ?", email).First(&teacher).Error; err != nil {
		return nil, err
	}
	return &teacher, nil
}

func (t *TeacherPostgreSQL) Update(ctx context.Context, teacher *models.Teacher) error {
	return t.db.WithContext(ctx).Save(teacher).Error
}

func (t *TeacherPostgreSQL) UpdateRole(ctx context.Context, id uint, role models.UserRole) error {
	return t.db.WithContext(ctx).Model(&models.Teacher{}).Where("id = ?", id).Update("role", role).Error
}

func (t *TeacherPostgreSQL) List(ctx context.Context, filters repositories.TeacherFilters) ([]*models.Teacher, int64, error) {
	var teachers []*models.Teacher
	var total int64

	query := t.db.WithContext(ctx).Model(&models.Teacher{})
	if filters.Role != nil {
		query = query.Where("role = ?", *filters.Role)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filters.Limit, filters.Offset)
	if err := query.Order("full_name asc").Find(&teachers).Error; err != nil {
		return nil, 0, err
	}

	return teachers, total, nil
}

// SetClasses replaces a teacher's class links in one transaction.
func (t *TeacherPostgreSQL) SetClasses(ctx context.Context, teacherID uint, classIDs []uint) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("teacher_id = ?", teacherID).Delete(&models.TeacherClass{}).Error; err != nil {
			return err
		}
		for _, classID := range classIDs {
			link := models.TeacherClass{TeacherID: teacherID, ClassID: classID}
			if err := tx.Create(&link).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (t *TeacherPostgreSQL) HasClassAccess(ctx context.Context, teacherID, classID uint) (bool, error) {
	var count int64
	if err := t.db.WithContext(ctx).
		Model(&models.TeacherClass{}).
		Where("teacher_id = ? AND class_id = ?", teacherID, classID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// RemoveClassLinks clears every teacher link to a class, used when the class
// itself is deleted.
func (t *TeacherPostgreSQL) RemoveClassLinks(ctx context.Context, classID uint) error {
	return t.db.WithContext(ctx).Where("class_id = ?", classID).Delete(&models.TeacherClass{}).Error
}

func (t *TeacherPostgreSQL) GetClassIDs(ctx context.Context, teacherID uint) ([]uint, error) {
	var ids []uint
	if err := t.db.WithContext(ctx).
		Model(&models.TeacherClass{}).
		Where("teacher_id = ?", teacherID).
		Pluck("class_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
