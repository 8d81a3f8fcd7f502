package postgres

import (
	"context"

	"github.com/bmtt-school/times-tables-service/internal/models"
	"github.com/bmtt-school/times-tables-service/internal/repositories"
	"gorm.io/gorm"
)

type ClassPostgreSQL struct {
	db *gorm.DB
}

func NewClassPostgreSQL(db *gorm.DB) repositories.ClassRepository {
	return &ClassPostgreSQL{db: db}
}

func (c *ClassPostgreSQL) Create(ctx context.Context, class *models.Class) error {
	return c.db.WithContext(ctx).Create(class).Error
}

func (c *ClassPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Class, error) {
	var class models.Class
	if err := c.db.WithContext(ctx).First(&class, id).Error; err != nil {
		return nil, err
	}
	return &class, nil
}

func (c *ClassPostgreSQL) GetByLabel(ctx context.Context, label string) (*models.Class, error) {
	var class models.Class
	if err := c.db.WithContext(ctx).Where("class_label = ?", label).First(&class).Error; err != nil {
		return nil, err
	}
	return &class, nil
}

func (c *ClassPostgreSQL) List(ctx context.Context) ([]*models.Class, error) {
	var classes []*models.Class
	if err := c.db.WithContext(ctx).Order("class_label asc").Find(&classes).Error; err != nil {
		return nil, err
	}
	return classes, nil
}

func (c *ClassPostgreSQL) ListByYear(ctx context.Context, yearGroup int) ([]*models.Class, error) {
	var classes []*models.Class
	if err := c.db.WithContext(ctx).
		Where("year_group = ?", yearGroup).
		Order("class_label asc").
		Find(&classes).Error; err != nil {
		return nil, err
	}
	return classes, nil
}

func (c *ClassPostgreSQL) Update(ctx context.Context, class *models.Class) error {
	return c.db.WithContext(ctx).Save(class).Error
}

func (c *ClassPostgreSQL) Delete(ctx context.Context, id uint) error {
	return c.db.WithContext(ctx).Delete(&models.Class{}, id).Error
}

func (c *ClassPostgreSQL) CountPupils(ctx context.Context, id uint) (int64, error) {
	var count int64
	err := c.db.WithContext(ctx).
		Model(&models.Student{}).
		Where("class_id = ?", id).
		Count(&count).Error
	return count, err
}
