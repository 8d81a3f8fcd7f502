package postgres

import (
	"context"
	"time"

	"github.com/bmtt-school/times-tables-service/internal/models"
	"github.com/bmtt-school/times-tables-service/internal/repositories"
	"gorm.io/gorm"
)

type InvitePostgreSQL struct {
	db *gorm.DB
}

func NewInvitePostgreSQL(db *gorm.DB) repositories.InviteRepository {
	return &InvitePostgreSQL{db: db}
}

func (i *InvitePostgreSQL) Create(ctx context.Context, invite *models.TeacherInvite) error {
	return i.db.WithContext(ctx).Create(invite).Error
}

func (i *InvitePostgreSQL) GetByToken(ctx context.Context, token string) (*models.TeacherInvite, error) {
	var invite models.TeacherInvite
	if err := i.db.WithContext(ctx).Where("token = ?", token).First(&invite).Error; err != nil {
		return nil, err
	}
	return &invite, nil
}

func (i *InvitePostgreSQL) MarkAccepted(ctx context.Context, id uint, at time.Time) error {
	return i.db.WithContext(ctx).
		Model(&models.TeacherInvite{}).
		Where("id = ?", id).
		Update("accepted_at", at).Error
}
