package postgres

import (
	"context"
	"time"

	"github.com/bmtt-school/times-tables-service/internal/models"
	"github.com/bmtt-school/times-tables-service/internal/repositories"
	"gorm.io/gorm"
)

type AttemptPostgreSQL struct {
	db *gorm.DB
}

func NewAttemptPostgreSQL(db *gorm.DB) repositories.AttemptRepository {
	return &AttemptPostgreSQL{db: db}
}

func (a *AttemptPostgreSQL) Create(ctx context.Context, attempt *models.Attempt) error {
	return a.db.WithContext(ctx).Create(attempt).Error
}

func (a *AttemptPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Attempt, error) {
	var attempt models.Attempt
	if err := a.db.WithContext(ctx).First(&attempt, id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) GetByIDWithQuestions(ctx context.Context, id uint) (*models.Attempt, error) {
	var attempt models.Attempt
	if err := a.db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("q_index asc")
		}).
		First(&attempt, id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) Update(ctx context.Context, attempt *models.Attempt) error {
	return a.db.WithContext(ctx).Save(attempt).Error
}

func (a *AttemptPostgreSQL) List(ctx context.Context, filters repositories.AttemptFilters) ([]*models.Attempt, int64, error) {
	var attempts []*models.Attempt
	var total int64

	query := a.applyFilters(a.db.WithContext(ctx).Model(&models.Attempt{}), filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applySort(query, filters.SortBy, filters.SortOrder)
	query = applyPagination(query, filters.Limit, filters.Offset)

	if err := query.Find(&attempts).Error; err != nil {
		return nil, 0, err
	}

	return attempts, total, nil
}

func (a *AttemptPostgreSQL) ListCompletedByStudent(ctx context.Context, studentID uint, since *time.Time) ([]*models.Attempt, error) {
	var attempts []*models.Attempt
	query := a.db.WithContext(ctx).
		Where("student_id = ? AND completed = true", studentID)
	if since != nil {
		query = query.Where("created_at >= ?", *since)
	}
	if err := query.Order("created_at asc").Find(&attempts).Error; err != nil {
		return nil, err
	}
	return attempts, nil
}

func (a *AttemptPostgreSQL) ListCompletedByClass(ctx context.Context, classLabel string, since *time.Time) ([]*models.Attempt, error) {
	var attempts []*models.Attempt
	query := a.db.WithContext(ctx).
		Where("class_label = ? AND completed = true", classLabel)
	if since != nil {
		query = query.Where("created_at >= ?", *since)
	}
	if err := query.Order("created_at asc").Find(&attempts).Error; err != nil {
		return nil, err
	}
	return attempts, nil
}

func (a *AttemptPostgreSQL) GetClassStats(ctx context.Context, classLabel string) (*repositories.ClassAttemptStats, error) {
	var stats repositories.ClassAttemptStats

	var total int64
	if err := a.db.WithContext(ctx).
		Model(&models.Attempt{}).
		Where("class_label = ?", classLabel).
		Count(&total).Error; err != nil {
		return nil, err
	}
	stats.TotalAttempts = int(total)

	var row struct {
		Completed  int64
		AvgPercent *float64
		AvgTimeMs  *float64
	}
	if err := a.db.WithContext(ctx).
		Model(&models.Attempt{}).
		Where("class_label = ? AND completed = true", classLabel).
		Select("COUNT(*) as completed, AVG(percent) as avg_percent, AVG(avg_response_time_ms) as avg_time_ms").
		Scan(&row).Error; err != nil {
		return nil, err
	}

	stats.CompletedAttempts = int(row.Completed)
	if row.AvgPercent != nil {
		stats.AveragePercent = *row.AvgPercent
	}
	if row.AvgTimeMs != nil {
		stats.AverageTimeMs = int(*row.AvgTimeMs)
	}

	return &stats, nil
}

// ===== QUESTION RECORDS =====

func (a *AttemptPostgreSQL) CreateQuestionRecords(ctx context.Context, records []*models.QuestionRecord) error {
	if len(records) == 0 {
		return nil
	}
	return a.db.WithContext(ctx).Create(records).Error
}

func (a *AttemptPostgreSQL) UpdateQuestionRecord(ctx context.Context, record *models.QuestionRecord) error {
	return a.db.WithContext(ctx).Save(record).Error
}

func (a *AttemptPostgreSQL) FirstUnanswered(ctx context.Context, attemptID uint) (*models.QuestionRecord, error) {
	var record models.QuestionRecord
	if err := a.db.WithContext(ctx).
		Where("attempt_id = ? AND answered_at IS NULL", attemptID).
		Order("q_index asc").
		First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (a *AttemptPostgreSQL) CountUnanswered(ctx context.Context, attemptID uint) (int64, error) {
	var count int64
	err := a.db.WithContext(ctx).
		Model(&models.QuestionRecord{}).
		Where("attempt_id = ? AND answered_at IS NULL", attemptID).
		Count(&count).Error
	return count, err
}

// TableCounts aggregates answered question records per times table inside
// the lookback window, scoped to a class, a year group or a single pupil.
func (a *AttemptPostgreSQL) TableCounts(ctx context.Context, filters repositories.HeatmapFilters) ([]repositories.TableCount, error) {
	query := a.db.WithContext(ctx).
		Table("question_records qr").
		Select("qr.table_num, SUM(CASE WHEN qr.is_correct THEN 1 ELSE 0 END) AS correct, COUNT(*) AS total").
		Where("qr.answered_at IS NOT NULL").
		Where("qr.created_at >= ?", filters.Since)

	switch {
	case filters.StudentID != nil:
		query = query.Where("qr.student_id = ?", *filters.StudentID)
	case filters.ClassLabel != nil:
		query = query.
			Joins("JOIN students s ON s.id = qr.student_id").
			Where("s.class_label = ?", *filters.ClassLabel)
	case filters.YearGroup != nil:
		query = query.
			Joins("JOIN students s ON s.id = qr.student_id").
			Joins("JOIN classes c ON c.id = s.class_id").
			Where("c.year_group = ?", *filters.YearGroup)
	}

	var counts []repositories.TableCount
	if err := query.
		Group("qr.table_num").
		Order("qr.table_num asc").
		Scan(&counts).Error; err != nil {
		return nil, err
	}

	return counts, nil
}

// DeleteByStudent removes a pupil's attempts and question records. Callers
// run this inside the same transaction as the student delete.
func (a *AttemptPostgreSQL) DeleteByStudent(ctx context.Context, studentID uint) error {
	if err := a.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Delete(&models.QuestionRecord{}).Error; err != nil {
		return err
	}
	return a.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Delete(&models.Attempt{}).Error
}

func (a *AttemptPostgreSQL) applyFilters(query *gorm.DB, filters repositories.AttemptFilters) *gorm.DB {
	if filters.StudentID != nil {
		query = query.Where("student_id = ?", *filters.StudentID)
	}
	if filters.ClassLabel != nil {
		query = query.Where("class_label = ?", *filters.ClassLabel)
	}
	if filters.Completed != nil {
		query = query.Where("completed = ?", *filters.Completed)
	}
	if filters.DateFrom != nil {
		query = query.Where("created_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("created_at <= ?", *filters.DateTo)
	}
	return query
}
