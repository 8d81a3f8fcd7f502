package repositories

import (
	"time"
)

// ===== SHARED FILTER STRUCTS =====

type AttemptFilters struct {
	StudentID  *uint      `json:"student_id"`
	ClassLabel *string    `json:"class_label"`
	Completed  *bool      `json:"completed"`
	DateFrom   *time.Time `json:"date_from"`
	DateTo     *time.Time `json:"date_to"`
	Limit      int        `json:"limit"`
	Offset     int        `json:"offset"`
	SortBy     string     `json:"sort_by"`    // "created_at", "started_at", "percent"
	SortOrder  string     `json:"sort_order"` // "asc", "desc"
}

// HeatmapFilters scopes the per-table accuracy aggregation. Exactly one of
// ClassLabel, YearGroup or StudentID is normally set; Since bounds the
// lookback window.
type HeatmapFilters struct {
	ClassLabel *string   `json:"class_label"`
	YearGroup  *int      `json:"year_group"`
	StudentID  *uint     `json:"student_id"`
	Since      time.Time `json:"since"`
}

type TeacherFilters struct {
	Role   *string `json:"role"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}

// ===== SHARED AGGREGATE STRUCTS =====

// TableCount is one row of the heatmap aggregation: answered-question counts
// for a single times table.
type TableCount struct {
	TableNum int `json:"table_num"`
	Correct  int `json:"correct"`
	Total    int `json:"total"`
}

// ClassAttemptStats summarizes a class's completed attempts.
type ClassAttemptStats struct {
	TotalAttempts     int     `json:"total_attempts"`
	CompletedAttempts int     `json:"completed_attempts"`
	AveragePercent    float64 `json:"average_percent"`
	AverageTimeMs     int     `json:"average_time_ms"`
}
