package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/bmtt-school/times-tables-service/internal/auth"
	"github.com/bmtt-school/times-tables-service/internal/repositories"
	"github.com/xuri/excelize/v2"
)

// ExportService renders attainment reports as xlsx workbooks.
type ExportService interface {
	ClassWorkbook(ctx context.Context, actor *auth.Session, classID uint) (*ExportResult, error)
}

type ExportResult struct {
	Filename string
	Content  *bytes.Buffer
}

type exportService struct {
	repo       repositories.Repository
	attainment AttainmentService
	logger     *slog.Logger
}

func NewExportService(repo repositories.Repository, attainment AttainmentService, logger *slog.Logger) ExportService {
	return &exportService{
		repo:       repo,
		attainment: attainment,
		logger:     logger,
	}
}

// ClassWorkbook builds a two-sheet workbook: per-pupil averages and the
// class's monthly trend. Permission checks ride on the attainment calls.
func (s *exportService) ClassWorkbook(ctx context.Context, actor *auth.Session, classID uint) (*ExportResult, error) {
	classView, err := s.attainment.ClassAttainment(ctx, actor, classID, trendDefaultMonths)
	if err != nil {
		return nil, err
	}
	class := classView.Class

	pupils, err := s.repo.Student().ListByClass(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pupils: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	const pupilSheet = "Pupils"
	f.SetSheetName("Sheet1", pupilSheet)
	headers := []interface{}{"Pupil", "Username", "Completed attempts", "Average %", "Last attempt"}
	if err := f.SetSheetRow(pupilSheet, "A1", &headers); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	row := 2
	for _, pupil := range pupils {
		attempts, err := s.repo.Attempt().ListCompletedByStudent(ctx, pupil.ID, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to load attempts: %w", err)
		}

		sum, count := 0, 0
		lastAttempt := ""
		for _, attempt := range attempts {
			pct, ok := AttemptPct(attempt)
			if !ok {
				continue
			}
			sum += pct
			count++
			lastAttempt = attemptDate(attempt).UTC().Format("2006-01-02")
		}

		values := []interface{}{pupil.FullName(), pupil.Username, count}
		if count > 0 {
			values = append(values, float64(sum)/float64(count), lastAttempt)
		} else {
			values = append(values, "", "")
		}
		cellRef, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(pupilSheet, cellRef, &values); err != nil {
			return nil, fmt.Errorf("failed to write row: %w", err)
		}
		row++
	}

	const trendSheet = "Monthly trend"
	if _, err := f.NewSheet(trendSheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	trendHeaders := []interface{}{"Month", "Average %", "Attempts"}
	if err := f.SetSheetRow(trendSheet, "A1", &trendHeaders); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	for i, point := range classView.Series {
		values := []interface{}{point.Month, point.Average, point.Attempts}
		cellRef, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(trendSheet, cellRef, &values); err != nil {
			return nil, fmt.Errorf("failed to write row: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render workbook: %w", err)
	}

	s.logger.Info("Class workbook exported", "class_label", class.ClassLabel, "pupils", len(pupils))
	return &ExportResult{
		Filename: fmt.Sprintf("attainment-%s.xlsx", class.ClassLabel),
		Content:  buf,
	}, nil
}
