package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/bmtt-school/times-tables-service/internal/auth"
	"github.com/bmtt-school/times-tables-service/internal/cache"
	"github.com/bmtt-school/times-tables-service/internal/events"
	"github.com/bmtt-school/times-tables-service/internal/models"
	"github.com/bmtt-school/times-tables-service/internal/repositories"
)

const (
	// Heatmap covers every table a class can be configured to practise.
	heatmapMinTable = 1
	heatmapMaxTable = 19

	moversMinDays = 7
	moversMaxDays = 90
	moversTopN    = 10

	// A pupil whose recent average sits at or below this is a concern.
	concernThreshold = 70

	trendDefaultMonths = 12
	trendMaxMonths     = 36

	aggregationTTL = 5 * time.Minute
)

// Heatmap accuracy bands.
const (
	BandStrong     = "Strong (90-100%)"
	BandSecure     = "Secure (75-89%)"
	BandDeveloping = "Developing (50-74%)"
	BandWeak       = "Weak (25-49%)"
	BandVeryWeak   = "Very weak (0-24%)"
	BandNoData     = "No data yet"
)

// AttainmentService computes the reporting views teachers see: monthly class
// trends, per-pupil series, the times-table heatmap and the movers lists.
type AttainmentService interface {
	ClassAttainment(ctx context.Context, actor *auth.Session, classID uint, months int) (*ClassAttainmentResponse, error)
	PupilAttainment(ctx context.Context, actor *auth.Session, studentID uint) (*PupilAttainmentResponse, error)
	Heatmap(ctx context.Context, actor *auth.Session, req *HeatmapRequest) (*HeatmapResponse, error)
	Movers(ctx context.Context, actor *auth.Session, classID uint, days int) (*MoversResponse, error)
}

// ===== REQUEST / RESPONSE TYPES =====

type MonthlyPoint struct {
	Month    string  `json:"month"` // YYYY-MM, UTC
	Average  float64 `json:"average"`
	Attempts int     `json:"attempts"`
}

type ClassAttainmentResponse struct {
	Class  *models.Class                   `json:"class"`
	Stats  *repositories.ClassAttemptStats `json:"stats"`
	Series []MonthlyPoint                  `json:"series"`
}

type AttemptPoint struct {
	AttemptID uint      `json:"attempt_id"`
	Date      time.Time `json:"date"`
	Pct       int       `json:"pct"`
}

type PupilAttainmentResponse struct {
	Pupil  *models.Student `json:"pupil"`
	Series []AttemptPoint  `json:"series"`
	Months []MonthlyPoint  `json:"months"`
}

type HeatmapRequest struct {
	ClassID   *uint `json:"class_id"`
	YearGroup *int  `json:"year_group"`
	StudentID *uint `json:"student_id"`
	Days      int   `json:"days"`
}

type HeatmapCell struct {
	TableNum int    `json:"table_num"`
	Accuracy *int   `json:"accuracy"` // nil when no answered questions
	Band     string `json:"band"`
}

type HeatmapResponse struct {
	Days   int           `json:"days"`
	Tables []HeatmapCell `json:"tables"`
}

type Mover struct {
	StudentID   uint    `json:"student_id"`
	Name        string  `json:"name"`
	RecentAvg   float64 `json:"recent_avg"`
	PreviousAvg float64 `json:"previous_avg,omitempty"`
	Delta       float64 `json:"delta,omitempty"`
	RecentCount int     `json:"recent_count"`
}

type MoversResponse struct {
	Days      int     `json:"days"`
	Improvers []Mover `json:"improvers"`
	Concerns  []Mover `json:"concerns"`
}

// ===== IMPLEMENTATION =====

type attainmentService struct {
	repo      repositories.Repository
	cache     cache.CacheService
	publisher events.EventPublisher
	logger    *slog.Logger
}

func NewAttainmentService(repo repositories.Repository, cacheSvc cache.CacheService, publisher events.EventPublisher, logger *slog.Logger) AttainmentService {
	return &attainmentService{
		repo:      repo,
		cache:     cacheSvc,
		publisher: publisher,
		logger:    logger,
	}
}

// ===== PCT NORMALIZATION =====

// ToPct normalizes whatever scoring fields a row carries into a whole
// percentage. Precedence: an explicit percent, then score over max score,
// then a bare score where values at or below 1 are read as a fraction.
// Returns false when none of the fields are usable.
func ToPct(percent *float64, score *float64, maxScore int) (int, bool) {
	switch {
	case percent != nil:
		return clampPct(math.Round(*percent)), true
	case score != nil && maxScore > 0:
		return clampPct(math.Round(100 * *score / float64(maxScore))), true
	case score != nil:
		v := *score
		if v <= 1 {
			v *= 100
		}
		return clampPct(math.Round(v)), true
	default:
		return 0, false
	}
}

// AttemptPct applies ToPct to an attempt row.
func AttemptPct(attempt *models.Attempt) (int, bool) {
	return ToPct(attempt.Percent, attempt.Score, attempt.MaxScore)
}

func clampPct(v float64) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return int(v)
}

// BandFor maps a heatmap accuracy to its display band.
func BandFor(accuracy *int) string {
	if accuracy == nil {
		return BandNoData
	}
	switch {
	case *accuracy >= 90:
		return BandStrong
	case *accuracy >= 75:
		return BandSecure
	case *accuracy >= 50:
		return BandDeveloping
	case *accuracy >= 25:
		return BandWeak
	default:
		return BandVeryWeak
	}
}

// ===== CLASS TREND =====

func (s *attainmentService) ClassAttainment(ctx context.Context, actor *auth.Session, classID uint, months int) (*ClassAttainmentResponse, error) {
	class, err := s.authorizedClass(ctx, actor, classID, "view attainment")
	if err != nil {
		return nil, err
	}

	if months <= 0 {
		months = trendDefaultMonths
	}
	if months > trendMaxMonths {
		months = trendMaxMonths
	}

	cacheKey := fmt.Sprintf("attainment:%s:trend:%d", class.ClassLabel, months)
	var cached ClassAttainmentResponse
	if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
		return &cached, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("Cache read failed", "key", cacheKey, "error", err)
	}

	since := time.Now().UTC().AddDate(0, -months, 0)
	attempts, err := s.repo.Attempt().ListCompletedByClass(ctx, class.ClassLabel, &since)
	if err != nil {
		return nil, fmt.Errorf("failed to load attempts: %w", err)
	}

	stats, err := s.repo.Attempt().GetClassStats(ctx, class.ClassLabel)
	if err != nil {
		return nil, fmt.Errorf("failed to load class stats: %w", err)
	}

	resp := &ClassAttainmentResponse{
		Class:  class,
		Stats:  stats,
		Series: monthlySeries(attempts),
	}
	if err := s.cache.Set(ctx, cacheKey, resp, aggregationTTL); err != nil {
		s.logger.Warn("Cache write failed", "key", cacheKey, "error", err)
	}
	return resp, nil
}

func (s *attainmentService) PupilAttainment(ctx context.Context, actor *auth.Session, studentID uint) (*PupilAttainmentResponse, error) {
	pupil, err := s.repo.Student().GetByID(ctx, studentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrPupilNotFound
		}
		return nil, fmt.Errorf("failed to load pupil: %w", err)
	}
	if _, err := s.authorizedClass(ctx, actor, pupil.ClassID, "view pupil attainment"); err != nil {
		return nil, err
	}

	attempts, err := s.repo.Attempt().ListCompletedByStudent(ctx, studentID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load attempts: %w", err)
	}

	series := make([]AttemptPoint, 0, len(attempts))
	for _, attempt := range attempts {
		pct, ok := AttemptPct(attempt)
		if !ok {
			continue
		}
		series = append(series, AttemptPoint{
			AttemptID: attempt.ID,
			Date:      attemptDate(attempt),
			Pct:       pct,
		})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })

	return &PupilAttainmentResponse{
		Pupil:  pupil,
		Series: series,
		Months: monthlySeries(attempts),
	}, nil
}

// ===== HEATMAP =====

func (s *attainmentService) Heatmap(ctx context.Context, actor *auth.Session, req *HeatmapRequest) (*HeatmapResponse, error) {
	days := req.Days
	if days <= 0 {
		days = 30
	}

	filters := repositories.HeatmapFilters{
		Since: time.Now().UTC().AddDate(0, 0, -days),
	}
	var cacheKey string

	switch {
	case req.StudentID != nil:
		pupil, err := s.repo.Student().GetByID(ctx, *req.StudentID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return nil, ErrPupilNotFound
			}
			return nil, fmt.Errorf("failed to load pupil: %w", err)
		}
		if _, err := s.authorizedClass(ctx, actor, pupil.ClassID, "view heatmap"); err != nil {
			return nil, err
		}
		filters.StudentID = req.StudentID
	case req.ClassID != nil:
		class, err := s.authorizedClass(ctx, actor, *req.ClassID, "view heatmap")
		if err != nil {
			return nil, err
		}
		filters.ClassLabel = &class.ClassLabel
		cacheKey = fmt.Sprintf("attainment:%s:heatmap:%d", class.ClassLabel, days)
	case req.YearGroup != nil:
		// Year-wide reads cross class boundaries; staff only, link checks
		// do not apply.
		if actor.Role != models.RoleAdmin {
			return nil, NewPermissionError(actor.SubjectID, "year_group", fmt.Sprint(*req.YearGroup), "view heatmap", "admin only")
		}
		classes, err := s.repo.Class().ListByYear(ctx, *req.YearGroup)
		if err != nil {
			return nil, fmt.Errorf("failed to list classes: %w", err)
		}
		if len(classes) == 0 {
			return nil, ErrClassNotFound
		}
		filters.YearGroup = req.YearGroup
	default:
		return nil, NewValidationError("scope", "one of class_id, year_group or student_id is required", nil)
	}

	if cacheKey != "" {
		var cached HeatmapResponse
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("Cache read failed", "key", cacheKey, "error", err)
		}
	}

	counts, err := s.repo.Attempt().TableCounts(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate table counts: %w", err)
	}

	resp := &HeatmapResponse{
		Days:   days,
		Tables: buildHeatmap(counts),
	}
	if cacheKey != "" {
		if err := s.cache.Set(ctx, cacheKey, resp, aggregationTTL); err != nil {
			s.logger.Warn("Cache write failed", "key", cacheKey, "error", err)
		}
	}
	return resp, nil
}

// buildHeatmap produces a cell for every table in range, including tables
// with no answered questions at all.
func buildHeatmap(counts []repositories.TableCount) []HeatmapCell {
	byTable := make(map[int]repositories.TableCount, len(counts))
	for _, count := range counts {
		byTable[count.TableNum] = count
	}

	cells := make([]HeatmapCell, 0, heatmapMaxTable-heatmapMinTable+1)
	for table := heatmapMinTable; table <= heatmapMaxTable; table++ {
		cell := HeatmapCell{TableNum: table}
		if count, ok := byTable[table]; ok && count.Total > 0 {
			accuracy := clampPct(math.Round(100 * float64(count.Correct) / float64(count.Total)))
			cell.Accuracy = &accuracy
		}
		cell.Band = BandFor(cell.Accuracy)
		cells = append(cells, cell)
	}
	return cells
}

// ===== MOVERS =====

// Movers compares each pupil's recent window against the window before it.
// Both windows are the same length; pupils need at least two completed
// attempts in a window for its average to count.
func (s *attainmentService) Movers(ctx context.Context, actor *auth.Session, classID uint, days int) (*MoversResponse, error) {
	class, err := s.authorizedClass(ctx, actor, classID, "view movers")
	if err != nil {
		return nil, err
	}

	if days < moversMinDays {
		days = moversMinDays
	}
	if days > moversMaxDays {
		days = moversMaxDays
	}

	cacheKey := fmt.Sprintf("attainment:%s:movers:%d", class.ClassLabel, days)
	var cached MoversResponse
	if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
		return &cached, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("Cache read failed", "key", cacheKey, "error", err)
	}

	now := time.Now().UTC()
	windowStart := now.AddDate(0, 0, -days)
	previousStart := now.AddDate(0, 0, -2*days)

	attempts, err := s.repo.Attempt().ListCompletedByClass(ctx, class.ClassLabel, &previousStart)
	if err != nil {
		return nil, fmt.Errorf("failed to load attempts: %w", err)
	}
	pupils, err := s.repo.Student().ListByClass(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pupils: %w", err)
	}

	resp := computeMovers(attempts, pupils, windowStart, days)

	for _, concern := range resp.Concerns {
		event := events.NewAttemptEvent(events.EventConcernFlagged, events.ConcernFlaggedEvent{
			StudentID:  concern.StudentID,
			ClassLabel: class.ClassLabel,
			RecentAvg:  concern.RecentAvg,
			WindowDays: days,
		})
		if err := s.publisher.PublishAttemptEvent(ctx, event); err != nil {
			s.logger.Warn("Failed to publish concern event", "student_id", concern.StudentID, "error", err)
		}
	}

	if err := s.cache.Set(ctx, cacheKey, resp, aggregationTTL); err != nil {
		s.logger.Warn("Cache write failed", "key", cacheKey, "error", err)
	}
	return resp, nil
}

func computeMovers(attempts []*models.Attempt, pupils []*models.Student, windowStart time.Time, days int) *MoversResponse {
	type window struct {
		recent   []int
		previous []int
	}
	byStudent := make(map[uint]*window)
	for _, attempt := range attempts {
		pct, ok := AttemptPct(attempt)
		if !ok {
			continue
		}
		w := byStudent[attempt.StudentID]
		if w == nil {
			w = &window{}
			byStudent[attempt.StudentID] = w
		}
		if attemptDate(attempt).Before(windowStart) {
			w.previous = append(w.previous, pct)
		} else {
			w.recent = append(w.recent, pct)
		}
	}

	names := make(map[uint]string, len(pupils))
	for _, pupil := range pupils {
		names[pupil.ID] = pupil.FullName()
	}

	resp := &MoversResponse{Days: days}
	for studentID, w := range byStudent {
		if len(w.recent) < 2 {
			continue
		}
		recentAvg := mean(w.recent)

		if len(w.previous) >= 2 {
			previousAvg := mean(w.previous)
			delta := recentAvg - previousAvg
			if delta > 0 {
				resp.Improvers = append(resp.Improvers, Mover{
					StudentID:   studentID,
					Name:        names[studentID],
					RecentAvg:   recentAvg,
					PreviousAvg: previousAvg,
					Delta:       delta,
					RecentCount: len(w.recent),
				})
			}
		}

		if recentAvg <= concernThreshold {
			resp.Concerns = append(resp.Concerns, Mover{
				StudentID:   studentID,
				Name:        names[studentID],
				RecentAvg:   recentAvg,
				RecentCount: len(w.recent),
			})
		}
	}

	sort.Slice(resp.Improvers, func(i, j int) bool { return resp.Improvers[i].Delta > resp.Improvers[j].Delta })
	sort.Slice(resp.Concerns, func(i, j int) bool { return resp.Concerns[i].RecentAvg < resp.Concerns[j].RecentAvg })
	if len(resp.Improvers) > moversTopN {
		resp.Improvers = resp.Improvers[:moversTopN]
	}
	if len(resp.Concerns) > moversTopN {
		resp.Concerns = resp.Concerns[:moversTopN]
	}
	return resp
}

// ===== HELPERS =====

// authorizedClass loads a class and verifies the caller may read it. Admins
// see every class; teachers need a teacher-class link.
func (s *attainmentService) authorizedClass(ctx context.Context, actor *auth.Session, classID uint, action string) (*models.Class, error) {
	class, err := s.repo.Class().GetByID(ctx, classID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrClassNotFound
		}
		return nil, fmt.Errorf("failed to load class: %w", err)
	}

	if actor.Role == models.RoleAdmin {
		return class, nil
	}
	ok, err := s.repo.Teacher().HasClassAccess(ctx, actor.SubjectID, classID)
	if err != nil {
		return nil, fmt.Errorf("failed to check class access: %w", err)
	}
	if !ok {
		return nil, NewPermissionError(actor.SubjectID, "class", class.ClassLabel, action, "no teacher-class link")
	}
	return class, nil
}

// monthlySeries buckets completed attempts by calendar month (UTC). Months
// without attempts do not appear.
func monthlySeries(attempts []*models.Attempt) []MonthlyPoint {
	type bucket struct {
		sum   int
		count int
	}
	buckets := make(map[string]*bucket)
	for _, attempt := range attempts {
		pct, ok := AttemptPct(attempt)
		if !ok {
			continue
		}
		month := attemptDate(attempt).UTC().Format("2006-01")
		b := buckets[month]
		if b == nil {
			b = &bucket{}
			buckets[month] = b
		}
		b.sum += pct
		b.count++
	}

	series := make([]MonthlyPoint, 0, len(buckets))
	for month, b := range buckets {
		series = append(series, MonthlyPoint{
			Month:    month,
			Average:  math.Round(10*float64(b.sum)/float64(b.count)) / 10,
			Attempts: b.count,
		})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Month < series[j].Month })
	return series
}

// attemptDate is the date an attempt counts under: when it finished, falling
// back to when it started for rows missing a finish time.
func attemptDate(attempt *models.Attempt) time.Time {
	if attempt.FinishedAt != nil {
		return *attempt.FinishedAt
	}
	return attempt.StartedAt
}

func mean(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}

// classCachePattern matches every cached aggregation for a class.
func classCachePattern(classLabel string) string {
	return "attainment:" + classLabel + ":*"
}
