package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/bmtt-school/times-tables-service/internal/cache"
	"github.com/bmtt-school/times-tables-service/internal/events"
	"github.com/bmtt-school/times-tables-service/internal/models"
	"github.com/bmtt-school/times-tables-service/internal/repositories"
	"github.com/bmtt-school/times-tables-service/internal/validator"
)

// multiplierMax bounds the second factor of every generated question.
const multiplierMax = 12

const (
	recentAttemptsDefault = 20
	recentAttemptsMax     = 100
)

// AttemptService owns the quiz lifecycle: question generation, the bulk
// submit flow, the per-question polling flow and result retrieval.
type AttemptService interface {
	Start(ctx context.Context, studentID uint, req *StartAttemptRequest) (*StartAttemptResponse, error)
	Submit(ctx context.Context, studentID, attemptID uint, req *SubmitAttemptRequest) (*AttemptResultResponse, error)
	Answer(ctx context.Context, studentID, attemptID uint, req *AnswerRequest) (*AnswerResponse, error)
	GetResult(ctx context.Context, studentID, attemptID uint) (*AttemptResultResponse, error)
	ListRecent(ctx context.Context, studentID uint, limit int) ([]*AttemptResultResponse, error)
}

// ===== REQUEST / RESPONSE TYPES =====

type StartAttemptRequest struct {
	ClientInfo map[string]string `json:"client_info"`
}

type QuestionPrompt struct {
	QIndex       int `json:"q_index"`
	Multiplicand int `json:"multiplicand"`
	Multiplier   int `json:"multiplier"`
}

type StartAttemptResponse struct {
	AttemptID          uint             `json:"attempt_id"`
	StartedAt          time.Time        `json:"started_at"`
	SecondsPerQuestion int              `json:"seconds_per_question"`
	Questions          []QuestionPrompt `json:"questions"`
}

type SubmitAnswer struct {
	Answer         *int `json:"answer"`
	ResponseTimeMs int  `json:"response_time_ms" validate:"min=0"`
}

type SubmitAttemptRequest struct {
	AttemptID  uint           `json:"attempt_id" validate:"required"`
	FinishedAt *time.Time     `json:"finished_at"`
	Answers    []SubmitAnswer `json:"answers" validate:"required,min=1"`
}

type AnswerRequest struct {
	Answer         *int `json:"answer"`
	ResponseTimeMs int  `json:"response_time_ms" validate:"min=0"`
}

type AnswerResponse struct {
	Correct  bool                   `json:"correct"`
	TimedOut bool                   `json:"timed_out"`
	Finished bool                   `json:"finished"`
	Attempt  *AttemptResultResponse `json:"attempt,omitempty"`
}

type AttemptResultResponse struct {
	AttemptID         uint       `json:"attempt_id"`
	Score             float64    `json:"score"`
	MaxScore          int        `json:"max_score"`
	Percent           float64    `json:"percent"`
	AvgResponseTimeMs int        `json:"avg_response_time_ms"`
	StartedAt         time.Time  `json:"started_at"`
	FinishedAt        *time.Time `json:"finished_at"`
}

// ===== IMPLEMENTATION =====

type attemptService struct {
	repo      repositories.TransactionRepository
	cache     cache.CacheService
	publisher events.EventPublisher
	validator *validator.Validator
	logger    *slog.Logger
}

func NewAttemptService(
	repo repositories.TransactionRepository,
	cacheSvc cache.CacheService,
	publisher events.EventPublisher,
	v *validator.Validator,
	logger *slog.Logger,
) AttemptService {
	return &attemptService{
		repo:      repo,
		cache:     cacheSvc,
		publisher: publisher,
		validator: v,
		logger:    logger,
	}
}

func (s *attemptService) Start(ctx context.Context, studentID uint, req *StartAttemptRequest) (resp *StartAttemptResponse, err error) {
	student, err := s.repo.Student().GetByID(ctx, studentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrPupilNotFound
		}
		return nil, fmt.Errorf("failed to load pupil: %w", err)
	}

	class, err := s.repo.Class().GetByID(ctx, student.ClassID)
	if err != nil {
		return nil, fmt.Errorf("failed to load class: %w", err)
	}

	now := time.Now()
	if class.TestStartDate != nil && now.Before(*class.TestStartDate) {
		return nil, ErrAttemptNotYetStartable
	}

	attempt := &models.Attempt{
		StudentID:  student.ID,
		ClassLabel: student.ClassLabel,
		StartedAt:  now,
		MaxScore:   class.QuestionCount,
	}
	if len(req.ClientInfo) > 0 {
		if raw, merr := json.Marshal(req.ClientInfo); merr == nil {
			attempt.ClientInfo = raw
		}
	}

	records := generateQuestions(student.ID, class, now)

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.(repositories.TransactionRepository).Rollback(ctx)
		}
	}()

	if err = tx.Attempt().Create(ctx, attempt); err != nil {
		return nil, fmt.Errorf("failed to create attempt: %w", err)
	}
	for _, record := range records {
		record.AttemptID = attempt.ID
	}
	if err = tx.Attempt().CreateQuestionRecords(ctx, records); err != nil {
		return nil, fmt.Errorf("failed to create question records: %w", err)
	}
	if err = tx.(repositories.TransactionRepository).Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	prompts := make([]QuestionPrompt, len(records))
	for i, record := range records {
		prompts[i] = QuestionPrompt{
			QIndex:       record.QIndex,
			Multiplicand: record.Multiplicand,
			Multiplier:   record.Multiplier,
		}
	}

	s.logger.Info("Attempt started",
		"attempt_id", attempt.ID,
		"student_id", student.ID,
		"class_label", student.ClassLabel,
		"questions", len(prompts))

	return &StartAttemptResponse{
		AttemptID:          attempt.ID,
		StartedAt:          attempt.StartedAt,
		SecondsPerQuestion: int(class.QuestionTimeout().Seconds()),
		Questions:          prompts,
	}, nil
}

// Submit grades a whole attempt in one transaction: every answer row and the
// finishing attempt update land together or not at all.
func (s *attemptService) Submit(ctx context.Context, studentID, attemptID uint, req *SubmitAttemptRequest) (resp *AttemptResultResponse, err error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	attempt, class, err := s.loadOwnedAttempt(ctx, studentID, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Completed {
		return nil, ErrAttemptAlreadyFinished
	}
	if len(req.Answers) != len(attempt.Questions) {
		return nil, ErrAnswerCountMismatch
	}

	now := time.Now()
	timeout := class.QuestionTimeout()

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.(repositories.TransactionRepository).Rollback(ctx)
		}
	}()

	for i := range attempt.Questions {
		record := &attempt.Questions[i]
		answer := req.Answers[i]
		gradeRecord(record, answer.Answer, answer.ResponseTimeMs, timeout, now)
		if err = tx.Attempt().UpdateQuestionRecord(ctx, record); err != nil {
			return nil, fmt.Errorf("failed to update question record: %w", err)
		}
	}

	finishedAt := now
	if req.FinishedAt != nil {
		finishedAt = *req.FinishedAt
	}
	finalizeAttempt(attempt, finishedAt)
	if err = tx.Attempt().Update(ctx, attempt); err != nil {
		return nil, fmt.Errorf("failed to update attempt: %w", err)
	}
	if err = tx.(repositories.TransactionRepository).Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.afterCompletion(ctx, attempt)
	return resultResponse(attempt), nil
}

// Answer fills the first unanswered question of the attempt. Elapsed time is
// measured against served_at when the record carries one, otherwise the
// client-reported duration is used.
func (s *attemptService) Answer(ctx context.Context, studentID, attemptID uint, req *AnswerRequest) (*AnswerResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	attempt, class, err := s.loadOwnedAttempt(ctx, studentID, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Completed {
		return nil, ErrAttemptAlreadyFinished
	}

	record, err := s.repo.Attempt().FirstUnanswered(ctx, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrNoQuestionsRemaining
		}
		return nil, fmt.Errorf("failed to load question: %w", err)
	}

	now := time.Now()
	elapsedMs := req.ResponseTimeMs
	if record.ServedAt != nil {
		elapsedMs = int(now.Sub(*record.ServedAt).Milliseconds())
	}
	gradeRecord(record, req.Answer, elapsedMs, class.QuestionTimeout(), now)
	if err := s.repo.Attempt().UpdateQuestionRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to update question record: %w", err)
	}

	remaining, err := s.repo.Attempt().CountUnanswered(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to count remaining questions: %w", err)
	}

	resp := &AnswerResponse{
		Correct:  record.IsCorrect,
		TimedOut: record.TimedOut,
	}
	if remaining > 0 {
		// Serve the next question so its timer starts now.
		next, err := s.repo.Attempt().FirstUnanswered(ctx, attemptID)
		if err != nil {
			return nil, fmt.Errorf("failed to load next question: %w", err)
		}
		next.ServedAt = &now
		if err := s.repo.Attempt().UpdateQuestionRecord(ctx, next); err != nil {
			return nil, fmt.Errorf("failed to serve next question: %w", err)
		}
		return resp, nil
	}

	full, err := s.repo.Attempt().GetByIDWithQuestions(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload attempt: %w", err)
	}
	finalizeAttempt(full, now)
	if err := s.repo.Attempt().Update(ctx, full); err != nil {
		return nil, fmt.Errorf("failed to finish attempt: %w", err)
	}

	s.afterCompletion(ctx, full)
	resp.Finished = true
	resp.Attempt = resultResponse(full)
	return resp, nil
}

func (s *attemptService) GetResult(ctx context.Context, studentID, attemptID uint) (*AttemptResultResponse, error) {
	attempt, _, err := s.loadOwnedAttempt(ctx, studentID, attemptID)
	if err != nil {
		return nil, err
	}
	if !attempt.Completed {
		return nil, ErrAttemptNotFound
	}
	return resultResponse(attempt), nil
}

// ListRecent returns the pupil's completed attempts, newest first.
func (s *attemptService) ListRecent(ctx context.Context, studentID uint, limit int) ([]*AttemptResultResponse, error) {
	if limit <= 0 {
		limit = recentAttemptsDefault
	}
	if limit > recentAttemptsMax {
		limit = recentAttemptsMax
	}

	completed := true
	attempts, _, err := s.repo.Attempt().List(ctx, repositories.AttemptFilters{
		StudentID: &studentID,
		Completed: &completed,
		Limit:     limit,
		SortBy:    "started_at",
		SortOrder: "desc",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}

	results := make([]*AttemptResultResponse, len(attempts))
	for i, attempt := range attempts {
		results[i] = resultResponse(attempt)
	}
	return results, nil
}

// ===== HELPERS =====

func (s *attemptService) loadOwnedAttempt(ctx context.Context, studentID, attemptID uint) (*models.Attempt, *models.Class, error) {
	attempt, err := s.repo.Attempt().GetByIDWithQuestions(ctx, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, nil, ErrAttemptNotFound
		}
		return nil, nil, fmt.Errorf("failed to load attempt: %w", err)
	}
	if attempt.StudentID != studentID {
		return nil, nil, ErrAttemptAccessDenied
	}

	student, err := s.repo.Student().GetByID(ctx, studentID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load pupil: %w", err)
	}
	class, err := s.repo.Class().GetByID(ctx, student.ClassID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load class: %w", err)
	}
	return attempt, class, nil
}

// afterCompletion publishes events and drops stale class aggregations. Both
// are best effort; the attempt is already committed.
func (s *attemptService) afterCompletion(ctx context.Context, attempt *models.Attempt) {
	percent := 0.0
	if attempt.Percent != nil {
		percent = *attempt.Percent
	}
	score := 0.0
	if attempt.Score != nil {
		score = *attempt.Score
	}

	event := events.NewAttemptEvent(events.EventAttemptCompleted, events.AttemptCompletedEvent{
		AttemptID:  attempt.ID,
		StudentID:  attempt.StudentID,
		ClassLabel: attempt.ClassLabel,
		Score:      score,
		MaxScore:   attempt.MaxScore,
		Percent:    percent,
	})
	if err := s.publisher.PublishAttemptEvent(ctx, event); err != nil {
		s.logger.Warn("Failed to publish completion event", "attempt_id", attempt.ID, "error", err)
	}

	if err := s.cache.DeletePattern(ctx, classCachePattern(attempt.ClassLabel)); err != nil {
		s.logger.Warn("Failed to invalidate class cache", "class_label", attempt.ClassLabel, "error", err)
	}

	s.logger.Info("Attempt completed",
		"attempt_id", attempt.ID,
		"student_id", attempt.StudentID,
		"percent", percent)
}

// generateQuestions draws the attempt's questions from the class's table
// range. The multiplicand carries the times table; the multiplier is 1..12.
func generateQuestions(studentID uint, class *models.Class, servedAt time.Time) []*models.QuestionRecord {
	minTable, maxTable := class.MinTable, class.MaxTable
	if minTable < 1 {
		minTable = 1
	}
	if maxTable < minTable {
		maxTable = minTable
	}
	count := class.QuestionCount
	if count < 1 {
		count = 1
	}

	records := make([]*models.QuestionRecord, count)
	for i := 0; i < count; i++ {
		table := minTable + rand.IntN(maxTable-minTable+1)
		multiplier := 1 + rand.IntN(multiplierMax)
		record := &models.QuestionRecord{
			StudentID:     studentID,
			QIndex:        i,
			TableNum:      table,
			Multiplicand:  table,
			Multiplier:    multiplier,
			CorrectAnswer: table * multiplier,
		}
		if i == 0 {
			// First question is on screen as soon as the attempt
			// starts.
			served := servedAt
			record.ServedAt = &served
		}
		records[i] = record
	}
	return records
}

// gradeRecord fills in the answer fields of one question record. Timing out
// is purely an elapsed-time condition; a question skipped inside the window
// stays un-timed-out. Both score as incorrect.
func gradeRecord(record *models.QuestionRecord, answer *int, elapsedMs int, timeout time.Duration, at time.Time) {
	record.GivenAnswer = answer
	record.ResponseTimeMs = elapsedMs
	record.AnsweredAt = &at
	record.TimedOut = time.Duration(elapsedMs)*time.Millisecond > timeout
	record.IsCorrect = !record.TimedOut && answer != nil && *answer == record.CorrectAnswer
}

// scoreRecords computes the attempt score from its graded questions.
// Percent is rounded to the nearest whole number.
func scoreRecords(records []models.QuestionRecord) (score float64, maxScore int, percent float64, avgMs int) {
	maxScore = len(records)
	if maxScore == 0 {
		return 0, 0, 0, 0
	}

	correct := 0
	totalMs := 0
	for _, record := range records {
		if record.IsCorrect {
			correct++
		}
		totalMs += record.ResponseTimeMs
	}

	score = float64(correct)
	percent = math.Round(100 * float64(correct) / float64(maxScore))
	avgMs = totalMs / maxScore
	return score, maxScore, percent, avgMs
}

func finalizeAttempt(attempt *models.Attempt, finishedAt time.Time) {
	score, maxScore, percent, avgMs := scoreRecords(attempt.Questions)
	attempt.Score = &score
	attempt.MaxScore = maxScore
	attempt.Percent = &percent
	attempt.AvgResponseTimeMs = avgMs
	attempt.Completed = true
	attempt.FinishedAt = &finishedAt
}

func resultResponse(attempt *models.Attempt) *AttemptResultResponse {
	resp := &AttemptResultResponse{
		AttemptID:  attempt.ID,
		MaxScore:   attempt.MaxScore,
		StartedAt:  attempt.StartedAt,
		FinishedAt: attempt.FinishedAt,
	}
	if attempt.Score != nil {
		resp.Score = *attempt.Score
	}
	if attempt.Percent != nil {
		resp.Percent = *attempt.Percent
	}
	resp.AvgResponseTimeMs = attempt.AvgResponseTimeMs
	return resp
}
