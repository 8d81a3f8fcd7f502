package services

import (
	"context"
	"testing"
	"time"

	"github.com/bmtt-school/times-tables-service/internal/cache"
	"github.com/bmtt-school/times-tables-service/internal/events"
	"github.com/bmtt-school/times-tables-service/internal/models"
	"github.com/bmtt-school/times-tables-service/internal/repositories"
	"github.com/bmtt-school/times-tables-service/internal/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestScoreRecords(t *testing.T) {
	records := []models.QuestionRecord{
		{IsCorrect: true, ResponseTimeMs: 2000},
		{IsCorrect: false, ResponseTimeMs: 4000},
		{IsCorrect: true, ResponseTimeMs: 3000},
	}

	score, maxScore, percent, avgMs := scoreRecords(records)
	assert.Equal(t, 2.0, score)
	assert.Equal(t, 3, maxScore)
	assert.Equal(t, 67.0, percent) // round of 66.67
	assert.Equal(t, 3000, avgMs)
}

func TestScoreRecords_Empty(t *testing.T) {
	score, maxScore, percent, avgMs := scoreRecords(nil)
	assert.Zero(t, score)
	assert.Zero(t, maxScore)
	assert.Zero(t, percent)
	assert.Zero(t, avgMs)
}

func TestGradeRecord(t *testing.T) {
	timeout := 6 * time.Second
	now := time.Now()

	t.Run("correct within time", func(t *testing.T) {
		record := &models.QuestionRecord{CorrectAnswer: 42}
		gradeRecord(record, intPtr(42), 3000, timeout, now)
		assert.True(t, record.IsCorrect)
		assert.False(t, record.TimedOut)
		assert.Equal(t, 3000, record.ResponseTimeMs)
		require.NotNil(t, record.AnsweredAt)
	})

	t.Run("wrong answer", func(t *testing.T) {
		record := &models.QuestionRecord{CorrectAnswer: 42}
		gradeRecord(record, intPtr(40), 3000, timeout, now)
		assert.False(t, record.IsCorrect)
		assert.False(t, record.TimedOut)
	})

	t.Run("too slow counts as timed out even when right", func(t *testing.T) {
		record := &models.QuestionRecord{CorrectAnswer: 42}
		gradeRecord(record, intPtr(42), 7000, timeout, now)
		assert.False(t, record.IsCorrect)
		assert.True(t, record.TimedOut)
	})

	t.Run("quick skip is incorrect but not timed out", func(t *testing.T) {
		record := &models.QuestionRecord{CorrectAnswer: 42}
		gradeRecord(record, nil, 1500, timeout, now)
		assert.False(t, record.IsCorrect)
		assert.False(t, record.TimedOut)
		assert.Nil(t, record.GivenAnswer)
	})

	t.Run("unanswered past the window times out", func(t *testing.T) {
		record := &models.QuestionRecord{CorrectAnswer: 42}
		gradeRecord(record, nil, 6001, timeout, now)
		assert.False(t, record.IsCorrect)
		assert.True(t, record.TimedOut)
		assert.Nil(t, record.GivenAnswer)
	})
}

func TestGenerateQuestions(t *testing.T) {
	class := &models.Class{MinTable: 3, MaxTable: 7, QuestionCount: 25}
	now := time.Now()

	records := generateQuestions(12, class, now)
	require.Len(t, records, 25)

	for i, record := range records {
		assert.Equal(t, i, record.QIndex)
		assert.Equal(t, uint(12), record.StudentID)
		assert.GreaterOrEqual(t, record.TableNum, 3)
		assert.LessOrEqual(t, record.TableNum, 7)
		assert.Equal(t, record.TableNum, record.Multiplicand)
		assert.GreaterOrEqual(t, record.Multiplier, 1)
		assert.LessOrEqual(t, record.Multiplier, multiplierMax)
		assert.Equal(t, record.Multiplicand*record.Multiplier, record.CorrectAnswer)
	}

	// Only the first question starts with a running timer.
	require.NotNil(t, records[0].ServedAt)
	assert.Nil(t, records[1].ServedAt)
}

func submitFixture() (*MockRepository, *models.Attempt, *models.Student, *models.Class) {
	class := &models.Class{ID: 4, ClassLabel: "M4", MinTable: 2, MaxTable: 12, QuestionCount: 3}
	student := &models.Student{ID: 7, ClassID: 4, ClassLabel: "M4", FirstName: "Sam", LastName: "Allen"}
	attempt := &models.Attempt{
		ID:        21,
		StudentID: 7,
		StartedAt: time.Now().Add(-3 * time.Minute),
		Questions: []models.QuestionRecord{
			{ID: 1, AttemptID: 21, QIndex: 0, TableNum: 3, Multiplicand: 3, Multiplier: 4, CorrectAnswer: 12},
			{ID: 2, AttemptID: 21, QIndex: 1, TableNum: 5, Multiplicand: 5, Multiplier: 6, CorrectAnswer: 30},
			{ID: 3, AttemptID: 21, QIndex: 2, TableNum: 7, Multiplicand: 7, Multiplier: 8, CorrectAnswer: 56},
		},
	}

	repo := newMockRepository()
	repo.attempt.On("GetByIDWithQuestions", mock.Anything, uint(21)).Return(attempt, nil)
	repo.student.On("GetByID", mock.Anything, uint(7)).Return(student, nil)
	repo.class.On("GetByID", mock.Anything, uint(4)).Return(class, nil)
	return repo, attempt, student, class
}

func TestAttemptService_Submit(t *testing.T) {
	ctx := context.Background()
	repo, attempt, _, _ := submitFixture()
	repo.attempt.On("UpdateQuestionRecord", mock.Anything, mock.Anything).Return(nil)
	repo.attempt.On("Update", mock.Anything, attempt).Return(nil)

	publisher := events.NewMockEventPublisher(testLogger())
	svc := NewAttemptService(repo, cache.NoopCache{}, publisher, validator.New(), testLogger())

	resp, err := svc.Submit(ctx, 7, 21, &SubmitAttemptRequest{
		AttemptID: 21,
		Answers: []SubmitAnswer{
			{Answer: intPtr(12), ResponseTimeMs: 2000},
			{Answer: intPtr(29), ResponseTimeMs: 4000},
			{Answer: intPtr(56), ResponseTimeMs: 3000},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 2.0, resp.Score)
	assert.Equal(t, 3, resp.MaxScore)
	assert.Equal(t, 67.0, resp.Percent)
	require.NotNil(t, resp.FinishedAt)

	assert.True(t, attempt.Completed)
	repo.attempt.AssertNumberOfCalls(t, "UpdateQuestionRecord", 3)

	published := publisher.GetPublishedEvents()
	require.Len(t, published, 1)
	assert.Equal(t, events.EventAttemptCompleted, published[0].Type)
	data, ok := published[0].Data.(events.AttemptCompletedEvent)
	require.True(t, ok)
	assert.Equal(t, uint(21), data.AttemptID)
	assert.Equal(t, 67.0, data.Percent)
}

func TestAttemptService_Submit_Rejections(t *testing.T) {
	ctx := context.Background()
	publisher := events.NewMockEventPublisher(testLogger())

	t.Run("wrong pupil", func(t *testing.T) {
		repo, _, _, _ := submitFixture()
		svc := NewAttemptService(repo, cache.NoopCache{}, publisher, validator.New(), testLogger())

		_, err := svc.Submit(ctx, 99, 21, &SubmitAttemptRequest{
			AttemptID: 21,
			Answers:   []SubmitAnswer{{Answer: intPtr(12)}},
		})
		assert.ErrorIs(t, err, ErrAttemptAccessDenied)
	})

	t.Run("answer count mismatch", func(t *testing.T) {
		repo, _, _, _ := submitFixture()
		svc := NewAttemptService(repo, cache.NoopCache{}, publisher, validator.New(), testLogger())

		_, err := svc.Submit(ctx, 7, 21, &SubmitAttemptRequest{
			AttemptID: 21,
			Answers:   []SubmitAnswer{{Answer: intPtr(12)}},
		})
		assert.ErrorIs(t, err, ErrAnswerCountMismatch)
	})

	t.Run("already finished", func(t *testing.T) {
		repo, attempt, _, _ := submitFixture()
		attempt.Completed = true
		svc := NewAttemptService(repo, cache.NoopCache{}, publisher, validator.New(), testLogger())

		_, err := svc.Submit(ctx, 7, 21, &SubmitAttemptRequest{
			AttemptID: 21,
			Answers:   []SubmitAnswer{{Answer: intPtr(12)}, {Answer: intPtr(30)}, {Answer: intPtr(56)}},
		})
		assert.ErrorIs(t, err, ErrAttemptAlreadyFinished)
	})
}

func TestAttemptService_ListRecent(t *testing.T) {
	ctx := context.Background()
	finished := time.Now().Add(-time.Hour)
	percent := 80.0

	repo := newMockRepository()
	repo.attempt.On("List", mock.Anything, mock.MatchedBy(func(f repositories.AttemptFilters) bool {
		return f.StudentID != nil && *f.StudentID == 7 &&
			f.Completed != nil && *f.Completed &&
			f.Limit == 20 && f.SortBy == "started_at" && f.SortOrder == "desc"
	})).Return([]*models.Attempt{
		{ID: 22, StudentID: 7, Percent: &percent, MaxScore: 25, FinishedAt: &finished},
	}, int64(1), nil)

	svc := NewAttemptService(repo, cache.NoopCache{}, events.NewMockEventPublisher(testLogger()), validator.New(), testLogger())

	results, err := svc.ListRecent(ctx, 7, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, uint(22), results[0].AttemptID)
	assert.Equal(t, 80.0, results[0].Percent)
}

func TestAttemptService_Start_BeforeTestStartDate(t *testing.T) {
	ctx := context.Background()
	future := time.Now().Add(48 * time.Hour)
	class := &models.Class{ID: 4, ClassLabel: "M4", QuestionCount: 25, TestStartDate: &future}
	student := &models.Student{ID: 7, ClassID: 4, ClassLabel: "M4"}

	repo := newMockRepository()
	repo.student.On("GetByID", mock.Anything, uint(7)).Return(student, nil)
	repo.class.On("GetByID", mock.Anything, uint(4)).Return(class, nil)

	svc := NewAttemptService(repo, cache.NoopCache{}, events.NewMockEventPublisher(testLogger()), validator.New(), testLogger())

	_, err := svc.Start(ctx, 7, &StartAttemptRequest{})
	assert.ErrorIs(t, err, ErrAttemptNotYetStartable)
}
