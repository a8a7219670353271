package service

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"taskboard/internal/models"
	"taskboard/internal/repository"
	"taskboard/internal/validation"
)

// ResultService ingests completion telemetry and aggregates it into
// per-task statistics.
type ResultService struct {
	attemptRepo *repository.AttemptRepository
}

// NewResultService creates a new result service
func NewResultService(attemptRepo *repository.AttemptRepository) *ResultService {
	return &ResultService{attemptRepo: attemptRepo}
}

// RecordResult persists one completion event as an immutable attempt
// record. Telemetry is untrusted input from embedded content: negative
// values are rejected before any write. Duplicate events are not detected;
// two identical events create two records and both count toward statistics.
func (s *ResultService) RecordResult(taskID, subjectID string, correct, incorrect int, timeMs int64) (*models.Attempt, error) {
	if err := validation.ValidateTelemetry(correct, incorrect, timeMs); err != nil {
		return nil, err
	}

	attempt := &models.Attempt{
		ID:          uuid.New().String(),
		TaskID:      taskID,
		SubjectID:   subjectID,
		Correct:     correct,
		Incorrect:   incorrect,
		TimeMs:      timeMs,
		CreatedAtMs: time.Now().UnixMilli(),
	}

	if err := s.attemptRepo.Create(attempt); err != nil {
		return nil, fmt.Errorf("failed to record attempt: %w", err)
	}
	return attempt, nil
}

// Stats recomputes the statistics for a task from all of its attempt
// records. Zero attempts yields all-zero statistics, a valid state.
func (s *ResultService) Stats(taskID string) (models.TaskStats, error) {
	attempts, err := s.attemptRepo.ListByTask(taskID)
	if err != nil {
		return models.TaskStats{}, err
	}
	return Summarize(attempts), nil
}

// Summarize folds attempt records into task statistics. The average
// elapsed time is round(sum/count) with halves rounded away from zero.
func Summarize(attempts []models.Attempt) models.TaskStats {
	stats := models.TaskStats{Attempts: len(attempts)}
	if len(attempts) == 0 {
		return stats
	}

	var totalTime int64
	for _, attempt := range attempts {
		stats.TotalCorrect += attempt.Correct
		stats.TotalIncorrect += attempt.Incorrect
		totalTime += attempt.TimeMs
	}
	stats.AvgTimeMs = int64(math.Round(float64(totalTime) / float64(len(attempts))))

	return stats
}
