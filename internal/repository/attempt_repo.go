package repository

import (
	"fmt"

	"taskboard/internal/database"
	"taskboard/internal/models"
)

// AttemptRepository owns the attempts table. Rows are append-only: there is
// deliberately no update or delete here.
type AttemptRepository struct {
	db *database.DB
}

// NewAttemptRepository creates a new attempt repository
func NewAttemptRepository(db *database.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

// Create persists one attempt record
func (r *AttemptRepository) Create(attempt *models.Attempt) error {
	query := `
		INSERT INTO attempts (id, task_id, subject_id, correct, incorrect, time_ms, created_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query,
		attempt.ID, attempt.TaskID, attempt.SubjectID,
		attempt.Correct, attempt.Incorrect, attempt.TimeMs, attempt.CreatedAtMs)
	if err != nil {
		return fmt.Errorf("failed to create attempt: %w", err)
	}
	return nil
}

// ListByTask retrieves all attempt records for a task, oldest first.
// Records outlive their task: a deleted task's attempts remain retrievable
// by task id.
func (r *AttemptRepository) ListByTask(taskID string) ([]models.Attempt, error) {
	query := `
		SELECT id, task_id, subject_id, correct, incorrect, time_ms, created_at_ms
		FROM attempts
		WHERE task_id = ?
		ORDER BY created_at_ms ASC
	`
	rows, err := r.db.Query(query, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attempts: %w", err)
	}
	defer rows.Close()

	var attempts []models.Attempt
	for rows.Next() {
		var attempt models.Attempt
		if err := rows.Scan(
			&attempt.ID,
			&attempt.TaskID,
			&attempt.SubjectID,
			&attempt.Correct,
			&attempt.Incorrect,
			&attempt.TimeMs,
			&attempt.CreatedAtMs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		attempts = append(attempts, attempt)
	}

	return attempts, rows.Err()
}
