package models

// Attempt is one completion event reported by the embedded task content.
// Records are append-only: never updated, never deleted, never deduplicated.
// Deleting a task does not cascade to its attempts.
type Attempt struct {
	ID          string
	TaskID      string
	SubjectID   string // learner subject id
	Correct     int
	Incorrect   int
	TimeMs      int64
	CreatedAtMs int64
}

// TaskStats summarizes all attempts for a task. Derived on demand, never
// persisted.
type TaskStats struct {
	Attempts       int
	TotalCorrect   int
	TotalIncorrect int
	AvgTimeMs      int64
}
