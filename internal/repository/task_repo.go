package repository

import (
	"database/sql"
	"fmt"
	"sort"

	"taskboard/internal/database"
	"taskboard/internal/models"
)

// TaskRepository owns the tasks and task_recipients tables. The recipient
// set is only ever replaced wholesale: delete-all plus insert inside one
// transaction, so readers never observe a half-replaced set.
type TaskRepository struct {
	db *database.DB
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *database.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create inserts a task and its recipient set
func (r *TaskRepository) Create(task *models.Task) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	query := `
		INSERT INTO tasks (id, title, description, content_url, owner_id, created_at_ms)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	if _, err := tx.Exec(query, task.ID, task.Title, task.Description, task.ContentURL, task.OwnerID, task.CreatedAtMs); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to create task: %w", err)
	}

	if err := insertRecipients(tx, task.ID, task.Recipients); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit task: %w", err)
	}
	return nil
}

// GetByID retrieves a task with its recipient set, or nil if absent
func (r *TaskRepository) GetByID(taskID string) (*models.Task, error) {
	query := `
		SELECT id, title, description, content_url, owner_id, created_at_ms
		FROM tasks
		WHERE id = ?
	`
	task := &models.Task{}
	err := r.db.QueryRow(query, taskID).Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.ContentURL,
		&task.OwnerID,
		&task.CreatedAtMs,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	recipients, err := r.recipientsFor(task.ID)
	if err != nil {
		return nil, err
	}
	task.Recipients = recipients

	return task, nil
}

// Update replaces title, description, content URL and the whole recipient
// set. Owner and creation timestamp are immutable and not touched.
func (r *TaskRepository) Update(task *models.Task) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	query := `
		UPDATE tasks
		SET title = ?, description = ?, content_url = ?
		WHERE id = ?
	`
	if _, err := tx.Exec(query, task.Title, task.Description, task.ContentURL, task.ID); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to update task: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM task_recipients WHERE task_id = ?", task.ID); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to clear recipients: %w", err)
	}
	if err := insertRecipients(tx, task.ID, task.Recipients); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit task update: %w", err)
	}
	return nil
}

// Delete removes a task and its recipient rows. Attempt records are left in
// place; there is no cascade to historical results.
func (r *TaskRepository) Delete(taskID string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM task_recipients WHERE task_id = ?", taskID); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to delete recipients: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM tasks WHERE id = ?", taskID); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit task delete: %w", err)
	}
	return nil
}

// ListByOwner retrieves all tasks created by a guardian, newest first
func (r *TaskRepository) ListByOwner(ownerID string) ([]models.Task, error) {
	query := `
		SELECT id, title, description, content_url, owner_id, created_at_ms
		FROM tasks
		WHERE owner_id = ?
		ORDER BY created_at_ms DESC
	`
	rows, err := r.db.Query(query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	tasks, err := collectTasks(rows)
	if err != nil {
		return nil, err
	}
	if err := r.attachRecipients(tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListVisibleTo retrieves all tasks a learner may see: tasks with an empty
// recipient set plus tasks naming the learner. The membership test runs in
// Go against a full fetch; at the current scale that is fine, and keeping
// the strategy inside this method means it can move into the query layer
// without touching callers.
func (r *TaskRepository) ListVisibleTo(subjectID string) ([]models.Task, error) {
	query := `
		SELECT id, title, description, content_url, owner_id, created_at_ms
		FROM tasks
		ORDER BY created_at_ms DESC
	`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	tasks, err := collectTasks(rows)
	if err != nil {
		return nil, err
	}
	if err := r.attachRecipients(tasks); err != nil {
		return nil, err
	}

	visible := make([]models.Task, 0, len(tasks))
	for _, task := range tasks {
		if task.VisibleTo(subjectID) {
			visible = append(visible, task)
		}
	}
	return visible, nil
}

func collectTasks(rows *sql.Rows) ([]models.Task, error) {
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		var task models.Task
		if err := rows.Scan(
			&task.ID,
			&task.Title,
			&task.Description,
			&task.ContentURL,
			&task.OwnerID,
			&task.CreatedAtMs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// attachRecipients loads recipient sets for a batch of tasks in one query
func (r *TaskRepository) attachRecipients(tasks []models.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	rows, err := r.db.Query("SELECT task_id, subject_id FROM task_recipients")
	if err != nil {
		return fmt.Errorf("failed to query recipients: %w", err)
	}
	defer rows.Close()

	byTask := make(map[string][]string)
	for rows.Next() {
		var taskID, subjectID string
		if err := rows.Scan(&taskID, &subjectID); err != nil {
			return fmt.Errorf("failed to scan recipient: %w", err)
		}
		byTask[taskID] = append(byTask[taskID], subjectID)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for i := range tasks {
		recipients := byTask[tasks[i].ID]
		sort.Strings(recipients)
		tasks[i].Recipients = recipients
	}
	return nil
}

func (r *TaskRepository) recipientsFor(taskID string) ([]string, error) {
	rows, err := r.db.Query("SELECT subject_id FROM task_recipients WHERE task_id = ?", taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query recipients: %w", err)
	}
	defer rows.Close()

	var recipients []string
	for rows.Next() {
		var subjectID string
		if err := rows.Scan(&subjectID); err != nil {
			return nil, fmt.Errorf("failed to scan recipient: %w", err)
		}
		recipients = append(recipients, subjectID)
	}
	sort.Strings(recipients)
	return recipients, rows.Err()
}

func insertRecipients(tx *database.Tx, taskID string, recipients []string) error {
	for _, subjectID := range recipients {
		if _, err := tx.Exec("INSERT INTO task_recipients (task_id, subject_id) VALUES (?, ?)", taskID, subjectID); err != nil {
			return fmt.Errorf("failed to insert recipient: %w", err)
		}
	}
	return nil
}
