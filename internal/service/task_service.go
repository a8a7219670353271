package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"taskboard/internal/models"
	"taskboard/internal/repository"
	"taskboard/internal/validation"
)

var (
	ErrTaskNotFound = errors.New("task not found")
	ErrNotTaskOwner = errors.New("only the task owner may do that")
)

// TaskService handles task authoring and listing with ownership and
// visibility enforcement.
type TaskService struct {
	taskRepo *repository.TaskRepository
	roster   *RosterService
}

// NewTaskService creates a new task service
func NewTaskService(taskRepo *repository.TaskRepository, roster *RosterService) *TaskService {
	return &TaskService{
		taskRepo: taskRepo,
		roster:   roster,
	}
}

// CreateTask validates input, resolves the raw recipient list and persists
// a new task. Recipient resolution and task creation are two sequential,
// non-atomic store operations: if creation fails the resolved set is simply
// discarded, so no half-configured task ever exists.
func (s *TaskService) CreateTask(ownerID, title, description, contentURL, rawRecipients string) (*models.Task, error) {
	if err := validation.ValidateTitle(title); err != nil {
		return nil, err
	}
	if err := validation.ValidateContentURL(contentURL); err != nil {
		return nil, err
	}

	recipients, err := s.roster.Resolve(rawRecipients)
	if err != nil {
		return nil, err
	}

	task := &models.Task{
		ID:          uuid.New().String(),
		Title:       strings.TrimSpace(title),
		Description: strings.TrimSpace(description),
		ContentURL:  strings.TrimSpace(contentURL),
		Recipients:  recipients,
		OwnerID:     ownerID,
		CreatedAtMs: time.Now().UnixMilli(),
	}

	if err := s.taskRepo.Create(task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return task, nil
}

// UpdateTask replaces title, description, content URL and the recipient set
// of an existing task. Only the owner may update; owner and creation
// timestamp are immutable. The recipient set is a full replace resolved
// from the raw input, never a diff or merge.
func (s *TaskService) UpdateTask(taskID, callerID, title, description, contentURL, rawRecipients string) (*models.Task, error) {
	task, err := s.taskRepo.GetByID(taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}
	if task.OwnerID != callerID {
		return nil, ErrNotTaskOwner
	}

	if err := validation.ValidateTitle(title); err != nil {
		return nil, err
	}
	if err := validation.ValidateContentURL(contentURL); err != nil {
		return nil, err
	}

	recipients, err := s.roster.Resolve(rawRecipients)
	if err != nil {
		return nil, err
	}

	task.Title = strings.TrimSpace(title)
	task.Description = strings.TrimSpace(description)
	task.ContentURL = strings.TrimSpace(contentURL)
	task.Recipients = recipients

	if err := s.taskRepo.Update(task); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	return task, nil
}

// DeleteTask removes a task. Only the owner may delete. Attempt records for
// the task are left untouched.
func (s *TaskService) DeleteTask(taskID, callerID string) error {
	task, err := s.taskRepo.GetByID(taskID)
	if err != nil {
		return err
	}
	if task == nil {
		return ErrTaskNotFound
	}
	if task.OwnerID != callerID {
		return ErrNotTaskOwner
	}

	if err := s.taskRepo.Delete(taskID); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}

// GetTask retrieves a single task
func (s *TaskService) GetTask(taskID string) (*models.Task, error) {
	task, err := s.taskRepo.GetByID(taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}
	return task, nil
}

// ListOwnTasks returns the tasks created by a guardian, newest first
func (s *TaskService) ListOwnTasks(ownerID string) ([]models.Task, error) {
	return s.taskRepo.ListByOwner(ownerID)
}

// ListAssignedTasks returns the tasks visible to a learner: every task with
// an empty recipient set plus every task naming the learner
func (s *TaskService) ListAssignedTasks(subjectID string) ([]models.Task, error) {
	return s.taskRepo.ListVisibleTo(subjectID)
}
