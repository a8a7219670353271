package service

import (
	"errors"
	"reflect"
	"testing"

	"taskboard/internal/models"
	"taskboard/internal/repository"
)

func newTaskFixture(t *testing.T) (*TaskService, *repository.UserRepository) {
	t.Helper()

	db := newTestDB(t)
	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)

	seedProfile(t, userRepo, "google:parent-1", "parent@example.com", models.RoleGuardian)
	seedProfile(t, userRepo, "google:parent-2", "other@example.com", models.RoleGuardian)
	seedProfile(t, userRepo, "google:kid-1", "alex@example.com", models.RoleLearner)
	seedProfile(t, userRepo, "apple:kid-2", "sam@example.com", models.RoleLearner)

	return NewTaskService(taskRepo, NewRosterService(userRepo)), userRepo
}

func TestCreateTaskResolvesRecipients(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tasks, _ := newTaskFixture(t)

	task, err := tasks.CreateTask("google:parent-1", "Times tables", "Practice x7",
		"/static/tasks/sample-quiz.html", "Alex@Example.com, nobody@example.com")
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	if !reflect.DeepEqual(task.Recipients, []string{"google:kid-1"}) {
		t.Errorf("Recipients = %v, want only the matched learner", task.Recipients)
	}

	stored, err := tasks.GetTask(task.ID)
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if !reflect.DeepEqual(stored.Recipients, []string{"google:kid-1"}) {
		t.Errorf("stored Recipients = %v, want [google:kid-1]", stored.Recipients)
	}
	if stored.OwnerID != "google:parent-1" {
		t.Errorf("OwnerID = %q, want google:parent-1", stored.OwnerID)
	}
}

func TestCreateTaskValidation(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tasks, _ := newTaskFixture(t)

	if _, err := tasks.CreateTask("google:parent-1", "", "", "/task.html", ""); err == nil {
		t.Error("CreateTask() with empty title should fail")
	}
	if _, err := tasks.CreateTask("google:parent-1", "Title", "", "not-a-url", ""); err == nil {
		t.Error("CreateTask() with relative content URL should fail")
	}
}

func TestUpdateTaskOwnershipAndReplace(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tasks, _ := newTaskFixture(t)

	task, err := tasks.CreateTask("google:parent-1", "Original", "", "/task.html", "alex@example.com")
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	if _, err := tasks.UpdateTask(task.ID, "google:parent-2", "Hijacked", "", "/task.html", ""); !errors.Is(err, ErrNotTaskOwner) {
		t.Errorf("UpdateTask() by non-owner error = %v, want ErrNotTaskOwner", err)
	}

	// The recipient set is replaced wholesale, not merged
	updated, err := tasks.UpdateTask(task.ID, "google:parent-1", "Updated", "New description", "/task2.html", "sam@example.com")
	if err != nil {
		t.Fatalf("UpdateTask() error = %v", err)
	}
	if !reflect.DeepEqual(updated.Recipients, []string{"apple:kid-2"}) {
		t.Errorf("Recipients after update = %v, want [apple:kid-2]", updated.Recipients)
	}
	if updated.OwnerID != "google:parent-1" {
		t.Errorf("OwnerID changed on update: %q", updated.OwnerID)
	}
	if updated.CreatedAtMs != task.CreatedAtMs {
		t.Errorf("CreatedAtMs changed on update: %d vs %d", updated.CreatedAtMs, task.CreatedAtMs)
	}

	// Clearing the recipients makes the task visible to everyone
	cleared, err := tasks.UpdateTask(task.ID, "google:parent-1", "Updated", "", "/task2.html", "")
	if err != nil {
		t.Fatalf("UpdateTask() error = %v", err)
	}
	if len(cleared.Recipients) != 0 {
		t.Errorf("Recipients after clearing = %v, want empty", cleared.Recipients)
	}

	if _, err := tasks.UpdateTask("missing-task", "google:parent-1", "X", "", "/x.html", ""); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("UpdateTask() on missing task error = %v, want ErrTaskNotFound", err)
	}
}

func TestDeleteTaskOwnership(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tasks, _ := newTaskFixture(t)

	task, err := tasks.CreateTask("google:parent-1", "To delete", "", "/task.html", "")
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	if err := tasks.DeleteTask(task.ID, "google:parent-2"); !errors.Is(err, ErrNotTaskOwner) {
		t.Errorf("DeleteTask() by non-owner error = %v, want ErrNotTaskOwner", err)
	}
	if err := tasks.DeleteTask(task.ID, "google:parent-1"); err != nil {
		t.Fatalf("DeleteTask() error = %v", err)
	}
	if _, err := tasks.GetTask(task.ID); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("GetTask() after delete error = %v, want ErrTaskNotFound", err)
	}
	if err := tasks.DeleteTask(task.ID, "google:parent-1"); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("DeleteTask() again error = %v, want ErrTaskNotFound", err)
	}
}

func TestListAssignedTasksVisibility(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tasks, _ := newTaskFixture(t)

	broadcast, err := tasks.CreateTask("google:parent-1", "For everyone", "", "/a.html", "")
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	targeted, err := tasks.CreateTask("google:parent-1", "For Alex", "", "/b.html", "alex@example.com")
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	alexTasks, err := tasks.ListAssignedTasks("google:kid-1")
	if err != nil {
		t.Fatalf("ListAssignedTasks() error = %v", err)
	}
	if got := taskIDs(alexTasks); len(got) != 2 || !got[broadcast.ID] || !got[targeted.ID] {
		t.Errorf("alex sees %v, want both tasks", got)
	}

	samTasks, err := tasks.ListAssignedTasks("apple:kid-2")
	if err != nil {
		t.Fatalf("ListAssignedTasks() error = %v", err)
	}
	if got := taskIDs(samTasks); len(got) != 1 || !got[broadcast.ID] {
		t.Errorf("sam sees %v, want only the broadcast task", got)
	}

	ownTasks, err := tasks.ListOwnTasks("google:parent-1")
	if err != nil {
		t.Fatalf("ListOwnTasks() error = %v", err)
	}
	if len(ownTasks) != 2 {
		t.Errorf("owner sees %d tasks, want 2", len(ownTasks))
	}

	otherOwn, err := tasks.ListOwnTasks("google:parent-2")
	if err != nil {
		t.Fatalf("ListOwnTasks() error = %v", err)
	}
	if len(otherOwn) != 0 {
		t.Errorf("other guardian sees %d tasks, want 0", len(otherOwn))
	}
}

func taskIDs(tasks []models.Task) map[string]bool {
	ids := make(map[string]bool, len(tasks))
	for _, task := range tasks {
		ids[task.ID] = true
	}
	return ids
}
