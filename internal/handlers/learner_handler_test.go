package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"taskboard/internal/database"
	"taskboard/internal/models"
	"taskboard/internal/repository"
	"taskboard/internal/service"
)

type ingestFixture struct {
	mux     *http.ServeMux
	results *service.ResultService
	task    *models.Task
	learner *models.UserProfile
}

func newIngestFixture(t *testing.T) *ingestFixture {
	t.Helper()

	db, err := database.Initialize(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.RunMigrations("../../migrations"); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	attemptRepo := repository.NewAttemptRepository(db)

	learner := &models.UserProfile{
		SubjectID:   "google:kid-1",
		Provider:    "google",
		Email:       "alex@example.com",
		DisplayName: "Alex",
		Role:        models.RoleLearner,
	}
	if err := userRepo.CreateProfile(learner); err != nil {
		t.Fatalf("Failed to seed learner: %v", err)
	}

	taskService := service.NewTaskService(taskRepo, service.NewRosterService(userRepo))
	resultService := service.NewResultService(attemptRepo)

	task, err := taskService.CreateTask("google:parent-1", "Quiz", "", "/static/tasks/sample-quiz.html", "")
	if err != nil {
		t.Fatalf("Failed to seed task: %v", err)
	}

	handler := NewLearnerHandler(taskService, resultService, nil)

	asLearner := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), UserContextKey, learner)
			next(w, r.WithContext(ctx))
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /learner/tasks/{id}/result", asLearner(handler.SubmitResult))

	return &ingestFixture{mux: mux, results: resultService, task: task, learner: learner}
}

func (f *ingestFixture) post(t *testing.T, taskID, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/learner/tasks/"+taskID+"/result", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func (f *ingestFixture) attemptCount(t *testing.T) int {
	t.Helper()

	stats, err := f.results.Stats(f.task.ID)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	return stats.Attempts
}

func TestSubmitResultStoresTelemetry(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	f := newIngestFixture(t)

	rec := f.post(t, f.task.ID, `{"type":"taskResult","correct":8,"incorrect":2,"timeMs":45000}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}

	stats, err := f.results.Stats(f.task.ID)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	want := models.TaskStats{Attempts: 1, TotalCorrect: 8, TotalIncorrect: 2, AvgTimeMs: 45000}
	if stats != want {
		t.Errorf("Stats() = %+v, want %+v", stats, want)
	}
}

func TestSubmitResultIgnoresOtherEventTypes(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	f := newIngestFixture(t)

	rec := f.post(t, f.task.ID, `{"type":"progress","correct":8,"incorrect":2,"timeMs":45000}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if got := f.attemptCount(t); got != 0 {
		t.Errorf("attempts = %d, events without the taskResult type must be dropped", got)
	}
}

func TestSubmitResultRejectsBadPayloads(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	f := newIngestFixture(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"type":"taskResult"`},
		{"non-numeric fields", `{"type":"taskResult","correct":"eight","incorrect":2,"timeMs":45000}`},
		{"negative correct", `{"type":"taskResult","correct":-1,"incorrect":2,"timeMs":45000}`},
		{"negative time", `{"type":"taskResult","correct":1,"incorrect":2,"timeMs":-5}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.post(t, f.task.ID, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}

	if got := f.attemptCount(t); got != 0 {
		t.Errorf("attempts = %d, rejected payloads must not be stored", got)
	}
}

func TestSubmitResultUnknownTask(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	f := newIngestFixture(t)

	rec := f.post(t, "no-such-task", `{"type":"taskResult","correct":1,"incorrect":0,"timeMs":1000}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
