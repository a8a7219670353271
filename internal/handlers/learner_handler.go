package handlers

import (
	"encoding/json"
	"errors"
	"html/template"
	"log"
	"net/http"

	"taskboard/internal/models"
	"taskboard/internal/service"
	"taskboard/internal/validation"
)

// resultEventType is the discriminant carried by completion messages from
// embedded task content
const resultEventType = "taskResult"

// LearnerHandler serves the learner dashboard, the task page and the
// completion telemetry ingest endpoint
type LearnerHandler struct {
	taskService   *service.TaskService
	resultService *service.ResultService
	templates     *template.Template
}

// NewLearnerHandler creates a new learner handler
func NewLearnerHandler(taskService *service.TaskService, resultService *service.ResultService, templates *template.Template) *LearnerHandler {
	return &LearnerHandler{
		taskService:   taskService,
		resultService: resultService,
		templates:     templates,
	}
}

type learnerDashboardData struct {
	User  *models.UserProfile
	Tasks []models.Task
}

// Dashboard lists the tasks visible to the learner: broadcast tasks plus
// tasks naming them as a recipient
func (h *LearnerHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	tasks, err := h.taskService.ListAssignedTasks(user.SubjectID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load tasks", "Learner dashboard error", err)
		return
	}

	data := learnerDashboardData{User: user, Tasks: tasks}
	if err := h.templates.ExecuteTemplate(w, "learner_dashboard.tmpl", data); err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to render page", "Template error", err)
	}
}

type taskPageData struct {
	User *models.UserProfile
	Task *models.Task
}

// ShowTask renders the task page with the content embedded in an iframe.
// A relay script on the page forwards completion messages posted by the
// content to the ingest endpoint.
func (h *LearnerHandler) ShowTask(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	task, err := h.loadVisibleTask(r.PathValue("id"), user.SubjectID)
	if err != nil {
		if errors.Is(err, service.ErrTaskNotFound) {
			http.NotFound(w, r)
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to load task", "Task page error", err)
		return
	}

	data := taskPageData{User: user, Task: task}
	if err := h.templates.ExecuteTemplate(w, "task_view.tmpl", data); err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to render page", "Template error", err)
	}
}

// resultEvent is the telemetry payload relayed from embedded content
type resultEvent struct {
	Type      string `json:"type"`
	Correct   int    `json:"correct"`
	Incorrect int    `json:"incorrect"`
	TimeMs    int64  `json:"timeMs"`
}

// SubmitResult ingests one completion event for a task. The endpoint is
// fire-and-forget for the content: a stored event and an ignored one look
// the same to the sender. Only events carrying the taskResult discriminant
// are considered; anything else is dropped without effect.
func (h *LearnerHandler) SubmitResult(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	task, err := h.loadVisibleTask(r.PathValue("id"), user.SubjectID)
	if err != nil {
		if errors.Is(err, service.ErrTaskNotFound) {
			http.NotFound(w, r)
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to load task", "Result ingest error", err)
		return
	}

	var event resultEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid result payload", "Result decode error", err)
		return
	}

	if event.Type != resultEventType {
		log.Printf("Dropping event of type %q for task %s", event.Type, task.ID)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if _, err := h.resultService.RecordResult(task.ID, user.SubjectID, event.Correct, event.Incorrect, event.TimeMs); err != nil {
		var validationErr validation.ValidationError
		if errors.As(err, &validationErr) {
			respondWithError(w, http.StatusBadRequest, validationErr.Message, "", nil)
			return
		}
		// Fire-and-forget: a failed write is logged but never surfaces
		// to the embedded content
		log.Printf("Failed to record result for task %s: %v", task.ID, err)
	}

	w.WriteHeader(http.StatusNoContent)
}

// loadVisibleTask fetches a task and enforces learner visibility. A task the
// learner may not see is indistinguishable from a missing one.
func (h *LearnerHandler) loadVisibleTask(taskID, subjectID string) (*models.Task, error) {
	task, err := h.taskService.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	if !task.VisibleTo(subjectID) {
		return nil, service.ErrTaskNotFound
	}
	return task, nil
}
