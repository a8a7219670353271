package handlers

import (
	"context"
	"errors"
	"html/template"
	"log"
	"net/http"

	"taskboard/internal/models"
	"taskboard/internal/service"
	"taskboard/internal/validation"
)

// GuardianHandler serves the guardian dashboard and task authoring actions
type GuardianHandler struct {
	taskService   *service.TaskService
	rosterService *service.RosterService
	resultService *service.ResultService
	emailService  *service.EmailService
	templates     *template.Template
	middleware    *Middleware
}

// NewGuardianHandler creates a new guardian handler
func NewGuardianHandler(taskService *service.TaskService, rosterService *service.RosterService, resultService *service.ResultService, emailService *service.EmailService, templates *template.Template, middleware *Middleware) *GuardianHandler {
	return &GuardianHandler{
		taskService:   taskService,
		rosterService: rosterService,
		resultService: resultService,
		emailService:  emailService,
		templates:     templates,
		middleware:    middleware,
	}
}

type guardianDashboardData struct {
	User      *models.UserProfile
	Tasks     []TaskView
	CSRFToken string
	Error     string
}

// Dashboard renders the guardian's tasks with their recipient lists and
// aggregated results
func (h *GuardianHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	h.renderDashboard(w, r, "")
}

func (h *GuardianHandler) renderDashboard(w http.ResponseWriter, r *http.Request, errMsg string) {
	user := GetUserFromContext(r.Context())

	tasks, err := h.taskService.ListOwnTasks(user.SubjectID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load tasks", "Dashboard error", err)
		return
	}

	var allRecipients []string
	for _, task := range tasks {
		allRecipients = append(allRecipients, task.Recipients...)
	}
	emailsByID, err := h.rosterService.EmailsFor(allRecipients)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load tasks", "Dashboard error", err)
		return
	}

	views := make([]TaskView, 0, len(tasks))
	for _, task := range tasks {
		stats, err := h.resultService.Stats(task.ID)
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, "Failed to load task results", "Dashboard error", err)
			return
		}
		views = append(views, TaskView{
			Task:            task,
			RecipientEmails: recipientEmailList(task.Recipients, emailsByID),
			Stats:           stats,
		})
	}

	data := guardianDashboardData{
		User:      user,
		Tasks:     views,
		CSRFToken: h.middleware.CSRFToken(r),
		Error:     errMsg,
	}
	if err := h.templates.ExecuteTemplate(w, "guardian_dashboard.tmpl", data); err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to render page", "Template error", err)
	}
}

// CreateTask creates a task from the dashboard form and notifies the
// resolved recipients by email, best effort
func (h *GuardianHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	task, err := h.taskService.CreateTask(
		user.SubjectID,
		r.FormValue("title"),
		r.FormValue("description"),
		r.FormValue("content_url"),
		r.FormValue("recipients"),
	)
	if err != nil {
		var validationErr validation.ValidationError
		if errors.As(err, &validationErr) {
			h.renderDashboard(w, r, validationErr.Message)
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to create task", "Create task error", err)
		return
	}

	h.notifyRecipients(task)
	http.Redirect(w, r, "/guardian/dashboard", http.StatusSeeOther)
}

// UpdateTask replaces a task's fields and recipient set from the edit form
func (h *GuardianHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	task, err := h.taskService.UpdateTask(
		r.PathValue("id"),
		user.SubjectID,
		r.FormValue("title"),
		r.FormValue("description"),
		r.FormValue("content_url"),
		r.FormValue("recipients"),
	)
	if err != nil {
		var validationErr validation.ValidationError
		switch {
		case errors.Is(err, service.ErrTaskNotFound):
			http.NotFound(w, r)
		case errors.Is(err, service.ErrNotTaskOwner):
			http.Error(w, "Forbidden", http.StatusForbidden)
		case errors.As(err, &validationErr):
			h.renderDashboard(w, r, validationErr.Message)
		default:
			respondWithError(w, http.StatusInternalServerError, "Failed to update task", "Update task error", err)
		}
		return
	}

	h.notifyRecipients(task)
	http.Redirect(w, r, "/guardian/dashboard", http.StatusSeeOther)
}

// DeleteTask removes a task. Attempt records for it are kept.
func (h *GuardianHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	if err := h.taskService.DeleteTask(r.PathValue("id"), user.SubjectID); err != nil {
		switch {
		case errors.Is(err, service.ErrTaskNotFound):
			http.NotFound(w, r)
		case errors.Is(err, service.ErrNotTaskOwner):
			http.Error(w, "Forbidden", http.StatusForbidden)
		default:
			respondWithError(w, http.StatusInternalServerError, "Failed to delete task", "Delete task error", err)
		}
		return
	}

	http.Redirect(w, r, "/guardian/dashboard", http.StatusSeeOther)
}

// notifyRecipients emails every resolved recipient about the task. Failures
// are logged and never block the authoring flow.
func (h *GuardianHandler) notifyRecipients(task *models.Task) {
	if !h.emailService.IsEnabled() || len(task.Recipients) == 0 {
		return
	}

	emailsByID, err := h.rosterService.EmailsFor(task.Recipients)
	if err != nil {
		log.Printf("Failed to look up recipient emails for task %s: %v", task.ID, err)
		return
	}

	for _, email := range emailsByID {
		if err := h.emailService.SendTaskAssignedEmail(context.Background(), email, task.Title); err != nil {
			log.Printf("Failed to send task notification to %s: %v", email, err)
		}
	}
}
