package handlers

import (
	"sort"

	"taskboard/internal/models"
)

// TaskView is a task decorated for guardian dashboard rendering
type TaskView struct {
	Task            models.Task
	RecipientEmails []string
	Stats           models.TaskStats
}

// recipientEmailList maps a task's recipient ids to their emails, sorted
// for stable rendering. Ids that no longer resolve are skipped.
func recipientEmailList(recipients []string, emailsByID map[string]string) []string {
	var emails []string
	for _, id := range recipients {
		if email, ok := emailsByID[id]; ok && email != "" {
			emails = append(emails, email)
		}
	}
	sort.Strings(emails)
	return emails
}
