package models

// Task is an assignment authored by a guardian: an embedded interactive page
// plus an optional recipient set. An empty recipient set means the task is
// visible to every learner; a non-empty set restricts visibility to its
// members. The two states are distinct and the set is only ever replaced
// wholesale, never partially mutated.
type Task struct {
	ID          string
	Title       string
	Description string
	ContentURL  string
	Recipients  []string // learner subject ids; empty = visible to all
	OwnerID     string   // guardian subject id, immutable after creation
	CreatedAtMs int64    // milliseconds since epoch, assigned at creation
}

// VisibleTo reports whether a learner may see this task
func (t *Task) VisibleTo(subjectID string) bool {
	if len(t.Recipients) == 0 {
		return true
	}
	for _, id := range t.Recipients {
		if id == subjectID {
			return true
		}
	}
	return false
}
