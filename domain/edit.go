package domain

// EditSession tracks the task whose text is being edited. The zero value is
// the idle state.
type EditSession struct {
	TaskID int64  `json:"taskId,omitempty"`
	Draft  string `json:"draft,omitempty"`
	Active bool   `json:"active"`
}

// Idle reports whether no task is being edited.
func (e EditSession) Idle() bool { return !e.Active }

// Editing reports whether the task with the given id is being edited.
func (e EditSession) Editing(id int64) bool { return e.Active && e.TaskID == id }

func startEdit(t Task) EditSession {
	return EditSession{TaskID: t.ID, Draft: t.Text, Active: true}
}
