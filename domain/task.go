package domain

import (
	"strings"
	"time"
)

// DateLayout is the calendar date format used for due dates.
const DateLayout = "2006-01-02"

// Task represents a single entry in a task list.
type Task struct {
	ID        int64    `json:"id"`
	Text      string   `json:"text"`
	Completed bool     `json:"completed"`
	Priority  Priority `json:"priority"`
	DueDate   string   `json:"dueDate,omitempty"`
	Category  Category `json:"category"`
}

// TaskInput carries the user supplied fields for a new task.
type TaskInput struct {
	Text     string
	Priority Priority
	DueDate  string
	Category Category
}

// NewTask builds a task with the given id. It reports false when the text is
// blank, in which case no task is produced.
func NewTask(id int64, in TaskInput) (Task, bool) {
	text, ok := normalizeText(in.Text)
	if !ok {
		return Task{}, false
	}
	return Task{
		ID:        id,
		Text:      text,
		Completed: false,
		Priority:  in.Priority.OrDefault(),
		DueDate:   NormalizeDueDate(in.DueDate),
		Category:  in.Category.OrDefault(),
	}, true
}

func normalizeText(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != ""
}

// NormalizeDueDate returns the trimmed date when it is a valid YYYY-MM-DD
// calendar date and an empty string otherwise.
func NormalizeDueDate(s string) string {
	s = strings.TrimSpace(s)
	if !ValidDueDate(s) {
		return ""
	}
	return s
}

// ValidDueDate reports whether s is a zero padded YYYY-MM-DD date.
func ValidDueDate(s string) bool {
	if len(s) != len(DateLayout) {
		return false
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// IsOverdue reports whether the task is pending and its due date lies strictly
// before today. Both dates are compared as YYYY-MM-DD strings.
func (t Task) IsOverdue(today string) bool {
	if t.Completed || t.DueDate == "" {
		return false
	}
	if !ValidDueDate(t.DueDate) {
		return false
	}
	return t.DueDate < today
}
