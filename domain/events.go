package domain

// EventType names a change applied to a task.
type EventType string

const (
	TaskCreated     EventType = "task-created"
	TaskCompleted   EventType = "task-completed"
	TaskReopened    EventType = "task-reopened"
	TaskRemoved     EventType = "task-removed"
	TaskTextUpdated EventType = "task-text-updated"
)

// Event describes one effective task mutation. Task holds the record after
// the change, or the removed record for TaskRemoved.
type Event struct {
	Type EventType `json:"type"`
	Task Task      `json:"task"`
}

func toggledEvent(t Task) Event {
	if t.Completed {
		return Event{Type: TaskCompleted, Task: t}
	}
	return Event{Type: TaskReopened, Task: t}
}
