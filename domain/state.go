package domain

// State is an immutable snapshot of one task list. Values are replaced, never
// modified, by Apply.
type State struct {
	Tasks  []Task      `json:"tasks"`
	NextID int64       `json:"nextId"`
	Edit   EditSession `json:"edit"`
}

// NewState builds a state around existing tasks, kept in the given order. The
// next id continues after the highest id present.
func NewState(tasks []Task) State {
	s := State{Tasks: clone(tasks)}
	s.NextID = s.nextID()
	return s
}

// WithNextID raises the id counter to at least id. Ids are never reused, so
// a persisted counter may be ahead of the tasks that survived.
func (s State) WithNextID(id int64) State {
	if id > s.nextID() {
		s.NextID = id
	}
	return s
}

func (s State) nextID() int64 {
	next := s.NextID
	if next < 1 {
		next = 1
	}
	for _, t := range s.Tasks {
		if t.ID >= next {
			next = t.ID + 1
		}
	}
	return next
}

// Outcome is the result of applying a command.
type Outcome struct {
	State   State
	Changed bool
	Events  []Event
}

func unchanged(s State) Outcome { return Outcome{State: s} }

// Apply computes the state that follows s once cmd is applied. Commands that
// cannot apply (blank text, unknown ids, idle edit session) leave s unchanged.
func Apply(s State, cmd Command) Outcome {
	switch c := cmd.(type) {
	case AddTask:
		id := s.nextID()
		tasks, t, ok := Add(s.Tasks, id, TaskInput{Text: c.Text, Priority: c.Priority, DueDate: c.DueDate, Category: c.Category})
		if !ok {
			return unchanged(s)
		}
		s.Tasks = tasks
		s.NextID = id + 1
		return Outcome{State: s, Changed: true, Events: []Event{{Type: TaskCreated, Task: t}}}
	case ToggleTask:
		tasks, t, ok := ToggleCompleted(s.Tasks, c.ID)
		if !ok {
			return unchanged(s)
		}
		s.Tasks = tasks
		return Outcome{State: s, Changed: true, Events: []Event{toggledEvent(t)}}
	case RemoveTask:
		tasks, t, ok := Remove(s.Tasks, c.ID)
		if !ok {
			return unchanged(s)
		}
		s.Tasks = tasks
		if s.Edit.Editing(c.ID) {
			s.Edit = EditSession{}
		}
		return Outcome{State: s, Changed: true, Events: []Event{{Type: TaskRemoved, Task: t}}}
	case UpdateTaskText:
		tasks, t, ok := UpdateText(s.Tasks, c.ID, c.Text)
		if !ok {
			return unchanged(s)
		}
		s.Tasks = tasks
		return Outcome{State: s, Changed: true, Events: []Event{{Type: TaskTextUpdated, Task: t}}}
	case StartEdit:
		return applyStartEdit(s, c.ID)
	case ChangeDraft:
		if s.Edit.Idle() || s.Edit.Draft == c.Text {
			return unchanged(s)
		}
		s.Edit.Draft = c.Text
		return Outcome{State: s, Changed: true}
	case CommitEdit:
		return commitEdit(s)
	case CancelEdit:
		if s.Edit.Idle() {
			return unchanged(s)
		}
		s.Edit = EditSession{}
		return Outcome{State: s, Changed: true}
	default:
		return unchanged(s)
	}
}

// applyStartEdit opens a session on id. A session already open on another
// task is committed first.
func applyStartEdit(s State, id int64) Outcome {
	if s.Edit.Editing(id) {
		return unchanged(s)
	}
	if _, ok := Find(s.Tasks, id); !ok {
		return unchanged(s)
	}
	var events []Event
	if !s.Edit.Idle() {
		prev := commitEdit(s)
		s = prev.State
		events = prev.Events
	}
	t, _ := Find(s.Tasks, id)
	s.Edit = startEdit(t)
	return Outcome{State: s, Changed: true, Events: events}
}

func commitEdit(s State) Outcome {
	if s.Edit.Idle() {
		return unchanged(s)
	}
	out := Outcome{Changed: true}
	tasks, t, ok := UpdateText(s.Tasks, s.Edit.TaskID, s.Edit.Draft)
	if ok {
		s.Tasks = tasks
		out.Events = []Event{{Type: TaskTextUpdated, Task: t}}
	}
	s.Edit = EditSession{}
	out.State = s
	return out
}
