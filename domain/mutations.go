package domain

// The functions below never modify their input slice. A no-op returns the
// input unchanged; any change returns a freshly allocated slice.

// Add prepends a new task built from in. It is a no-op for blank text.
func Add(tasks []Task, id int64, in TaskInput) ([]Task, Task, bool) {
	t, ok := NewTask(id, in)
	if !ok {
		return tasks, Task{}, false
	}
	next := make([]Task, 0, len(tasks)+1)
	next = append(next, t)
	next = append(next, tasks...)
	return next, t, true
}

// ToggleCompleted flips the completion flag of the task with the given id.
func ToggleCompleted(tasks []Task, id int64) ([]Task, Task, bool) {
	i := indexOf(tasks, id)
	if i < 0 {
		return tasks, Task{}, false
	}
	next := clone(tasks)
	next[i].Completed = !next[i].Completed
	return next, next[i], true
}

// Remove drops the task with the given id.
func Remove(tasks []Task, id int64) ([]Task, Task, bool) {
	i := indexOf(tasks, id)
	if i < 0 {
		return tasks, Task{}, false
	}
	removed := tasks[i]
	next := make([]Task, 0, len(tasks)-1)
	next = append(next, tasks[:i]...)
	next = append(next, tasks[i+1:]...)
	return next, removed, true
}

// UpdateText replaces the text of the task with the given id. Blank text is
// rejected the same way Add rejects it, and so is text equal to the current one.
func UpdateText(tasks []Task, id int64, text string) ([]Task, Task, bool) {
	text, ok := normalizeText(text)
	if !ok {
		return tasks, Task{}, false
	}
	i := indexOf(tasks, id)
	if i < 0 || tasks[i].Text == text {
		return tasks, Task{}, false
	}
	next := clone(tasks)
	next[i].Text = text
	return next, next[i], true
}

// Find returns the task with the given id.
func Find(tasks []Task, id int64) (Task, bool) {
	i := indexOf(tasks, id)
	if i < 0 {
		return Task{}, false
	}
	return tasks[i], true
}

func indexOf(tasks []Task, id int64) int {
	for i := range tasks {
		if tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func clone(tasks []Task) []Task {
	out := make([]Task, len(tasks))
	copy(out, tasks)
	return out
}
