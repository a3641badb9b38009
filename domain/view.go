package domain

import (
	"strings"

	"golang.org/x/text/cases"
)

// Query selects the tasks of a view.
type Query struct {
	Filter FilterMode `json:"filter"`
	Search string     `json:"search,omitempty"`
}

// TaskView is a task decorated with the attributes derived for presentation.
type TaskView struct {
	Task
	IsOverdue bool   `json:"isOverdue"`
	ColorHint string `json:"colorHint"`
	IsEditing bool   `json:"isEditing,omitempty"`
}

// Counts aggregates the whole list regardless of the query.
type Counts struct {
	Total     int `json:"total"`
	Completed int `json:"completedCount"`
	Pending   int `json:"pendingCount"`
}

// EmptyReason explains an empty view.
type EmptyReason string

const (
	EmptyNone        EmptyReason = ""
	EmptyNoMatch     EmptyReason = "no-match"
	EmptyNoFilterHit EmptyReason = "no-tasks-for-filter"
)

// View is the derived, order preserving projection of a state.
type View struct {
	Query       Query       `json:"query"`
	FilterLabel string      `json:"filterLabel"`
	Tasks       []TaskView  `json:"tasks"`
	Counts      Counts      `json:"counts"`
	Edit        EditSession `json:"edit"`
	Empty       EmptyReason `json:"empty,omitempty"`
}

// Project computes the view of s for q. today is a YYYY-MM-DD date. Nothing
// is cached; every call recomputes from s.
func Project(s State, q Query, today string) View {
	q.Filter = ParseFilterMode(string(q.Filter))
	needle := fold(q.Search)

	out := make([]TaskView, 0, len(s.Tasks))
	for _, t := range s.Tasks {
		if !q.Filter.matches(t) || !matchesSearch(t, needle) {
			continue
		}
		out = append(out, TaskView{
			Task:      t,
			IsOverdue: t.IsOverdue(today),
			ColorHint: t.Priority.ColorHint(),
			IsEditing: s.Edit.Editing(t.ID),
		})
	}

	v := View{
		Query:       q,
		FilterLabel: q.Filter.Label(),
		Tasks:       out,
		Counts:      Count(s.Tasks),
		Edit:        s.Edit,
	}
	if len(out) == 0 {
		if q.Search != "" {
			v.Empty = EmptyNoMatch
		} else {
			v.Empty = EmptyNoFilterHit
		}
	}
	return v
}

// Count returns the aggregate counts of tasks.
func Count(tasks []Task) Counts {
	c := Counts{Total: len(tasks)}
	for _, t := range tasks {
		if t.Completed {
			c.Completed++
		}
	}
	c.Pending = c.Total - c.Completed
	return c
}

// matchesSearch expects needle to be folded already.
func matchesSearch(t Task, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(fold(t.Text), needle) ||
		strings.Contains(fold(string(t.Category)), needle) ||
		strings.Contains(fold(t.Category.FrenchLabel()), needle)
}

func fold(s string) string {
	if s == "" {
		return ""
	}
	// A Caser keeps state, so each call gets its own.
	return cases.Fold().String(s)
}
