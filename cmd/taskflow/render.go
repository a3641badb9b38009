package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/IDGHIM/TaskFlow/domain"
)

var (
	idStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(5)
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Strikethrough(true)
	overdueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(domain.ColorHigh)).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	headerStyle  = lipgloss.NewStyle().Bold(true)
)

func renderView(w io.Writer, v domain.View) {
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Tasks: %s", v.FilterLabel)))
	if len(v.Tasks) == 0 {
		fmt.Fprintln(w, dimStyle.Render(emptyMessage(v.Empty)))
	}
	for _, t := range v.Tasks {
		fmt.Fprintln(w, renderTask(t))
	}
	fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("%d total, %d completed, %d pending",
		v.Counts.Total, v.Counts.Completed, v.Counts.Pending)))
}

func renderTask(t domain.TaskView) string {
	box := "[ ]"
	text := t.Text
	if t.Completed {
		box = "[x]"
		text = doneStyle.Render(text)
	}
	if t.IsEditing {
		text += dimStyle.Render(" (editing)")
	}

	parts := []string{
		box,
		idStyle.Render(fmt.Sprintf("#%d", t.ID)),
		text,
		lipgloss.NewStyle().Foreground(lipgloss.Color(t.ColorHint)).Render(string(t.Priority)),
		dimStyle.Render(string(t.Category)),
	}
	if t.DueDate != "" {
		due := "due " + t.DueDate
		if t.IsOverdue {
			due = overdueStyle.Render(due + " (overdue)")
		}
		parts = append(parts, due)
	}
	return strings.Join(parts, "  ")
}

func emptyMessage(r domain.EmptyReason) string {
	switch r {
	case domain.EmptyNoMatch:
		return "No task matches your search."
	default:
		return "No tasks for this filter."
	}
}
