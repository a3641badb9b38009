package domain

import "strings"

// Priority ranks a task for presentation only.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority maps free form input onto a known priority.
func ParsePriority(s string) (Priority, bool) {
	switch Priority(strings.ToLower(strings.TrimSpace(s))) {
	case PriorityLow:
		return PriorityLow, true
	case PriorityMedium:
		return PriorityMedium, true
	case PriorityHigh:
		return PriorityHigh, true
	default:
		return "", false
	}
}

// OrDefault returns p when it is known and medium otherwise.
func (p Priority) OrDefault() Priority {
	if known, ok := ParsePriority(string(p)); ok {
		return known
	}
	return PriorityMedium
}

const (
	ColorHigh    = "#EF4444"
	ColorMedium  = "#F59E0B"
	ColorLow     = "#10B981"
	ColorNeutral = "#6B7280"
)

// ColorHint is the accent a presentation layer should use for the priority.
func (p Priority) ColorHint() string {
	switch p {
	case PriorityHigh:
		return ColorHigh
	case PriorityMedium:
		return ColorMedium
	case PriorityLow:
		return ColorLow
	default:
		return ColorNeutral
	}
}

// Category groups tasks. The set is closed.
type Category string

const (
	CategoryPersonal    Category = "Personal"
	CategoryWork        Category = "Work"
	CategoryDevelopment Category = "Development"
	CategoryLeisure     Category = "Leisure"
)

// Categories lists the known categories in display order.
var Categories = []Category{CategoryPersonal, CategoryWork, CategoryDevelopment, CategoryLeisure}

var categoryAliases = map[string]Category{
	"personal":      CategoryPersonal,
	"personnel":     CategoryPersonal,
	"work":          CategoryWork,
	"travail":       CategoryWork,
	"development":   CategoryDevelopment,
	"développement": CategoryDevelopment,
	"developpement": CategoryDevelopment,
	"leisure":       CategoryLeisure,
	"loisirs":       CategoryLeisure,
}

// ParseCategory maps a label, English or French, onto a known category.
func ParseCategory(s string) (Category, bool) {
	c, ok := categoryAliases[strings.ToLower(strings.TrimSpace(s))]
	return c, ok
}

var frenchLabels = map[Category]string{
	CategoryPersonal:    "Personnel",
	CategoryWork:        "Travail",
	CategoryDevelopment: "Développement",
	CategoryLeisure:     "Loisirs",
}

// FrenchLabel is the label the category carries in the French interface.
func (c Category) FrenchLabel() string {
	return frenchLabels[c]
}

// OrDefault returns c when it is known and Personal otherwise.
func (c Category) OrDefault() Category {
	if known, ok := ParseCategory(string(c)); ok {
		return known
	}
	return CategoryPersonal
}

// FilterMode selects tasks by completion.
type FilterMode string

const (
	FilterAll       FilterMode = "all"
	FilterActive    FilterMode = "active"
	FilterCompleted FilterMode = "completed"
)

// ParseFilterMode falls back to FilterAll for anything unrecognised.
func ParseFilterMode(s string) FilterMode {
	switch FilterMode(strings.ToLower(strings.TrimSpace(s))) {
	case FilterActive:
		return FilterActive
	case FilterCompleted:
		return FilterCompleted
	default:
		return FilterAll
	}
}

// Label is the human readable name of the filter.
func (f FilterMode) Label() string {
	switch f {
	case FilterAll:
		return "All"
	case FilterActive:
		return "Active"
	case FilterCompleted:
		return "Completed"
	default:
		return string(f)
	}
}

func (f FilterMode) matches(t Task) bool {
	switch f {
	case FilterActive:
		return !t.Completed
	case FilterCompleted:
		return t.Completed
	default:
		return true
	}
}
