package domain

// DemoTasks returns the tasks a new list starts with when demo seeding is on.
func DemoTasks() []Task {
	return []Task{
		{ID: 1, Text: "Apprendre React", Priority: PriorityHigh, DueDate: "2025-09-20", Category: CategoryDevelopment},
		{ID: 2, Text: "Faire les courses", Completed: true, Priority: PriorityMedium, DueDate: "2025-09-18", Category: CategoryPersonal},
		{ID: 3, Text: "Réunion équipe", Priority: PriorityHigh, DueDate: "2025-09-19", Category: CategoryWork},
	}
}
