package model

import "time"

// Priority ranks a project.
type Priority string

// These constants are the supported project priorities.
const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

// These constants are the supported project statuses.
const (
	ProjectPlanned    ProjectStatus = "planned"
	ProjectInProgress ProjectStatus = "in-progress"
	ProjectCompleted  ProjectStatus = "completed"
)

// TaskStatus is the board column a task sits in.
type TaskStatus string

// These constants are the supported task statuses, in board display order.
const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in-progress"
	TaskDone       TaskStatus = "done"
)

// TaskStatuses returns the task statuses in board display order.
func TaskStatuses() []TaskStatus {
	return []TaskStatus{TaskTodo, TaskInProgress, TaskDone}
}

// Valid reports whether s is one of the supported task statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskTodo, TaskInProgress, TaskDone:
		return true
	default:
		return false
	}
}

// Project is a date-ranged unit of work shown on the timeline.
type Project struct {
	ID          string
	OwnerID     string
	Name        string `validate:"required" field:"name"`
	Description string
	StartDate   time.Time     `validate:"required" field:"startDate"`
	EndDate     time.Time     `validate:"required" field:"endDate"`
	Color       string        `validate:"required,iscolor" field:"color"`
	Priority    Priority      `validate:"oneof=low medium high" field:"priority"`
	Status      ProjectStatus `validate:"oneof=planned in-progress completed" field:"status"`
}

// Identity returns the store-assigned id.
func (p Project) Identity() string { return p.ID }

// Owner returns the id of the owning user.
func (p Project) Owner() string { return p.OwnerID }

// Span returns the project's date range.
func (p Project) Span() (time.Time, time.Time) { return p.StartDate, p.EndDate }

// Task is a card on a project's board.
type Task struct {
	ID          string
	ProjectID   string
	OwnerID     string
	Title       string `validate:"required" field:"title"`
	Description string
	Status      TaskStatus `validate:"oneof=todo in-progress done" field:"status"`
	// CreatedAt is the only sort key for tasks; newest first.
	CreatedAt time.Time
}

// Identity returns the store-assigned id.
func (t Task) Identity() string { return t.ID }

// Owner returns the id of the owning user.
func (t Task) Owner() string { return t.OwnerID }

// ColorLegendEntry is a reusable color -> label association.
type ColorLegendEntry struct {
	ID      string
	OwnerID string
	Color   string `validate:"required,iscolor" field:"color"`
	Label   string `validate:"required" field:"label"`
}

// Identity returns the store-assigned id.
func (c ColorLegendEntry) Identity() string { return c.ID }

// Owner returns the id of the owning user.
func (c ColorLegendEntry) Owner() string { return c.OwnerID }

// Day truncates t to midnight in its own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()

	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// NewProjectDraft returns the defaults used to prefill a new project: it starts today
// and ends one day later.
func NewProjectDraft(now time.Time) Project {
	return Project{
		StartDate: now,
		EndDate:   now.AddDate(0, 0, 1),
		Color:     "#000000",
		Priority:  PriorityMedium,
		Status:    ProjectPlanned,
	}
}

// NewTaskDraft returns the defaults used to prefill a new task.
func NewTaskDraft(projectID string) Task {
	return Task{ProjectID: projectID, Status: TaskTodo}
}

// PaletteColors returns the fallback colors offered when the legend is empty.
func PaletteColors() []string {
	return []string{
		"#2563eb",
		"#7c3aed",
		"#dc2626",
		"#059669",
		"#ea580c",
		"#d97706",
		"#0ea5e9",
	}
}
