package tasks

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/go-kanban-tracker/internal/api"
)

// TaskStatus is the board column a task sits in.
type TaskStatus string

const (
	StatusTodo       TaskStatus = "To-do"
	StatusInProgress TaskStatus = "In-progress"
	StatusInReview   TaskStatus = "In-review"
	StatusDone       TaskStatus = "Done"
)

// ParseStatus validates a status string from the wire.
func ParseStatus(s string) (TaskStatus, error) {
	switch TaskStatus(s) {
	case StatusTodo, StatusInProgress, StatusInReview, StatusDone:
		return TaskStatus(s), nil
	default:
		return "", fmt.Errorf("%w: status must be one of 'To-do', 'In-progress', 'In-review', 'Done'", api.ErrValidation)
	}
}

// TaskPriority orders tasks within a column.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "Low"
	PriorityMedium TaskPriority = "Medium"
	PriorityHigh   TaskPriority = "High"
)

// ParsePriority validates a priority string from the wire.
func ParsePriority(s string) (TaskPriority, error) {
	switch TaskPriority(s) {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return TaskPriority(s), nil
	default:
		return "", fmt.Errorf("%w: priority must be one of 'Low', 'Medium', 'High'", api.ErrValidation)
	}
}

// Task is one card on a user's board. Tasks are strictly owner-scoped; a
// task is never visible to any user but its creator.
type Task struct {
	ID          uuid.UUID    `json:"id"`
	UserID      uuid.UUID    `json:"user_id"`
	Title       string       `json:"title"`
	Subheading  string       `json:"subheading"`
	Description string       `json:"description"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`
	CreatedAt   time.Time    `json:"created_at"`
}

// CreateTaskRequest is the JSON body for creating a task. Status and
// priority fall back to their defaults when omitted.
type CreateTaskRequest struct {
	Title       string `json:"title"`
	Subheading  string `json:"subheading"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Priority    string `json:"priority"`
}

// UpdateTaskRequest is the JSON body for PUT and PATCH. Nil fields are left
// untouched on PATCH; PUT requires at least the title.
type UpdateTaskRequest struct {
	Title       *string `json:"title"`
	Subheading  *string `json:"subheading"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	Priority    *string `json:"priority"`
}

// CreateTaskParams carries validated fields into the repository.
type CreateTaskParams struct {
	Title       string
	Subheading  string
	Description string
	Status      TaskStatus
	Priority    TaskPriority
}

// UpdateTaskParams carries validated optional fields; nil means keep.
type UpdateTaskParams struct {
	Title       *string
	Subheading  *string
	Description *string
	Status      *TaskStatus
	Priority    *TaskPriority
}
