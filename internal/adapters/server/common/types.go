// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"context"
	"errors"

	"github.com/hylla/tavla/internal/domain"
)

// ErrInvalidRequest reports rejected request input.
var ErrInvalidRequest = errors.New("invalid request")

// ErrNotFound reports missing transport-visible resources.
var ErrNotFound = errors.New("not found")

// ErrInvalidJSON reports a request body that is not valid JSON.
var ErrInvalidJSON = errors.New("invalid JSON body")

// TaskService is the task surface shared by the REST and MCP adapters.
type TaskService interface {
	ListTasks(ctx context.Context, category string) ([]TaskSummary, error)
	GetTask(ctx context.Context, id string) (TaskView, error)
	CreateTask(ctx context.Context, in CreateTaskRequest) (TaskView, error)
	UpdateTask(ctx context.Context, in UpdateTaskRequest) (TaskView, error)
	DeleteTask(ctx context.Context, id string) error
	ListCategories(ctx context.Context) ([]string, error)
}

// CreateTaskRequest stores transport input for task creation.
type CreateTaskRequest struct {
	Title       string
	Category    string
	Status      string
	DueDate     string
	Description string
}

// UpdateTaskRequest stores transport input for a partial update. Nil fields are untouched.
type UpdateTaskRequest struct {
	ID          string
	Title       *string
	Category    *string
	Status      *string
	DueDate     *string
	Description *string
}

// TaskSummary is one list row. Descriptions are only served by the single-task read.
type TaskSummary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Category  string `json:"category"`
	Status    string `json:"status"`
	DueDate   string `json:"due_date"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// TaskView is the full task payload with status rendered as its label.
type TaskView struct {
	TaskSummary
	Description string `json:"description"`
}

// DeleteResult is the acknowledgement body for a delete.
type DeleteResult struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// NewTaskSummary maps one domain task onto the list row shape.
func NewTaskSummary(t domain.Task) TaskSummary {
	return TaskSummary{
		ID:        t.ID,
		Title:     t.Title,
		Category:  t.Category,
		Status:    t.Status.Label(),
		DueDate:   t.DueDate,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

// NewTaskView maps one domain task onto the full wire shape.
func NewTaskView(t domain.Task) TaskView {
	return TaskView{
		TaskSummary: NewTaskSummary(t),
		Description: t.Description,
	}
}

// PublicMessage returns the client-facing message for err.
func PublicMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "Task not found"
	case errors.Is(err, ErrInvalidJSON):
		return "Invalid JSON body"
	case errors.Is(err, domain.ErrEmptyPatch):
		return "No valid fields to update"
	case errors.Is(err, domain.ErrEmptyRequestBody):
		return "Request body must be a non-empty JSON object"
	case errors.Is(err, domain.ErrMissingIDArgument):
		return "Missing path parameter: id"
	}
	if cause := domain.ValidationCause(err); cause != nil {
		return cause.Error()
	}
	return "Internal server error"
}
