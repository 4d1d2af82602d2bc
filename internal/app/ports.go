package app

import (
	"context"

	"github.com/hylla/tavla/internal/domain"
)

// TaskFilter narrows ListTasks. An empty Category matches every task.
type TaskFilter struct {
	Category string
}

// Repository persists tasks for the reference server.
type Repository interface {
	CreateTask(context.Context, domain.Task) error
	UpdateTask(context.Context, domain.Task) error
	GetTask(context.Context, string) (domain.Task, error)
	ListTasks(context.Context, TaskFilter) ([]domain.Task, error)
	DeleteTask(context.Context, string) error
	ListCategories(context.Context) ([]string, error)
}
