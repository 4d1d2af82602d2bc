package common

import (
	"context"
	"errors"
	"fmt"

	"github.com/hylla/tavla/internal/app"
	"github.com/hylla/tavla/internal/domain"
)

// AppServiceAdapter maps transport contracts onto app.Service task APIs.
type AppServiceAdapter struct {
	service *app.Service
}

// NewAppServiceAdapter builds one common adapter over an app.Service instance.
func NewAppServiceAdapter(service *app.Service) *AppServiceAdapter {
	return &AppServiceAdapter{service: service}
}

// ListTasks returns list rows, optionally narrowed to one category.
func (a *AppServiceAdapter) ListTasks(ctx context.Context, category string) ([]TaskSummary, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	tasks, err := a.service.ListTasks(ctx, category)
	if err != nil {
		return nil, mapAppError("list tasks", err)
	}
	out := make([]TaskSummary, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, NewTaskSummary(task))
	}
	return out, nil
}

// GetTask returns one task including its description.
func (a *AppServiceAdapter) GetTask(ctx context.Context, id string) (TaskView, error) {
	if err := a.ready(); err != nil {
		return TaskView{}, err
	}
	task, err := a.service.GetTask(ctx, id)
	if err != nil {
		return TaskView{}, mapAppError("get task", err)
	}
	return NewTaskView(task), nil
}

// CreateTask validates and stores one task.
func (a *AppServiceAdapter) CreateTask(ctx context.Context, in CreateTaskRequest) (TaskView, error) {
	if err := a.ready(); err != nil {
		return TaskView{}, err
	}
	task, err := a.service.CreateTask(ctx, app.CreateTaskInput{
		Title:       in.Title,
		Category:    in.Category,
		Status:      in.Status,
		DueDate:     in.DueDate,
		Description: in.Description,
	})
	if err != nil {
		return TaskView{}, mapAppError("create task", err)
	}
	return NewTaskView(task), nil
}

// UpdateTask applies one partial update.
func (a *AppServiceAdapter) UpdateTask(ctx context.Context, in UpdateTaskRequest) (TaskView, error) {
	if err := a.ready(); err != nil {
		return TaskView{}, err
	}
	task, err := a.service.UpdateTask(ctx, in.ID, domain.TaskPatch{
		Title:       in.Title,
		Category:    in.Category,
		Status:      in.Status,
		DueDate:     in.DueDate,
		Description: in.Description,
	})
	if err != nil {
		return TaskView{}, mapAppError("update task", err)
	}
	return NewTaskView(task), nil
}

// DeleteTask removes one task.
func (a *AppServiceAdapter) DeleteTask(ctx context.Context, id string) error {
	if err := a.ready(); err != nil {
		return err
	}
	if err := a.service.DeleteTask(ctx, id); err != nil {
		return mapAppError("delete task", err)
	}
	return nil
}

// ListCategories returns the sorted distinct categories.
func (a *AppServiceAdapter) ListCategories(ctx context.Context) ([]string, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	categories, err := a.service.ListCategories(ctx)
	if err != nil {
		return nil, mapAppError("list categories", err)
	}
	return categories, nil
}

func (a *AppServiceAdapter) ready() error {
	if a == nil || a.service == nil {
		return errors.New("app service adapter is not configured")
	}
	return nil
}

// mapAppError maps app/domain errors into transport-layer error sentinels.
func mapAppError(operation string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, app.ErrNotFound):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrNotFound, err))
	case domain.IsValidation(err):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidRequest, err))
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}
