package app

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"github.com/hylla/tavla/internal/domain"
)

// IDGenerator returns unique identifiers for new tasks.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// Service implements the task API rules on top of a Repository.
type Service struct {
	repo  Repository
	idGen IDGenerator
	clock Clock
}

// NewService constructs a Service. Nil generators fall back to safe defaults.
func NewService(repo Repository, idGen IDGenerator, clock Clock) *Service {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		repo:  repo,
		idGen: idGen,
		clock: clock,
	}
}

// CreateTaskInput holds input values for create task operations.
type CreateTaskInput struct {
	Title       string
	Category    string
	Status      string
	DueDate     string
	Description string
}

// CreateTask validates and stores a new task.
func (s *Service) CreateTask(ctx context.Context, in CreateTaskInput) (domain.Task, error) {
	task, err := domain.NewTask(domain.TaskInput{
		ID:          s.idGen(),
		Title:       in.Title,
		Category:    in.Category,
		Status:      in.Status,
		DueDate:     in.DueDate,
		Description: in.Description,
	}, s.clock())
	if err != nil {
		return domain.Task{}, err
	}
	if err := s.repo.CreateTask(ctx, task); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// GetTask returns one task with its description.
func (s *Service) GetTask(ctx context.Context, id string) (domain.Task, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Task{}, domain.ErrMissingIDArgument
	}
	return s.repo.GetTask(ctx, id)
}

// UpdateTask applies a partial update. Only provided fields are validated.
func (s *Service) UpdateTask(ctx context.Context, id string, patch domain.TaskPatch) (domain.Task, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Task{}, domain.ErrMissingIDArgument
	}
	if patch.Empty() {
		return domain.Task{}, domain.ErrEmptyPatch
	}
	task, err := s.repo.GetTask(ctx, id)
	if err != nil {
		return domain.Task{}, err
	}
	if err := task.Apply(patch, s.clock()); err != nil {
		return domain.Task{}, err
	}
	if err := s.repo.UpdateTask(ctx, task); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// DeleteTask removes one task.
func (s *Service) DeleteTask(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.ErrMissingIDArgument
	}
	return s.repo.DeleteTask(ctx, id)
}

// ListTasks returns list rows without descriptions. With a category the rows
// are ordered by due date ascending, otherwise newest first.
func (s *Service) ListTasks(ctx context.Context, category string) ([]domain.Task, error) {
	category = strings.TrimSpace(category)
	tasks, err := s.repo.ListTasks(ctx, TaskFilter{Category: category})
	if err != nil {
		return nil, err
	}
	for i := range tasks {
		tasks[i].Description = ""
	}
	if category != "" {
		slices.SortStableFunc(tasks, func(a, b domain.Task) int {
			return cmp.Compare(a.DueDate, b.DueDate)
		})
		return tasks, nil
	}
	slices.SortStableFunc(tasks, func(a, b domain.Task) int {
		return cmp.Compare(b.CreatedAt, a.CreatedAt)
	})
	return tasks, nil
}

// ListCategories returns the sorted distinct non-empty task categories.
func (s *Service) ListCategories(ctx context.Context) ([]string, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	return domain.MergeCategories(categories, nil), nil
}
