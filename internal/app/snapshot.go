package app

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hylla/tavla/internal/domain"
)

// SnapshotVersion tags the export format.
const SnapshotVersion = "tavla.snapshot.v1"

// Snapshot is a portable dump of every stored task.
type Snapshot struct {
	Version    string        `json:"version"`
	ExportedAt time.Time     `json:"exported_at"`
	Tasks      []domain.Task `json:"tasks"`
}

// ExportSnapshot reads every task, descriptions included, ordered by id.
func (s *Service) ExportSnapshot(ctx context.Context) (Snapshot, error) {
	tasks, err := s.repo.ListTasks(ctx, TaskFilter{})
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{
		Version:    SnapshotVersion,
		ExportedAt: s.clock().UTC(),
		Tasks:      make([]domain.Task, 0, len(tasks)),
	}
	snap.Tasks = append(snap.Tasks, tasks...)
	snap.sort()
	return snap, nil
}

// ImportSnapshot upserts every task in snap. Existing ids are overwritten.
func (s *Service) ImportSnapshot(ctx context.Context, snap Snapshot) (int, error) {
	if err := snap.Validate(); err != nil {
		return 0, err
	}
	snap.sort()
	for _, task := range snap.Tasks {
		if _, err := s.repo.GetTask(ctx, task.ID); err == nil {
			if err := s.repo.UpdateTask(ctx, task); err != nil {
				return 0, err
			}
			continue
		} else if !errors.Is(err, ErrNotFound) {
			return 0, err
		}
		if err := s.repo.CreateTask(ctx, task); err != nil {
			return 0, err
		}
	}
	return len(snap.Tasks), nil
}

// Validate checks ids and statuses before anything is written.
func (s *Snapshot) Validate() error {
	if s.Version != "" && s.Version != SnapshotVersion {
		return fmt.Errorf("unsupported snapshot version: %q", s.Version)
	}
	seen := map[string]struct{}{}
	for i, task := range s.Tasks {
		id := strings.TrimSpace(task.ID)
		if id == "" {
			return fmt.Errorf("tasks[%d].id is required", i)
		}
		if _, exists := seen[id]; exists {
			return fmt.Errorf("duplicate task id: %q", id)
		}
		seen[id] = struct{}{}
		if strings.TrimSpace(task.Title) == "" {
			return fmt.Errorf("tasks[%d].title is required", i)
		}
		if task.Status == "" {
			s.Tasks[i].Status = domain.StatusNotStarted
			continue
		}
		if !task.Status.Valid() {
			status, ok := domain.LookupStatus(string(task.Status))
			if !ok {
				return fmt.Errorf("tasks[%d].status %q is invalid", i, task.Status)
			}
			s.Tasks[i].Status = status
		}
	}
	return nil
}

func (s *Snapshot) sort() {
	slices.SortFunc(s.Tasks, func(a, b domain.Task) int {
		return cmp.Compare(a.ID, b.ID)
	})
}
