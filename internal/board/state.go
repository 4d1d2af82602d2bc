package board

import (
	"errors"
	"slices"

	"github.com/hylla/tavla/internal/domain"
)

var ErrTaskNotFound = errors.New("task not found")

// State is the client's in-memory board record. It is rebuilt from the
// server on every load and mutated only from the UI update loop.
type State struct {
	Tasks []domain.Task
	// Categories is the last server category list, before merging with task categories.
	Categories []string
	// CurrentCategory is the server-side filter; empty means all categories.
	CurrentCategory string
	Moves           MoveTracker
}

// SetTasks replaces the task list wholesale.
func (s *State) SetTasks(tasks []domain.Task) {
	s.Tasks = slices.Clone(tasks)
}

// SetCategories stores the refreshed server list and resets the category
// filter to all when the current one no longer exists. It reports whether
// the filter was reset.
func (s *State) SetCategories(categories []string) bool {
	s.Categories = slices.Clone(categories)
	if s.CurrentCategory == "" || slices.Contains(s.Categories, s.CurrentCategory) {
		return false
	}
	s.CurrentCategory = ""
	return true
}

// CategoryOptions is the reconciled list used by the filter and the form.
func (s State) CategoryOptions() []string {
	return domain.MergeCategories(s.Categories, s.Tasks)
}

// TaskByID finds one task in the loaded list.
func (s State) TaskByID(id string) (domain.Task, bool) {
	idx := s.indexOf(id)
	if idx < 0 {
		return domain.Task{}, false
	}
	return s.Tasks[idx], true
}

// PatchTask replaces the list entry with the same id and reports whether one existed.
func (s *State) PatchTask(task domain.Task) bool {
	idx := s.indexOf(task.ID)
	if idx < 0 {
		return false
	}
	s.Tasks[idx] = task
	return true
}

// BeginMove applies an optimistic status change. It returns ok=false and
// leaves the state untouched when the task already has the target status.
func (s *State) BeginMove(id string, to domain.Status) (Move, bool, error) {
	idx := s.indexOf(id)
	if idx < 0 {
		return Move{}, false, ErrTaskNotFound
	}
	from := s.Tasks[idx].Status
	if from == to {
		return Move{}, false, nil
	}
	s.Tasks[idx].Status = to
	return s.Moves.begin(id, from, to), true, nil
}

// ConfirmMove marks the move as accepted by the server.
func (s *State) ConfirmMove(move Move) bool {
	return s.Moves.settle(move)
}

// RevertMove restores the pre-move status. A move superseded by a later one
// for the same task is ignored so an older failure cannot clobber newer state.
func (s *State) RevertMove(move Move) bool {
	if !s.Moves.settle(move) {
		return false
	}
	idx := s.indexOf(move.TaskID)
	if idx < 0 {
		return false
	}
	if s.Tasks[idx].Status == move.To {
		s.Tasks[idx].Status = move.From
	}
	return true
}

// Project runs the pure board projection over the loaded tasks.
func (s State) Project(opts ProjectOptions) Board {
	return Project(s.Tasks, opts)
}

func (s State) indexOf(id string) int {
	return slices.IndexFunc(s.Tasks, func(t domain.Task) bool {
		return t.ID == id
	})
}
