// Package board holds the client-side board state and the pure projection
// from that state to the three status columns.
package board

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/hylla/tavla/internal/domain"
)

// SortMode selects card order within a column.
type SortMode string

const (
	SortRecent  SortMode = "recent"
	SortDueSoon SortMode = "dueSoon"
)

// ParseSortMode maps a config or flag value onto a SortMode, defaulting to SortRecent.
func ParseSortMode(raw string) SortMode {
	if strings.EqualFold(strings.TrimSpace(raw), string(SortDueSoon)) {
		return SortDueSoon
	}
	return SortRecent
}

// Next toggles between the two sort modes.
func (s SortMode) Next() SortMode {
	if s == SortDueSoon {
		return SortRecent
	}
	return SortDueSoon
}

// Label is the short name shown in the header.
func (s SortMode) Label() string {
	if s == SortDueSoon {
		return "due soon"
	}
	return "recent"
}

// ProjectOptions are the control values a projection reads.
type ProjectOptions struct {
	Query string
	Sort  SortMode
}

// Column is one status lane of the projected board.
type Column struct {
	Status domain.Status
	Tasks  []domain.Task
}

// Count returns the number of cards in the column.
func (c Column) Count() int {
	return len(c.Tasks)
}

// Board is the projected view model.
type Board struct {
	Columns [3]Column
}

// Total returns the number of projected cards across all columns.
func (b Board) Total() int {
	total := 0
	for _, col := range b.Columns {
		total += col.Count()
	}
	return total
}

// Column returns the lane for status.
func (b Board) Column(status domain.Status) Column {
	return b.Columns[status.Index()]
}

// Project filters, sorts and groups tasks. It never mutates the input slice.
func Project(tasks []domain.Task, opts ProjectOptions) Board {
	visible := Filter(tasks, opts.Query)
	Sort(visible, opts.Sort)

	var out Board
	for i, status := range domain.Statuses {
		out.Columns[i] = Column{Status: status, Tasks: []domain.Task{}}
	}
	for _, task := range visible {
		idx := task.Status.Index()
		out.Columns[idx].Tasks = append(out.Columns[idx].Tasks, task)
	}
	return out
}

// Filter returns a copy of the tasks whose title contains query, ignoring case.
func Filter(tasks []domain.Task, query string) []domain.Task {
	query = strings.ToLower(strings.TrimSpace(query))
	out := make([]domain.Task, 0, len(tasks))
	for _, task := range tasks {
		if query == "" || strings.Contains(strings.ToLower(task.Title), query) {
			out = append(out, task)
		}
	}
	return out
}

// Sort orders tasks in place. The sort is stable so equal keys keep server order.
func Sort(tasks []domain.Task, mode SortMode) {
	switch mode {
	case SortDueSoon:
		slices.SortStableFunc(tasks, compareDueSoon)
	default:
		slices.SortStableFunc(tasks, compareRecent)
	}
}

// compareRecent orders by created_at descending using plain string comparison.
func compareRecent(a, b domain.Task) int {
	return cmp.Compare(b.CreatedAt, a.CreatedAt)
}

// compareDueSoon puts the earliest due first and undated tasks last.
func compareDueSoon(a, b domain.Task) int {
	aDue, aOK := a.DueTime()
	bDue, bOK := b.DueTime()
	switch {
	case aOK && bOK:
		if c := compareTime(aDue, bDue); c != 0 {
			return c
		}
	case aOK:
		return -1
	case bOK:
		return 1
	}
	return compareRecent(a, b)
}

func compareTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	default:
		return 0
	}
}
