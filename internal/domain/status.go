package domain

import (
	"slices"
	"strings"
)

// Status is the board column a task belongs to. The value is the canonical code;
// the server exchanges display labels, so convert with Label at the edges.
type Status string

const (
	StatusNotStarted Status = "NOT_STARTED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
)

// Statuses lists every status in board column order.
var Statuses = []Status{StatusNotStarted, StatusInProgress, StatusDone}

var statusLabels = map[Status]string{
	StatusNotStarted: "Not Started",
	StatusInProgress: "In Progress",
	StatusDone:       "Done",
}

// Code returns the canonical enum code.
func (s Status) Code() string {
	if _, ok := statusLabels[s]; !ok {
		return string(StatusNotStarted)
	}
	return string(s)
}

// Label returns the display label, which is also the wire value the API expects.
func (s Status) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return statusLabels[StatusNotStarted]
}

// Index returns the column position of s.
func (s Status) Index() int {
	idx := slices.Index(Statuses, s)
	if idx < 0 {
		return 0
	}
	return idx
}

// Valid reports whether s is one of the known codes.
func (s Status) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

func (s Status) String() string {
	return s.Label()
}

// LookupStatus resolves a code or label ("DONE", "Done", "in-progress", "in progress").
func LookupStatus(raw string) (Status, bool) {
	key := statusKey(raw)
	if key == "" {
		return "", false
	}
	for _, status := range Statuses {
		if key == statusKey(string(status)) || key == statusKey(statusLabels[status]) {
			return status, true
		}
	}
	return "", false
}

// ParseStatus is LookupStatus with unknown or empty input mapped to StatusNotStarted.
func ParseStatus(raw string) Status {
	if status, ok := LookupStatus(raw); ok {
		return status
	}
	return StatusNotStarted
}

// statusKey folds case and word separators so codes and labels compare equal.
func statusKey(raw string) string {
	raw = strings.ToUpper(strings.TrimSpace(raw))
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '_':
			return -1
		}
		return r
	}, raw)
}

func sortedLabels() []string {
	out := make([]string, 0, len(statusLabels))
	for _, label := range statusLabels {
		out = append(out, label)
	}
	slices.Sort(out)
	return out
}
