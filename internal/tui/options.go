package tui

import (
	"strings"
	"time"

	charmLog "github.com/charmbracelet/log"

	"github.com/hylla/tavla/internal/board"
)

// DefaultToastDuration is how long a toast stays on screen.
const DefaultToastDuration = 2500 * time.Millisecond

type Option func(*Model)

// WithStudentName sets the name shown in the board header.
func WithStudentName(name string) Option {
	return func(m *Model) {
		if name = strings.TrimSpace(name); name != "" {
			m.studentName = name
		}
	}
}

func WithSortMode(mode board.SortMode) Option {
	return func(m *Model) {
		m.sortMode = board.ParseSortMode(string(mode))
	}
}

// WithToastDuration overrides the toast lifetime. Zero keeps toasts until
// the next one replaces them.
func WithToastDuration(d time.Duration) Option {
	return func(m *Model) {
		if d >= 0 {
			m.toastDuration = d
		}
	}
}

// WithClipboard replaces the system clipboard writer used by copy actions.
func WithClipboard(write func(string) error) Option {
	return func(m *Model) {
		if write != nil {
			m.copyText = write
		}
	}
}

func WithLogger(logger *charmLog.Logger) Option {
	return func(m *Model) {
		if logger != nil {
			m.logger = logger
		}
	}
}
