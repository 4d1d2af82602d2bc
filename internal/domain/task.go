package domain

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	DefaultTitle    = "Untitled Task"
	DefaultCategory = "General"
	MaxTitleLength  = 200

	// DueDateLayout is the only due date format the API accepts.
	DueDateLayout = "2006-01-02"
	// TimestampLayout keeps created_at/updated_at fixed width so string order matches time order.
	TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"
)

var dueDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Task is the canonical card shape. Every field is a plain string so a
// partially populated server payload never yields nil values downstream.
type Task struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Category    string `json:"category"`
	Status      Status `json:"status"`
	DueDate     string `json:"due_date"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// TaskInput holds create values before validation.
type TaskInput struct {
	ID          string
	Title       string
	Category    string
	Status      string
	DueDate     string
	Description string
}

// TaskPatch holds a partial update. Nil fields are left unchanged.
type TaskPatch struct {
	Title       *string
	Category    *string
	Status      *string
	DueDate     *string
	Description *string
}

// Empty reports whether the patch carries no fields.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Category == nil && p.Status == nil && p.DueDate == nil && p.Description == nil
}

func NewTask(in TaskInput, now time.Time) (Task, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Title = strings.TrimSpace(in.Title)
	in.Category = strings.TrimSpace(in.Category)
	in.DueDate = strings.TrimSpace(in.DueDate)

	if in.ID == "" {
		return Task{}, ErrInvalidID
	}
	if in.Title == "" {
		return Task{}, ErrTitleRequired
	}
	if utf8.RuneCountInString(in.Title) > MaxTitleLength {
		return Task{}, ErrTitleTooLong
	}
	if in.Category == "" {
		in.Category = DefaultCategory
	}
	if in.DueDate == "" {
		return Task{}, ErrDueDateRequired
	}
	if !ValidDueDate(in.DueDate) {
		return Task{}, ErrInvalidDueDate
	}
	status := StatusNotStarted
	if strings.TrimSpace(in.Status) != "" {
		parsed, ok := LookupStatus(in.Status)
		if !ok {
			return Task{}, ErrInvalidStatus
		}
		status = parsed
	}

	ts := FormatTimestamp(now)
	return Task{
		ID:          in.ID,
		Title:       in.Title,
		Category:    in.Category,
		Status:      status,
		DueDate:     in.DueDate,
		Description: in.Description,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}, nil
}

// Apply validates and applies a partial update, refreshing UpdatedAt.
func (t *Task) Apply(p TaskPatch, now time.Time) error {
	if p.Empty() {
		return ErrEmptyPatch
	}
	next := *t
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return ErrTitleEmpty
		}
		if utf8.RuneCountInString(title) > MaxTitleLength {
			return ErrTitleTooLong
		}
		next.Title = title
	}
	if p.Category != nil {
		category := strings.TrimSpace(*p.Category)
		if category == "" {
			return ErrCategoryEmpty
		}
		next.Category = category
	}
	if p.DueDate != nil {
		due := strings.TrimSpace(*p.DueDate)
		if due == "" {
			return ErrDueDateEmpty
		}
		if !ValidDueDate(due) {
			return ErrInvalidDueDate
		}
		next.DueDate = due
	}
	if p.Status != nil {
		status, ok := LookupStatus(*p.Status)
		if !ok {
			return ErrInvalidStatus
		}
		next.Status = status
	}
	if p.Description != nil {
		next.Description = *p.Description
	}
	next.UpdatedAt = FormatTimestamp(now)
	*t = next
	return nil
}

// DueTime parses DueDate. Full timestamps are accepted as well as bare dates.
func (t Task) DueTime() (time.Time, bool) {
	raw := strings.TrimSpace(t.DueDate)
	if raw == "" {
		return time.Time{}, false
	}
	if due, err := time.Parse(DueDateLayout, raw); err == nil {
		return due, true
	}
	if due, err := time.Parse(time.RFC3339, raw); err == nil {
		return due, true
	}
	return time.Time{}, false
}

// DueLabel formats the due date for a card ("Jan 2"), or "No due".
func (t Task) DueLabel() string {
	due, ok := t.DueTime()
	if !ok {
		if strings.TrimSpace(t.DueDate) == "" {
			return "No due"
		}
		return t.DueDate
	}
	return due.Format("Jan 2")
}

// CategoryLabel is the card badge text.
func (t Task) CategoryLabel() string {
	if strings.TrimSpace(t.Category) == "" {
		return "Uncategorized"
	}
	return t.Category
}

// ValidDueDate reports whether raw is a real YYYY-MM-DD date.
func ValidDueDate(raw string) bool {
	if !dueDatePattern.MatchString(raw) {
		return false
	}
	_, err := time.Parse(DueDateLayout, raw)
	return err == nil
}

// FormatTimestamp renders now in UTC with TimestampLayout.
func FormatTimestamp(now time.Time) string {
	return now.UTC().Format(TimestampLayout)
}
