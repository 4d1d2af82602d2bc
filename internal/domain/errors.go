package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidID         = errors.New("invalid id")
	ErrTitleRequired     = errors.New("title is required")
	ErrTitleEmpty        = errors.New("title cannot be empty")
	ErrTitleTooLong      = fmt.Errorf("title must be <= %d characters", MaxTitleLength)
	ErrCategoryRequired  = errors.New("category is required")
	ErrCategoryEmpty     = errors.New("category cannot be empty")
	ErrDueDateRequired   = errors.New("due_date is required")
	ErrDueDateEmpty      = errors.New("due_date cannot be empty")
	ErrInvalidDueDate    = errors.New("due_date must be YYYY-MM-DD")
	ErrInvalidStatus     = fmt.Errorf("status must be one of %s", strings.Join(sortedLabels(), ", "))
	ErrEmptyPatch        = errors.New("no valid fields to update")
	ErrEmptyRequestBody  = errors.New("request body must be a non-empty JSON object")
	ErrMissingIDArgument = errors.New("missing path parameter: id")
)

var validationErrors = []error{
	ErrInvalidID,
	ErrTitleRequired,
	ErrTitleEmpty,
	ErrTitleTooLong,
	ErrCategoryRequired,
	ErrCategoryEmpty,
	ErrDueDateRequired,
	ErrDueDateEmpty,
	ErrInvalidDueDate,
	ErrInvalidStatus,
	ErrEmptyPatch,
	ErrEmptyRequestBody,
	ErrMissingIDArgument,
}

// IsValidation reports whether err is caused by rejected user input.
func IsValidation(err error) bool {
	return ValidationCause(err) != nil
}

// ValidationCause returns the validation sentinel wrapped by err, or nil.
func ValidationCause(err error) error {
	if err == nil {
		return nil
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return target
		}
	}
	return nil
}
