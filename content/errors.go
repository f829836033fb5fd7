package content

import (
	"fmt"
	"strings"
)

// ValidationError collects every problem found in a record's input.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Problems, " ")
}

// ConflictError reports a slug already taken by another record.
type ConflictError struct {
	Slug string
}

func (e *ConflictError) Error() string {
	return "Slug already exists."
}

// NotFoundError reports a missing record.
type NotFoundError struct {
	Kind Kind
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found.", strings.TrimSuffix(string(e.Kind), "s"), e.ID)
}
