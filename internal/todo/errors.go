package todo

import (
	"errors"
	"fmt"
)

// ErrNotFound matches every "task does not exist" error via errors.Is.
var ErrNotFound = errors.New("todo not found")

// NotFoundError is raised by Update when the target id does not exist.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("todo %s not found", e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
