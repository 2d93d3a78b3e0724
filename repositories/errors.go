package repositories

import (
	"errors"
	"fmt"
)

type NotFoundError struct {
	entityName string
	id         string
}

func NewNotFoundError(entityName, id string) *NotFoundError {
	return &NotFoundError{entityName: entityName, id: id}
}

func (m *NotFoundError) Error() string {
	if m.id == "" {
		return fmt.Sprintf("%s not found", m.entityName)
	}

	return fmt.Sprintf("%s %s not found", m.entityName, m.id)
}

func (e *NotFoundError) Is(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}

// IsNotFound reports whether err, or anything it wraps, is a NotFoundError.
func IsNotFound(err error) bool {
	return errors.Is(err, &NotFoundError{})
}
