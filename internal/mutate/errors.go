package mutate

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidLength = errors.New("invalid length")
	ErrDuplicateName = errors.New("duplicate name")
	ErrNotFound      = errors.New("not found")
)

// ValidationError carries the flash message shown to the user.
// errors.Is matches it against ErrInvalidLength / ErrDuplicateName.
type ValidationError struct {
	Kind    error
	Message string
}

func (e ValidationError) Error() string { return e.Message }

func (e ValidationError) Unwrap() error { return e.Kind }

type NotFoundError struct {
	Kind  string // list|todo
	Index int
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %d", e.Kind, e.Index)
}

func (e NotFoundError) Is(target error) bool { return target == ErrNotFound }

// Message is the user-facing flash for a missing list or todo.
func (e NotFoundError) Message() string {
	return fmt.Sprintf("That %s could not be found.", e.Kind)
}
