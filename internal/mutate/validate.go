package mutate

import (
	"unicode/utf8"

	"todolists/internal/model"
)

const (
	MaxListNameLen = 100
	MaxTodoTextLen = 200
)

// ValidateListName checks length and uniqueness against every list in the
// session, including the one being renamed. Callers trim the name first.
func ValidateListName(name string, lists []model.List) error {
	if n := utf8.RuneCountInString(name); n < 1 || n > MaxListNameLen {
		return ValidationError{Kind: ErrInvalidLength, Message: "List names must be between 1 and 100 characters."}
	}
	for _, l := range lists {
		if l.Name == name {
			return ValidationError{Kind: ErrDuplicateName, Message: "List names must be unique."}
		}
	}
	return nil
}

func ValidateTodoText(text string) error {
	if n := utf8.RuneCountInString(text); n < 1 || n > MaxTodoTextLen {
		return ValidationError{Kind: ErrInvalidLength, Message: "Todos must be between 1 and 200 characters."}
	}
	return nil
}

func IsValidIndex(i, n int) bool {
	return i >= 0 && i < n
}
