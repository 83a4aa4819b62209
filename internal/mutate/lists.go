package mutate

import (
	"slices"

	"todolists/internal/model"
)

// List operations mutate the session in place. Indices are positions, so
// deletes shift every later index down by one. Validation is the caller's
// job except for index bounds, which return NotFoundError.

func CreateList(s *model.Session, name string) int {
	s.Lists = append(s.Lists, model.List{Name: name, Todos: []model.Todo{}})
	return len(s.Lists) - 1
}

func FindList(s *model.Session, i int) (*model.List, error) {
	if !IsValidIndex(i, len(s.Lists)) {
		return nil, NotFoundError{Kind: "list", Index: i}
	}
	return &s.Lists[i], nil
}

func RenameList(s *model.Session, i int, name string) error {
	l, err := FindList(s, i)
	if err != nil {
		return err
	}
	l.Name = name
	return nil
}

func DeleteList(s *model.Session, i int) error {
	if !IsValidIndex(i, len(s.Lists)) {
		return NotFoundError{Kind: "list", Index: i}
	}
	s.Lists = slices.Delete(s.Lists, i, i+1)
	return nil
}

func AddTodo(s *model.Session, i int, text string) error {
	l, err := FindList(s, i)
	if err != nil {
		return err
	}
	l.Todos = append(l.Todos, model.Todo{Name: text})
	return nil
}

func findTodo(s *model.Session, i, j int) (*model.List, error) {
	l, err := FindList(s, i)
	if err != nil {
		return nil, err
	}
	if !IsValidIndex(j, len(l.Todos)) {
		return nil, NotFoundError{Kind: "todo", Index: j}
	}
	return l, nil
}

func DeleteTodo(s *model.Session, i, j int) error {
	l, err := findTodo(s, i, j)
	if err != nil {
		return err
	}
	l.Todos = slices.Delete(l.Todos, j, j+1)
	return nil
}

// ToggleTodo sets the flag to the given value rather than flipping it.
func ToggleTodo(s *model.Session, i, j int, completed bool) error {
	l, err := findTodo(s, i, j)
	if err != nil {
		return err
	}
	l.Todos[j].Completed = completed
	return nil
}

func CompleteAllTodos(s *model.Session, i int) error {
	l, err := FindList(s, i)
	if err != nil {
		return err
	}
	for k := range l.Todos {
		l.Todos[k].Completed = true
	}
	return nil
}
