package mutate

import (
	"errors"
	"strings"
	"testing"

	"todolists/internal/model"
)

func TestGroceriesScenario(t *testing.T) {
	s := model.NewSession()
	if err := ValidateListName("Groceries", s.Lists); err != nil {
		t.Fatalf("validate: %v", err)
	}
	i := CreateList(s, "Groceries")
	if err := AddTodo(s, i, "Milk"); err != nil {
		t.Fatalf("add milk: %v", err)
	}
	if got := s.Lists[i].Todos[0].Completed; got {
		t.Fatalf("new todo should start incomplete")
	}
	if err := AddTodo(s, i, "Eggs"); err != nil {
		t.Fatalf("add eggs: %v", err)
	}
	if err := CompleteAllTodos(s, i); err != nil {
		t.Fatalf("complete all: %v", err)
	}

	l := s.Lists[i]
	if l.Remaining() != 0 {
		t.Fatalf("remaining = %d, want 0", l.Remaining())
	}
	if l.Progress() != "0 / 2" {
		t.Fatalf("progress = %q, want %q", l.Progress(), "0 / 2")
	}
	if !l.Completed() {
		t.Fatalf("expected list to be completed")
	}
}

func TestDuplicateListScenario(t *testing.T) {
	s := model.NewSession()
	CreateList(s, "A")
	err := ValidateListName("A", s.Lists)
	if !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}
	if len(s.Lists) != 1 {
		t.Fatalf("expected exactly one list, got %d", len(s.Lists))
	}
}

func TestRenameToOwnNameIsDuplicate(t *testing.T) {
	s := model.NewSession()
	CreateList(s, "Chores")
	if err := ValidateListName("Chores", s.Lists); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("expected renaming to the unchanged name to collide, got %v", err)
	}
}

func TestLongTodoRejectedLeavesListUnchanged(t *testing.T) {
	s := model.NewSession()
	i := CreateList(s, "L")
	text := strings.Repeat("x", 201)
	if err := ValidateTodoText(text); !errors.Is(err, ErrInvalidLength) {
		t.Fatalf("expected ErrInvalidLength, got %v", err)
	}
	if n := len(s.Lists[i].Todos); n != 0 {
		t.Fatalf("expected no todos, got %d", n)
	}
}

func TestDeleteListShiftsIndices(t *testing.T) {
	s := model.NewSession()
	CreateList(s, "first")
	CreateList(s, "second")
	if err := DeleteList(s, 0); err != nil {
		t.Fatalf("delete: %v", err)
	}
	l, err := FindList(s, 0)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if l.Name != "second" {
		t.Fatalf("expected second list at index 0, got %q", l.Name)
	}
	if _, err := FindList(s, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected index 1 to be gone, got %v", err)
	}
}

func TestTodoOperations(t *testing.T) {
	s := model.NewSession()
	i := CreateList(s, "L")
	for _, name := range []string{"a", "b", "c"} {
		if err := AddTodo(s, i, name); err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
	}

	if err := ToggleTodo(s, i, 1, true); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !s.Lists[i].Todos[1].Completed {
		t.Fatalf("expected b completed")
	}
	// Toggle sets, it does not flip.
	if err := ToggleTodo(s, i, 1, true); err != nil {
		t.Fatalf("toggle again: %v", err)
	}
	if !s.Lists[i].Todos[1].Completed {
		t.Fatalf("expected b still completed")
	}
	if err := ToggleTodo(s, i, 1, false); err != nil {
		t.Fatalf("toggle off: %v", err)
	}
	if s.Lists[i].Todos[1].Completed {
		t.Fatalf("expected b incomplete again")
	}
	if err := ToggleTodo(s, i, 1, true); err != nil {
		t.Fatalf("toggle on: %v", err)
	}

	if err := DeleteTodo(s, i, 0); err != nil {
		t.Fatalf("delete todo: %v", err)
	}
	if got := s.Lists[i].Todos[0].Name; got != "b" {
		t.Fatalf("expected b to shift to index 0, got %q", got)
	}
	if err := RenameList(s, i, "Renamed"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if s.Lists[i].Name != "Renamed" {
		t.Fatalf("rename did not apply")
	}
}

func TestOutOfRangeIndicesReturnNotFound(t *testing.T) {
	s := model.NewSession()
	i := CreateList(s, "L")

	var nf NotFoundError
	if err := AddTodo(s, 5, "x"); !errors.As(err, &nf) || nf.Kind != "list" {
		t.Fatalf("expected list NotFoundError, got %v", err)
	}
	if nf.Message() != "That list could not be found." {
		t.Fatalf("unexpected message %q", nf.Message())
	}
	if err := ToggleTodo(s, i, 0, true); !errors.As(err, &nf) || nf.Kind != "todo" {
		t.Fatalf("expected todo NotFoundError, got %v", err)
	}
	if err := DeleteTodo(s, i, -1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	for _, op := range []func() error{
		func() error { return RenameList(s, 3, "x") },
		func() error { return DeleteList(s, 3) },
		func() error { return CompleteAllTodos(s, -2) },
	} {
		if err := op(); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	}
	if len(s.Lists) != 1 {
		t.Fatalf("failed operations must not change the session")
	}
}
