package web

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"todolists/internal/model"
	"todolists/internal/mutate"
)

const (
	msgListCreated   = "The list was successfully created!"
	msgListRenamed   = "The list name was successfully changed!"
	msgListDeleted   = "The list was successfully deleted."
	msgTodoAdded     = "A new todo was added!"
	msgTodosComplete = "All todos marked complete!"
	msgTodoUpdated   = "This todo has been updated."
)

type listsVM struct {
	baseVM
	Lists []model.Indexed[model.List]
}

type newListVM struct {
	baseVM
	ListName string
}

type listVM struct {
	baseVM
	Index    int
	List     model.List
	Todos    []model.Indexed[model.Todo]
	TodoText string
}

type editListVM struct {
	baseVM
	Index    int
	List     model.List
	ListName string
}

// pathIndex parses a positional index from the URL. Anything that is not a
// plain integer yields -1, which every operation reports as not found.
func pathIndex(r *http.Request, name string) int {
	n, err := strconv.Atoi(strings.TrimSpace(r.PathValue(name)))
	if err != nil {
		return -1
	}
	return n
}

func listPath(i int) string { return fmt.Sprintf("/lists/%d", i) }

func listStreamURL(i int) string { return fmt.Sprintf("/events?view=list&list=%d", i) }

// notFound turns a NotFoundError into an error flash plus redirect. Missing
// lists go back to the overview, missing todos to their list.
func notFound(w http.ResponseWriter, r *http.Request, st *model.Session, listIndex int, err error) bool {
	var nf mutate.NotFoundError
	if !errors.As(err, &nf) {
		return false
	}
	st.Error = nf.Message()
	if nf.Kind == "todo" {
		redirect(w, r, listPath(listIndex))
		return true
	}
	redirect(w, r, "/lists")
	return true
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	redirect(w, r, "/lists")
}

func (s *Server) listsViewModel(st *model.Session, base baseVM) listsVM {
	return listsVM{baseVM: base, Lists: model.ReorderLists(st.Lists)}
}

func (s *Server) listViewModel(st *model.Session, base baseVM, i int, todoText string) listVM {
	l := st.Lists[i]
	return listVM{
		baseVM:   base,
		Index:    i,
		List:     l,
		Todos:    model.ReorderTodos(l.Todos),
		TodoText: todoText,
	}
}

func (s *Server) handleLists(w http.ResponseWriter, r *http.Request, st *model.Session) {
	vm := s.listsViewModel(st, s.baseVMForRequest(r, st, "/events?view=lists"))
	s.writeHTMLTemplate(w, "lists.html", vm)
}

func (s *Server) handleListNew(w http.ResponseWriter, r *http.Request, st *model.Session) {
	s.writeHTMLTemplate(w, "new_list.html", newListVM{baseVM: s.baseVMForRequest(r, st, "")})
}

func (s *Server) handleListCreate(w http.ResponseWriter, r *http.Request, st *model.Session) {
	raw := r.FormValue("list_name")
	name := strings.TrimSpace(raw)

	if err := mutate.ValidateListName(name, st.Lists); err != nil {
		st.Error = err.Error()
		s.writeHTMLTemplate(w, "new_list.html", newListVM{
			baseVM:   s.baseVMForRequest(r, st, ""),
			ListName: raw,
		})
		return
	}
	mutate.CreateList(st, name)
	st.Success = msgListCreated
	redirect(w, r, "/lists")
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request, st *model.Session) {
	i := pathIndex(r, "list")
	if !mutate.IsValidIndex(i, len(st.Lists)) {
		st.Error = mutate.NotFoundError{Kind: "list", Index: i}.Message()
		redirect(w, r, "/lists")
		return
	}
	vm := s.listViewModel(st, s.baseVMForRequest(r, st, listStreamURL(i)), i, "")
	s.writeHTMLTemplate(w, "list.html", vm)
}

func (s *Server) handleListEdit(w http.ResponseWriter, r *http.Request, st *model.Session) {
	i := pathIndex(r, "list")
	l, err := mutate.FindList(st, i)
	if notFound(w, r, st, i, err) {
		return
	}
	s.writeHTMLTemplate(w, "edit_list.html", editListVM{
		baseVM:   s.baseVMForRequest(r, st, ""),
		Index:    i,
		List:     *l,
		ListName: l.Name,
	})
}

func (s *Server) handleListRename(w http.ResponseWriter, r *http.Request, st *model.Session) {
	i := pathIndex(r, "list")
	l, err := mutate.FindList(st, i)
	if notFound(w, r, st, i, err) {
		return
	}
	raw := r.FormValue("list_name")
	name := strings.TrimSpace(raw)

	// The list being renamed is part of the uniqueness check, so keeping the
	// current name is reported as a duplicate.
	if err := mutate.ValidateListName(name, st.Lists); err != nil {
		st.Error = err.Error()
		s.writeHTMLTemplate(w, "edit_list.html", editListVM{
			baseVM:   s.baseVMForRequest(r, st, ""),
			Index:    i,
			List:     *l,
			ListName: raw,
		})
		return
	}
	if err := mutate.RenameList(st, i, name); notFound(w, r, st, i, err) {
		return
	}
	st.Success = msgListRenamed
	redirect(w, r, listPath(i))
}

func (s *Server) handleListDelete(w http.ResponseWriter, r *http.Request, st *model.Session) {
	i := pathIndex(r, "list")
	if err := mutate.DeleteList(st, i); notFound(w, r, st, i, err) {
		return
	}
	st.Success = msgListDeleted
	redirect(w, r, "/lists")
}

func (s *Server) handleTodoCreate(w http.ResponseWriter, r *http.Request, st *model.Session) {
	i := pathIndex(r, "list")
	if _, err := mutate.FindList(st, i); notFound(w, r, st, i, err) {
		return
	}
	// Todo text is validated as submitted, without trimming.
	text := r.FormValue("todo")
	if err := mutate.ValidateTodoText(text); err != nil {
		st.Error = err.Error()
		vm := s.listViewModel(st, s.baseVMForRequest(r, st, listStreamURL(i)), i, text)
		s.writeHTMLTemplate(w, "list.html", vm)
		return
	}
	if err := mutate.AddTodo(st, i, text); notFound(w, r, st, i, err) {
		return
	}
	st.Success = msgTodoAdded
	redirect(w, r, listPath(i))
}

func (s *Server) handleTodosCompleteAll(w http.ResponseWriter, r *http.Request, st *model.Session) {
	i := pathIndex(r, "list")
	if err := mutate.CompleteAllTodos(st, i); notFound(w, r, st, i, err) {
		return
	}
	st.Success = msgTodosComplete
	redirect(w, r, listPath(i))
}

func (s *Server) handleTodoDelete(w http.ResponseWriter, r *http.Request, st *model.Session) {
	i, j := pathIndex(r, "list"), pathIndex(r, "todo")
	if err := mutate.DeleteTodo(st, i, j); notFound(w, r, st, i, err) {
		return
	}
	redirect(w, r, listPath(i))
}

func (s *Server) handleTodoToggle(w http.ResponseWriter, r *http.Request, st *model.Session) {
	i, j := pathIndex(r, "list"), pathIndex(r, "todo")
	completed := r.FormValue("completed") == "true"
	if err := mutate.ToggleTodo(st, i, j, completed); notFound(w, r, st, i, err) {
		return
	}
	st.Success = msgTodoUpdated
	redirect(w, r, listPath(i))
}
