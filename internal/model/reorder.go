package model

// Indexed pairs a value with its position in the stored sequence.
type Indexed[T any] struct {
	Index int
	Value T
}

// Reorder returns items with the not-done ones first. Both groups keep their
// original relative order and every entry keeps its stored index, so views
// can link to the real position. The input slice is left untouched.
func Reorder[T any](items []T, done func(T) bool) []Indexed[T] {
	out := make([]Indexed[T], 0, len(items))
	var finished []Indexed[T]
	for i, it := range items {
		if done(it) {
			finished = append(finished, Indexed[T]{Index: i, Value: it})
			continue
		}
		out = append(out, Indexed[T]{Index: i, Value: it})
	}
	return append(out, finished...)
}

func ReorderLists(lists []List) []Indexed[List] {
	return Reorder(lists, List.Completed)
}

func ReorderTodos(todos []Todo) []Indexed[Todo] {
	return Reorder(todos, func(t Todo) bool { return t.Completed })
}
