package model

import "fmt"

type Todo struct {
	Name      string `json:"name"`
	Completed bool   `json:"completed"`
}

type List struct {
	Name  string `json:"name"`
	Todos []Todo `json:"todos"`
}

// Session is everything a browser session owns. Lists are addressed by
// position, so deleting one shifts the indices of every later list.
type Session struct {
	Lists []List `json:"lists"`

	// One-shot flash messages, cleared by the next full page render.
	Error   string `json:"error,omitempty"`
	Success string `json:"success,omitempty"`
}

func NewSession() *Session {
	return &Session{Lists: []List{}}
}

// Normalize repairs state decoded from a store (nil slices from older rows).
func (s *Session) Normalize() {
	if s.Lists == nil {
		s.Lists = []List{}
	}
	for i := range s.Lists {
		if s.Lists[i].Todos == nil {
			s.Lists[i].Todos = []Todo{}
		}
	}
}

// TakeFlash returns and clears the pending flash messages.
func (s *Session) TakeFlash() (errMsg, success string) {
	errMsg, success = s.Error, s.Success
	s.Error, s.Success = "", ""
	return errMsg, success
}

func (l List) Remaining() int {
	n := 0
	for _, t := range l.Todos {
		if !t.Completed {
			n++
		}
	}
	return n
}

func (l List) Total() int { return len(l.Todos) }

// Progress renders "<remaining> / <total>".
func (l List) Progress() string {
	return fmt.Sprintf("%d / %d", l.Remaining(), l.Total())
}

func (l List) NotEmpty() bool { return len(l.Todos) > 0 }

// Completed is false for an empty list.
func (l List) Completed() bool {
	return l.NotEmpty() && l.Remaining() == 0
}

func (l List) CSSClass() string {
	if l.Completed() {
		return "complete"
	}
	return ""
}
