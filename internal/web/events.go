package web

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"todolists/internal/mutate"

	"github.com/starfederation/datastar-go/datastar"
)

const mainSelector = "#todolists-main"

// sessionHub fans out "state changed" pings to the open event streams of one
// session, e.g. a second tab.
type sessionHub struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

func newSessionHub() *sessionHub {
	return &sessionHub{subs: map[string]map[chan struct{}]struct{}{}}
}

func (h *sessionHub) subscribe(id string) (ch chan struct{}, cancel func()) {
	ch = make(chan struct{}, 8)
	h.mu.Lock()
	if h.subs[id] == nil {
		h.subs[id] = map[chan struct{}]struct{}{}
	}
	h.subs[id][ch] = struct{}{}
	h.mu.Unlock()
	return ch, func() {
		h.mu.Lock()
		delete(h.subs[id], ch)
		if len(h.subs[id]) == 0 {
			delete(h.subs, id)
		}
		h.mu.Unlock()
		close(ch)
	}
}

func (h *sessionHub) broadcast(id string) {
	h.mu.Lock()
	for ch := range h.subs[id] {
		select {
		case ch <- struct{}{}:
		default:
			// Subscriber already has a pending ping.
		}
	}
	h.mu.Unlock()
}

func (h *sessionHub) subscribers(id string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[id])
}

// renderMain renders the main fragment for the requested view. gone reports
// that the viewed list no longer exists.
func (s *Server) renderMain(r *http.Request, id, view string, listIndex int) (html string, gone bool, err error) {
	unlock := s.sessions.lock(id)
	st, err := s.sessions.load(r.Context(), id)
	unlock()
	if err != nil {
		return "", false, err
	}

	// Streams never consume flash messages; those belong to full page loads.
	switch view {
	case "list":
		if !mutate.IsValidIndex(listIndex, len(st.Lists)) {
			return "", true, nil
		}
		html, err = s.renderTemplate("list_main", s.listViewModel(st, s.fragmentVM(r), listIndex, ""))
	default:
		html, err = s.renderTemplate("lists_main", s.listsViewModel(st, s.fragmentVM(r)))
	}
	return html, false, err
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessions.existingID(r)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	view := r.URL.Query().Get("view")
	listIndex, err := strconv.Atoi(r.URL.Query().Get("list"))
	if view == "list" && err != nil {
		http.Error(w, "invalid list index", http.StatusBadRequest)
		return
	}

	ch, cancel := s.hub.subscribe(id)
	defer cancel()

	sse := datastar.NewSSE(w, r)
	patch := func() bool {
		html, gone, err := s.renderMain(r, id, view, listIndex)
		if err != nil {
			s.log.Error("event render failed", "session", shortID(id), "err", err)
			_ = sse.ExecuteScript(fmt.Sprintf(`console.error(%q)`, "todolists: refresh failed"))
			return true
		}
		if gone {
			_ = sse.ExecuteScript(`window.location.assign("/lists")`)
			return false
		}
		_ = sse.PatchElements(html, datastar.WithSelector(mainSelector), datastar.WithMode(datastar.ElementPatchModeOuter))
		return true
	}
	if !patch() {
		return
	}

	keepAlive := time.NewTicker(25 * time.Second)
	defer keepAlive.Stop()

	for {
		select {
		case <-sse.Context().Done():
			return
		case <-s.streamsDone:
			return
		case <-keepAlive.C:
			_ = sse.PatchSignals([]byte(`{}`))
		case <-ch:
			if !patch() {
				return
			}
		}
	}
}
