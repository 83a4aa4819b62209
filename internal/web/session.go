package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"todolists/internal/model"
	"todolists/internal/store"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

const sessionCookieName = "todolists_session"

// sessionHandlerFunc receives the caller's session state explicitly. Changes
// made to st are saved after the handler returns.
type sessionHandlerFunc func(w http.ResponseWriter, r *http.Request, st *model.Session)

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

type sessionManager struct {
	store  store.SessionStore
	secret []byte
	ttl    time.Duration
	secure bool
	log    *log.Logger

	// onChange fires after a save that changed the session's lists.
	onChange func(id string)
	now      func() time.Time

	locksMu sync.Mutex
	locks   map[string]*sessionLock
}

func newSessionManager(st store.SessionStore, secret []byte, ttl time.Duration, secure bool, logger *log.Logger) *sessionManager {
	return &sessionManager{
		store:  st,
		secret: secret,
		ttl:    ttl,
		secure: secure,
		log:    logger,
		locks:  map[string]*sessionLock{},
		now:    time.Now,
	}
}

// lock serializes requests of one session; other sessions never wait.
func (m *sessionManager) lock(id string) (unlock func()) {
	m.locksMu.Lock()
	l, ok := m.locks[id]
	if !ok {
		l = &sessionLock{}
		m.locks[id] = l
	}
	l.refs++
	m.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, id)
		}
		m.locksMu.Unlock()
	}
}

// existingID returns the session id from a valid cookie.
func (m *sessionManager) existingID(r *http.Request) (string, bool) {
	c, err := r.Cookie(sessionCookieName)
	if err != nil {
		return "", false
	}
	claim, err := verifyToken(m.secret, c.Value, m.now())
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(claim.SID), true
}

// resolveID returns the caller's session id, starting a new session when the
// request has no valid cookie. The cookie is re-issued on every call, so the
// TTL counts idle time for the cookie just as it does for the stores.
func (m *sessionManager) resolveID(w http.ResponseWriter, r *http.Request) (string, error) {
	id, ok := m.existingID(r)
	if !ok {
		id = uuid.NewString()
		m.log.Debug("session created", "session", shortID(id))
	}
	tok, err := newSessionToken(m.secret, id, m.now().Add(m.ttl))
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    tok,
		Path:     "/",
		MaxAge:   int(m.ttl / time.Second),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return id, nil
}

// load returns the stored state, or a fresh one for unknown sessions.
func (m *sessionManager) load(ctx context.Context, id string) (*model.Session, error) {
	st, ok, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return model.NewSession(), nil
	}
	return st, nil
}

func (m *sessionManager) handle(fn sessionHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := m.resolveID(w, r)
		if err != nil {
			internalError(w, m.log, err)
			return
		}
		unlock := m.lock(id)
		defer unlock()

		st, err := m.load(r.Context(), id)
		if err != nil {
			internalError(w, m.log, err)
			return
		}
		before, _ := json.Marshal(st.Lists)

		// The response is held back until the state is saved, so a redirect
		// target always observes it.
		buf := newBufferedResponse(w)
		fn(buf, r, st)

		if err := m.store.Set(r.Context(), id, st); err != nil {
			m.log.Error("session save failed", "session", shortID(id), "err", err)
			w.Header().Del("Location")
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		buf.flush()

		after, _ := json.Marshal(st.Lists)
		if m.onChange != nil && !bytes.Equal(before, after) {
			m.onChange(id)
		}
	}
}

type bufferedResponse struct {
	w      http.ResponseWriter
	status int
	body   bytes.Buffer
}

func newBufferedResponse(w http.ResponseWriter) *bufferedResponse {
	return &bufferedResponse{w: w}
}

// Header shares the underlying header map so cookies set earlier survive.
func (b *bufferedResponse) Header() http.Header { return b.w.Header() }

func (b *bufferedResponse) WriteHeader(code int) {
	if b.status == 0 {
		b.status = code
	}
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(p)
}

func (b *bufferedResponse) flush() {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	b.w.WriteHeader(b.status)
	_, _ = b.w.Write(b.body.Bytes())
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
