package web

import (
	"embed"
	"errors"
	"html/template"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"todolists/internal/model"
	"todolists/internal/store"

	"github.com/CAFxX/httpcompression"
	"github.com/charmbracelet/log"
	"github.com/gorilla/csrf"
)

//go:generate curl -sSfL -o static/datastar.js https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0/bundles/datastar.js

//go:embed templates/*.html static
var assetsFS embed.FS

// datastarCDN serves the client when static/datastar.js was not vendored.
const datastarCDN = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0/bundles/datastar.js"

type ServerConfig struct {
	Addr   string
	Store  store.SessionStore
	Secret []byte

	SessionTTL    time.Duration
	SecureCookies bool

	// CSRF protects every POST with a token field (gorilla/csrf).
	CSRF bool
	// Compress gzip/brotli-encodes page responses.
	Compress bool
	// Markdown renders todo text as sanitized inline markdown.
	Markdown bool

	Logger *log.Logger
}

type Server struct {
	mu   sync.RWMutex
	cfg  ServerConfig
	tmpl *template.Template

	sessions *sessionManager
	hub      *sessionHub
	log      *log.Logger

	streamsDone chan struct{}
	closeOnce   sync.Once
}

// CloseStreams ends every open event stream. http.Server.Shutdown does not
// wait for them otherwise, as they never go idle.
func (s *Server) CloseStreams() {
	s.closeOnce.Do(func() { close(s.streamsDone) })
}

func (s *Server) cfgSnapshot() ServerConfig {
	s.mu.RLock()
	cfg := s.cfg
	s.mu.RUnlock()
	return cfg
}

func NewServer(cfg ServerConfig) (*Server, error) {
	cfg.Addr = strings.TrimSpace(cfg.Addr)
	if cfg.Store == nil {
		return nil, errors.New("web: store is nil")
	}
	if len(cfg.Secret) == 0 {
		return nil, errors.New("web: secret is empty")
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = store.DefaultTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard)
	}

	srv := &Server{cfg: cfg, log: cfg.Logger, hub: newSessionHub(), streamsDone: make(chan struct{})}
	tmpl, err := template.New("base").Funcs(template.FuncMap{
		"todoText": srv.todoText,
	}).ParseFS(assetsFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	srv.tmpl = tmpl
	srv.sessions = newSessionManager(cfg.Store, cfg.Secret, cfg.SessionTTL, cfg.SecureCookies, cfg.Logger)
	srv.sessions.onChange = srv.hub.broadcast
	return srv, nil
}

func (s *Server) Addr() string { return s.cfg.Addr }

func (s *Server) Handler() (http.Handler, error) {
	cfg := s.cfgSnapshot()

	pages := http.NewServeMux()
	pages.HandleFunc("GET /{$}", s.handleHome)
	pages.HandleFunc("GET /lists", s.sessions.handle(s.handleLists))
	pages.HandleFunc("GET /lists/new", s.sessions.handle(s.handleListNew))
	pages.HandleFunc("POST /lists", s.sessions.handle(s.handleListCreate))
	pages.HandleFunc("GET /lists/{list}", s.sessions.handle(s.handleList))
	pages.HandleFunc("GET /lists/{list}/edit", s.sessions.handle(s.handleListEdit))
	pages.HandleFunc("POST /lists/{list}", s.sessions.handle(s.handleListRename))
	pages.HandleFunc("POST /lists/{list}/delete", s.sessions.handle(s.handleListDelete))
	pages.HandleFunc("POST /lists/{list}/todos", s.sessions.handle(s.handleTodoCreate))
	pages.HandleFunc("POST /lists/{list}/todos/complete", s.sessions.handle(s.handleTodosCompleteAll))
	pages.HandleFunc("POST /lists/{list}/todos/{todo}/delete", s.sessions.handle(s.handleTodoDelete))
	pages.HandleFunc("POST /lists/{list}/todos/{todo}", s.sessions.handle(s.handleTodoToggle))
	pages.HandleFunc("GET /static/app.css", s.handleAppCSS)
	pages.HandleFunc("GET /static/datastar.js", s.handleDatastarJS)

	var h http.Handler = pages
	if cfg.Compress {
		compress, err := httpcompression.DefaultAdapter()
		if err != nil {
			return nil, err
		}
		h = compress(h)
	}

	// The event stream stays outside compression so patches flush immediately,
	// but inside CSRF so patched forms carry a token.
	app := http.NewServeMux()
	app.HandleFunc("GET /events", s.handleEvents)
	app.Handle("/", h)

	h = app
	if cfg.CSRF {
		protect := csrf.Protect(csrfKey(cfg.Secret),
			csrf.Secure(cfg.SecureCookies),
			csrf.Path("/"),
			csrf.FieldName("csrf_token"),
			csrf.ErrorHandler(http.HandlerFunc(s.handleCSRFFailure)),
		)
		h = protect(h)
		if !cfg.SecureCookies {
			protected := h
			h = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				protected.ServeHTTP(w, csrf.PlaintextHTTPRequest(r))
			})
		}
	}

	root := http.NewServeMux()
	root.HandleFunc("GET /health", s.handleHealth)
	root.Handle("/", h)
	return s.logRequests(root), nil
}

// redirect follows the usual web framework convention: 302 after GET,
// 303 after a form POST.
func redirect(w http.ResponseWriter, r *http.Request, to string) {
	code := http.StatusSeeOther
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		code = http.StatusFound
	}
	http.Redirect(w, r, to, code)
}

func internalError(w http.ResponseWriter, logger *log.Logger, err error) {
	logger.Error("internal error", "err", err)
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleAppCSS(w http.ResponseWriter, r *http.Request) {
	b, err := assetsFS.ReadFile("static/app.css")
	if err != nil || len(b) == 0 {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func (s *Server) handleDatastarJS(w http.ResponseWriter, r *http.Request) {
	b, err := assetsFS.ReadFile("static/datastar.js")
	if err != nil || len(b) == 0 {
		http.Redirect(w, r, datastarCDN, http.StatusFound)
		return
	}
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func (s *Server) handleCSRFFailure(w http.ResponseWriter, r *http.Request) {
	s.log.Warn("csrf rejected", "path", r.URL.Path, "reason", csrf.FailureReason(r))
	http.Error(w, "forbidden: invalid csrf token", http.StatusForbidden)
}

type baseVM struct {
	Error     string
	Success   string
	CSRFField template.HTML
	StreamURL string
}

// baseVMForRequest consumes the session's flash messages.
func (s *Server) baseVMForRequest(r *http.Request, st *model.Session, streamURL string) baseVM {
	errMsg, success := st.TakeFlash()
	vm := s.fragmentVM(r)
	vm.Error = errMsg
	vm.Success = success
	vm.StreamURL = streamURL
	return vm
}

// fragmentVM carries only what forms need; flash messages are left alone.
func (s *Server) fragmentVM(r *http.Request) baseVM {
	var vm baseVM
	if s.cfgSnapshot().CSRF {
		vm.CSRFField = csrf.TemplateField(r)
	}
	return vm
}

func (s *Server) renderTemplate(name string, data any) (string, error) {
	var b strings.Builder
	if err := s.tmpl.ExecuteTemplate(&b, name, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (s *Server) writeHTMLTemplate(w http.ResponseWriter, name string, data any) {
	html, err := s.renderTemplate(name, data)
	if err != nil {
		internalError(w, s.log, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, html)
}
