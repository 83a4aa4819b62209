package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"todolists/internal/config"
	"todolists/internal/format"
	"todolists/internal/store"
	"todolists/internal/web"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

const (
	pruneInterval   = time.Minute
	shutdownTimeout = 10 * time.Second
)

type serveFlags struct {
	addr          string
	store         string
	dbPath        string
	sessionTTL    string
	secretFile    string
	secureCookies bool
	csrf          bool
	compress      bool
	markdown      bool
	open          bool
}

// apply copies the flags the user actually set over cfg.
func (f serveFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Addr = f.addr
	}
	if flags.Changed("store") {
		cfg.Store = f.store
	}
	if flags.Changed("db") {
		cfg.DBPath = f.dbPath
	}
	if flags.Changed("session-ttl") {
		cfg.SessionTTL = f.sessionTTL
	}
	if flags.Changed("secret-file") {
		cfg.SecretFile = f.secretFile
	}
	if flags.Changed("secure-cookies") {
		cfg.SecureCookies = f.secureCookies
	}
	if flags.Changed("csrf") {
		cfg.CSRF = f.csrf
	}
	if flags.Changed("compress") {
		cfg.Compress = f.compress
	}
	if flags.Changed("markdown") {
		cfg.Markdown = f.markdown
	}
}

func newServeCmd(app *App) *cobra.Command {
	var f serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the todo lists web app",
		Long: strings.TrimSpace(`
Run the todo lists web app from a local HTTP server.

Every browser gets its own session, identified by a signed cookie. Session
state lives in memory by default; use --store sqlite to keep it across
restarts. Open pages refresh themselves when the same session changes in
another tab.
`),
		Example: strings.TrimSpace(`
# Serve on localhost with in-memory sessions
todolists serve --addr 127.0.0.1:4567

# Persist sessions and render todo text as markdown
todolists serve --store sqlite --markdown
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			f.apply(cmd, &cfg)
			if err := cfg.Finalize(); err != nil {
				return writeErr(cmd, err)
			}
			ttl, _ := cfg.TTL()
			logger := newLogger(cmd.ErrOrStderr(), cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			st, err := store.Open(ctx, store.Options{Kind: cfg.Store, Path: cfg.DBPath, TTL: ttl})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			secret, err := web.LoadOrInitSecretKey(cfg.SecretFile)
			if err != nil {
				return writeErr(cmd, fmt.Errorf("secret key: %w", err))
			}

			srv, err := web.NewServer(web.ServerConfig{
				Addr:          cfg.Addr,
				Store:         st,
				Secret:        secret,
				SessionTTL:    ttl,
				SecureCookies: cfg.SecureCookies,
				CSRF:          cfg.CSRF,
				Compress:      cfg.Compress,
				Markdown:      cfg.Markdown,
				Logger:        logger,
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			h, err := srv.Handler()
			if err != nil {
				return writeErr(cmd, err)
			}

			ln, err := net.Listen("tcp", srv.Addr())
			if err != nil {
				return writeErr(cmd, err)
			}

			actualAddr := ln.Addr().String()
			url := "http://" + actualAddr + "/"

			opened := false
			openErr := ""
			if f.open {
				if err := openURL(url); err != nil {
					openErr = err.Error()
				} else {
					opened = true
				}
			}

			var hints []string
			if !opened {
				hints = append(hints, "open "+url)
			}
			_ = writeOut(cmd, app, format.Envelope{
				Data: map[string]any{
					"addr":      actualAddr,
					"url":       url,
					"store":     cfg.Store,
					"dbPath":    cfg.DBPath,
					"csrf":      cfg.CSRF,
					"markdown":  cfg.Markdown,
					"opened":    opened,
					"openError": openErr,
					"startedAt": time.Now().UTC().Format(time.RFC3339Nano),
				},
				Hints: hints,
			})
			logger.Info("listening", "url", url, "store", cfg.Store)
			if openErr != "" {
				logger.Warn("failed to open browser", "err", openErr)
			}

			go runJanitor(ctx, st, pruneInterval, logger)

			hs := &http.Server{
				Handler:           h,
				ReadHeaderTimeout: 10 * time.Second,
			}
			hs.RegisterOnShutdown(srv.CloseStreams)
			return serveUntilDone(ctx, hs, ln, logger)
		},
	}

	cmd.Flags().StringVar(&f.addr, "addr", config.DefaultAddr, "Bind address (host:port or :port)")
	cmd.Flags().StringVar(&f.store, "store", config.DefaultStore, "Session store (memory|sqlite)")
	cmd.Flags().StringVar(&f.dbPath, "db", "", "SQLite session file (default: $TODOLISTS_HOME/sessions.sqlite)")
	cmd.Flags().StringVar(&f.sessionTTL, "session-ttl", config.DefaultSessionTTL, "Idle time after which a session expires")
	cmd.Flags().StringVar(&f.secretFile, "secret-file", "", "Cookie signing key file (created on first use)")
	cmd.Flags().BoolVar(&f.secureCookies, "secure-cookies", false, "Mark cookies Secure (serve behind TLS)")
	cmd.Flags().BoolVar(&f.csrf, "csrf", true, "Require a CSRF token on every form POST")
	cmd.Flags().BoolVar(&f.compress, "compress", true, "Compress page responses")
	cmd.Flags().BoolVar(&f.markdown, "markdown", false, "Render todo text as inline markdown")
	cmd.Flags().BoolVar(&f.open, "open", false, "Open the app in your default browser")
	return cmd
}

// serveUntilDone serves on ln until ctx is cancelled, then shuts down
// gracefully.
func serveUntilDone(ctx context.Context, hs *http.Server, ln net.Listener, logger *log.Logger) error {
	errCh := make(chan error, 1)
	go func() { errCh <- hs.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// runJanitor prunes expired sessions until ctx is cancelled.
func runJanitor(ctx context.Context, st store.SessionStore, every time.Duration, logger *log.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := st.Prune(ctx)
			if err != nil {
				if ctx.Err() == nil {
					logger.Error("prune failed", "err", err)
				}
				continue
			}
			if n > 0 {
				logger.Info("pruned expired sessions", "count", n)
			}
		}
	}
}

func openURL(url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return errors.New("empty url")
	}
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Run()
	case "windows":
		return exec.Command("cmd", "/c", "start", "", url).Run()
	default:
		return exec.Command("xdg-open", url).Run()
	}
}
