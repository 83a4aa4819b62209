package cli

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"todolists/internal/logging"
	"todolists/internal/model"
	"todolists/internal/store"
)

func runCLI(t *testing.T, args []string) (stdout []byte, stderr []byte, err error) {
	t.Helper()

	cmd := NewRootCmd()

	var outBuf bytes.Buffer
	var errBuf bytes.Buffer
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)

	e := cmd.Execute()
	return outBuf.Bytes(), errBuf.Bytes(), e
}

// seedSessions writes two sessions into a fresh sqlite file and points
// TODOLISTS_HOME at a temp dir.
func seedSessions(t *testing.T) (dbPath string) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("TODOLISTS_HOME", home)
	dbPath = filepath.Join(home, "sessions.sqlite")

	ctx := context.Background()
	st, err := store.OpenSQLite(ctx, dbPath, time.Hour)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer st.Close()

	groceries := &model.Session{Lists: []model.List{
		{Name: "Done", Todos: []model.Todo{{Name: "x", Completed: true}}},
		{Name: "Groceries", Todos: []model.Todo{
			{Name: "Milk", Completed: true},
			{Name: "Eggs"},
		}},
	}}
	if err := st.Set(ctx, "sess-a", groceries); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := st.Set(ctx, "sess-b", model.NewSession()); err != nil {
		t.Fatalf("Set: %v", err)
	}
	return dbPath
}

func TestSessionsList(t *testing.T) {
	seedSessions(t)

	stdout, stderr, err := runCLI(t, []string{"sessions", "list"})
	if err != nil {
		t.Fatalf("sessions list: %v\nstderr:\n%s", err, stderr)
	}
	var env struct {
		Data []store.Summary `json:"data"`
		Meta struct {
			Count int `json:"count"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(stdout, &env); err != nil {
		t.Fatalf("unmarshal: %v\nstdout:\n%s", err, stdout)
	}
	if env.Meta.Count != 2 || len(env.Data) != 2 {
		t.Fatalf("expected 2 sessions, got %+v", env)
	}
	var a *store.Summary
	for i := range env.Data {
		if env.Data[i].ID == "sess-a" {
			a = &env.Data[i]
		}
	}
	if a == nil || a.Lists != 2 || a.Todos != 3 {
		t.Fatalf("unexpected summary for sess-a: %+v", env.Data)
	}
}

func TestSessionsShow_JSONKeepsIndexes(t *testing.T) {
	seedSessions(t)

	stdout, stderr, err := runCLI(t, []string{"sessions", "show", "sess-a", "--json"})
	if err != nil {
		t.Fatalf("sessions show: %v\nstderr:\n%s", err, stderr)
	}
	var env struct {
		Data struct {
			ID    string     `json:"id"`
			Lists []listView `json:"lists"`
		} `json:"data"`
	}
	if err := json.Unmarshal(stdout, &env); err != nil {
		t.Fatalf("unmarshal: %v\nstdout:\n%s", err, stdout)
	}
	lists := env.Data.Lists
	if len(lists) != 2 {
		t.Fatalf("expected 2 lists, got %+v", lists)
	}
	// Incomplete lists first, each keeping its stored index.
	if lists[0].Name != "Groceries" || lists[0].Index != 1 || lists[0].Progress != "1 / 2" {
		t.Fatalf("unexpected first list: %+v", lists[0])
	}
	if lists[1].Name != "Done" || !lists[1].Completed {
		t.Fatalf("unexpected second list: %+v", lists[1])
	}
	if got := lists[0].Todos; got[0].Name != "Eggs" || got[0].Index != 1 || got[1].Name != "Milk" {
		t.Fatalf("unexpected todo order: %+v", got)
	}
}

func TestSessionsShow_Text(t *testing.T) {
	seedSessions(t)

	stdout, stderr, err := runCLI(t, []string{"sessions", "show", "sess-a"})
	if err != nil {
		t.Fatalf("sessions show: %v\nstderr:\n%s", err, stderr)
	}
	out := string(stdout)
	for _, want := range []string{"session sess-a", "Groceries", "1 / 2", "[ ] 1.", "[x] 0.", "Milk"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestSessionsShow_Missing(t *testing.T) {
	seedSessions(t)

	_, stderr, err := runCLI(t, []string{"sessions", "show", "nope"})
	var nf sessionNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected sessionNotFoundError, got %v", err)
	}
	if !strings.Contains(string(stderr), "session not found: nope") {
		t.Fatalf("expected message on stderr, got %q", stderr)
	}
}

func TestSessionsDelete(t *testing.T) {
	seedSessions(t)

	if _, stderr, err := runCLI(t, []string{"sessions", "delete", "sess-b"}); err != nil {
		t.Fatalf("sessions delete: %v\nstderr:\n%s", err, stderr)
	}
	stdout, _, err := runCLI(t, []string{"sessions", "list"})
	if err != nil {
		t.Fatalf("sessions list: %v", err)
	}
	if strings.Contains(string(stdout), "sess-b") || !strings.Contains(string(stdout), "sess-a") {
		t.Fatalf("expected only sess-a left:\n%s", stdout)
	}

	_, _, err = runCLI(t, []string{"sessions", "delete", "sess-b"})
	var nf sessionNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected sessionNotFoundError for a deleted session, got %v", err)
	}
}

func TestSessionsPrune(t *testing.T) {
	dbPath := seedSessions(t)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec(`UPDATE sessions SET updated_at = 0 WHERE id = 'sess-b'`); err != nil {
		t.Fatalf("age session: %v", err)
	}
	_ = db.Close()

	stdout, stderr, err := runCLI(t, []string{"sessions", "--db", dbPath, "prune"})
	if err != nil {
		t.Fatalf("sessions prune: %v\nstderr:\n%s", err, stderr)
	}
	var env struct {
		Data struct {
			Pruned int `json:"pruned"`
		} `json:"data"`
	}
	if err := json.Unmarshal(stdout, &env); err != nil {
		t.Fatalf("unmarshal: %v\nstdout:\n%s", err, stdout)
	}
	if env.Data.Pruned != 1 {
		t.Fatalf("expected 1 pruned session, got %d", env.Data.Pruned)
	}

	stdout, _, err = runCLI(t, []string{"sessions", "list"})
	if err != nil {
		t.Fatalf("sessions list: %v", err)
	}
	if strings.Contains(string(stdout), "sess-b") {
		t.Fatalf("expected sess-b to be gone:\n%s", stdout)
	}
}

func TestServe_ConfigErrors(t *testing.T) {
	home := t.TempDir()
	t.Setenv("TODOLISTS_HOME", home)

	bad := filepath.Join(home, "bad.toml")
	if err := os.WriteFile(bad, []byte("addr = \"127.0.0.1:0\"\nport = 1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, err := runCLI(t, []string{"--config", bad, "serve"}); err == nil || !strings.Contains(err.Error(), "unknown keys") {
		t.Fatalf("expected unknown key error, got %v", err)
	}

	t.Setenv("TODOLISTS_STORE", "redis")
	if _, _, err := runCLI(t, []string{"serve"}); err == nil || !strings.Contains(err.Error(), "invalid store") {
		t.Fatalf("expected invalid store error, got %v", err)
	}

	// Flags win over the environment; the TTL is validated before anything listens.
	if _, _, err := runCLI(t, []string{"serve", "--store", "memory", "--session-ttl=-1h"}); err == nil || !strings.Contains(err.Error(), "session_ttl") {
		t.Fatalf("expected ttl error, got %v", err)
	}
}

func TestServeUntilDone_ShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	hs := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serveUntilDone(ctx, hs, ln, logging.Discard()) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	_ = resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serveUntilDone: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not shut down")
	}
}

type countingStore struct {
	store.SessionStore
	prunes atomic.Int32
}

func (c *countingStore) Prune(ctx context.Context) (int, error) {
	c.prunes.Add(1)
	return c.SessionStore.Prune(ctx)
}

func TestRunJanitor_PrunesUntilCancelled(t *testing.T) {
	st := &countingStore{SessionStore: store.NewMemory(time.Hour)}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runJanitor(ctx, st, 5*time.Millisecond, logging.Discard())
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for st.prunes.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done
	if st.prunes.Load() < 2 {
		t.Fatalf("expected repeated prunes, got %d", st.prunes.Load())
	}
}
