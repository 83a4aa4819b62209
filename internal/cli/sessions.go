package cli

import (
	"fmt"
	"io"
	"strings"

	"todolists/internal/format"
	"todolists/internal/model"
	"todolists/internal/store"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

type sessionsFlags struct {
	dbPath string
}

func newSessionsCmd(app *App) *cobra.Command {
	var f sessionsFlags

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect, delete and prune stored sessions",
		Long: strings.TrimSpace(`
Inspect and prune sessions kept by a persistent store.

Only the sqlite store outlives the server process, so these commands always
read the sqlite file (db_path from the config, TODOLISTS_DB or --db).
`),
	}
	cmd.PersistentFlags().StringVar(&f.dbPath, "db", "", "SQLite session file (default: $TODOLISTS_HOME/sessions.sqlite)")

	cmd.AddCommand(newSessionsListCmd(app, &f))
	cmd.AddCommand(newSessionsShowCmd(app, &f))
	cmd.AddCommand(newSessionsDeleteCmd(app, &f))
	cmd.AddCommand(newSessionsPruneCmd(app, &f))
	return cmd
}

// openSessionStore opens the sqlite store named by the resolved config.
func openSessionStore(cmd *cobra.Command, app *App, f *sessionsFlags) (store.SessionStore, error) {
	cfg, err := resolveConfig(cmd, app)
	if err != nil {
		return nil, err
	}
	cfg.Store = "sqlite"
	if cmd.Flags().Changed("db") {
		cfg.DBPath = f.dbPath
	}
	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	ttl, _ := cfg.TTL()
	return store.OpenSQLite(cmd.Context(), cfg.DBPath, ttl)
}

func newSessionsListCmd(app *App, f *sessionsFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List live sessions (most recent first)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openSessionStore(cmd, app, f)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			sums, err := st.List(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			if sums == nil {
				sums = []store.Summary{}
			}
			return writeOut(cmd, app, format.Envelope{
				Data: sums,
				Meta: map[string]any{"count": len(sums)},
			})
		},
	}
}

type todoView struct {
	Index     int    `json:"index"`
	Name      string `json:"name"`
	Completed bool   `json:"completed"`
}

type listView struct {
	Index     int        `json:"index"`
	Name      string     `json:"name"`
	Progress  string     `json:"progress"`
	Completed bool       `json:"completed"`
	Todos     []todoView `json:"todos"`
}

// sessionView orders lists and todos the way the web pages do, keeping the
// positional indices that the URLs use.
func sessionView(s *model.Session) []listView {
	out := []listView{}
	for _, l := range model.ReorderLists(s.Lists) {
		lv := listView{
			Index:     l.Index,
			Name:      l.Value.Name,
			Progress:  l.Value.Progress(),
			Completed: l.Value.Completed(),
			Todos:     []todoView{},
		}
		for _, t := range model.ReorderTodos(l.Value.Todos) {
			lv.Todos = append(lv.Todos, todoView{Index: t.Index, Name: t.Value.Name, Completed: t.Value.Completed})
		}
		out = append(out, lv)
	}
	return out
}

func newSessionsShowCmd(app *App, f *sessionsFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show a session's lists and todos",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			st, err := openSessionStore(cmd, app, f)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			sess, ok, err := st.Get(cmd.Context(), id)
			if err != nil {
				return writeErr(cmd, err)
			}
			if !ok {
				return writeErr(cmd, sessionNotFoundError{id: id})
			}

			lists := sessionView(sess)
			if asJSON {
				return writeOut(cmd, app, format.Envelope{
					Data: map[string]any{"id": id, "lists": lists},
				})
			}
			renderSession(cmd.OutOrStdout(), id, lists)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON instead of text")
	return cmd
}

var (
	styleHeader   = lipgloss.NewStyle().Bold(true)
	styleListName = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "27", Dark: "75"})
	styleMuted    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "240", Dark: "245"})
	styleDone     = styleMuted.Strikethrough(true)
)

func renderSession(w io.Writer, id string, lists []listView) {
	fmt.Fprintln(w, styleHeader.Render("session "+id))
	if len(lists) == 0 {
		fmt.Fprintln(w, styleMuted.Render("  (no lists)"))
		return
	}
	for _, l := range lists {
		name := styleListName.Render(l.Name)
		if l.Completed {
			name = styleDone.Render(l.Name)
		}
		fmt.Fprintf(w, "\n[%d] %s  %s\n", l.Index, name, styleMuted.Render(l.Progress))
		for _, t := range l.Todos {
			box, text := "[ ]", t.Name
			if t.Completed {
				box, text = "[x]", styleDone.Render(t.Name)
			}
			fmt.Fprintf(w, "    %s %d. %s\n", box, t.Index, text)
		}
	}
}

func newSessionsDeleteCmd(app *App, f *sessionsFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete one session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			st, err := openSessionStore(cmd, app, f)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			_, ok, err := st.Get(cmd.Context(), id)
			if err != nil {
				return writeErr(cmd, err)
			}
			if !ok {
				return writeErr(cmd, sessionNotFoundError{id: id})
			}
			if err := st.Delete(cmd.Context(), id); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, format.Envelope{
				Data: map[string]any{"id": id, "deleted": true},
			})
		},
	}
}

func newSessionsPruneCmd(app *App, f *sessionsFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete sessions idle for longer than the session TTL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openSessionStore(cmd, app, f)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			n, err := st.Prune(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, format.Envelope{
				Data: map[string]any{"pruned": n},
			})
		},
	}
}
