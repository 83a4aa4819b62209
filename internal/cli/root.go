package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"todolists/internal/config"
	"todolists/internal/format"
	"todolists/internal/logging"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

type App struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
	PrettyJSON bool
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "todolists",
		Short:        "Session-scoped todo lists served over HTTP",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Serve on the default address with in-memory sessions
  todolists serve

  # Keep sessions across restarts
  todolists serve --store sqlite

  # Inspect stored sessions
  todolists sessions list --pretty
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVar(&app.ConfigPath, "config", envOr("TODOLISTS_CONFIG", ""), "Path to a TOML config file")
	cmd.PersistentFlags().StringVar(&app.LogLevel, "log-level", "", "Log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&app.LogFormat, "log-format", "", "Log format (text|json|logfmt)")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")

	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newSessionsCmd(app))

	return cmd
}

// resolveConfig layers defaults, the config file, TODOLISTS_* variables and
// the persistent flags. Command-specific flags are applied by the caller
// before Finalize.
func resolveConfig(cmd *cobra.Command, app *App) (config.Config, error) {
	cfg := config.Default()
	if err := config.LoadFile(&cfg, app.ConfigPath); err != nil {
		return cfg, err
	}
	if err := config.ApplyEnv(&cfg, os.Getenv); err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = app.LogLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = app.LogFormat
	}
	return cfg, nil
}

func newLogger(w io.Writer, cfg config.Config) *log.Logger {
	return logging.New(w, logging.Options{
		Level:     cfg.LogLevel,
		Format:    cfg.LogFormat,
		Timestamp: true,
	})
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, e format.Envelope) error {
	return format.WriteJSON(cmd.OutOrStdout(), e, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
