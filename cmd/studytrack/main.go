// Package main provides the CLI entrypoint for studytrack.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/studytrack/internal/config"
	"github.com/verte-zerg/studytrack/internal/gateway"
	"github.com/verte-zerg/studytrack/internal/logging"
	"github.com/verte-zerg/studytrack/internal/model"
	"github.com/verte-zerg/studytrack/internal/state"
	"github.com/verte-zerg/studytrack/internal/stats"
	"github.com/verte-zerg/studytrack/internal/store"
	"github.com/verte-zerg/studytrack/internal/tui"
)

var (
	timerSubject string
	logLevel     string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "studytrack",
		Short:         "Study session timer and tracker",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runTimerCmd,
	}

	rootCmd.Flags().StringVar(&timerSubject, "subject", model.DefaultSubject, "subject used when a session is saved without one")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newPlanCmd())
	rootCmd.AddCommand(newInsightsCmd())
	rootCmd.AddCommand(newVerifyCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newImportCmd())
	rootCmd.AddCommand(newResetCmd())

	return rootCmd
}

// app holds everything a command needs once config, logging and storage are open.
type app struct {
	cfg       config.FileConfig
	log       zerolog.Logger
	logCloser io.Closer
	store     *store.Store
	state     *state.State
}

// openApp loads config, configures logging and loads state. TUI commands log
// to a file so the alternate screen stays clean.
func openApp(cmd *cobra.Command, forTUI bool) (*app, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	a := &app{cfg: fileCfg}

	level := logging.LevelWarn
	if forTUI {
		level = logging.LevelInfo
	}
	applyStringConfig(cmd, "log-level", &level, fileCfg.Log.Level)
	if cmd.Flags().Changed("log-level") {
		level = logLevel
	}

	if forTUI {
		path := config.DefaultLogPath()
		applyStringConfig(cmd, "", &path, fileCfg.Log.File)
		logger, closer, err := logging.File(path, level)
		if err != nil {
			return nil, err
		}
		a.log = logger
		a.logCloser = closer
	} else {
		a.log = logging.Console(cmd.ErrOrStderr(), level)
	}

	storePath := config.DefaultDBPath()
	st, err := store.Open(storePath)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	a.store = st

	keys, err := st.Keys(cmd.Context())
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to list stored data: %w", err)
	}
	loaded, err := state.Load(cmd.Context(), st, a.log)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to load data: %w", err)
	}
	a.state = loaded
	a.log.Debug().Str("db", storePath).Strs("slots", keys).Msg("state loaded")
	return a, nil
}

func (a *app) gateway() (*gateway.Gateway, error) {
	return gateway.New(config.ResolveGateway(a.cfg.Gateway), a.log)
}

func (a *app) close() {
	if a.state != nil && a.state.Dirty() {
		if err := a.state.Flush(context.Background()); err != nil {
			a.log.Error().Err(err).Msg("failed to flush state")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logErrf("failed to close db: %v\n", err)
		}
	}
	if a.logCloser != nil {
		if err := a.logCloser.Close(); err != nil {
			// Best-effort close of the log file.
			_ = err
		}
	}
}

func runTimerCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.close()

	applyStringConfig(cmd, "subject", &timerSubject, a.cfg.Timer.DefaultSubject)

	gw, err := a.gateway()
	if err != nil {
		return err
	}
	m := tui.NewModel(a.state, gw, tui.Options{
		DefaultSubject: timerSubject,
		Log:            a.log,
	})
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := ensureConfigFile(path); err != nil {
		return err
	}
	return openEditor(path)
}

func ensureConfigFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o600); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}
	return nil
}

func openEditor(path string) error {
	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if name != "" && cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# studytrack configuration
# Uncomment a value to enable it. CLI flags override config values.

[timer]
# default-subject = %q   # Subject used when a session is saved without one

[stats]
# window = %d             # Days shown in the daily charts
# subject = "Anatomy"     # Default subject filter
# focus = 4               # Default concentration filter (1-5)

[gateway]
# api-key = ""            # Falls back to STUDYTRACK_API_KEY, then OPENAI_API_KEY
# base-url = %q
# model = %q
# timeout-seconds = %d
# max-sessions = %d       # Recent sessions sent for insights

[log]
# level = "info"          # debug, info, warn, error
# file = ""               # Log file used by the timer and dashboard
`,
		model.DefaultSubject,
		stats.DefaultWindowDays,
		config.DefaultBaseURL,
		config.DefaultModel,
		config.DefaultTimeoutSeconds,
		config.DefaultMaxSessions,
	)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
