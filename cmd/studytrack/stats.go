package main

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/studytrack/internal/model"
	"github.com/verte-zerg/studytrack/internal/stats"
	"github.com/verte-zerg/studytrack/internal/statsui"
)

var (
	statsPlain   bool
	statsSubject string
	statsFocus   int
	statsFrom    string
	statsTo      string
	statsWindow  int
)

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show study stats",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().BoolVar(&statsPlain, "plain", false, "print a plain-text report instead of the dashboard")
	cmd.Flags().StringVar(&statsSubject, "subject", "", "subject filter")
	cmd.Flags().IntVar(&statsFocus, "focus", 0, "concentration filter (1-5)")
	cmd.Flags().StringVar(&statsFrom, "from", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&statsTo, "to", "", "end date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&statsWindow, "window", stats.DefaultWindowDays, "days shown in daily charts")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd, !statsPlain)
	if err != nil {
		return err
	}
	defer a.close()

	applyStringConfig(cmd, "subject", &statsSubject, a.cfg.Stats.Subject)
	applyIntConfig(cmd, "focus", &statsFocus, a.cfg.Stats.Focus)
	applyIntConfig(cmd, "window", &statsWindow, a.cfg.Stats.Window)

	cfg, err := statsConfig()
	if err != nil {
		return err
	}

	if statsPlain {
		snap := a.state.Snapshot()
		report := stats.BuildReport(snap.Sessions, snap.MCQLogs, cfg, time.Now())
		return stats.RenderReport(cmd.OutOrStdout(), report, 0, false)
	}

	m := statsui.NewModel(a.state.Snapshot(), cfg, nil)
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run stats TUI: %w", err)
	}
	return nil
}

func statsConfig() (model.StatsConfig, error) {
	if statsFocus != 0 && (statsFocus < model.MinConcentration || statsFocus > model.MaxConcentration) {
		return model.StatsConfig{}, fmt.Errorf("focus must be between %d and %d", model.MinConcentration, model.MaxConcentration)
	}
	if statsFrom != "" && !stats.ValidDate(statsFrom) {
		return model.StatsConfig{}, fmt.Errorf("invalid --from value %q", statsFrom)
	}
	if statsTo != "" && !stats.ValidDate(statsTo) {
		return model.StatsConfig{}, fmt.Errorf("invalid --to value %q", statsTo)
	}
	if statsFrom != "" && statsTo != "" && statsFrom > statsTo {
		return model.StatsConfig{}, fmt.Errorf("--from must not be after --to")
	}
	if statsWindow <= 0 {
		return model.StatsConfig{}, fmt.Errorf("window must be > 0")
	}
	return model.StatsConfig{
		Subject:       statsSubject,
		Concentration: statsFocus,
		StartDate:     statsFrom,
		EndDate:       statsTo,
		WindowDays:    statsWindow,
	}, nil
}
