package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/studytrack/internal/plan"
)

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the study plan subjects",
		Args:  cobra.NoArgs,
		RunE:  runPlanShowCmd,
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set FILE",
		Short: "Replace the plan with subjects from FILE, one per line (- for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE:  runPlanSetCmd,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "edit",
		Short: "Edit the plan in $EDITOR",
		Args:  cobra.NoArgs,
		RunE:  runPlanEditCmd,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every plan subject",
		Args:  cobra.NoArgs,
		RunE:  runPlanClearCmd,
	})
	return cmd
}

func runPlanShowCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.close()

	labels := a.state.Plan.Labels()
	if len(labels) == 0 {
		_, err := fmt.Fprintln(cmd.ErrOrStderr(), "Study plan is empty. Use 'studytrack plan edit' to add subjects.")
		return err
	}
	_, err = io.WriteString(cmd.OutOrStdout(), plan.Format(labels))
	return err
}

func runPlanSetCmd(cmd *cobra.Command, args []string) error {
	var (
		labels []string
		err    error
	)
	if args[0] == "-" {
		raw, rerr := io.ReadAll(cmd.InOrStdin())
		if rerr != nil {
			return fmt.Errorf("failed to read plan: %w", rerr)
		}
		labels = plan.Parse(string(raw))
	} else {
		labels, err = plan.LoadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to load plan: %w", err)
		}
	}

	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.state.Plan.Set(cmd.Context(), labels); err != nil {
		return err
	}
	a.log.Info().Int("subjects", len(labels)).Msg("plan replaced")
	_, err = fmt.Fprintf(cmd.ErrOrStderr(), "Saved %d plan subjects\n", len(a.state.Plan.Labels()))
	return err
}

func runPlanEditCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.close()

	tmp, err := os.CreateTemp("", "studytrack-plan-*.txt")
	if err != nil {
		return fmt.Errorf("failed to create temp plan: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()
	if _, err := io.WriteString(tmp, plan.Format(a.state.Plan.Labels())); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temp plan: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp plan: %w", err)
	}

	if err := openEditor(tmpPath); err != nil {
		return err
	}
	raw, err := os.ReadFile(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to read edited plan: %w", err)
	}
	return a.state.Plan.SetText(cmd.Context(), string(raw))
}

func runPlanClearCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.close()
	return a.state.Plan.Set(cmd.Context(), nil)
}
