package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/studytrack/internal/model"
	"github.com/verte-zerg/studytrack/internal/transfer"
)

var (
	exportFormat string
	importFormat string
	importYes    bool
	resetYes     bool
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [PATH]",
		Short: "Write a backup of sessions, plan and MCQ logs (- for stdout)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runExportCmd,
	}
	cmd.Flags().StringVar(&exportFormat, "format", string(transfer.FormatJSON), "backup format: json or yaml")
	return cmd
}

func runExportCmd(cmd *cobra.Command, args []string) error {
	format, err := transfer.ParseFormat(exportFormat)
	if err != nil {
		return err
	}
	path := transfer.DefaultFilename(time.Now(), format)
	if len(args) == 1 {
		path = args[0]
		if !cmd.Flags().Changed("format") && path != "-" {
			format = transfer.FormatFromPath(path)
		}
	}

	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.close()

	doc := transfer.Export(a.state.Snapshot())
	if path == "-" {
		return transfer.Encode(cmd.OutOrStdout(), doc, format)
	}
	if err := writeBackup(path, doc, format); err != nil {
		return err
	}
	a.log.Info().Str("path", path).Int("sessions", len(doc.Sessions)).Msg("backup exported")
	_, err = fmt.Fprintf(cmd.ErrOrStderr(), "Exported to %s\n", path)
	return err
}

// writeBackup writes through a temp file in the target directory so a failed
// export never leaves a truncated backup behind.
func writeBackup(path string, doc model.Document, format transfer.Format) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create backup dir: %w", err)
	}
	tmpFile, err := os.CreateTemp(dir, "studytrack-backup-*")
	if err != nil {
		return fmt.Errorf("failed to create temp backup: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	writer := bufio.NewWriter(tmpFile)
	if err := transfer.Encode(writer, doc, format); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush backup: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close backup: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}
	return nil
}

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import PATH",
		Short: "Restore from a backup document or a legacy session list (- for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE:  runImportCmd,
	}
	cmd.Flags().StringVar(&importFormat, "format", "", "backup format: json or yaml (default from extension)")
	cmd.Flags().BoolVarP(&importYes, "yes", "y", false, "replace existing data without asking")
	return cmd
}

func runImportCmd(cmd *cobra.Command, args []string) error {
	path := args[0]
	format := transfer.FormatFromPath(path)
	if importFormat != "" {
		parsed, err := transfer.ParseFormat(importFormat)
		if err != nil {
			return err
		}
		format = parsed
	}

	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(cmd.InOrStdin())
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("failed to read backup: %w", err)
	}
	payload, err := transfer.Decode(raw, format)
	if err != nil {
		return err
	}

	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.close()

	if path == "-" && !importYes && len(transfer.Overwrites(a.state, payload)) > 0 {
		return errors.New("use --yes when importing from stdin into existing data")
	}
	confirm := promptConfirm(cmd)
	if importYes {
		confirm = func(string) bool { return true }
	}
	if err := transfer.Apply(cmd.Context(), a.state, payload, confirm); err != nil {
		if errors.Is(err, transfer.ErrDeclined) {
			_, werr := fmt.Fprintln(cmd.ErrOrStderr(), "Import cancelled.")
			return werr
		}
		return err
	}
	a.log.Info().Str("kind", payload.Kind.String()).Str("path", path).Msg("backup imported")
	_, err = fmt.Fprintf(cmd.ErrOrStderr(), "Imported %s\n", payload.Summary())
	return err
}

func newResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all sessions, plan subjects and MCQ logs",
		Args:  cobra.NoArgs,
		RunE:  runResetCmd,
	}
	cmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "reset without asking")
	return cmd
}

func runResetCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.close()

	if !a.state.Empty() && !resetYes {
		if !promptConfirm(cmd)("Delete all study data? This cannot be undone.") {
			_, werr := fmt.Fprintln(cmd.ErrOrStderr(), "Reset cancelled.")
			return werr
		}
	}
	if err := a.state.Reset(cmd.Context()); err != nil {
		return err
	}
	a.log.Info().Msg("state reset")
	return nil
}

// promptConfirm returns a yes/no prompt bound to the command's streams.
func promptConfirm(cmd *cobra.Command) transfer.Confirm {
	return func(prompt string) bool {
		return confirm(cmd.InOrStdin(), cmd.ErrOrStderr(), prompt)
	}
}

func confirm(in io.Reader, out io.Writer, prompt string) bool {
	if _, err := fmt.Fprintf(out, "%s [y/N] ", prompt); err != nil {
		return false
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
