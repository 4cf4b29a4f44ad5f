package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const insightsWrap = 80

func newInsightsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "insights",
		Short: "Ask the model for coaching on recent sessions",
		Args:  cobra.NoArgs,
		RunE:  runInsightsCmd,
	}
}

func runInsightsCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.close()

	gw, err := a.gateway()
	if err != nil {
		return err
	}
	text, err := gw.RequestInsights(cmd.Context(), a.state.Sessions.LoadAll())
	if err != nil {
		return err
	}
	return writeMarkdown(cmd.OutOrStdout(), text)
}

// writeMarkdown renders through glamour on a terminal and passes raw text otherwise.
func writeMarkdown(w io.Writer, text string) error {
	if isTerminal(w) {
		renderer, err := glamour.NewTermRenderer(glamour.WithStylePath("dark"), glamour.WithWordWrap(insightsWrap))
		if err == nil {
			if out, rerr := renderer.Render(text); rerr == nil {
				_, err = io.WriteString(w, out)
				return err
			}
		}
	}
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	_, err := io.WriteString(w, text)
	return err
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify IMAGE",
		Short: "Verify a screenshot of solved MCQs and log the count",
		Args:  cobra.ExactArgs(1),
		RunE:  runVerifyCmd,
	}
}

func runVerifyCmd(cmd *cobra.Command, args []string) error {
	image, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.close()

	gw, err := a.gateway()
	if err != nil {
		return err
	}
	result, err := gw.VerifyProof(cmd.Context(), image)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	entry, ok := result.Log(time.Now())
	if !ok {
		_, err := fmt.Fprintf(out, "Not verified: %s\n", result.Feedback)
		return err
	}
	if _, err := a.state.MCQLogs.Add(cmd.Context(), entry); err != nil {
		return fmt.Errorf("failed to save MCQ log: %w", err)
	}
	_, err = fmt.Fprintf(out, "Verified %d MCQs: %s\n", entry.Count, entry.Feedback)
	return err
}
