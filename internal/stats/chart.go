package stats

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"golang.org/x/term"
)

// Bar is one labelled value in a horizontal bar chart.
type Bar struct {
	Label string
	Value float64
	Note  string
}

const (
	minBarWidth         = 10
	terminalWidthBackup = 80
	barFull             = "█"
	barEmpty            = "·"
	colorBar            = "\x1b[36m"
	colorReset          = "\x1b[0m"
	sparkChars          = " .:-=+*#%@"
)

// BarChart renders bars scaled to the largest value. totalWidth <= 0 uses
// the terminal width.
func BarChart(w io.Writer, title string, bars []Bar, valueFormat string, totalWidth int, forceColor bool) error {
	if len(bars) == 0 {
		return nil
	}
	if totalWidth <= 0 {
		totalWidth = terminalWidth()
	}
	labelWidth, noteWidth := 0, 0
	maxVal := 0.0
	values := make([]string, len(bars))
	valueWidth := 0
	for i, b := range bars {
		labelWidth = max(labelWidth, displayWidth(b.Label))
		noteWidth = max(noteWidth, displayWidth(b.Note))
		maxVal = math.Max(maxVal, b.Value)
		values[i] = fmt.Sprintf(valueFormat, b.Value)
		valueWidth = max(valueWidth, displayWidth(values[i]))
	}
	barWidth := BarWidthFor(totalWidth, labelWidth, valueWidth, noteWidth)
	useColor := shouldUseColor(w, forceColor)

	if title != "" {
		if _, err := fmt.Fprintln(w, title); err != nil {
			return err
		}
	}
	for i, b := range bars {
		filled := 0
		if maxVal > 0 {
			filled = int(math.Round(b.Value / maxVal * float64(barWidth)))
		}
		if b.Value > 0 && filled == 0 {
			filled = 1
		}
		bar := strings.Repeat(barFull, filled)
		if useColor && filled > 0 {
			bar = colorBar + bar + colorReset
		}
		bar += strings.Repeat(barEmpty, barWidth-filled)
		line := fmt.Sprintf("%s  %s  %s", padCell(b.Label, labelWidth, false), bar, padCell(values[i], valueWidth, true))
		if b.Note != "" {
			line += "  " + b.Note
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// BarWidthFor returns the bar area left after labels, values and notes.
func BarWidthFor(totalWidth, labelWidth, valueWidth, noteWidth int) int {
	gutters := 4
	if noteWidth > 0 {
		gutters += 2
	}
	width := totalWidth - labelWidth - valueWidth - noteWidth - gutters
	if width < minBarWidth {
		width = minBarWidth
	}
	return width
}

// Sparkline renders a single-line ASCII sparkline for values in [lo, hi].
func Sparkline(values []float64, lo, hi float64) string {
	if len(values) == 0 {
		return ""
	}
	if hi-lo < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - lo) / (hi - lo)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sparkChars) {
			idx = len(sparkChars) - 1
		}
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

func shouldUseColor(w io.Writer, force bool) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if force {
		return true
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}
