// Package stats contains statistics calculations and reporting.
package stats

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/verte-zerg/studytrack/internal/model"
)

const notesColumnWidth = 40

// FormatDuration renders seconds as "1h 05m" or "12m 30s".
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	d := time.Duration(seconds) * time.Second
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	s := int((d % time.Minute) / time.Second)
	if h > 0 {
		return fmt.Sprintf("%dh %02dm", h, m)
	}
	return fmt.Sprintf("%dm %02ds", m, s)
}

// FormatClock renders seconds as HH:MM:SS.
func FormatClock(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}

// RenderSummary prints the summary totals.
func RenderSummary(w io.Writer, totals Totals) error {
	if totals.SessionsCount == 0 {
		_, err := fmt.Fprintln(w, "No sessions found.")
		return err
	}
	lines := []string{
		"Summary",
		fmt.Sprintf("Sessions: %d", totals.SessionsCount),
		fmt.Sprintf("Total hours: %.2f", totals.TotalHours),
		fmt.Sprintf("Avg concentration: %.1f / 5", totals.AvgConcentration),
		"",
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderDaily prints study hours per day with the focus trend.
func RenderDaily(w io.Writer, buckets []DailyBucket, totalWidth int, useColor bool) error {
	if len(buckets) == 0 {
		return nil
	}
	bars := make([]Bar, len(buckets))
	focus := make([]float64, len(buckets))
	for i, b := range buckets {
		note := "-"
		if b.Sessions > 0 {
			note = fmt.Sprintf("focus %.1f", b.AvgConcentration)
		}
		bars[i] = Bar{Label: b.Day.Format("Mon 01-02"), Value: b.Hours, Note: note}
		focus[i] = b.AvgConcentration
	}
	title := fmt.Sprintf("Last %d days (hours)", len(buckets))
	if err := BarChart(w, title, bars, "%.2fh", totalWidth, useColor); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Focus trend [%s]\n\n", Sparkline(focus, 0, model.MaxConcentration))
	return err
}

// RenderSubjects prints per-subject totals.
func RenderSubjects(w io.Writer, subjects []SubjectTotal) error {
	if len(subjects) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w, "By subject"); err != nil {
		return err
	}
	rows := make([][]string, 0, len(subjects))
	for _, s := range subjects {
		rows = append(rows, []string{
			s.Subject,
			fmt.Sprintf("%.2f", s.Hours),
			fmt.Sprintf("%d", s.Sessions),
			fmt.Sprintf("%.1f", s.AvgConcentration),
		})
	}
	lines := formatTable([]string{"Subject", "Hours", "Sessions", "Focus"}, rows, map[int]bool{1: true, 2: true, 3: true})
	return writeLines(w, lines)
}

// RenderSessionTable prints sessions in their stored order.
func RenderSessionTable(w io.Writer, sessions []model.StudySession, loc *time.Location) error {
	if len(sessions) == 0 {
		_, err := fmt.Fprintln(w, "No sessions match the filter.")
		return err
	}
	if loc == nil {
		loc = time.Local
	}
	if _, err := fmt.Fprintln(w, "Sessions"); err != nil {
		return err
	}
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		rows = append(rows, SessionRow(s, loc))
	}
	lines := formatTable(SessionHeaders(), rows, map[int]bool{2: true, 3: true})
	return writeLines(w, lines)
}

// SessionHeaders names the session table columns.
func SessionHeaders() []string {
	return []string{"Date", "Subject", "Duration", "Focus", "Notes"}
}

// SessionRow formats one session for tables.
func SessionRow(s model.StudySession, loc *time.Location) []string {
	notes := strings.Join(strings.Fields(s.Notes), " ")
	return []string{
		s.StartedAt().In(loc).Format("2006-01-02 15:04"),
		s.Subject,
		FormatDuration(s.Duration),
		fmt.Sprintf("%d/5", s.Concentration),
		Truncate(notes, notesColumnWidth),
	}
}

// RenderMCQ prints today's total and the per-day counts.
func RenderMCQ(w io.Writer, today, total int, buckets []MCQBucket, totalWidth int, useColor bool) error {
	if _, err := fmt.Fprintf(w, "MCQs today: %d (all time: %d)\n", today, total); err != nil {
		return err
	}
	bars := make([]Bar, len(buckets))
	for i, b := range buckets {
		bars[i] = Bar{Label: b.Day.Format("Mon 01-02"), Value: float64(b.Count)}
	}
	return BarChart(w, "", bars, "%.0f", totalWidth, useColor)
}

// RenderReport prints the full plain-text report.
func RenderReport(w io.Writer, r Report, totalWidth int, useColor bool) error {
	if err := RenderSummary(w, r.Totals); err != nil {
		return err
	}
	if err := RenderDaily(w, r.Daily, totalWidth, useColor); err != nil {
		return err
	}
	if err := RenderSubjects(w, r.Subjects); err != nil {
		return err
	}
	if err := RenderMCQ(w, r.MCQToday, r.MCQTotal, r.MCQDaily, totalWidth, useColor); err != nil {
		return err
	}
	return RenderSessionTable(w, r.Sessions, r.Filter.Location)
}

func writeLines(w io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}
