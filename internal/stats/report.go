// Package stats contains statistics calculations and reporting.
package stats

import (
	"time"

	"github.com/verte-zerg/studytrack/internal/model"
)

// DefaultWindowDays is the chart window used when none is configured.
const DefaultWindowDays = 7

// Report contains precomputed data for stats rendering.
type Report struct {
	Filter      Filter
	WindowDays  int
	Sessions    []model.StudySession
	Totals      Totals
	Daily       []DailyBucket
	Subjects    []SubjectTotal
	LowFocus    []SubjectTotal
	MCQToday    int
	MCQDaily    []MCQBucket
	MCQTotal    int
	AllSubjects []string
}

// BuildReport derives every dashboard figure from a snapshot of the stores.
func BuildReport(sessions []model.StudySession, logs []model.MCQLog, cfg model.StatsConfig, now time.Time) Report {
	window := cfg.WindowDays
	if window <= 0 {
		window = DefaultWindowDays
	}
	filter := FilterFromConfig(cfg)
	filter.Location = now.Location()
	filtered := FilterSessions(sessions, filter)

	mcqTotal := 0
	for _, l := range logs {
		mcqTotal += l.Count
	}

	return Report{
		Filter:      filter,
		WindowDays:  window,
		Sessions:    filtered,
		Totals:      SummaryTotals(filtered),
		Daily:       DailyBuckets(filtered, window, now),
		Subjects:    SubjectTotals(filtered),
		LowFocus:    LowFocusSubjects(filtered, 3),
		MCQToday:    DailyMCQTotal(logs, now),
		MCQDaily:    WeeklyMCQBuckets(logs, window, now),
		MCQTotal:    mcqTotal,
		AllSubjects: Subjects(sessions),
	}
}
