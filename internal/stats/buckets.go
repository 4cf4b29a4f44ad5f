// Package stats contains statistics calculations and reporting.
package stats

import (
	"time"

	"github.com/verte-zerg/studytrack/internal/model"
)

// DateLayout is the local calendar day key format.
const DateLayout = "2006-01-02"

// DailyBucket aggregates sessions for one local calendar day.
type DailyBucket struct {
	Date             string
	Day              time.Time
	Hours            float64
	AvgConcentration float64
	Sessions         int
}

// Totals summarizes a set of sessions.
type Totals struct {
	TotalHours       float64
	AvgConcentration float64
	SessionsCount    int
}

// MCQBucket holds the solved-question count for one local calendar day.
type MCQBucket struct {
	Date  string
	Day   time.Time
	Count int
}

// DayKey returns the calendar date of t in loc.
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}

// lastDays returns windowDays local midnights ending with the day of now.
func lastDays(windowDays int, now time.Time) []time.Time {
	if windowDays <= 0 {
		return nil
	}
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	days := make([]time.Time, windowDays)
	for i := 0; i < windowDays; i++ {
		days[i] = today.AddDate(0, 0, i-windowDays+1)
	}
	return days
}

// DailyBuckets returns exactly windowDays entries, oldest first, covering the
// local calendar days up to and including the day of now. Days without
// sessions report zero hours and zero concentration.
func DailyBuckets(sessions []model.StudySession, windowDays int, now time.Time) []DailyBucket {
	days := lastDays(windowDays, now)
	loc := now.Location()
	buckets := make([]DailyBucket, len(days))
	index := make(map[string]int, len(days))
	for i, day := range days {
		key := day.Format(DateLayout)
		buckets[i] = DailyBucket{Date: key, Day: day}
		index[key] = i
	}
	concSum := make([]int, len(days))
	for _, s := range sessions {
		i, ok := index[DayKey(s.StartedAt(), loc)]
		if !ok {
			continue
		}
		buckets[i].Hours += s.Hours()
		buckets[i].Sessions++
		concSum[i] += s.Concentration
	}
	for i := range buckets {
		if buckets[i].Sessions > 0 {
			buckets[i].AvgConcentration = float64(concSum[i]) / float64(buckets[i].Sessions)
		}
	}
	return buckets
}

// SummaryTotals returns total hours, average concentration and count.
func SummaryTotals(sessions []model.StudySession) Totals {
	if len(sessions) == 0 {
		return Totals{}
	}
	var seconds int64
	var conc int
	for _, s := range sessions {
		seconds += s.Duration
		conc += s.Concentration
	}
	return Totals{
		TotalHours:       float64(seconds) / 3600.0,
		AvgConcentration: float64(conc) / float64(len(sessions)),
		SessionsCount:    len(sessions),
	}
}

// DailyMCQTotal sums log counts on the local calendar day of day.
func DailyMCQTotal(logs []model.MCQLog, day time.Time) int {
	key := day.Format(DateLayout)
	loc := day.Location()
	total := 0
	for _, l := range logs {
		if DayKey(l.LoggedAt(), loc) == key {
			total += l.Count
		}
	}
	return total
}

// WeeklyMCQBuckets returns exactly windowDays per-day counts, oldest first.
func WeeklyMCQBuckets(logs []model.MCQLog, windowDays int, now time.Time) []MCQBucket {
	days := lastDays(windowDays, now)
	loc := now.Location()
	buckets := make([]MCQBucket, len(days))
	index := make(map[string]int, len(days))
	for i, day := range days {
		key := day.Format(DateLayout)
		buckets[i] = MCQBucket{Date: key, Day: day}
		index[key] = i
	}
	for _, l := range logs {
		if i, ok := index[DayKey(l.LoggedAt(), loc)]; ok {
			buckets[i].Count += l.Count
		}
	}
	return buckets
}
