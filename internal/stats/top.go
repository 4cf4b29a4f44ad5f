// Package stats contains statistics calculations and reporting.
package stats

import (
	"sort"

	"github.com/verte-zerg/studytrack/internal/model"
)

// SubjectTotal aggregates sessions for one subject.
type SubjectTotal struct {
	Subject          string
	Hours            float64
	Sessions         int
	AvgConcentration float64
}

// SubjectTotals returns per-subject aggregates ordered by hours, most first.
func SubjectTotals(sessions []model.StudySession) []SubjectTotal {
	if len(sessions) == 0 {
		return nil
	}
	index := map[string]int{}
	var items []SubjectTotal
	concSum := map[string]int{}
	for _, s := range sessions {
		i, ok := index[s.Subject]
		if !ok {
			i = len(items)
			index[s.Subject] = i
			items = append(items, SubjectTotal{Subject: s.Subject})
		}
		items[i].Hours += s.Hours()
		items[i].Sessions++
		concSum[s.Subject] += s.Concentration
	}
	for i := range items {
		items[i].AvgConcentration = float64(concSum[items[i].Subject]) / float64(items[i].Sessions)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Hours == items[j].Hours {
			return items[i].Subject < items[j].Subject
		}
		return items[i].Hours > items[j].Hours
	})
	return items
}

// TopSubjects returns the n subjects with the most study time.
func TopSubjects(sessions []model.StudySession, n int) []string {
	if n <= 0 {
		return nil
	}
	totals := SubjectTotals(sessions)
	if n > len(totals) {
		n = len(totals)
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, totals[i].Subject)
	}
	return out
}
