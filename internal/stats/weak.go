package stats

import (
	"sort"

	"github.com/verte-zerg/studytrack/internal/model"
)

// LowFocusSubjects returns up to top subjects with the lowest average
// concentration. Ties go to the subject with more sessions, then by name.
func LowFocusSubjects(sessions []model.StudySession, top int) []SubjectTotal {
	candidates := SubjectTotals(sessions)
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		ci, cj := candidates[i], candidates[j]
		if ci.AvgConcentration == cj.AvgConcentration {
			if ci.Sessions == cj.Sessions {
				return ci.Subject < cj.Subject
			}
			return ci.Sessions > cj.Sessions
		}
		return ci.AvgConcentration < cj.AvgConcentration
	})
	if top <= 0 || top > len(candidates) {
		top = len(candidates)
	}
	return candidates[:top]
}
