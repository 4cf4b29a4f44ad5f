package stats

import (
	"strings"
	"time"

	"github.com/verte-zerg/studytrack/internal/model"
)

// Filter selects sessions. Zero values leave a criterion unset.
type Filter struct {
	Subject       string
	Concentration int
	StartDate     string // inclusive, YYYY-MM-DD
	EndDate       string // inclusive, YYYY-MM-DD
	Location      *time.Location
}

// FilterFromConfig builds a Filter from dashboard settings.
func FilterFromConfig(cfg model.StatsConfig) Filter {
	return Filter{
		Subject:       cfg.Subject,
		Concentration: cfg.Concentration,
		StartDate:     cfg.StartDate,
		EndDate:       cfg.EndDate,
	}
}

// IsZero reports whether no criterion is set.
func (f Filter) IsZero() bool {
	return f.Subject == "" && f.Concentration == 0 && f.StartDate == "" && f.EndDate == ""
}

// Match reports whether s passes every set criterion.
func (f Filter) Match(s model.StudySession) bool {
	if f.Subject != "" && s.Subject != f.Subject {
		return false
	}
	if f.Concentration != 0 && s.Concentration != f.Concentration {
		return false
	}
	if f.StartDate == "" && f.EndDate == "" {
		return true
	}
	loc := f.Location
	if loc == nil {
		loc = time.Local
	}
	day := DayKey(s.StartedAt(), loc)
	if f.StartDate != "" && day < f.StartDate {
		return false
	}
	if f.EndDate != "" && day > f.EndDate {
		return false
	}
	return true
}

// FilterSessions returns the sessions matching f, preserving order.
func FilterSessions(sessions []model.StudySession, f Filter) []model.StudySession {
	out := make([]model.StudySession, 0, len(sessions))
	for _, s := range sessions {
		if f.Match(s) {
			out = append(out, s)
		}
	}
	return out
}

// Subjects lists distinct subjects in first-seen order.
func Subjects(sessions []model.StudySession) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, s := range sessions {
		if _, ok := seen[s.Subject]; ok {
			continue
		}
		seen[s.Subject] = struct{}{}
		out = append(out, s.Subject)
	}
	return out
}

// ValidDate reports whether v is empty or a YYYY-MM-DD date.
func ValidDate(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return true
	}
	_, err := time.Parse(DateLayout, v)
	return err == nil
}
