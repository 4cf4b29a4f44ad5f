// Package model defines shared data structures.
package model

import "time"

// DefaultSubject labels sessions saved without a subject.
const DefaultSubject = "General Study"

// Concentration bounds for self-reported focus.
const (
	MinConcentration = 1
	MaxConcentration = 5
)

// StudySession captures a completed timed study interval.
type StudySession struct {
	ID            string `json:"id" yaml:"id"`
	Subject       string `json:"subject" yaml:"subject"`
	StartTime     int64  `json:"startTime" yaml:"startTime"`
	EndTime       int64  `json:"endTime" yaml:"endTime"`
	Duration      int64  `json:"duration" yaml:"duration"`
	Concentration int    `json:"concentration" yaml:"concentration"`
	Notes         string `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// StartedAt returns the session start as a time value.
func (s StudySession) StartedAt() time.Time {
	return time.UnixMilli(s.StartTime)
}

// EndedAt returns the session end as a time value.
func (s StudySession) EndedAt() time.Time {
	return time.UnixMilli(s.EndTime)
}

// Hours returns the active duration in hours.
func (s StudySession) Hours() float64 {
	return float64(s.Duration) / 3600.0
}

// MCQLog records one verified batch of practice questions.
type MCQLog struct {
	ID        string `json:"id" yaml:"id"`
	Timestamp int64  `json:"timestamp" yaml:"timestamp"`
	Count     int    `json:"count" yaml:"count"`
	Verified  bool   `json:"verified" yaml:"verified"`
	Feedback  string `json:"feedback" yaml:"feedback"`
}

// LoggedAt returns the log timestamp as a time value.
func (l MCQLog) LoggedAt() time.Time {
	return time.UnixMilli(l.Timestamp)
}

// Document is the export/import shape holding all persisted collections.
type Document struct {
	Sessions  []StudySession `json:"sessions" yaml:"sessions"`
	StudyPlan []string       `json:"studyPlan" yaml:"studyPlan"`
	MCQLogs   []MCQLog       `json:"mcqLogs" yaml:"mcqLogs"`
}

// StatsConfig defines filters and options for stats output.
type StatsConfig struct {
	Subject       string
	Concentration int
	StartDate     string
	EndDate       string
	WindowDays    int
}

// GatewayConfig holds settings for the remote model boundary.
type GatewayConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
	MaxSessions    int
}
