// Package timer implements the study session state machine.
package timer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/verte-zerg/studytrack/internal/model"
)

// State is a timer lifecycle stage.
type State int

// Timer states. Idle is initial; Finished is terminal for one run.
const (
	Idle State = iota
	Running
	Paused
	Finished
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Finished:
		return "finished"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrIllegalTransition is returned when an operation is not allowed in the current state.
	ErrIllegalTransition = errors.New("illegal timer transition")
	// ErrInvalidConcentration is returned when a draft rating is outside 1..5.
	ErrInvalidConcentration = errors.New("concentration must be between 1 and 5")
)

// Recorder receives committed sessions.
type Recorder interface {
	Add(ctx context.Context, session model.StudySession) (model.StudySession, error)
}

// Draft holds the user-supplied fields of the save form.
type Draft struct {
	Subject       string
	Concentration int
	Notes         string
}

// Option customizes a Timer.
type Option func(*Timer)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Timer) {
		t.now = now
	}
}

// WithDefaultSubject sets the label used for blank subjects.
func WithDefaultSubject(subject string) Option {
	return func(t *Timer) {
		if s := strings.TrimSpace(subject); s != "" {
			t.defaultSubject = s
		}
	}
}

// Timer tracks active study time for one session.
//
// Active time is accumulated from timestamps at every pause and stop, so a
// delayed or missed UI tick never changes the recorded duration.
type Timer struct {
	now            func() time.Time
	defaultSubject string

	state     State
	startedAt time.Time
	resumedAt time.Time
	active    time.Duration
}

// New returns an idle Timer.
func New(opts ...Option) *Timer {
	t := &Timer{
		now:            time.Now,
		defaultSubject: model.DefaultSubject,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// State returns the current lifecycle stage.
func (t *Timer) State() State {
	return t.state
}

// StartedAt returns when the current run started; zero when idle.
func (t *Timer) StartedAt() time.Time {
	return t.startedAt
}

// Start begins a run.
func (t *Timer) Start() error {
	if t.state != Idle {
		return t.illegal("start")
	}
	now := t.now()
	t.startedAt = now
	t.resumedAt = now
	t.active = 0
	t.state = Running
	return nil
}

// Toggle pauses a running timer or resumes a paused one.
func (t *Timer) Toggle() error {
	switch t.state {
	case Running:
		t.closeSegment()
		t.state = Paused
	case Paused:
		t.resumedAt = t.now()
		t.state = Running
	default:
		return t.illegal("toggle")
	}
	return nil
}

// Stop freezes the elapsed time and finishes the run.
func (t *Timer) Stop() error {
	switch t.state {
	case Running:
		t.closeSegment()
	case Paused:
	default:
		return t.illegal("stop")
	}
	t.state = Finished
	return nil
}

// Elapsed returns active time so far, including the open segment.
func (t *Timer) Elapsed() time.Duration {
	if t.state == Running {
		return t.active + t.sinceResume()
	}
	return t.active
}

// Seconds returns Elapsed truncated to whole seconds.
func (t *Timer) Seconds() int64 {
	return int64(t.Elapsed() / time.Second)
}

// Commit records the finished run through rec and resets to Idle.
// When rec fails the timer stays Finished so the save can be retried.
func (t *Timer) Commit(ctx context.Context, rec Recorder, draft Draft) (model.StudySession, error) {
	if t.state != Finished {
		return model.StudySession{}, t.illegal("commit")
	}
	if draft.Concentration < model.MinConcentration || draft.Concentration > model.MaxConcentration {
		return model.StudySession{}, fmt.Errorf("%w: got %d", ErrInvalidConcentration, draft.Concentration)
	}
	subject := strings.TrimSpace(draft.Subject)
	if subject == "" {
		subject = t.defaultSubject
	}
	endedAt := t.now()
	if endedAt.Before(t.startedAt) {
		endedAt = t.startedAt
	}
	session := model.StudySession{
		Subject:       subject,
		StartTime:     t.startedAt.UnixMilli(),
		EndTime:       endedAt.UnixMilli(),
		Duration:      t.Seconds(),
		Concentration: draft.Concentration,
		Notes:         strings.TrimSpace(draft.Notes),
	}
	saved, err := rec.Add(ctx, session)
	if err != nil {
		return model.StudySession{}, fmt.Errorf("failed to save session: %w", err)
	}
	t.reset()
	return saved, nil
}

// Discard abandons a finished run without recording it.
func (t *Timer) Discard() error {
	if t.state != Finished {
		return t.illegal("discard")
	}
	t.reset()
	return nil
}

func (t *Timer) closeSegment() {
	t.active += t.sinceResume()
	t.resumedAt = time.Time{}
}

func (t *Timer) sinceResume() time.Duration {
	d := t.now().Sub(t.resumedAt)
	if d < 0 {
		return 0
	}
	return d
}

func (t *Timer) reset() {
	t.state = Idle
	t.startedAt = time.Time{}
	t.resumedAt = time.Time{}
	t.active = 0
}

func (t *Timer) illegal(op string) error {
	return fmt.Errorf("%w: cannot %s while %s", ErrIllegalTransition, op, t.state)
}
