package state

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/verte-zerg/studytrack/internal/model"
	"github.com/verte-zerg/studytrack/internal/plan"
	"github.com/verte-zerg/studytrack/internal/store"
)

// SessionStore holds completed study sessions.
type SessionStore = Collection[model.StudySession]

// MCQStore holds verified practice-question batches.
type MCQStore = Collection[model.MCQLog]

// State is the application context: every collection, loaded once at
// startup and flushed after each mutation.
type State struct {
	backend Backend
	log     zerolog.Logger

	Sessions *SessionStore
	MCQLogs  *MCQStore
	Plan     *PlanStore
}

// Snapshot is a point-in-time copy of all collections.
type Snapshot struct {
	Sessions  []model.StudySession
	StudyPlan []string
	MCQLogs   []model.MCQLog
}

// Replacement selects which collections to replace; nil fields are left untouched.
type Replacement struct {
	Sessions  *[]model.StudySession
	StudyPlan *[]string
	MCQLogs   *[]model.MCQLog
}

// Load reads every slot from backend. Unparseable slots load as empty.
func Load(ctx context.Context, backend Backend, log zerolog.Logger) (*State, error) {
	s := &State{
		backend:  backend,
		log:      log,
		Sessions: newCollection(store.KeySessions, backend, func(v *model.StudySession) *string { return &v.ID }),
		MCQLogs:  newCollection(store.KeyMCQLogs, backend, func(v *model.MCQLog) *string { return &v.ID }),
		Plan:     &PlanStore{key: store.KeyPlan, backend: backend, labels: []string{}},
	}
	loaders := []struct {
		key  string
		load func([]byte) error
	}{
		{store.KeySessions, s.Sessions.load},
		{store.KeyMCQLogs, s.MCQLogs.load},
		{store.KeyPlan, s.Plan.load},
	}
	for _, l := range loaders {
		raw, ok, err := backend.ReadSlot(ctx, l.key)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", l.key, err)
		}
		if !ok {
			continue
		}
		if err := l.load(raw); err != nil {
			log.Warn().Err(err).Str("key", l.key).Msg("stored data is unreadable; starting empty")
		}
	}
	log.Debug().
		Int("sessions", s.Sessions.Len()).
		Int("mcq_logs", s.MCQLogs.Len()).
		Int("plan", len(s.Plan.labels)).
		Msg("state loaded")
	return s, nil
}

// Snapshot copies all collections.
func (s *State) Snapshot() Snapshot {
	return Snapshot{
		Sessions:  s.Sessions.LoadAll(),
		StudyPlan: s.Plan.Labels(),
		MCQLogs:   s.MCQLogs.LoadAll(),
	}
}

// Empty reports whether every collection is empty.
func (s *State) Empty() bool {
	return s.Sessions.Len() == 0 && s.MCQLogs.Len() == 0 && len(s.Plan.labels) == 0
}

// Dirty reports whether any collection changed since Load.
func (s *State) Dirty() bool {
	return s.Sessions.dirty || s.MCQLogs.dirty || s.Plan.dirty
}

// Flush rewrites the collections changed since Load. Untouched slots,
// including ones that could not be parsed, are left as stored.
func (s *State) Flush(ctx context.Context) error {
	pending := map[string]any{}
	if s.Sessions.dirty {
		pending[s.Sessions.key] = s.Sessions.items
	}
	if s.MCQLogs.dirty {
		pending[s.MCQLogs.key] = s.MCQLogs.items
	}
	if s.Plan.dirty {
		pending[s.Plan.key] = s.Plan.labels
	}
	if len(pending) == 0 {
		return nil
	}
	slots := map[string][]byte{}
	for key, v := range pending {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", key, err)
		}
		slots[key] = raw
	}
	if err := s.backend.WriteSlots(ctx, slots); err != nil {
		return fmt.Errorf("failed to flush state: %w", err)
	}
	return nil
}

// Replace swaps the selected collections in one backend write. Either all
// selected collections change or none do.
func (s *State) Replace(ctx context.Context, r Replacement) error {
	slots := map[string][]byte{}
	var sessions []model.StudySession
	var logs []model.MCQLog
	var labels []string
	var err error

	if r.Sessions != nil {
		if sessions, err = s.Sessions.prepare(*r.Sessions); err != nil {
			return err
		}
		if slots[s.Sessions.key], err = json.Marshal(sessions); err != nil {
			return fmt.Errorf("failed to encode sessions: %w", err)
		}
	}
	if r.MCQLogs != nil {
		if logs, err = s.MCQLogs.prepare(*r.MCQLogs); err != nil {
			return err
		}
		if slots[s.MCQLogs.key], err = json.Marshal(logs); err != nil {
			return fmt.Errorf("failed to encode mcq logs: %w", err)
		}
	}
	if r.StudyPlan != nil {
		labels = cleanLabels(*r.StudyPlan)
		if slots[s.Plan.key], err = json.Marshal(labels); err != nil {
			return fmt.Errorf("failed to encode plan: %w", err)
		}
	}
	if len(slots) == 0 {
		return nil
	}
	if err := s.backend.WriteSlots(ctx, slots); err != nil {
		return fmt.Errorf("failed to flush replacement: %w", err)
	}
	if r.Sessions != nil {
		s.Sessions.items = sessions
		s.Sessions.dirty = true
	}
	if r.MCQLogs != nil {
		s.MCQLogs.items = logs
		s.MCQLogs.dirty = true
	}
	if r.StudyPlan != nil {
		s.Plan.labels = labels
		s.Plan.dirty = true
	}
	s.log.Info().
		Bool("sessions", r.Sessions != nil).
		Bool("mcq_logs", r.MCQLogs != nil).
		Bool("plan", r.StudyPlan != nil).
		Msg("collections replaced")
	return nil
}

// Reset empties every collection.
func (s *State) Reset(ctx context.Context) error {
	sessions := []model.StudySession{}
	logs := []model.MCQLog{}
	labels := []string{}
	return s.Replace(ctx, Replacement{Sessions: &sessions, MCQLogs: &logs, StudyPlan: &labels})
}

// PlanStore holds the ordered subject labels used for autocomplete.
type PlanStore struct {
	key     string
	backend Backend
	labels  []string
	dirty   bool
}

// Labels returns a copy of the plan.
func (p *PlanStore) Labels() []string {
	out := make([]string, len(p.labels))
	copy(out, p.labels)
	return out
}

// Set replaces the plan and flushes.
func (p *PlanStore) Set(ctx context.Context, labels []string) error {
	next := cleanLabels(labels)
	raw, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}
	if err := p.backend.WriteSlots(ctx, map[string][]byte{p.key: raw}); err != nil {
		return fmt.Errorf("failed to flush plan: %w", err)
	}
	p.labels = next
	p.dirty = true
	return nil
}

// SetText parses free text, one label per line, and stores it.
func (p *PlanStore) SetText(ctx context.Context, text string) error {
	return p.Set(ctx, plan.Parse(text))
}

func (p *PlanStore) load(raw []byte) error {
	var labels []string
	if err := json.Unmarshal(raw, &labels); err != nil {
		return err
	}
	p.labels = cleanLabels(labels)
	return nil
}

func cleanLabels(labels []string) []string {
	return plan.Parse(plan.Format(labels))
}
