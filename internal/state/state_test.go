package state

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/studytrack/internal/model"
	"github.com/verte-zerg/studytrack/internal/store"
)

type flakyBackend struct {
	slots map[string][]byte
	fail  bool
}

func (b *flakyBackend) ReadSlot(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := b.slots[key]
	return v, ok, nil
}

func (b *flakyBackend) WriteSlots(_ context.Context, slots map[string][]byte) error {
	if b.fail {
		return errors.New("write refused")
	}
	for k, v := range slots {
		b.slots[k] = v
	}
	return nil
}

func openState(t *testing.T) (*State, *store.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "studytrack.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = st.Close()
	})
	s, err := Load(context.Background(), st, zerolog.Nop())
	require.NoError(t, err)
	return s, st, path
}

func TestAddPrependsAndPersists(t *testing.T) {
	s, _, path := openState(t)
	ctx := context.Background()

	first, err := s.Sessions.Add(ctx, model.StudySession{Subject: "Anatomy", Duration: 60, Concentration: 3})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	second, err := s.Sessions.Add(ctx, model.StudySession{ID: "fixed", Subject: "Pathology", Duration: 30, Concentration: 2})
	require.NoError(t, err)
	assert.Equal(t, "fixed", second.ID)

	all := s.Sessions.LoadAll()
	require.Len(t, all, 2)
	assert.Equal(t, "fixed", all[0].ID, "newest first")
	assert.Equal(t, first.ID, all[1].ID)

	_, err = s.Sessions.Add(ctx, model.StudySession{ID: "fixed"})
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.Equal(t, 2, s.Sessions.Len())

	reopened, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = reopened.Close()
	})
	again, err := Load(ctx, reopened, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, all, again.Sessions.LoadAll())
}

func TestLoadAllReturnsCopy(t *testing.T) {
	s, _, _ := openState(t)
	_, err := s.MCQLogs.Add(context.Background(), model.MCQLog{Count: 5, Verified: true})
	require.NoError(t, err)
	logs := s.MCQLogs.LoadAll()
	logs[0].Count = 99
	assert.Equal(t, 5, s.MCQLogs.LoadAll()[0].Count)
}

func TestMalformedSlotLoadsEmpty(t *testing.T) {
	ctx := context.Background()
	backend := &flakyBackend{slots: map[string][]byte{
		store.KeySessions: []byte("{not json"),
		store.KeyPlan:     []byte(`["Anatomy","Pathology"]`),
		store.KeyMCQLogs:  []byte(`[{"id":"a","count":3},{"id":"a","count":4}]`),
	}}
	s, err := Load(ctx, backend, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 0, s.Sessions.Len())
	assert.Equal(t, 0, s.MCQLogs.Len(), "duplicate ids are treated as unreadable")
	assert.Equal(t, []string{"Anatomy", "Pathology"}, s.Plan.Labels())
}

func TestFailedFlushRollsBack(t *testing.T) {
	ctx := context.Background()
	backend := &flakyBackend{slots: map[string][]byte{}}
	s, err := Load(ctx, backend, zerolog.Nop())
	require.NoError(t, err)
	_, err = s.Sessions.Add(ctx, model.StudySession{Subject: "Anatomy", Concentration: 3})
	require.NoError(t, err)

	backend.fail = true
	_, err = s.Sessions.Add(ctx, model.StudySession{Subject: "Pathology", Concentration: 3})
	require.Error(t, err)
	assert.Equal(t, 1, s.Sessions.Len())

	require.Error(t, s.Sessions.Clear(ctx))
	assert.Equal(t, 1, s.Sessions.Len())

	require.Error(t, s.Plan.SetText(ctx, "Anatomy"))
	assert.Empty(t, s.Plan.Labels())

	empty := []model.StudySession{}
	require.Error(t, s.Replace(ctx, Replacement{Sessions: &empty}))
	assert.Equal(t, 1, s.Sessions.Len())
}

func TestReplaceAllAndClear(t *testing.T) {
	s, _, _ := openState(t)
	ctx := context.Background()
	_, err := s.Sessions.Add(ctx, model.StudySession{Subject: "Old", Concentration: 1})
	require.NoError(t, err)

	incoming := []model.StudySession{
		{ID: "b", Subject: "B", Concentration: 2},
		{Subject: "C", Concentration: 3},
	}
	require.NoError(t, s.Sessions.ReplaceAll(ctx, incoming))
	all := s.Sessions.LoadAll()
	require.Len(t, all, 2)
	assert.Equal(t, "b", all[0].ID)
	assert.NotEmpty(t, all[1].ID)
	assert.Empty(t, incoming[1].ID, "caller slice is not modified")

	dup := []model.StudySession{{ID: "x"}, {ID: "x"}}
	assert.ErrorIs(t, s.Sessions.ReplaceAll(ctx, dup), ErrDuplicateID)
	assert.Equal(t, 2, s.Sessions.Len())

	require.NoError(t, s.Sessions.Clear(ctx))
	assert.Equal(t, 0, s.Sessions.Len())
}

func TestReplaceLeavesUnselectedCollections(t *testing.T) {
	s, _, _ := openState(t)
	ctx := context.Background()
	require.NoError(t, s.Plan.SetText(ctx, "Anatomy\nPathology\n"))
	_, err := s.MCQLogs.Add(ctx, model.MCQLog{Count: 10, Verified: true})
	require.NoError(t, err)

	sessions := []model.StudySession{{ID: "a", Subject: "Anatomy", Concentration: 4}}
	require.NoError(t, s.Replace(ctx, Replacement{Sessions: &sessions}))

	snap := s.Snapshot()
	assert.Len(t, snap.Sessions, 1)
	assert.Equal(t, []string{"Anatomy", "Pathology"}, snap.StudyPlan)
	assert.Len(t, snap.MCQLogs, 1)
	assert.False(t, s.Empty())

	require.NoError(t, s.Reset(ctx))
	assert.True(t, s.Empty())
}

func TestFlushSkipsUntouchedSlots(t *testing.T) {
	ctx := context.Background()
	damaged := []byte(`[{"id":"a","subject":"Anatomy"},]`)
	backend := &flakyBackend{slots: map[string][]byte{store.KeySessions: damaged}}
	s, err := Load(ctx, backend, zerolog.Nop())
	require.NoError(t, err)
	assert.Zero(t, s.Sessions.Len())
	assert.False(t, s.Dirty())

	backend.fail = true
	require.NoError(t, s.Flush(ctx), "nothing changed, so nothing is written")
	backend.fail = false
	assert.Equal(t, damaged, backend.slots[store.KeySessions])

	require.NoError(t, s.Plan.Set(ctx, []string{"Anatomy"}))
	assert.True(t, s.Dirty())
	require.NoError(t, s.Flush(ctx))
	assert.Equal(t, damaged, backend.slots[store.KeySessions])
	assert.JSONEq(t, `["Anatomy"]`, string(backend.slots[store.KeyPlan]))

	_, err = s.Sessions.Add(ctx, model.StudySession{ID: "b", Subject: "Pathology", Duration: 60, Concentration: 3})
	require.NoError(t, err)
	require.NoError(t, s.Flush(ctx))
	assert.Contains(t, string(backend.slots[store.KeySessions]), `"Pathology"`)
}

func TestReplaceMarksDirty(t *testing.T) {
	ctx := context.Background()
	backend := &flakyBackend{slots: map[string][]byte{}}
	s, err := Load(ctx, backend, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, s.Reset(ctx))
	assert.True(t, s.Dirty())
	require.NoError(t, s.Flush(ctx))
	assert.JSONEq(t, `[]`, string(backend.slots[store.KeySessions]))
	assert.JSONEq(t, `[]`, string(backend.slots[store.KeyMCQLogs]))
	assert.JSONEq(t, `[]`, string(backend.slots[store.KeyPlan]))
}
