package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "studytrack.db")
	st, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st, path
}

func TestReadMissingSlot(t *testing.T) {
	st, _ := openTestStore(t)
	value, ok, err := st.ReadSlot(context.Background(), KeySessions)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, value)
}

func TestWriteSlotsUpsert(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.WriteSlots(ctx, map[string][]byte{
		KeySessions: []byte(`[]`),
		KeyPlan:     []byte(`["Anatomy"]`),
	}))
	require.NoError(t, st.WriteSlots(ctx, map[string][]byte{
		KeyPlan: []byte(`["Anatomy","Pathology"]`),
	}))

	value, ok, err := st.ReadSlot(ctx, KeyPlan)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `["Anatomy","Pathology"]`, string(value))

	keys, err := st.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{KeyPlan, KeySessions}, keys)
}

func TestSlotsSurviveReopen(t *testing.T) {
	st, path := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.WriteSlots(ctx, map[string][]byte{KeyMCQLogs: []byte(`[{"id":"a"}]`)}))
	require.NoError(t, st.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = reopened.Close()
	})
	value, ok, err := reopened.ReadSlot(ctx, KeyMCQLogs)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `[{"id":"a"}]`, string(value))
}

func TestWriteSlotsEmptyIsNoop(t *testing.T) {
	st, _ := openTestStore(t)
	require.NoError(t, st.WriteSlots(context.Background(), nil))
	keys, err := st.Keys(context.Background())
	require.NoError(t, err)
	assert.Empty(t, keys)
}
