package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/studytrack/internal/config"
	"github.com/verte-zerg/studytrack/internal/store"
)

const legacySessions = `[
  {"id":"a","subject":"Anatomy","startTime":1715850000000,"endTime":1715851800000,"duration":1800,"concentration":4},
  {"id":"b","subject":"Pathology","startTime":1715853600000,"endTime":1715854500000,"duration":900,"concentration":2}
]`

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(dir, "state"))
	t.Setenv("STUDYTRACK_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	return dir
}

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestImportExportReset(t *testing.T) {
	dir := isolate(t)

	_, _, err := run(t, legacySessions, "import", "-", "--format", "json")
	require.NoError(t, err)

	_, _, err = run(t, "Anatomy\nPathology\n", "plan", "set", "-")
	require.NoError(t, err)

	out, _, err := run(t, "", "plan")
	require.NoError(t, err)
	assert.Equal(t, "Anatomy\nPathology\n", out)

	backup := filepath.Join(dir, "backup.yaml")
	_, _, err = run(t, "", "export", backup)
	require.NoError(t, err)
	raw, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "studyPlan:")
	assert.Contains(t, string(raw), "subject: Pathology")

	_, errOut, err := run(t, "n\n", "reset")
	require.NoError(t, err)
	assert.Contains(t, errOut, "Reset cancelled.")

	out, _, err = run(t, "", "export", "-")
	require.NoError(t, err)
	assert.Contains(t, out, `"Anatomy"`)

	_, _, err = run(t, "", "reset", "--yes")
	require.NoError(t, err)
	out, _, err = run(t, "", "export", "-")
	require.NoError(t, err)
	assert.JSONEq(t, `{"sessions":[],"studyPlan":[],"mcqLogs":[]}`, out)

	_, errOut, err = run(t, "", "import", backup)
	require.NoError(t, err)
	assert.Contains(t, errOut, "Imported 2 sessions, 2 plan subjects, and 0 MCQ logs")

	out, _, err = run(t, "", "stats", "--plain", "--subject", "Anatomy")
	require.NoError(t, err)
	assert.Contains(t, out, "Anatomy")
	assert.NotContains(t, out, "Pathology")
}

func TestImportDeclined(t *testing.T) {
	dir := isolate(t)
	_, _, err := run(t, legacySessions, "import", "-", "--format", "json")
	require.NoError(t, err)

	other := filepath.Join(dir, "other.json")
	require.NoError(t, os.WriteFile(other, []byte(`{"sessions":[]}`), 0o600))

	_, errOut, err := run(t, "no\n", "import", other)
	require.NoError(t, err)
	assert.Contains(t, errOut, "Replace 2 sessions with 0 sessions from the backup document? [y/N]")
	assert.Contains(t, errOut, "Import cancelled.")

	out, _, err := run(t, "", "export", "-")
	require.NoError(t, err)
	assert.Contains(t, out, `"Pathology"`)
}

func TestImportFromStdinNeedsYesOverExistingData(t *testing.T) {
	isolate(t)
	_, _, err := run(t, legacySessions, "import", "-", "--format", "json")
	require.NoError(t, err)

	_, errOut, err := run(t, legacySessions, "import", "-", "--format", "json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "use --yes")
	assert.NotContains(t, errOut, "[y/N]")

	_, _, err = run(t, legacySessions, "import", "-", "--format", "json", "--yes")
	require.NoError(t, err)
}

func TestReadOnlyCommandKeepsUnreadableSlot(t *testing.T) {
	isolate(t)
	damaged := []byte(`[{"id":"a","subject":"Anatomy"},]`)
	ctx := context.Background()

	st, err := store.Open(config.DefaultDBPath())
	require.NoError(t, err)
	require.NoError(t, st.WriteSlots(ctx, map[string][]byte{store.KeySessions: damaged}))
	require.NoError(t, st.Close())

	for _, args := range [][]string{{"plan"}, {"stats", "--plain"}, {"export", "-"}} {
		_, _, err = run(t, "", args...)
		require.NoError(t, err, args)
	}

	st, err = store.Open(config.DefaultDBPath())
	require.NoError(t, err)
	defer func() {
		_ = st.Close()
	}()
	raw, ok, err := st.ReadSlot(ctx, store.KeySessions)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, damaged, raw)
}

func TestImportRejectsInvalid(t *testing.T) {
	dir := isolate(t)
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"unrelated":true}`), 0o600))

	_, _, err := run(t, "", "import", bad)
	require.Error(t, err)
}

func TestInsightsWithoutCredential(t *testing.T) {
	isolate(t)
	_, _, err := run(t, "", "insights")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no API key configured")
}

func TestStatsRejectsBadFlags(t *testing.T) {
	isolate(t)
	_, _, err := run(t, "", "stats", "--plain", "--focus", "9")
	require.Error(t, err)
	_, _, err = run(t, "", "stats", "--plain", "--from", "2024-05-10", "--to", "2024-05-01")
	require.Error(t, err)
}

func TestDefaultConfigTemplateParses(t *testing.T) {
	var cfg config.FileConfig
	_, err := toml.Decode(defaultConfigTemplate(), &cfg)
	require.NoError(t, err)
	assert.Nil(t, cfg.Gateway.APIKey)

	uncommented := strings.ReplaceAll(defaultConfigTemplate(), "# window", "window")
	_, err = toml.Decode(uncommented, &cfg)
	require.NoError(t, err)
	require.NotNil(t, cfg.Stats.Window)
	assert.Equal(t, 7, *cfg.Stats.Window)
}

func TestConfigFileFeedsStatsDefaults(t *testing.T) {
	isolate(t)
	path := config.DefaultConfigPath()
	require.NoError(t, ensureConfigFile(path))
	require.NoError(t, os.WriteFile(path, []byte("[stats]\nsubject = \"Pathology\"\n"), 0o600))

	_, _, err := run(t, legacySessions, "import", "-", "--format", "json")
	require.NoError(t, err)

	out, _, err := run(t, "", "stats", "--plain")
	require.NoError(t, err)
	assert.Contains(t, out, "Pathology")
	assert.NotContains(t, out, "Anatomy")

	out, _, err = run(t, "", "stats", "--plain", "--subject", "Anatomy")
	require.NoError(t, err)
	assert.Contains(t, out, "Anatomy")
}

func TestConfirm(t *testing.T) {
	var out bytes.Buffer
	assert.True(t, confirm(strings.NewReader("y\n"), &out, "Go?"))
	assert.True(t, confirm(strings.NewReader("YES"), &out, "Go?"))
	assert.False(t, confirm(strings.NewReader("\n"), &out, "Go?"))
	assert.False(t, confirm(strings.NewReader(""), &out, "Go?"))
	assert.Contains(t, out.String(), "Go? [y/N] ")
}
