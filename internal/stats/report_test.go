package stats

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/studytrack/internal/model"
)

func TestBuildReport(t *testing.T) {
	now := at(2024, time.May, 16, 20)
	sessions := filterFixture()
	logs := []model.MCQLog{
		{ID: "1", Timestamp: at(2024, time.May, 16, 8).UnixMilli(), Count: 12, Verified: true},
		{ID: "2", Timestamp: at(2024, time.May, 1, 8).UnixMilli(), Count: 30, Verified: true},
	}

	report := BuildReport(sessions, logs, model.StatsConfig{Subject: "Anatomy"}, now)
	assert.Equal(t, DefaultWindowDays, report.WindowDays)
	assert.Equal(t, []string{"c", "a"}, ids(report.Sessions))
	assert.Equal(t, 2, report.Totals.SessionsCount)
	require.Len(t, report.Daily, DefaultWindowDays)
	assert.Equal(t, 12, report.MCQToday)
	assert.Equal(t, 42, report.MCQTotal)
	require.Len(t, report.MCQDaily, DefaultWindowDays)
	assert.Equal(t, []string{"Anatomy", "Pathology", "Physiology"}, report.AllSubjects)
	assert.Equal(t, testLoc, report.Filter.Location)

	wide := BuildReport(sessions, logs, model.StatsConfig{WindowDays: 30}, now)
	assert.Len(t, wide.Daily, 30)
	assert.Len(t, wide.Sessions, 4)
}

func TestRenderReportPlain(t *testing.T) {
	now := at(2024, time.May, 16, 20)
	a, b := sampleSessions()
	report := BuildReport([]model.StudySession{a, b}, nil, model.StatsConfig{}, now)

	var buf bytes.Buffer
	require.NoError(t, RenderReport(&buf, report, 80, false))
	out := buf.String()
	for _, want := range []string{
		"Sessions: 2",
		"Total hours: 0.75",
		"Avg concentration: 3.0 / 5",
		"Last 7 days (hours)",
		"Focus trend [",
		"By subject",
		"MCQs today: 0 (all time: 0)",
		"Anatomy",
		"30m 00s",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "\x1b[", "no color for non-terminal writers")
}

func TestRenderSummaryEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderSummary(&buf, Totals{}))
	assert.Equal(t, "No sessions found.\n", buf.String())
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0m 45s", FormatDuration(45))
	assert.Equal(t, "30m 00s", FormatDuration(1800))
	assert.Equal(t, "1h 05m", FormatDuration(3900))
	assert.Equal(t, "00:00:00", FormatClock(-3))
	assert.Equal(t, "01:02:03", FormatClock(3723))
}

func TestSparkline(t *testing.T) {
	assert.Equal(t, " @", Sparkline([]float64{0, 5}, 0, 5))
	assert.Equal(t, "", Sparkline(nil, 0, 5))
	assert.Equal(t, "++", Sparkline([]float64{1, 1}, 1, 1))
}

func TestBarWidthFor(t *testing.T) {
	assert.Equal(t, 80-9-6-9-6, BarWidthFor(80, 9, 6, 9))
	assert.Equal(t, minBarWidth, BarWidthFor(10, 9, 6, 9))
}
