package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/studytrack/internal/model"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

type fakeClient struct {
	text     string
	json     string
	err      error
	calls    atomic.Int32
	lastUser string
	images   []ImageInput
	mu       sync.Mutex
	gate     chan struct{}
	started  chan struct{}
}

func (f *fakeClient) GenerateText(ctx context.Context, _, user string) (string, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.lastUser = user
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.text, f.err
}

func (f *fakeClient) GenerateJSONWithImages(_ context.Context, _, _, _ string, _ map[string]any, images []ImageInput) (string, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.images = images
	f.mu.Unlock()
	return f.json, f.err
}

func testConfig() model.GatewayConfig {
	return model.GatewayConfig{APIKey: "sk-test", BaseURL: "http://unused", Model: "test-model", MaxSessions: 25}
}

func sessionsFixture(n int) []model.StudySession {
	base := time.Date(2024, time.May, 1, 9, 0, 0, 0, time.UTC)
	out := make([]model.StudySession, n)
	for i := range out {
		start := base.Add(time.Duration(i) * time.Hour)
		out[i] = model.StudySession{
			ID:            fmt.Sprintf("s%d", i),
			Subject:       "Anatomy",
			StartTime:     start.UnixMilli(),
			EndTime:       start.Add(30 * time.Minute).UnixMilli(),
			Duration:      1800,
			Concentration: 3,
		}
	}
	return out
}

func TestMissingCredentialFailsFast(t *testing.T) {
	client := &fakeClient{}
	cfg := testConfig()
	cfg.APIKey = ""
	g := NewWithClient(cfg, client, zerolog.Nop())

	_, err := g.RequestInsights(context.Background(), sessionsFixture(1))
	assert.ErrorIs(t, err, ErrMissingCredential)
	_, err = g.VerifyProof(context.Background(), pngHeader)
	assert.ErrorIs(t, err, ErrMissingCredential)
	assert.Zero(t, client.calls.Load())

	g, err = New(cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.False(t, g.Configured())
}

func TestInsightsEmptyHistorySkipsRemote(t *testing.T) {
	client := &fakeClient{text: "unused"}
	g := NewWithClient(testConfig(), client, zerolog.Nop())

	got, err := g.RequestInsights(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, EmptyHistoryMessage, got)
	assert.Zero(t, client.calls.Load())
}

func TestInsightsSummarisesNewestSessions(t *testing.T) {
	client := &fakeClient{text: "## Keep going\n"}
	g := NewWithClient(testConfig(), client, zerolog.Nop())
	g.loc = time.UTC

	sessions := sessionsFixture(30)
	sessions[29].Notes = "  cardio  "
	got, err := g.RequestInsights(context.Background(), sessions)
	require.NoError(t, err)
	assert.Equal(t, "## Keep going", got)

	summary := g.summarize(sessions)
	require.Len(t, summary, 25)
	assert.Equal(t, "cardio", summary[0].Notes)
	assert.Equal(t, "None", summary[1].Notes)
	assert.Equal(t, int64(30), summary[0].DurationMinutes)
	assert.Equal(t, "2024-05-02", summary[0].Date)
	assert.Contains(t, client.lastUser, `"durationMinutes": 30`)
}

func TestInsightsFallbackOnFailure(t *testing.T) {
	client := &fakeClient{err: errors.New("connection refused")}
	g := NewWithClient(testConfig(), client, zerolog.Nop())

	got, err := g.RequestInsights(context.Background(), sessionsFixture(2))
	require.NoError(t, err)
	assert.Equal(t, InsightsFallbackMessage, got)

	client.err = nil
	client.text = "   "
	got, err = g.RequestInsights(context.Background(), sessionsFixture(2))
	require.NoError(t, err)
	assert.Equal(t, InsightsFallbackMessage, got)
}

func TestConcurrentInsightsShareOneCall(t *testing.T) {
	client := &fakeClient{text: "shared", gate: make(chan struct{}), started: make(chan struct{}, 2)}
	g := NewWithClient(testConfig(), client, zerolog.Nop())
	sessions := sessionsFixture(3)

	results := make(chan string, 2)
	call := func() {
		got, err := g.RequestInsights(context.Background(), sessions)
		assert.NoError(t, err)
		results <- got
	}
	go call()
	<-client.started
	go call()
	time.Sleep(50 * time.Millisecond)
	close(client.gate)

	assert.Equal(t, "shared", <-results)
	assert.Equal(t, "shared", <-results)
	assert.Equal(t, int32(1), client.calls.Load())
}

func TestCancelledCallerDoesNotFailJoinedCaller(t *testing.T) {
	client := &fakeClient{text: "shared", gate: make(chan struct{}), started: make(chan struct{}, 2)}
	g := NewWithClient(testConfig(), client, zerolog.Nop())
	sessions := sessionsFixture(3)

	ctxA, cancelA := context.WithCancel(context.Background())
	first := make(chan string, 1)
	go func() {
		got, err := g.RequestInsights(ctxA, sessions)
		assert.NoError(t, err)
		first <- got
	}()
	<-client.started

	second := make(chan string, 1)
	go func() {
		got, err := g.RequestInsights(context.Background(), sessions)
		assert.NoError(t, err)
		second <- got
	}()
	time.Sleep(50 * time.Millisecond)

	cancelA()
	assert.Equal(t, InsightsFallbackMessage, <-first)
	close(client.gate)
	assert.Equal(t, "shared", <-second)
	assert.Equal(t, int32(1), client.calls.Load())
}

func TestInsightsSummaryCappedAtDefault(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSessions = 40
	g := NewWithClient(cfg, &fakeClient{}, zerolog.Nop())
	assert.Len(t, g.summarize(sessionsFixture(30)), 25)

	cfg.MaxSessions = 5
	g = NewWithClient(cfg, &fakeClient{}, zerolog.Nop())
	assert.Len(t, g.summarize(sessionsFixture(30)), 5)
}

func TestVerifyProofCorruptBytes(t *testing.T) {
	client := &fakeClient{}
	g := NewWithClient(testConfig(), client, zerolog.Nop())

	for name, data := range map[string][]byte{
		"empty": nil,
		"text":  []byte("definitely not an image"),
		"pdf":   []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n"),
	} {
		t.Run(name, func(t *testing.T) {
			got, err := g.VerifyProof(context.Background(), data)
			require.NoError(t, err)
			assert.False(t, got.Verified)
			assert.Zero(t, got.Count)
			assert.NotEmpty(t, got.Feedback)
		})
	}
	assert.Zero(t, client.calls.Load())
}

func TestVerifyProofParsesResult(t *testing.T) {
	client := &fakeClient{json: `{"verified": true, "count": 40, "feedback": "Nice block."}`}
	g := NewWithClient(testConfig(), client, zerolog.Nop())

	got, err := g.VerifyProof(context.Background(), pngHeader)
	require.NoError(t, err)
	assert.Equal(t, Verification{Verified: true, Count: 40, Feedback: "Nice block."}, got)
	require.Len(t, client.images, 1)
	assert.True(t, strings.HasPrefix(client.images[0].ImageURL, "data:image/png;base64,"))

	now := time.Date(2024, time.May, 1, 9, 0, 0, 0, time.UTC)
	entry, ok := got.Log(now)
	require.True(t, ok)
	assert.Equal(t, 40, entry.Count)
	assert.Equal(t, now.UnixMilli(), entry.Timestamp)
	assert.NotEmpty(t, entry.ID)

	_, ok = Verification{Feedback: "no"}.Log(now)
	assert.False(t, ok)
}

func TestVerifyProofFallbacks(t *testing.T) {
	cases := map[string]*fakeClient{
		"transport": {err: errors.New("timeout")},
		"malformed": {json: `not json`},
		"extra":     {json: `{"verified": true, "count": 1, "feedback": "x", "extra": 1}`},
		"negative":  {json: `{"verified": true, "count": -2, "feedback": "x"}`},
	}
	for name, client := range cases {
		t.Run(name, func(t *testing.T) {
			g := NewWithClient(testConfig(), client, zerolog.Nop())
			got, err := g.VerifyProof(context.Background(), pngHeader)
			require.NoError(t, err)
			assert.Equal(t, Verification{Feedback: VerificationFallbackMessage}, got)
		})
	}
}

func TestParseVerification(t *testing.T) {
	got, err := ParseVerification("```json\n{\"verified\": true, \"count\": 0, \"feedback\": \"ok\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, Verification{Verified: true, Feedback: "ok"}, got)

	for _, raw := range []string{
		``,
		`[]`,
		`{"verified": true, "count": 1}`,
		`{"verified": "yes", "count": 1, "feedback": "x"}`,
		`{"verified": true, "count": 1.5, "feedback": "x"}`,
		`{"verified": true, "count": null, "feedback": "x"}`,
		`{"verified": true, "total": 1, "feedback": "x"}`,
	} {
		_, err := ParseVerification(raw)
		assert.Error(t, err, raw)
	}
}

func TestHTTPClientResponses(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, responsesPath, r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"output":[{"type":"message","role":"assistant","content":[{"type":"output_text","text":"{\"verified\":false,"},{"type":"output_text","text":"\"count\":0,\"feedback\":\"blurry\"}"}]}]}`))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.BaseURL = srv.URL + "/"
	client, err := NewHTTPClient(cfg)
	require.NoError(t, err)

	raw, err := client.GenerateJSONWithImages(context.Background(), "sys", "user", schemaName, verificationSchema(), []ImageInput{
		{ImageURL: dataURL("image/png", pngHeader)},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"verified":false,"count":0,"feedback":"blurry"}`, raw)
	assert.Equal(t, "test-model", body["model"])
	format := body["text"].(map[string]any)["format"].(map[string]any)
	assert.Equal(t, "json_schema", format["type"])
	assert.Equal(t, schemaName, format["name"])
}

func TestHTTPClientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.BaseURL = srv.URL
	client, err := NewHTTPClient(cfg)
	require.NoError(t, err)

	_, err = client.GenerateText(context.Background(), "sys", "user")
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
	assert.Equal(t, int32(1), hits.Load(), "no retries")

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"output":[]}`))
	}))
	defer empty.Close()
	cfg.BaseURL = empty.URL
	client, err = NewHTTPClient(cfg)
	require.NoError(t, err)
	_, err = client.GenerateText(context.Background(), "sys", "user")
	assert.Error(t, err)

	cfg.APIKey = ""
	_, err = NewHTTPClient(cfg)
	assert.ErrorIs(t, err, ErrMissingCredential)
}
