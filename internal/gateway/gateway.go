// Package gateway requests study insights and proof verification from a language model.
package gateway

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/verte-zerg/studytrack/internal/model"
)

// ErrMissingCredential means no API key is configured.
var ErrMissingCredential = errors.New("no API key configured: set [gateway] api-key, STUDYTRACK_API_KEY or OPENAI_API_KEY")

// Canned user-facing messages.
const (
	EmptyHistoryMessage         = "No study sessions recorded yet. Finish a few timed sessions, then ask again for insights."
	InsightsFallbackMessage     = "Sorry, insights could not be generated right now. Please try again later."
	VerificationFallbackMessage = "Could not verify this image. Try again with a clear screenshot of your completed questions."
)

const (
	defaultMaxSessions = 25
	defaultTimeout     = 60 * time.Second
	schemaName         = "mcq_verification"
	opInsights         = "insights"
	opVerify           = "verify"
)

// Verification is the outcome of a proof check.
type Verification struct {
	Verified bool   `json:"verified"`
	Count    int    `json:"count"`
	Feedback string `json:"feedback"`
}

// Log converts a verified result into an MCQ log entry stamped at now.
// It reports false for unverified results.
func (v Verification) Log(now time.Time) (model.MCQLog, bool) {
	if !v.Verified {
		return model.MCQLog{}, false
	}
	return model.MCQLog{
		ID:        uuid.NewString(),
		Timestamp: now.UnixMilli(),
		Count:     v.Count,
		Verified:  true,
		Feedback:  v.Feedback,
	}, true
}

// Gateway mediates the two remote calls. It holds no study data.
type Gateway struct {
	cfg     model.GatewayConfig
	client  Client
	log     zerolog.Logger
	flights singleflight.Group
	loc     *time.Location
}

// New builds a Gateway backed by the HTTP client. A missing API key is not an
// error here; it surfaces as ErrMissingCredential on each call.
func New(cfg model.GatewayConfig, log zerolog.Logger) (*Gateway, error) {
	client, err := NewHTTPClient(cfg)
	if err != nil && !errors.Is(err, ErrMissingCredential) {
		return nil, fmt.Errorf("failed to create gateway client: %w", err)
	}
	return NewWithClient(cfg, client, log), nil
}

// NewWithClient builds a Gateway around an existing client.
func NewWithClient(cfg model.GatewayConfig, client Client, log zerolog.Logger) *Gateway {
	return &Gateway{
		cfg:    cfg,
		client: client,
		log:    log.With().Str("component", "gateway").Logger(),
		loc:    time.Local,
	}
}

// Configured reports whether calls can reach the remote boundary.
func (g *Gateway) Configured() bool {
	return strings.TrimSpace(g.cfg.APIKey) != "" && g.client != nil
}

type sessionSummary struct {
	Date            string `json:"date"`
	DurationMinutes int64  `json:"durationMinutes"`
	Subject         string `json:"subject"`
	Concentration   int    `json:"concentration"`
	Notes           string `json:"notes"`
}

// RequestInsights returns markdown coaching for the most recent sessions.
// Once the credential check passes it never returns an error.
func (g *Gateway) RequestInsights(ctx context.Context, sessions []model.StudySession) (string, error) {
	if !g.Configured() {
		return "", ErrMissingCredential
	}
	if len(sessions) == 0 {
		return EmptyHistoryMessage, nil
	}

	payload, err := json.MarshalIndent(g.summarize(sessions), "", "  ")
	if err != nil {
		g.log.Warn().Err(err).Str("op", opInsights).Msg("failed to encode sessions")
		return InsightsFallbackMessage, nil
	}

	v, err := g.share(ctx, opInsights, flightKey(opInsights, payload), func(callCtx context.Context) (string, error) {
		return g.client.GenerateText(callCtx, insightsSystemPrompt, insightsUserPrompt(payload))
	})
	if err != nil {
		g.log.Warn().Err(err).Str("op", opInsights).Msg("insights request failed")
		return InsightsFallbackMessage, nil
	}
	text := strings.TrimSpace(v)
	if text == "" {
		return InsightsFallbackMessage, nil
	}
	return text, nil
}

// share runs call once per key for all concurrent callers. The shared call is
// detached from any one caller's cancellation and bounded by the configured
// timeout; each caller stops waiting when its own ctx ends.
func (g *Gateway) share(ctx context.Context, op, key string, call func(context.Context) (string, error)) (string, error) {
	ch := g.flights.DoChan(key, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout())
		defer cancel()
		return call(callCtx)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Shared {
			g.log.Debug().Str("op", op).Msg("joined in-flight request")
		}
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (g *Gateway) timeout() time.Duration {
	if g.cfg.TimeoutSeconds <= 0 {
		return defaultTimeout
	}
	return time.Duration(g.cfg.TimeoutSeconds) * time.Second
}

// summarize keeps the newest sessions, newest first.
func (g *Gateway) summarize(sessions []model.StudySession) []sessionSummary {
	sorted := make([]model.StudySession, len(sessions))
	copy(sorted, sessions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartTime > sorted[j].StartTime
	})
	limit := g.cfg.MaxSessions
	if limit <= 0 || limit > defaultMaxSessions {
		limit = defaultMaxSessions
	}
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}

	loc := g.loc
	if loc == nil {
		loc = time.Local
	}
	out := make([]sessionSummary, 0, len(sorted))
	for _, s := range sorted {
		notes := strings.TrimSpace(s.Notes)
		if notes == "" {
			notes = "None"
		}
		out = append(out, sessionSummary{
			Date:            s.StartedAt().In(loc).Format("2006-01-02"),
			DurationMinutes: (s.Duration + 30) / 60,
			Subject:         s.Subject,
			Concentration:   s.Concentration,
			Notes:           notes,
		})
	}
	return out
}

// VerifyProof checks whether image shows solved practice questions.
// Once the credential check passes it never returns an error.
func (g *Gateway) VerifyProof(ctx context.Context, image []byte) (Verification, error) {
	if !g.Configured() {
		return Verification{}, ErrMissingCredential
	}
	if len(image) == 0 {
		return unverified("The uploaded file is empty."), nil
	}
	mt := mimetype.Detect(image)
	if !strings.HasPrefix(mt.String(), "image/") {
		return unverified(fmt.Sprintf("The uploaded file is not a recognised image (detected %s).", mt.String())), nil
	}

	v, err := g.share(ctx, opVerify, flightKey(opVerify, image), func(callCtx context.Context) (string, error) {
		return g.client.GenerateJSONWithImages(callCtx, verifySystemPrompt, verifyUserPrompt, schemaName, verificationSchema(), []ImageInput{
			{ImageURL: dataURL(mt.String(), image), Detail: "high"},
		})
	})
	if err != nil {
		g.log.Warn().Err(err).Str("op", opVerify).Msg("verification request failed")
		return unverified(VerificationFallbackMessage), nil
	}
	out, err := ParseVerification(v)
	if err != nil {
		g.log.Warn().Err(err).Str("op", opVerify).Msg("malformed verification response")
		return unverified(VerificationFallbackMessage), nil
	}
	g.log.Info().Str("op", opVerify).Bool("verified", out.Verified).Int("count", out.Count).Msg("proof checked")
	return out, nil
}

// ParseVerification decodes a response that must hold exactly the fields
// verified, count and feedback.
func ParseVerification(raw string) (Verification, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Verification{}, errors.New("empty response")
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return Verification{}, errors.New("response is not a JSON object")
	}
	s = s[start : end+1]

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &fields); err != nil {
		return Verification{}, fmt.Errorf("failed to parse verification: %w", err)
	}
	if len(fields) != 3 {
		return Verification{}, fmt.Errorf("expected 3 fields, got %d", len(fields))
	}

	var out Verification
	if err := strictField(fields, "verified", &out.Verified); err != nil {
		return Verification{}, err
	}
	if err := strictField(fields, "count", &out.Count); err != nil {
		return Verification{}, err
	}
	if err := strictField(fields, "feedback", &out.Feedback); err != nil {
		return Verification{}, err
	}
	if out.Count < 0 {
		return Verification{}, fmt.Errorf("count must be non-negative, got %d", out.Count)
	}
	return out, nil
}

func strictField(fields map[string]json.RawMessage, name string, dst any) error {
	raw, ok := fields[name]
	if !ok {
		return fmt.Errorf("missing field %q", name)
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return fmt.Errorf("field %q is null", name)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("invalid field %q: %w", name, err)
	}
	return nil
}

func unverified(feedback string) Verification {
	return Verification{Verified: false, Count: 0, Feedback: feedback}
}

func flightKey(op string, content []byte) string {
	sum := sha256.Sum256(content)
	return op + ":" + hex.EncodeToString(sum[:])
}
