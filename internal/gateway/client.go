package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/verte-zerg/studytrack/internal/model"
)

const responsesPath = "/v1/responses"

// ImageInput is one image attached to a multimodal request.
type ImageInput struct {
	// https://... or data:image/...;base64,...
	ImageURL string
	Detail   string
}

// Client talks to an OpenAI-compatible Responses API.
type Client interface {
	// GenerateText sends a plain prompt and returns the output text.
	GenerateText(ctx context.Context, system, user string) (string, error)

	// GenerateJSONWithImages asks for json_schema output over a prompt plus images
	// and returns the raw JSON text for the caller to validate.
	GenerateJSONWithImages(ctx context.Context, system, user, schemaName string, schema map[string]any, images []ImageInput) (string, error)
}

type httpClient struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
}

// NewHTTPClient builds a Client from resolved gateway settings.
func NewHTTPClient(cfg model.GatewayConfig) (Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingCredential
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("gateway base url is empty")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("gateway model is empty")
	}
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 60
	}
	return &httpClient{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		http:    &http.Client{Timeout: time.Duration(timeout) * time.Second},
	}, nil
}

// HTTPError reports a non-2xx response.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("gateway http %d: %s", e.StatusCode, e.Body)
}

type message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type responsesRequest struct {
	Model string    `json:"model"`
	Input []message `json:"input"`
	Text  *struct {
		Format map[string]any `json:"format,omitempty"`
	} `json:"text,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

type responsesResponse struct {
	Output []struct {
		Type    string `json:"type"`
		Role    string `json:"role,omitempty"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text,omitempty"`
		} `json:"content,omitempty"`
	} `json:"output"`
	Refusal string `json:"refusal,omitempty"`
}

func (c *httpClient) GenerateText(ctx context.Context, system, user string) (string, error) {
	req := responsesRequest{
		Model: c.model,
		Input: []message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0.2,
	}
	return c.respond(ctx, req)
}

func (c *httpClient) GenerateJSONWithImages(ctx context.Context, system, user, schemaName string, schema map[string]any, images []ImageInput) (string, error) {
	if schemaName == "" {
		return "", errors.New("schema name required")
	}
	if schema == nil {
		return "", errors.New("schema required")
	}
	content := make([]map[string]any, 0, 1+len(images))
	content = append(content, map[string]any{"type": "input_text", "text": user})
	for _, img := range images {
		u := strings.TrimSpace(img.ImageURL)
		if u == "" {
			continue
		}
		item := map[string]any{"type": "input_image", "image_url": u}
		if d := strings.TrimSpace(img.Detail); d != "" {
			item["detail"] = d
		}
		content = append(content, item)
	}

	req := responsesRequest{
		Model: c.model,
		Input: []message{
			{Role: "system", Content: system},
			{Role: "user", Content: content},
		},
		Temperature: 0.2,
	}
	req.Text = &struct {
		Format map[string]any `json:"format,omitempty"`
	}{Format: map[string]any{
		"type":   "json_schema",
		"name":   schemaName,
		"schema": schema,
		"strict": true,
	}}
	return c.respond(ctx, req)
}

func (c *httpClient) respond(ctx context.Context, body responsesRequest) (string, error) {
	var resp responsesResponse
	if err := c.do(ctx, http.MethodPost, responsesPath, body, &resp); err != nil {
		return "", err
	}
	if resp.Refusal != "" {
		return "", fmt.Errorf("model refused: %s", resp.Refusal)
	}
	text := extractOutputText(resp)
	if strings.TrimSpace(text) == "" {
		return "", errors.New("no output_text found in response")
	}
	return text, nil
}

// do sends one request. Failures are returned as-is; there are no retries.
func (c *httpClient) do(ctx context.Context, method, path string, body, out any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return fmt.Errorf("failed to read response: %w", readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func extractOutputText(resp responsesResponse) string {
	var out strings.Builder
	for _, item := range resp.Output {
		if item.Type != "message" || item.Role != "assistant" {
			continue
		}
		for _, c := range item.Content {
			if c.Type == "output_text" && c.Text != "" {
				out.WriteString(c.Text)
			}
		}
	}
	return out.String()
}

func dataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
