// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/verte-zerg/studytrack/internal/model"
)

// Gateway defaults used when neither the config file nor the environment set a value.
const (
	DefaultBaseURL        = "https://api.openai.com"
	DefaultModel          = "gpt-4o-mini"
	DefaultTimeoutSeconds = 60
	DefaultMaxSessions    = 25
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Timer   TimerConfig   `toml:"timer"`
	Stats   StatsConfig   `toml:"stats"`
	Gateway GatewayConfig `toml:"gateway"`
	Log     LogConfig     `toml:"log"`
}

// TimerConfig maps timer-related settings.
type TimerConfig struct {
	DefaultSubject *string `toml:"default-subject"`
}

// StatsConfig maps dashboard defaults.
type StatsConfig struct {
	Window  *int    `toml:"window"`
	Subject *string `toml:"subject"`
	Focus   *int    `toml:"focus"`
}

// GatewayConfig maps remote model settings.
type GatewayConfig struct {
	APIKey         *string `toml:"api-key"`
	BaseURL        *string `toml:"base-url"`
	Model          *string `toml:"model"`
	TimeoutSeconds *int    `toml:"timeout-seconds"`
	MaxSessions    *int    `toml:"max-sessions"`
}

// LogConfig maps logging settings.
type LogConfig struct {
	Level *string `toml:"level"`
	File  *string `toml:"file"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// ResolveGateway merges file values, environment fallbacks and defaults.
// The API key comes from the file first, then STUDYTRACK_API_KEY, then OPENAI_API_KEY.
func ResolveGateway(cfg GatewayConfig) model.GatewayConfig {
	out := model.GatewayConfig{
		BaseURL:        DefaultBaseURL,
		Model:          DefaultModel,
		TimeoutSeconds: DefaultTimeoutSeconds,
		MaxSessions:    DefaultMaxSessions,
	}
	if cfg.APIKey != nil {
		out.APIKey = strings.TrimSpace(*cfg.APIKey)
	}
	if out.APIKey == "" {
		out.APIKey = strings.TrimSpace(os.Getenv("STUDYTRACK_API_KEY"))
	}
	if out.APIKey == "" {
		out.APIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	}
	if v := stringValue(cfg.BaseURL); v != "" {
		out.BaseURL = v
	} else if v := strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")); v != "" {
		out.BaseURL = v
	}
	out.BaseURL = strings.TrimRight(out.BaseURL, "/")
	if v := stringValue(cfg.Model); v != "" {
		out.Model = v
	}
	if cfg.TimeoutSeconds != nil && *cfg.TimeoutSeconds > 0 {
		out.TimeoutSeconds = *cfg.TimeoutSeconds
	}
	if cfg.MaxSessions != nil && *cfg.MaxSessions > 0 {
		out.MaxSessions = min(*cfg.MaxSessions, DefaultMaxSessions)
	}
	return out
}

func stringValue(v *string) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(*v)
}
