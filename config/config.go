// Package config loads the process configuration once at startup from the
// environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/hupe1980/toolrelay/logging"
)

// Supported backend providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGollm     = "gollm"
	ProviderMock      = "mock"
)

// Log output formats.
const (
	LogFormatText   = "text"
	LogFormatJSON   = "json"
	LogFormatPretty = "pretty"
)

// Config controls the HTTP server, the model backend and the agent loop.
type Config struct {
	Addr            string        `env:"TOOLRELAY_ADDR" envDefault:":5001"`
	ShutdownTimeout time.Duration `env:"TOOLRELAY_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	AllowedOrigin   string        `env:"TOOLRELAY_ALLOWED_ORIGIN" envDefault:"*"`
	MaxBodyBytes    int64         `env:"TOOLRELAY_MAX_BODY_BYTES" envDefault:"4194304"`

	Provider      string `env:"TOOLRELAY_PROVIDER" envDefault:"openai"`
	Model         string `env:"TOOLRELAY_MODEL" envDefault:"qwen-max-latest"`
	BaseURL       string `env:"TOOLRELAY_BASE_URL" envDefault:"https://dashscope-intl.aliyuncs.com/compatible-mode/v1"`
	GollmProvider string `env:"TOOLRELAY_GOLLM_PROVIDER" envDefault:"openai"`

	// DashScopeAPIKey is the credential name used by DashScope tooling.
	// TOOLRELAY_API_KEY takes precedence when both are set.
	DashScopeAPIKey string `env:"DASHSCOPE_API_KEY"`
	RelayAPIKey     string `env:"TOOLRELAY_API_KEY"`

	AssistantName          string  `env:"TOOLRELAY_ASSISTANT_NAME" envDefault:"Qwen-Max"`
	DefaultTemperature     float64 `env:"TOOLRELAY_DEFAULT_TEMPERATURE" envDefault:"0.4"`
	DefaultMaxOutputTokens int64   `env:"TOOLRELAY_DEFAULT_MAX_OUTPUT_TOKENS" envDefault:"1000"`
	MaxTurns               int     `env:"TOOLRELAY_MAX_TURNS" envDefault:"0"`
	WorkDir                string  `env:"TOOLRELAY_WORKDIR"`

	LogLevel  string `env:"TOOLRELAY_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"TOOLRELAY_LOG_FORMAT" envDefault:"text"`
}

// Load reads envFiles (".env" when none are given) into the process
// environment without overriding variables already set, then parses and
// validates the configuration. Missing env files are ignored.
func Load(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromMap parses and validates a configuration from vars only, ignoring the
// process environment.
func FromMap(vars map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: vars}); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// APIKey returns the backend credential.
func (c Config) APIKey() string {
	if k := strings.TrimSpace(c.RelayAPIKey); k != "" {
		return k
	}
	return strings.TrimSpace(c.DashScopeAPIKey)
}

// Level returns the parsed log level.
func (c Config) Level() logging.LogLevel {
	l, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		return logging.LogLevelInfo
	}
	return l
}

// Validate checks the configuration for unsupported or missing values.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return errors.New("validate config: TOOLRELAY_ADDR must not be empty")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("validate config: TOOLRELAY_SHUTDOWN_TIMEOUT must be > 0")
	}

	switch c.Provider {
	case ProviderOpenAI, ProviderAnthropic:
		if c.APIKey() == "" {
			return fmt.Errorf("validate config: provider %q requires DASHSCOPE_API_KEY or TOOLRELAY_API_KEY", c.Provider)
		}
	case ProviderGollm:
		if c.APIKey() == "" && c.GollmProvider != "ollama" {
			return fmt.Errorf("validate config: gollm provider %q requires DASHSCOPE_API_KEY or TOOLRELAY_API_KEY", c.GollmProvider)
		}
	case ProviderMock:
	default:
		return fmt.Errorf(
			"validate config: unsupported TOOLRELAY_PROVIDER %q (allowed: %q, %q, %q, %q)",
			c.Provider, ProviderOpenAI, ProviderAnthropic, ProviderGollm, ProviderMock,
		)
	}

	if c.DefaultTemperature < 0 || c.DefaultTemperature > 2 {
		return fmt.Errorf("validate config: TOOLRELAY_DEFAULT_TEMPERATURE must be within [0, 2], got %v", c.DefaultTemperature)
	}
	if c.DefaultMaxOutputTokens <= 0 {
		return errors.New("validate config: TOOLRELAY_DEFAULT_MAX_OUTPUT_TOKENS must be > 0")
	}
	if c.MaxTurns < 0 {
		return errors.New("validate config: TOOLRELAY_MAX_TURNS must be >= 0")
	}
	if c.MaxBodyBytes < 0 {
		return errors.New("validate config: TOOLRELAY_MAX_BODY_BYTES must be >= 0")
	}

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("validate config: TOOLRELAY_LOG_LEVEL: %w", err)
	}
	switch c.LogFormat {
	case LogFormatText, LogFormatJSON, LogFormatPretty:
	default:
		return fmt.Errorf(
			"validate config: unsupported TOOLRELAY_LOG_FORMAT %q (allowed: %q, %q, %q)",
			c.LogFormat, LogFormatText, LogFormatJSON, LogFormatPretty,
		)
	}
	return nil
}
