package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/chatnotes/internal/llm"
	"github.com/starford/chatnotes/internal/noteservice"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Vault    VaultConfig       `yaml:"vault"`
	LLM      LLMConfig         `yaml:"llm"`
	Pipeline PipelineConfig    `yaml:"pipeline"`
	Index    IndexConfig       `yaml:"index"`
	Metrics  MetricsConfig     `yaml:"metrics"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Vault.Validate(); err != nil {
		return fmt.Errorf("vault: %w", err)
	}
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if err := c.Index.Validate(); err != nil {
		return fmt.Errorf("index: %w", err)
	}
	return c.Metrics.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
	// CORSOrigins lists the origins allowed to call the API. "*" allows any,
	// which the browser extension needs.
	CORSOrigins []string `yaml:"cors_origins"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig holds the path to the Markdown vault directory.
type VaultConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// LLMConfig selects and tunes the model endpoint.
type LLMConfig struct {
	// UseLocal talks to a local Ollama-style server; otherwise Remote is used.
	UseLocal    bool          `yaml:"use_local"`
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Temperature float32       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
	Remote      RemoteLLM     `yaml:"remote"`
}

// RemoteLLM is a hosted OpenAI-compatible API.
type RemoteLLM struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	APIKey  string `yaml:"api_key"`
}

// Validate validates the LLM configuration.
func (c *LLMConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Temperature, validation.Min(float32(0)), validation.Max(float32(2))),
		validation.Field(&c.MaxTokens, validation.Required, validation.Min(1)),
		validation.Field(&c.Timeout, validation.Required, validation.Min(time.Second)),
	); err != nil {
		return err
	}
	if c.UseLocal {
		return validation.ValidateStruct(c,
			validation.Field(&c.BaseURL, validation.Required, validation.By(httpURL)),
			validation.Field(&c.Model, validation.Required),
		)
	}
	return validation.ValidateStruct(&c.Remote,
		validation.Field(&c.Remote.BaseURL, validation.Required, validation.By(httpURL)),
		validation.Field(&c.Remote.Model, validation.Required),
		validation.Field(&c.Remote.APIKey, validation.Required.Error("is required when use_local is false (set OPENAI_API_KEY)")),
	)
}

func httpURL(v any) error {
	s, _ := v.(string)
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("must be an http(s) URL")
	}
	return nil
}

// ActiveModel returns the model identifier that will be called.
func (c *LLMConfig) ActiveModel() string {
	if c.UseLocal {
		return c.Model
	}
	return c.Remote.Model
}

// Gateway converts the configuration into an llm.Config.
func (c *LLMConfig) Gateway(enableFallback bool) llm.Config {
	cfg := llm.Config{
		Temperature:    c.Temperature,
		MaxTokens:      c.MaxTokens,
		Timeout:        c.Timeout,
		EnableFallback: enableFallback,
	}
	if c.UseLocal {
		cfg.BaseURL, cfg.Model, cfg.APIKey = c.BaseURL, c.Model, c.APIKey
		return cfg
	}
	cfg.BaseURL, cfg.Model, cfg.APIKey = c.Remote.BaseURL, c.Remote.Model, c.Remote.APIKey
	cfg.Remote = true
	return cfg
}

// PipelineConfig tunes the conversation-to-note pipeline.
type PipelineConfig struct {
	EnableFallbackProtocol bool   `yaml:"enable_fallback_protocol"`
	EnableWeaknessHints    bool   `yaml:"enable_weakness_hints"`
	QualityFloorChars      int    `yaml:"quality_floor_chars"`
	MaxPromptChars         int    `yaml:"max_prompt_chars"`
	DefaultProject         string `yaml:"default_project"`
	DefaultSource          string `yaml:"default_source"`
}

// Validate validates the pipeline configuration.
func (c *PipelineConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.QualityFloorChars, validation.Min(0)),
		validation.Field(&c.MaxPromptChars, validation.Min(0)),
		validation.Field(&c.DefaultProject, validation.Required),
	)
}

// Service converts the configuration into noteservice settings.
func (c *PipelineConfig) Service() noteservice.Pipeline {
	return noteservice.Pipeline{
		EnableWeaknessHints: c.EnableWeaknessHints,
		QualityFloorChars:   c.QualityFloorChars,
		MaxPromptChars:      c.MaxPromptChars,
		DefaultProject:      c.DefaultProject,
		DefaultSource:       c.DefaultSource,
	}
}

// IndexConfig controls the SQLite note catalog.
type IndexConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Validate validates the index configuration.
func (c *IndexConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.When(c.Enabled, validation.Required)),
	)
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// Validate validates the metrics configuration.
func (c *MetricsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Namespace, validation.When(c.Enabled, validation.Required)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8000,
			},
			CORSOrigins: []string{"*"},
		},
		Vault: VaultConfig{
			Path: "~/ObsidianVaultDev",
		},
		LLM: LLMConfig{
			UseLocal:    true,
			BaseURL:     "http://localhost:11434",
			APIKey:      "ollama",
			Model:       "llama3.1:8b-instruct-q4_K_M",
			Temperature: 0.2,
			MaxTokens:   1600,
			Timeout:     180 * time.Second,
			Remote: RemoteLLM{
				BaseURL: "https://api.openai.com/v1",
				Model:   "gpt-4o-mini",
			},
		},
		Pipeline: PipelineConfig{
			EnableFallbackProtocol: true,
			EnableWeaknessHints:    true,
			QualityFloorChars:      80,
			DefaultProject:         "General",
			DefaultSource:          "extension",
		},
		Index: IndexConfig{
			Enabled: true,
			Path:    "./chatnotes.db",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "chatnotes",
		},
	}
}

// ApplyEnv overlays the environment variables the browser extension setup
// documents on top of the file configuration, then expands "~" in the
// vault path.
func (c *Config) ApplyEnv() error {
	var err error

	c.Vault.Path = envOrDefault("OBSIDIAN_VAULT_DIR", c.Vault.Path)

	if c.LLM.UseLocal, err = boolFromEnv("USE_LOCAL_LLM", c.LLM.UseLocal); err != nil {
		return err
	}
	c.LLM.BaseURL = envOrDefault("LOCAL_LLM_BASE_URL", c.LLM.BaseURL)
	c.LLM.APIKey = envOrDefault("LOCAL_LLM_API_KEY", c.LLM.APIKey)
	c.LLM.Model = envOrDefault("LOCAL_LLM_MODEL", c.LLM.Model)
	if c.LLM.Temperature, err = float32FromEnv("LOCAL_LLM_TEMPERATURE", c.LLM.Temperature); err != nil {
		return err
	}
	if c.LLM.MaxTokens, err = intFromEnv("LOCAL_LLM_MAX_TOKENS", c.LLM.MaxTokens); err != nil {
		return err
	}
	if c.LLM.Timeout, err = durationFromEnv("LOCAL_LLM_TIMEOUT", c.LLM.Timeout); err != nil {
		return err
	}
	c.LLM.Remote.APIKey = envOrDefault("OPENAI_API_KEY", c.LLM.Remote.APIKey)
	c.LLM.Remote.BaseURL = envOrDefault("OPENAI_BASE_URL", c.LLM.Remote.BaseURL)
	c.LLM.Remote.Model = envOrDefault("OPENAI_MODEL", c.LLM.Remote.Model)

	if c.App.HTTP.Port, err = intFromEnv("HTTP_PORT", c.App.HTTP.Port); err != nil {
		return err
	}
	if v := stringsTrimSpace("LOG_LEVEL"); v != "" {
		if err := c.App.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("LOG_LEVEL parse error: %w", err)
		}
	}

	c.Vault.Path, err = expandHome(c.Vault.Path)
	return err
}

func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand vault path: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		// Bare numbers are seconds.
		secs, convErr := strconv.ParseFloat(v, 64)
		if convErr != nil {
			return 0, fmt.Errorf("%s parse error: %w", key, err)
		}
		d = time.Duration(secs * float64(time.Second))
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func float32FromEnv(key string, fallback float32) (float32, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 32)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return float32(f), nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
