package internal

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/starford/chatnotes/pkg/config"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.App.HTTP.Address() != ":8000" {
		t.Errorf("address = %q", cfg.App.HTTP.Address())
	}
	if cfg.LLM.ActiveModel() != "llama3.1:8b-instruct-q4_K_M" {
		t.Errorf("model = %q", cfg.LLM.ActiveModel())
	}
}

func TestLLMConfig_RemoteNeedsAPIKey(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.LLM.UseLocal = false
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "OPENAI_API_KEY") {
		t.Fatalf("err = %v, want missing key error", err)
	}

	cfg.LLM.Remote.APIKey = "sk-test"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("remote with key should pass: %v", err)
	}
	if cfg.LLM.ActiveModel() != "gpt-4o-mini" {
		t.Errorf("model = %q", cfg.LLM.ActiveModel())
	}
}

func TestLLMConfig_LocalBaseURL(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.LLM.BaseURL = "localhost:11434"
	if err := cfg.Validate(); err == nil {
		t.Error("base_url without scheme should fail")
	}
}

func TestLLMConfig_Gateway(t *testing.T) {
	cfg := NewDefaultConfig()
	local := cfg.LLM.Gateway(true)
	if local.Remote || local.BaseURL != "http://localhost:11434" || local.APIKey != "ollama" || !local.EnableFallback {
		t.Errorf("local = %+v", local)
	}

	cfg.LLM.UseLocal = false
	cfg.LLM.Remote.APIKey = "sk-test"
	remote := cfg.LLM.Gateway(true)
	if !remote.Remote || remote.BaseURL != "https://api.openai.com/v1" || remote.APIKey != "sk-test" || remote.Model != "gpt-4o-mini" {
		t.Errorf("remote = %+v", remote)
	}
	if remote.Timeout != 180*time.Second || remote.MaxTokens != 1600 {
		t.Errorf("shared tuning lost: %+v", remote)
	}
}

func TestPipelineConfig_Validation(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Pipeline.QualityFloorChars = -1
	if err := cfg.Validate(); err == nil {
		t.Error("negative quality floor should fail")
	}

	cfg = NewDefaultConfig()
	p := cfg.Pipeline.Service()
	if p.DefaultProject != "General" || p.DefaultSource != "extension" || p.QualityFloorChars != 80 || !p.EnableWeaknessHints {
		t.Errorf("pipeline = %+v", p)
	}
}

func TestIndexConfig_PathRequiredWhenEnabled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Index.Path = ""
	if err := cfg.Validate(); err == nil {
		t.Error("enabled index without path should fail")
	}
	cfg.Index.Enabled = false
	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled index should not need a path: %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	vault := t.TempDir()
	t.Setenv("OBSIDIAN_VAULT_DIR", vault)
	t.Setenv("USE_LOCAL_LLM", "false")
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("OPENAI_MODEL", "gpt-4.1-mini")
	t.Setenv("LOCAL_LLM_TEMPERATURE", "0.7")
	t.Setenv("LOCAL_LLM_MAX_TOKENS", "900")
	t.Setenv("LOCAL_LLM_TIMEOUT", "30")
	t.Setenv("HTTP_PORT", "9001")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := NewDefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.Vault.Path != vault || cfg.LLM.UseLocal || cfg.LLM.Remote.APIKey != "sk-env" || cfg.LLM.Remote.Model != "gpt-4.1-mini" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.LLM.Temperature != 0.7 || cfg.LLM.MaxTokens != 900 || cfg.LLM.Timeout != 30*time.Second {
		t.Errorf("llm = %+v", cfg.LLM)
	}
	if cfg.App.HTTP.Port != 9001 || cfg.App.LogLevel != slog.LevelDebug {
		t.Errorf("app = %+v", cfg.App)
	}
}

func TestApplyEnv_Errors(t *testing.T) {
	for key, value := range map[string]string{
		"USE_LOCAL_LLM":        "maybe",
		"LOCAL_LLM_MAX_TOKENS": "lots",
		"LOCAL_LLM_TIMEOUT":    "soon",
		"LOG_LEVEL":            "loud",
	} {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if err := NewDefaultConfig().ApplyEnv(); err == nil || !strings.Contains(err.Error(), key) {
				t.Errorf("err = %v, want a %s parse error", err, key)
			}
		})
	}
}

func TestApplyEnv_ExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("OBSIDIAN_VAULT_DIR", "")

	cfg := NewDefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatal(err)
	}
	if cfg.Vault.Path != filepath.Join(home, "ObsidianVaultDev") {
		t.Errorf("vault = %q", cfg.Vault.Path)
	}
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv("CHATNOTES_TEST_VAULT", "/tmp/chatnotes-vault")
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `app:
  log_level: warn
  http:
    port: 8123
  cors_origins: ["chrome-extension://abc"]
vault:
  path: ${CHATNOTES_TEST_VAULT}
llm:
  model: qwen2.5:7b
  timeout: 45s
pipeline:
  quality_floor_chars: 0
  enable_fallback_protocol: false
index:
  enabled: false
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.LoadOptional(path, cfg); err != nil {
		t.Fatalf("LoadOptional: %v", err)
	}
	if cfg.App.LogLevel != slog.LevelWarn || cfg.App.HTTP.Port != 8123 || cfg.App.CORSOrigins[0] != "chrome-extension://abc" {
		t.Errorf("app = %+v", cfg.App)
	}
	if cfg.Vault.Path != "/tmp/chatnotes-vault" {
		t.Errorf("vault = %q", cfg.Vault.Path)
	}
	if cfg.LLM.Model != "qwen2.5:7b" || cfg.LLM.Timeout != 45*time.Second || cfg.LLM.BaseURL != "http://localhost:11434" {
		t.Errorf("llm = %+v", cfg.LLM)
	}
	if cfg.Pipeline.QualityFloorChars != 0 || cfg.Pipeline.EnableFallbackProtocol || cfg.Pipeline.DefaultProject != "General" {
		t.Errorf("pipeline = %+v", cfg.Pipeline)
	}
	if cfg.Index.Enabled {
		t.Error("index should be disabled")
	}
}
