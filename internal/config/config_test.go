package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolate points the user config dir at a temp dir and runs from another
// temp dir so no real config leaks into the test.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Chdir(t.TempDir())
	return home
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Backend.Provider != "anthropic" {
		t.Errorf("expected default provider 'anthropic', got %q", cfg.Backend.Provider)
	}
	if cfg.Generation.Timeout != 60*time.Second {
		t.Errorf("expected timeout 60s, got %v", cfg.Generation.Timeout)
	}
	if cfg.Generation.Retry.MaxAttempts != 3 {
		t.Errorf("expected 3 retry attempts, got %d", cfg.Generation.Retry.MaxAttempts)
	}
	if cfg.Pipeline.PolicyMode != "enforce" {
		t.Errorf("expected policy mode 'enforce', got %q", cfg.Pipeline.PolicyMode)
	}
	if cfg.Storage.TicketsDir != "tickets" {
		t.Errorf("expected tickets dir 'tickets', got %q", cfg.Storage.TicketsDir)
	}
	if cfg.Server.Addr != ":8000" {
		t.Errorf("expected addr ':8000', got %q", cfg.Server.Addr)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Backend.Provider != "anthropic" {
		t.Errorf("expected provider 'anthropic', got %q", cfg.Backend.Provider)
	}
	if cfg.Generation.Retry.InitialInterval != 500*time.Millisecond {
		t.Errorf("expected initial interval 500ms, got %v", cfg.Generation.Retry.InitialInterval)
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "*" {
		t.Errorf("expected cors origins [*], got %v", cfg.Server.CORSOrigins)
	}
}

func TestLoadFromPath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
backend:
  provider: gemini
  google_api_key: test-key
generation:
  timeout: 2m
  max_tokens: 2048
  retry:
    max_attempts: 5
pipeline:
  policy_mode: strict
storage:
  tickets_dir: /var/tickets
server:
  cors_origins:
    - https://a.example
    - https://b.example
telemetry:
  tracing: true
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Backend.Provider != "gemini" {
		t.Errorf("expected provider 'gemini', got %q", cfg.Backend.Provider)
	}
	if cfg.Backend.GoogleAPIKey != "test-key" {
		t.Errorf("expected google_api_key 'test-key', got %q", cfg.Backend.GoogleAPIKey)
	}
	if cfg.Generation.Timeout != 2*time.Minute {
		t.Errorf("expected timeout 2m, got %v", cfg.Generation.Timeout)
	}
	if cfg.Generation.MaxTokens != 2048 {
		t.Errorf("expected max tokens 2048, got %d", cfg.Generation.MaxTokens)
	}
	if cfg.Generation.Retry.MaxAttempts != 5 {
		t.Errorf("expected 5 attempts, got %d", cfg.Generation.Retry.MaxAttempts)
	}
	// Unset nested keys keep their defaults.
	if cfg.Generation.Retry.Multiplier != 2.0 {
		t.Errorf("expected multiplier 2.0, got %v", cfg.Generation.Retry.Multiplier)
	}
	if cfg.Pipeline.PolicyMode != "strict" {
		t.Errorf("expected policy mode 'strict', got %q", cfg.Pipeline.PolicyMode)
	}
	if cfg.Storage.TicketsDir != "/var/tickets" {
		t.Errorf("expected tickets dir '/var/tickets', got %q", cfg.Storage.TicketsDir)
	}
	if len(cfg.Server.CORSOrigins) != 2 {
		t.Errorf("expected 2 cors origins, got %v", cfg.Server.CORSOrigins)
	}
	if !cfg.Telemetry.Tracing {
		t.Error("expected tracing to be enabled")
	}
}

func TestLoadFromPath_Missing(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_ProjectOverridesUser(t *testing.T) {
	home := isolate(t)

	userDir := filepath.Join(home, "guardian")
	if err := os.MkdirAll(userDir, 0755); err != nil {
		t.Fatal(err)
	}
	user := "backend:\n  provider: bedrock\nstorage:\n  tickets_dir: user-tickets\n"
	if err := os.WriteFile(filepath.Join(userDir, "config.yaml"), []byte(user), 0644); err != nil {
		t.Fatal(err)
	}

	project, _ := os.Getwd()
	sub := filepath.Join(project, "nested", "deeper")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(project, ".guardian.yaml"), []byte("storage:\n  tickets_dir: project-tickets\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(sub)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Backend.Provider != "bedrock" {
		t.Errorf("expected user provider 'bedrock', got %q", cfg.Backend.Provider)
	}
	if cfg.Storage.TicketsDir != "project-tickets" {
		t.Errorf("expected project tickets dir, got %q", cfg.Storage.TicketsDir)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("GUARDIAN_PIPELINE_POLICY_MODE", "strict")
	t.Setenv("GUARDIAN_GENERATION_TIMEOUT", "15s")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-from-env")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Pipeline.PolicyMode != "strict" {
		t.Errorf("expected policy mode from env, got %q", cfg.Pipeline.PolicyMode)
	}
	if cfg.Generation.Timeout != 15*time.Second {
		t.Errorf("expected timeout 15s, got %v", cfg.Generation.Timeout)
	}
	if cfg.Backend.APIKey != "sk-ant-from-env" {
		t.Errorf("expected api key from ANTHROPIC_API_KEY, got %q", cfg.Backend.APIKey)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown provider", func(c *Config) { c.Backend.Provider = "openai" }, "backend.provider"},
		{"zero timeout", func(c *Config) { c.Generation.Timeout = 0 }, "generation.timeout"},
		{"zero max tokens", func(c *Config) { c.Generation.MaxTokens = 0 }, "generation.max_tokens"},
		{"negative rate", func(c *Config) { c.Generation.RateLimit = -1 }, "generation.rate_limit"},
		{"no attempts", func(c *Config) { c.Generation.Retry.MaxAttempts = 0 }, "max_attempts"},
		{"bad policy", func(c *Config) { c.Pipeline.PolicyMode = "lenient" }, "policy_mode"},
		{"blank tickets dir", func(c *Config) { c.Storage.TicketsDir = " " }, "tickets_dir"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestKeys(t *testing.T) {
	keys := Keys()
	for _, want := range []string{"backend.provider", "generation.retry.max_attempts", "server.jwt_secret", "notify.nats_url"} {
		if !IsKnownKey(want) {
			t.Errorf("expected %q in keys %v", want, keys)
		}
	}
	if IsKnownKey("backend") {
		t.Error("section names are not keys")
	}
	for i := 1; i < len(keys); i++ {
		if keys[i-1] > keys[i] {
			t.Fatalf("keys not sorted: %v", keys)
		}
	}
}

func TestSetAndGet(t *testing.T) {
	home := isolate(t)

	if err := Set("pipeline.policy_mode", "strict"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := Set("generation.timeout", "45s"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(home, "guardian", "config.yaml")); err != nil {
		t.Fatalf("expected user config to be written: %v", err)
	}

	got, err := Get("pipeline.policy_mode")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != "strict" {
		t.Errorf("expected 'strict', got %v", got)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Pipeline.PolicyMode != "strict" {
		t.Errorf("first value lost after second Set: %q", cfg.Pipeline.PolicyMode)
	}
	if cfg.Generation.Timeout != 45*time.Second {
		t.Errorf("expected 45s, got %v", cfg.Generation.Timeout)
	}
}

func TestSet_Rejects(t *testing.T) {
	isolate(t)

	if err := Set("backend.colour", "red"); err == nil {
		t.Error("expected error for unknown key")
	}
	if err := Set("generation.timeout", "soon"); err == nil {
		t.Error("expected error for undecodable duration")
	}
	if _, err := Get("nope"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("TEST_VAR", "expanded-value")

	result := expandEnv("${TEST_VAR}")
	if result != "expanded-value" {
		t.Errorf("expected 'expanded-value', got %q", result)
	}

	result = expandEnv("prefix-${TEST_VAR}-suffix")
	if result != "prefix-expanded-value-suffix" {
		t.Errorf("expected 'prefix-expanded-value-suffix', got %q", result)
	}
}

func TestGetUserConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")

	dir := getUserConfigDir()
	expected := "/custom/config/guardian"
	if dir != expected {
		t.Errorf("expected %q, got %q", expected, dir)
	}
	if GetUserConfigPath() != "/custom/config/guardian/config.yaml" {
		t.Errorf("unexpected user config path %q", GetUserConfigPath())
	}
}
