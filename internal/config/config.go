// Package config handles configuration loading and management for the guardian.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the guardian.
type Config struct {
	Backend    BackendConfig    `mapstructure:"backend"`
	Generation GenerationConfig `mapstructure:"generation"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Server     ServerConfig     `mapstructure:"server"`
	Notify     NotifyConfig     `mapstructure:"notify"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// BackendConfig selects the generation service.
type BackendConfig struct {
	// Provider is anthropic, bedrock or gemini.
	Provider string `mapstructure:"provider"`
	// Model is empty for the provider's default.
	Model        string `mapstructure:"model"`
	APIKey       string `mapstructure:"api_key"`
	GoogleAPIKey string `mapstructure:"google_api_key"`
	AWSRegion    string `mapstructure:"aws_region"`
	AWSProfile   string `mapstructure:"aws_profile"`
	BaseURL      string `mapstructure:"base_url"`
}

// GenerationConfig bounds every generation call.
type GenerationConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	MaxTokens int64         `mapstructure:"max_tokens"`
	// RateLimit is calls per second; zero disables limiting.
	RateLimit float64     `mapstructure:"rate_limit"`
	Burst     int         `mapstructure:"burst"`
	Retry     RetryConfig `mapstructure:"retry"`
}

// RetryConfig holds backoff settings for transport failures.
type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
}

// PipelineConfig holds gatekeeper policy and prompt settings.
type PipelineConfig struct {
	// PolicyMode is enforce or strict.
	PolicyMode    string `mapstructure:"policy_mode"`
	BlockingLabel string `mapstructure:"blocking_label"`
	// PromptsFile optionally overrides role instructions.
	PromptsFile string `mapstructure:"prompts_file"`
}

// StorageConfig holds where tickets and run history live.
type StorageConfig struct {
	TicketsDir string `mapstructure:"tickets_dir"`
	// HistoryDB is empty for the XDG data directory default.
	HistoryDB string `mapstructure:"history_db"`
}

// ServerConfig holds HTTP surface settings.
type ServerConfig struct {
	Addr     string `mapstructure:"addr"`
	BasePath string `mapstructure:"base_path"`
	// JWTSecret enables HS256 bearer auth when set.
	JWTSecret   string   `mapstructure:"jwt_secret"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// NotifyConfig holds ticket event publishing settings.
type NotifyConfig struct {
	// NATSURL disables publishing when empty.
	NATSURL string `mapstructure:"nats_url"`
	Subject string `mapstructure:"subject"`
}

// TelemetryConfig toggles tracing.
type TelemetryConfig struct {
	Tracing bool `mapstructure:"tracing"`
}

// LoggingConfig holds debug log settings.
type LoggingConfig struct {
	// DebugFile enables the pipeline debug log at this path.
	DebugFile string `mapstructure:"debug_file"`
}

// Providers accepted by backend.provider.
var Providers = []string{"anthropic", "bedrock", "gemini"}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, GOOGLE_API_KEY, GUARDIAN_*)
// 2. Project config (.guardian.yaml in current directory or parent)
// 3. User config (~/.config/guardian/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}
	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return unmarshal(v)
}

func newViper() (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("GUARDIAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.BindEnv("backend.api_key", "GUARDIAN_BACKEND_API_KEY", "ANTHROPIC_API_KEY")
	v.BindEnv("backend.google_api_key", "GUARDIAN_BACKEND_GOOGLE_API_KEY", "GOOGLE_API_KEY")

	return v, nil
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.Backend.APIKey = expandEnv(cfg.Backend.APIKey)
	cfg.Backend.GoogleAPIKey = expandEnv(cfg.Backend.GoogleAPIKey)
	cfg.Server.JWTSecret = expandEnv(cfg.Server.JWTSecret)

	return cfg, nil
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	var problems []string

	if !isProvider(c.Backend.Provider) {
		problems = append(problems, fmt.Sprintf("backend.provider %q must be one of %s", c.Backend.Provider, strings.Join(Providers, ", ")))
	}
	if c.Generation.Timeout <= 0 {
		problems = append(problems, "generation.timeout must be positive")
	}
	if c.Generation.MaxTokens <= 0 {
		problems = append(problems, "generation.max_tokens must be positive")
	}
	if c.Generation.RateLimit < 0 {
		problems = append(problems, "generation.rate_limit must not be negative")
	}
	if c.Generation.Retry.MaxAttempts < 1 {
		problems = append(problems, "generation.retry.max_attempts must be at least 1")
	}
	if c.Pipeline.PolicyMode != "enforce" && c.Pipeline.PolicyMode != "strict" {
		problems = append(problems, fmt.Sprintf("pipeline.policy_mode %q must be enforce or strict", c.Pipeline.PolicyMode))
	}
	if strings.TrimSpace(c.Storage.TicketsDir) == "" {
		problems = append(problems, "storage.tickets_dir must be set")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func isProvider(p string) bool {
	for _, known := range Providers {
		if p == known {
			return true
		}
	}
	return false
}

// Keys returns every known configuration key, sorted.
func Keys() []string {
	v := viper.New()
	setDefaults(v)
	keys := v.AllKeys()
	sort.Strings(keys)
	return keys
}

// IsKnownKey reports whether key is a configuration key.
func IsKnownKey(key string) bool {
	for _, k := range Keys() {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the effective value of key after all sources are merged.
func Get(key string) (any, error) {
	if !IsKnownKey(key) {
		return nil, fmt.Errorf("unknown config key %q", key)
	}
	v, err := newViper()
	if err != nil {
		return nil, err
	}
	return v.Get(key), nil
}

// Set writes key=value to the user config file, keeping the other values
// already stored there.
func Set(key, value string) error {
	if !IsKnownKey(key) {
		return fmt.Errorf("unknown config key %q", key)
	}

	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	configPath := filepath.Join(userConfigDir, "config.yaml")

	file := viper.New()
	file.SetConfigFile(configPath)
	if err := file.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("reading user config: %w", err)
		}
	}
	file.Set(key, value)

	// Check the value decodes before persisting it.
	check := viper.New()
	setDefaults(check)
	if err := check.MergeConfigMap(file.AllSettings()); err != nil {
		return fmt.Errorf("merging config: %w", err)
	}
	if _, err := unmarshal(check); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}

	return file.WriteConfigAs(configPath)
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("backend.provider", d.Backend.Provider)
	v.SetDefault("backend.model", d.Backend.Model)
	v.SetDefault("backend.api_key", "")
	v.SetDefault("backend.google_api_key", "")
	v.SetDefault("backend.aws_region", "")
	v.SetDefault("backend.aws_profile", "")
	v.SetDefault("backend.base_url", "")

	v.SetDefault("generation.timeout", d.Generation.Timeout.String())
	v.SetDefault("generation.max_tokens", d.Generation.MaxTokens)
	v.SetDefault("generation.rate_limit", d.Generation.RateLimit)
	v.SetDefault("generation.burst", d.Generation.Burst)
	v.SetDefault("generation.retry.max_attempts", d.Generation.Retry.MaxAttempts)
	v.SetDefault("generation.retry.initial_interval", d.Generation.Retry.InitialInterval.String())
	v.SetDefault("generation.retry.max_interval", d.Generation.Retry.MaxInterval.String())
	v.SetDefault("generation.retry.multiplier", d.Generation.Retry.Multiplier)

	v.SetDefault("pipeline.policy_mode", d.Pipeline.PolicyMode)
	v.SetDefault("pipeline.blocking_label", d.Pipeline.BlockingLabel)
	v.SetDefault("pipeline.prompts_file", "")

	v.SetDefault("storage.tickets_dir", d.Storage.TicketsDir)
	v.SetDefault("storage.history_db", "")

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.base_path", d.Server.BasePath)
	v.SetDefault("server.jwt_secret", "")
	v.SetDefault("server.cors_origins", d.Server.CORSOrigins)

	v.SetDefault("notify.nats_url", "")
	v.SetDefault("notify.subject", d.Notify.Subject)

	v.SetDefault("telemetry.tracing", false)
	v.SetDefault("logging.debug_file", "")
}

// getUserConfigDir returns the XDG config directory for the guardian.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "guardian")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "guardian")
	}
	return filepath.Join(home, ".config", "guardian")
}

// findProjectConfig searches for .guardian.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".guardian.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			Provider: "anthropic",
		},
		Generation: GenerationConfig{
			Timeout:   60 * time.Second,
			MaxTokens: 4096,
			Burst:     1,
			Retry: RetryConfig{
				MaxAttempts:     3,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     10 * time.Second,
				Multiplier:      2.0,
			},
		},
		Pipeline: PipelineConfig{
			PolicyMode:    "enforce",
			BlockingLabel: "BLOCKED",
		},
		Storage: StorageConfig{
			TicketsDir: "tickets",
		},
		Server: ServerConfig{
			Addr:        ":8000",
			BasePath:    "/api",
			CORSOrigins: []string{"*"},
		},
		Notify: NotifyConfig{
			Subject: "guardian.tickets",
		},
	}
}
