// Package config provides API key management utilities.
package config

import (
	"errors"
	"os"
	"strings"
)

// ErrNoAPIKey is returned when the selected provider has no API key.
var ErrNoAPIKey = errors.New("no API key configured")

// GetAPIKey returns the key for the configured provider. Bedrock uses AWS
// credentials and needs none.
// It checks in order: environment variable, config file.
func GetAPIKey(cfg *Config) (string, error) {
	if cfg == nil {
		cfg = Default()
	}
	switch cfg.Backend.Provider {
	case "bedrock":
		return "", nil
	case "gemini":
		return lookupKey("GOOGLE_API_KEY", cfg.Backend.GoogleAPIKey)
	default:
		return lookupKey("ANTHROPIC_API_KEY", cfg.Backend.APIKey)
	}
}

func lookupKey(envVar, configured string) (string, error) {
	if key := os.Getenv(envVar); key != "" {
		return key, nil
	}
	if configured != "" {
		// Expand any remaining env var references
		key := os.ExpandEnv(configured)
		if key != "" && !strings.HasPrefix(key, "${") {
			return key, nil
		}
	}
	return "", ErrNoAPIKey
}

// ValidateAPIKey performs basic validation on an Anthropic API key.
// It checks format but does not verify the key with Anthropic's API.
func ValidateAPIKey(key string) error {
	if key == "" {
		return ErrNoAPIKey
	}

	// Anthropic API keys start with "sk-ant-"
	if !strings.HasPrefix(key, "sk-ant-") {
		return errors.New("invalid API key format: expected 'sk-ant-' prefix")
	}

	// Keys should be reasonably long
	if len(key) < 20 {
		return errors.New("invalid API key format: key too short")
	}

	return nil
}

// MaskAPIKey returns a masked version of the API key for display.
// Shows the first 7 characters and last 4 characters.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}

	if len(key) <= 15 {
		return "***"
	}

	return key[:7] + "..." + key[len(key)-4:]
}

// KeySource represents where an API key was loaded from.
type KeySource string

const (
	KeySourceEnv    KeySource = "environment"
	KeySourceConfig KeySource = "config_file"
	KeySourceAWS    KeySource = "aws_credentials"
	KeySourceNone   KeySource = "none"
)

// GetAPIKeySource returns where the provider's key was sourced from.
func GetAPIKeySource(cfg *Config) KeySource {
	if cfg == nil {
		cfg = Default()
	}
	envVar, configured := "ANTHROPIC_API_KEY", cfg.Backend.APIKey
	switch cfg.Backend.Provider {
	case "bedrock":
		return KeySourceAWS
	case "gemini":
		envVar, configured = "GOOGLE_API_KEY", cfg.Backend.GoogleAPIKey
	}

	if os.Getenv(envVar) != "" {
		return KeySourceEnv
	}
	if configured != "" {
		key := os.ExpandEnv(configured)
		if key != "" && !strings.HasPrefix(key, "${") {
			return KeySourceConfig
		}
	}
	return KeySourceNone
}

// IsSecretKey reports whether a config key holds a secret that must be
// masked when displayed.
func IsSecretKey(key string) bool {
	return strings.HasSuffix(key, "api_key") || strings.HasSuffix(key, "secret")
}
