// Package api adapts generation backends (Anthropic, Bedrock, Gemini) into
// a single schema-constrained call used by every pipeline role.
package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ShayCichocki/sprintguardian/pkg/models"
)

// Provider names accepted by NewBackend.
const (
	ProviderAnthropic = "anthropic"
	ProviderBedrock   = "bedrock"
	ProviderGemini    = "gemini"
)

// GenerateRequest is one structured generation call.
type GenerateRequest struct {
	SystemInstruction string
	Prompt            string
	Schema            models.Schema
	MaxTokens         int64
}

// GenerateResponse carries the structured output of a call.
type GenerateResponse struct {
	// Raw is the structured JSON value produced for the schema.
	Raw          json.RawMessage
	InputTokens  int64
	OutputTokens int64
}

// Backend is a generation service able to produce schema-constrained output.
type Backend interface {
	Name() string
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// ModelInfo describes a model offered by a backend.
type ModelInfo struct {
	ID          string `json:"id" yaml:"id"`
	DisplayName string `json:"display_name" yaml:"display_name"`
}

// ModelLister is implemented by backends that can enumerate their models.
type ModelLister interface {
	ListModels(ctx context.Context) ([]ModelInfo, error)
}

// BackendConfig selects and configures a backend.
type BackendConfig struct {
	Provider string
	Model    string
	// APIKey is the Anthropic key, or the Google key for Gemini.
	APIKey     string
	AWSRegion  string
	AWSProfile string
	BaseURL    string
}

// NewBackend builds the backend named by cfg.Provider.
func NewBackend(cfg BackendConfig) (Backend, error) {
	switch cfg.Provider {
	case "", ProviderAnthropic:
		return NewClient(ClientConfig{
			Model:   cfg.Model,
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
		})
	case ProviderBedrock:
		return NewClient(ClientConfig{
			Model:         cfg.Model,
			UseAWSBedrock: true,
			AWSRegion:     cfg.AWSRegion,
			AWSProfile:    cfg.AWSProfile,
		})
	case ProviderGemini:
		return NewGeminiBackend(GeminiConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrConfiguration, cfg.Provider)
	}
}
