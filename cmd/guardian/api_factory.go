package main

import (
	"fmt"

	"github.com/ShayCichocki/sprintguardian/internal/api"
	"github.com/ShayCichocki/sprintguardian/internal/config"
	"github.com/ShayCichocki/sprintguardian/internal/orchestrator/policy"
)

// createBackend builds the generation backend named by backend.provider.
func createBackend(cfg *config.Config) (api.Backend, error) {
	key, err := config.GetAPIKey(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w for provider %s", err, cfg.Backend.Provider)
	}
	backend, err := api.NewBackend(api.BackendConfig{
		Provider:   cfg.Backend.Provider,
		Model:      cfg.Backend.Model,
		APIKey:     key,
		AWSRegion:  cfg.Backend.AWSRegion,
		AWSProfile: cfg.Backend.AWSProfile,
		BaseURL:    cfg.Backend.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s backend: %w", cfg.Backend.Provider, err)
	}
	return backend, nil
}

// adapterOptions maps generation settings onto the adapter.
func adapterOptions(cfg *config.Config) api.Options {
	g := cfg.Generation
	return api.Options{
		Timeout:   g.Timeout,
		MaxTokens: g.MaxTokens,
		Retry: api.RetryConfig{
			MaxAttempts:     g.Retry.MaxAttempts,
			InitialInterval: g.Retry.InitialInterval,
			MaxInterval:     g.Retry.MaxInterval,
			Multiplier:      g.Retry.Multiplier,
		},
		RateLimit: g.RateLimit,
		Burst:     g.Burst,
	}
}

// policyConfig maps pipeline settings onto the gatekeeper policy.
// blockingLabel is the label the gatekeeper policy puts on rejected tickets.
func blockingLabel(cfg *config.Config) string {
	if cfg.Pipeline.BlockingLabel != "" {
		return cfg.Pipeline.BlockingLabel
	}
	return policy.Default().Gatekeeper.BlockingLabel
}

func policyConfig(cfg *config.Config) (*policy.Config, error) {
	p := policy.Default()
	p.Gatekeeper.Mode = policy.Mode(cfg.Pipeline.PolicyMode)
	p.Gatekeeper.BlockingLabel = blockingLabel(cfg)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
