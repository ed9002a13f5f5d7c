package backend

import (
	"context"

	"prompttable/internal/config"
	"prompttable/internal/logging"
)

// New returns the Gemini backend when credentials are configured and the
// simulated backend otherwise.
func New(ctx context.Context, cfg config.BackendConfig) (Backend, error) {
	if cfg.APIKey == "" {
		logging.Get(logging.CategoryAPI).Warn("no API key configured, using simulated backend")
		return NewSimulatedBackend(), nil
	}
	b, err := NewGeminiBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logging.API("backend ready: %s image=%s plan=%s rpm=%d",
		b.Name(), cfg.ImageModel, cfg.GetPlanModel(), cfg.RequestsPerMinute)
	return b, nil
}
