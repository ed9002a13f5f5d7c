package config

import "time"

// Default Gemini models.
const (
	DefaultTextModel  = "gemini-2.5-flash"
	DefaultImageModel = "gemini-2.5-flash-image"
)

// BackendConfig configures the generative backend.
type BackendConfig struct {
	APIKey     string `yaml:"api_key,omitempty"`
	TextModel  string `yaml:"text_model"`  // conversations
	ImageModel string `yaml:"image_model"` // illustrative images
	PlanModel  string `yaml:"plan_model"`  // structured plans; falls back to text_model
	Timeout    string `yaml:"timeout"`

	// BaseURL overrides the service endpoint (proxies, tests).
	BaseURL string `yaml:"base_url,omitempty"`

	// RequestsPerMinute paces outgoing calls. 0 disables pacing.
	RequestsPerMinute int `yaml:"requests_per_minute"`

	// Search enables Google Search grounding on conversations.
	Search bool `yaml:"search"`
}

// GetTimeout returns the backend timeout as a duration.
func (b BackendConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(b.Timeout)
	if err != nil || d <= 0 {
		return 120 * time.Second
	}
	return d
}

// GetPlanModel returns the model used for structured plans.
func (b BackendConfig) GetPlanModel() string {
	if b.PlanModel != "" {
		return b.PlanModel
	}
	if b.TextModel != "" {
		return b.TextModel
	}
	return DefaultTextModel
}
