package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all prompttable configuration.
type Config struct {
	// Generative backend
	Backend BackendConfig `yaml:"backend"`

	// Defaults for the prompt builder's auxiliary options
	Builder BuilderConfig `yaml:"builder"`

	// Optional override of the embedded element catalog
	CatalogPath string `yaml:"catalog_path,omitempty"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// Interactive UI
	UI UIConfig `yaml:"ui"`
}

// BuilderConfig holds the default auxiliary options of a new builder.
type BuilderConfig struct {
	TargetModel string   `yaml:"target_model"`
	OutputType  string   `yaml:"output_type"`
	StackTags   []string `yaml:"stack_tags,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			TextModel:  DefaultTextModel,
			ImageModel: DefaultImageModel,
			PlanModel:  DefaultTextModel,
			Timeout:    "120s",
			Search:     true,
		},
		Builder: BuilderConfig{
			TargetModel: "Gemini 2.5 Pro",
			OutputType:  "Prompt",
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       "ptable.log",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		UI: *DefaultUIConfig(),
	}
}

// DefaultConfigPath returns <workspace>/.ptable/config.yaml.
func DefaultConfigPath(workspace string) string {
	if workspace == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return filepath.Join(".ptable", "config.yaml")
		}
		workspace = cwd
	}
	return filepath.Join(workspace, ".ptable", "config.yaml")
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Defaults if config file doesn't exist
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// GEMINI_API_KEY wins over GOOGLE_API_KEY, matching the SDK
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		c.Backend.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Backend.APIKey = key
	}

	if model := os.Getenv("PTABLE_TEXT_MODEL"); model != "" {
		c.Backend.TextModel = model
	}
	if model := os.Getenv("PTABLE_IMAGE_MODEL"); model != "" {
		c.Backend.ImageModel = model
	}

	if v := os.Getenv("PTABLE_DEBUG"); v != "" {
		if debug, err := strconv.ParseBool(v); err == nil {
			c.Logging.DebugMode = debug
		}
	}
}

// Validate validates the configuration. A missing API key is not an error:
// the builder falls back to simulated responses.
func (c *Config) Validate() error {
	if c.Backend.TextModel == "" {
		return fmt.Errorf("backend.text_model must not be empty")
	}
	if c.Backend.RequestsPerMinute < 0 {
		return fmt.Errorf("backend.requests_per_minute must be >= 0, got %d", c.Backend.RequestsPerMinute)
	}
	if c.Backend.Timeout != "" {
		if _, err := time.ParseDuration(c.Backend.Timeout); err != nil {
			return fmt.Errorf("invalid backend.timeout %q: %w", c.Backend.Timeout, err)
		}
	}
	if !isValidTheme(c.UI.Theme) {
		return fmt.Errorf("invalid ui.theme: %s (valid: %v)", c.UI.Theme, ValidThemes)
	}
	return nil
}

// HasCredentials reports whether an API key is configured.
func (c *Config) HasCredentials() bool {
	return c.Backend.APIKey != ""
}
