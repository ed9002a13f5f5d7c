package config

import "prompttable/internal/logging"

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"`                // debug, info, warn, error
	File       string          `yaml:"file"`                 // relative to .ptable/logs
	DebugMode  bool            `yaml:"debug_mode"`           // Master toggle - false = no logging
	MaxSizeMB  int             `yaml:"max_size_mb"`          // rotation threshold
	MaxBackups int             `yaml:"max_backups"`          // rotated files kept
	Categories map[string]bool `yaml:"categories,omitempty"` // Per-category toggles
}

// Options converts the config into logging.Options.
func (c LoggingConfig) Options() logging.Options {
	return logging.Options{
		DebugMode:  c.DebugMode,
		Level:      c.Level,
		File:       c.File,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		Categories: c.Categories,
	}
}
