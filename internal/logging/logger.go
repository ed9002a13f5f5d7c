// Package logging provides config-driven categorized logging for prompttable.
// All categories share one zap core that writes JSON lines to a rotating file under
// .ptable/logs/. Logging is controlled by debug_mode in .ptable/config.yaml - when
// false, every logger is a no-op.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot    Category = "boot"    // Boot/initialization
	CategorySession Category = "session" // Turn lifecycle, transcript mutations
	CategoryAPI     Category = "api"     // Generative backend calls
	CategoryBuilder Category = "builder" // Selection and instruction compilation
	CategoryCatalog Category = "catalog" // Technique catalog loading
	CategoryPlan    Category = "plan"    // Structured plan requests and parsing
	CategoryUI      Category = "ui"      // Interactive builder
)

// Options configures the logging system. It mirrors config.LoggingConfig
// to avoid an import cycle.
type Options struct {
	DebugMode  bool
	Level      string
	File       string // relative paths resolve against <workspace>/.ptable/logs
	MaxSizeMB  int
	MaxBackups int
	Categories map[string]bool
}

// Logger is a category-scoped printf-style logger.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.Mutex

	base    *zap.Logger
	opts    Options
	logPath string
	stateMu sync.RWMutex
)

// Initialize sets up the shared zap core.
// Should be called once at startup with the workspace path.
func Initialize(workspace string, o Options) error {
	if workspace == "" {
		return fmt.Errorf("workspace path required")
	}
	if err := initialize(workspace, o); err != nil {
		return err
	}
	Get(CategoryBoot).Info("logging initialized: workspace=%s file=%s level=%s", workspace, Path(), o.Level)
	return nil
}

func initialize(workspace string, o Options) error {
	stateMu.Lock()
	defer stateMu.Unlock()

	resetLocked()
	opts = o

	// Silent no-op in production mode
	if !o.DebugMode {
		return nil
	}

	file := o.File
	if file == "" {
		file = "ptable.log"
	}
	if !filepath.IsAbs(file) {
		file = filepath.Join(workspace, ".ptable", "logs", file)
	}
	if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	maxSize := o.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 10
	}
	rotator := &lumberjack.Logger{
		Filename:   file,
		MaxSize:    maxSize,
		MaxBackups: o.MaxBackups,
		MaxAge:     30,
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "ts"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.MessageKey = "msg"
	encoderConfig.LevelKey = "lvl"

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(rotator),
		parseLevel(o.Level),
	)
	base = zap.New(core)
	logPath = file
	return nil
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// IsDebugMode returns whether debug logging is enabled
func IsDebugMode() bool {
	stateMu.RLock()
	defer stateMu.RUnlock()
	return opts.DebugMode
}

// Path returns the active log file, or "" when logging is disabled.
func Path() string {
	stateMu.RLock()
	defer stateMu.RUnlock()
	return logPath
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	stateMu.RLock()
	defer stateMu.RUnlock()
	return categoryEnabledLocked(category)
}

func categoryEnabledLocked(category Category) bool {
	if !opts.DebugMode || base == nil {
		return false
	}
	if opts.Categories == nil {
		return true
	}
	enabled, exists := opts.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if debug mode is disabled or category is disabled.
func Get(category Category) *Logger {
	// Lock order: stateMu before loggersMu.
	stateMu.RLock()
	defer stateMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()

	if l, ok := loggers[category]; ok {
		return l
	}

	var sugar *zap.SugaredLogger
	if categoryEnabledLocked(category) {
		sugar = base.With(zap.String("cat", string(category))).Sugar()
	} else {
		sugar = zap.NewNop().Sugar()
	}

	l := &Logger{category: category, sugar: sugar}
	loggers[category] = l
	return l
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// With returns a child logger carrying structured key-value context.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

// CloseAll flushes the shared core and drops cached loggers (call at shutdown)
func CloseAll() {
	stateMu.Lock()
	defer stateMu.Unlock()
	resetLocked()
}

func resetLocked() {
	if base != nil {
		_ = base.Sync()
	}
	base = nil
	logPath = ""
	opts = Options{}

	loggersMu.Lock()
	loggers = make(map[Category]*Logger)
	loggersMu.Unlock()
}

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// These are no-ops if the category is disabled
// =============================================================================

// Boot logs to the boot category
func Boot(format string, args ...interface{}) {
	Get(CategoryBoot).Info(format, args...)
}

// Session logs to the session category
func Session(format string, args ...interface{}) {
	Get(CategorySession).Info(format, args...)
}

// SessionDebug logs debug to the session category
func SessionDebug(format string, args ...interface{}) {
	Get(CategorySession).Debug(format, args...)
}

// API logs to the api category
func API(format string, args ...interface{}) {
	Get(CategoryAPI).Info(format, args...)
}

// APIDebug logs debug to the api category
func APIDebug(format string, args ...interface{}) {
	Get(CategoryAPI).Debug(format, args...)
}

// Builder logs to the builder category
func Builder(format string, args ...interface{}) {
	Get(CategoryBuilder).Info(format, args...)
}

// Plan logs to the plan category
func Plan(format string, args ...interface{}) {
	Get(CategoryPlan).Info(format, args...)
}

// UI logs to the ui category
func UI(format string, args ...interface{}) {
	Get(CategoryUI).Info(format, args...)
}
