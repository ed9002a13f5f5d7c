package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"prompttable/internal/backend"
	"prompttable/internal/builder"
	"prompttable/internal/catalog"
	"prompttable/internal/config"
	"prompttable/internal/logging"
	"prompttable/internal/session"
	"prompttable/internal/usage"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose    bool
	workspace  string
	configPath string
	timeout    time.Duration

	// Loaded in PersistentPreRunE
	appCfg *config.Config

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "ptable",
	Short: "ptable - a periodic table of prompt-engineering techniques",
	Long: `ptable presents prompt-engineering techniques as elements of a periodic table.

Select elements, pick a target model and output type, and let Gemini compose
the prompt. Media elements (video, audio, voice) switch the output medium.

Run without arguments to start the interactive builder.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(resolveConfigPath())
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		appCfg = cfg

		if err := logging.Initialize(resolveWorkspace(), cfg.Logging.Options()); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		logging.Boot("ptable %s starting in %s", cmd.Name(), resolveWorkspace())

		// The interactive builder owns the terminal.
		if cmd == cmd.Root() {
			logger = zap.NewNop()
			return nil
		}

		zc := zap.NewProductionConfig()
		zc.Encoding = "console"
		zc.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
	RunE: runInteractive,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: <workspace>/.ptable/config.yaml)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Operation timeout for one-shot commands")

	rootCmd.AddCommand(elementsCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(modeCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(usageCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func resolveWorkspace() string {
	if workspace != "" {
		return workspace
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath(resolveWorkspace())
}

// currentConfig returns the loaded config, or defaults when a command runs
// without the root pre-run (tests).
func currentConfig() *config.Config {
	if appCfg == nil {
		return config.DefaultConfig()
	}
	return appCfg
}

func currentLogger() *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// signalContext returns a context cancelled on SIGINT/SIGTERM or after d.
func signalContext(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	if d > 0 {
		var tcancel context.CancelFunc
		ctx, tcancel = context.WithTimeout(ctx, d)
		inner := cancel
		cancel = func() { tcancel(); inner() }
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			currentLogger().Info("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// loadCatalog returns the configured catalog override or the embedded one.
func loadCatalog() (*catalog.Catalog, error) {
	path := currentConfig().CatalogPath
	if path == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(path)
}

// newBuilder wires a session builder from the loaded config.
func newBuilder(ctx context.Context, opts ...session.Option) (*session.Builder, error) {
	cfg := currentConfig()
	b, err := backend.New(ctx, cfg.Backend)
	if err != nil {
		return nil, err
	}
	base := []session.Option{
		session.WithSearch(cfg.Backend.Search),
		session.WithOptions(builder.Options{
			TargetModel: cfg.Builder.TargetModel,
			OutputType:  cfg.Builder.OutputType,
			StackTags:   cfg.Builder.StackTags,
		}),
	}
	return session.New(b, append(base, opts...)...), nil
}

// openUsage opens the workspace usage tracker. Tracking is best effort: on
// failure the returned tracker is nil.
func openUsage() *usage.Tracker {
	tracker, err := usage.NewTracker(resolveWorkspace())
	if err != nil {
		currentLogger().Warn("Usage tracking disabled", zap.Error(err))
		return nil
	}
	return tracker
}

// withUsage attaches the workspace usage tracker to ctx. The returned func
// flushes it.
func withUsage(ctx context.Context) (context.Context, func()) {
	tracker := openUsage()
	if tracker == nil {
		return ctx, func() {}
	}
	return usage.NewContext(ctx, tracker), func() { closeUsage(tracker) }
}

func closeUsage(tracker *usage.Tracker) {
	if tracker == nil {
		return
	}
	if err := tracker.Close(); err != nil {
		currentLogger().Warn("Failed to save usage", zap.Error(err))
	}
}

// splitList splits comma-separated flag values, dropping blanks.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
