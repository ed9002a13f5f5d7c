package main

import (
	"fmt"
	"os"
	"strings"

	"prompttable/internal/catalog"
	"prompttable/internal/config"
	"prompttable/internal/plan"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var configForce bool

// configCmd manages .ptable/config.yaml
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the ptable configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration (API key redacted)",
	RunE:  runConfigShow,
}

// schemaCmd prints the plan JSON schema
var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema plans are constrained to",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := plan.SchemaJSON()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := resolveConfigPath()
	if _, err := os.Stat(path); err == nil && !configForce {
		fmt.Fprintf(cmd.OutOrStdout(), "Config already exists at %s (use --force to overwrite)\n", path)
		return nil
	}

	cfg := config.DefaultConfig()
	if err := cfg.Save(path); err != nil {
		return err
	}
	currentLogger().Info("Wrote config", zap.String("path", path))
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	if !currentConfig().HasCredentials() {
		fmt.Fprintln(cmd.OutOrStdout(), "No API key found. Set GEMINI_API_KEY or backend.api_key; until then replies are simulated.")
	}
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := *currentConfig()
	if cfg.Backend.APIKey != "" {
		cfg.Backend.APIKey = redact(cfg.Backend.APIKey)
	}
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(&cfg); err != nil {
		return err
	}
	return enc.Close()
}

func redact(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}

func symbolList(ts []catalog.Technique) string {
	if len(ts) == 0 {
		return "-"
	}
	symbols := make([]string, len(ts))
	for i, t := range ts {
		symbols[i] = t.Symbol
	}
	return strings.Join(symbols, ", ")
}
