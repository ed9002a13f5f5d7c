package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"prompttable/internal/builder"
	"prompttable/internal/session"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// selectionFlags are shared by the one-shot commands.
type selectionFlags struct {
	elements    []string
	targetModel string
	outputType  string
	stack       []string
}

func (f *selectionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&f.elements, "elements", "e", nil, "Element symbols to select (comma separated)")
	cmd.Flags().StringVar(&f.targetModel, "model", "", "Target model the prompt is written for")
	cmd.Flags().StringVar(&f.outputType, "output", "", "Desired output type")
	cmd.Flags().StringSliceVar(&f.stack, "stack", nil, "Technology stack tags (comma separated)")
}

// apply selects the flagged elements and options on b.
func (f *selectionFlags) apply(b *session.Builder) error {
	cat, err := loadCatalog()
	if err != nil {
		return err
	}
	techniques, err := cat.Resolve(splitList(f.elements))
	if err != nil {
		return err
	}
	for _, t := range techniques {
		if !b.Selection().Contains(t.Symbol) {
			b.Toggle(t)
		}
	}

	opts := b.Options()
	if f.targetModel != "" {
		opts.TargetModel = f.targetModel
	}
	if f.outputType != "" {
		opts.OutputType = f.outputType
	}
	if tags := splitList(f.stack); len(tags) > 0 {
		opts.StackTags = tags
	}
	b.SetOptions(opts)
	return nil
}

var (
	generateFlags  selectionFlags
	generateImages string

	planFlags  selectionFlags
	planFormat string

	modeFlags selectionFlags
)

// generateCmd runs one builder turn
var generateCmd = &cobra.Command{
	Use:   "generate [prompt]",
	Short: "Generate a prompt from selected elements",
	Long: `Runs one builder turn with the selected elements and prints the transcript.

Examples:
  ptable generate -e Cl,Rl "Summarize the quarterly report"
  ptable generate -e Cl,Vg --model "Veo 3" "A city waking up at dawn"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGenerate,
}

// planCmd requests a structured plan
var planCmd = &cobra.Command{
	Use:   "plan [context]",
	Short: "Generate a structured step-by-step plan",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPlan,
}

// modeCmd shows the derived mode and compiled instructions
var modeCmd = &cobra.Command{
	Use:   "mode",
	Short: "Show the generation mode and instructions for a selection",
	RunE:  runMode,
}

func init() {
	generateFlags.register(generateCmd)
	generateCmd.Flags().StringVar(&generateImages, "save-images", "", "Directory to write generated images to")

	planFlags.register(planCmd)
	planCmd.Flags().StringVar(&planFormat, "format", "json", "Output format: json or yaml")

	modeFlags.register(modeCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context(), timeout)
	defer cancel()
	ctx, flush := withUsage(ctx)
	defer flush()

	b, err := newBuilder(ctx)
	if err != nil {
		return err
	}
	if err := generateFlags.apply(b); err != nil {
		return err
	}

	input := joinArgs(args)
	currentLogger().Debug("Generating",
		zap.String("mode", string(b.Mode())),
		zap.Strings("elements", b.Selection().Symbols()),
		zap.String("backend", b.Backend().Name()))

	res, err := b.Generate(ctx, input)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, m := range b.Transcript() {
		printMessage(out, m)
		if m.Image != nil && generateImages != "" {
			path, err := saveImage(generateImages, m)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "[image saved to %s]\n", path)
		}
	}

	if res.Outcome != session.OutcomeCompleted {
		return fmt.Errorf("generation %s", res.Outcome)
	}
	return nil
}

func printMessage(w io.Writer, m session.Message) {
	fmt.Fprintf(w, "%s> %s\n", m.Role, m.Text)
	if m.Image != nil {
		fmt.Fprintf(w, "[%s image, %d bytes]\n", m.Image.MIMEType, len(m.Image.Data))
	}
	fmt.Fprintln(w)
}

// saveImage writes the image of m into dir and returns its path.
func saveImage(dir string, m session.Message) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create image directory: %w", err)
	}
	ext := ".png"
	switch m.Image.MIMEType {
	case "image/jpeg":
		ext = ".jpg"
	case "image/webp":
		ext = ".webp"
	}
	path := filepath.Join(dir, m.ID+ext)
	if err := os.WriteFile(path, m.Image.Data, 0644); err != nil {
		return "", fmt.Errorf("failed to write image: %w", err)
	}
	return path, nil
}

func runPlan(cmd *cobra.Command, args []string) error {
	format := strings.ToLower(planFormat)
	if format != "json" && format != "yaml" {
		return fmt.Errorf("unknown format %q (want json or yaml)", planFormat)
	}

	ctx, cancel := signalContext(cmd.Context(), timeout)
	defer cancel()
	ctx, flush := withUsage(ctx)
	defer flush()

	b, err := newBuilder(ctx)
	if err != nil {
		return err
	}
	if err := planFlags.apply(b); err != nil {
		return err
	}

	msg, err := b.GeneratePlan(ctx, joinArgs(args))
	if err != nil {
		return err
	}
	if msg.Failed {
		return fmt.Errorf("%s", msg.Text)
	}

	out := cmd.OutOrStdout()
	if format == "yaml" {
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(msg.Plan); err != nil {
			return err
		}
		return enc.Close()
	}
	data, err := json.MarshalIndent(msg.Plan, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

func runMode(cmd *cobra.Command, args []string) error {
	cfg := currentConfig()
	opts := builder.Options{
		TargetModel: cfg.Builder.TargetModel,
		OutputType:  cfg.Builder.OutputType,
		StackTags:   cfg.Builder.StackTags,
	}
	if modeFlags.targetModel != "" {
		opts.TargetModel = modeFlags.targetModel
	}
	if modeFlags.outputType != "" {
		opts.OutputType = modeFlags.outputType
	}
	if tags := splitList(modeFlags.stack); len(tags) > 0 {
		opts.StackTags = tags
	}

	cat, err := loadCatalog()
	if err != nil {
		return err
	}
	techniques, err := cat.Resolve(splitList(modeFlags.elements))
	if err != nil {
		return err
	}
	req := builder.Compile(builder.NewSelection(techniques...), opts)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Mode: %s\n", req.Mode)
	fmt.Fprintf(out, "Action: %s\n", req.Mode.Action())
	fmt.Fprintf(out, "Ingredients: %s\n", symbolList(req.Ingredients))
	fmt.Fprintf(out, "Modifiers: %s\n\n", symbolList(req.Modifiers))
	fmt.Fprintln(out, req.Instructions)
	return nil
}
