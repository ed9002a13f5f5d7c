package builder

import (
	"fmt"
	"strings"

	"prompttable/internal/catalog"
)

// Option lists presented by the UI. The core folds whatever strings it is given
// into the instruction text and never validates them against these lists.
var (
	TargetModels = []string{
		"Gemini 2.5 Pro",
		"Gemini 2.5 Flash",
		"GPT-4o",
		"Claude Sonnet",
		"Llama 3",
		"Any model",
	}

	OutputTypes = []string{
		"Prompt",
		"System Instruction",
		"Code",
		"Documentation",
		"JSON",
		"Step-by-step Guide",
	}

	StackTags = []string{
		"Go",
		"Python",
		"TypeScript",
		"React",
		"PostgreSQL",
		"Docker",
		"Kubernetes",
		"Terraform",
	}
)

// Options are the auxiliary, opaque parameters of a request.
type Options struct {
	TargetModel string   `yaml:"target_model" json:"target_model"`
	OutputType  string   `yaml:"output_type" json:"output_type"`
	StackTags   []string `yaml:"stack_tags,omitempty" json:"stack_tags,omitempty"`
}

// DefaultOptions returns the first entry of each option list.
func DefaultOptions() Options {
	return Options{
		TargetModel: TargetModels[0],
		OutputType:  OutputTypes[0],
	}
}

// Request is the compiled configuration for one selection.
type Request struct {
	Ingredients  []catalog.Technique
	Modifiers    []catalog.Technique
	Mode         Mode
	Options      Options
	Instructions string
}

// Compile derives the full request configuration from a selection.
func Compile(sel *Selection, opts Options) Request {
	ingredients, modifiers := Partition(sel.Items())
	return Request{
		Ingredients:  ingredients,
		Modifiers:    modifiers,
		Mode:         DeriveMode(modifiers),
		Options:      opts,
		Instructions: BuildInstructions(ingredients, modifiers, opts),
	}
}

// BuildInstructions assembles the seed instruction for a new conversation.
func BuildInstructions(ingredients, modifiers []catalog.Technique, opts Options) string {
	mode := DeriveMode(modifiers)

	var sb strings.Builder
	sb.WriteString("You are an expert prompt engineer working inside an interactive periodic table of prompting techniques.\n")
	sb.WriteString(modePreamble(mode))
	sb.WriteString("\n")

	if len(ingredients) > 0 {
		sb.WriteString("\nApply these techniques:\n")
		for _, t := range ingredients {
			fmt.Fprintf(&sb, "- %s (%s): %s\n", t.Name, t.Symbol, t.Description)
		}
	} else {
		sb.WriteString("\nNo specific techniques were selected; use general prompt-engineering best practices.\n")
	}

	if len(modifiers) > 0 {
		sb.WriteString("\nOutput medium modifiers:\n")
		for _, t := range modifiers {
			fmt.Fprintf(&sb, "- %s (%s, %s): %s\n", t.Name, t.Symbol, t.Category, t.Description)
		}
	}

	if opts.TargetModel != "" {
		fmt.Fprintf(&sb, "\nTarget model: %s. Tailor phrasing and structure to its conventions.\n", opts.TargetModel)
	}
	if opts.OutputType != "" {
		fmt.Fprintf(&sb, "Desired output type: %s.\n", opts.OutputType)
	}
	if len(opts.StackTags) > 0 {
		fmt.Fprintf(&sb, "Technology stack: %s.\n", strings.Join(opts.StackTags, ", "))
	}

	sb.WriteString("\nAnswer in Markdown. When refining, keep what works and explain what changed.")
	return sb.String()
}

func modePreamble(mode Mode) string {
	switch mode {
	case ModeVideo:
		return "Produce a video generation brief: scenes, shot types, camera movement, lighting and timing for a text-to-video model."
	case ModeAudio:
		return "Produce an audio generation brief: genre or ambience, tempo, instrumentation, texture and duration for a text-to-audio model."
	case ModeVoice:
		return "Produce a voice script: narration text with pacing, emphasis and pronunciation notes for a text-to-speech model."
	}
	return "Produce a high-quality prompt or answer that combines the selected techniques."
}

// TurnDirective is prefixed to outbound turns so that a mode change made
// mid-conversation applies from the next turn on. It is empty for text mode.
func TurnDirective(mode Mode) string {
	if mode.IsDefault() {
		return ""
	}
	return fmt.Sprintf("[Output medium: %s] %s", mode, modePreamble(mode))
}

// ImagePrompt is the prompt for the illustrative image of a first text turn.
func ImagePrompt(input string) string {
	return "Create a clean, modern illustration that visually represents the following request. " +
		"Do not render any text in the image.\n\nRequest: " + input
}
