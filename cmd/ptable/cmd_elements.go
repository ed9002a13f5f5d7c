package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"prompttable/internal/catalog"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

var elementsCategory string

// elementsCmd lists the catalog
var elementsCmd = &cobra.Command{
	Use:     "elements",
	Aliases: []string{"ls"},
	Short:   "List the elements of the periodic table",
	Long: `Lists every technique in the catalog grouped by category.

Examples:
  ptable elements
  ptable elements --category video
  ptable elements show Cl`,
	RunE: listElements,
}

var elementsShowCmd = &cobra.Command{
	Use:   "show [symbol]",
	Short: "Show the full description of an element",
	Args:  cobra.ExactArgs(1),
	RunE:  showElement,
}

func init() {
	elementsCmd.Flags().StringVar(&elementsCategory, "category", "", "Only list this category")
	elementsCmd.AddCommand(elementsShowCmd)
}

func listElements(cmd *cobra.Command, args []string) error {
	cat, err := loadCatalog()
	if err != nil {
		return err
	}

	categories := cat.Categories()
	if elementsCategory != "" {
		c := catalog.Category(strings.ToLower(elementsCategory))
		if !c.Valid() {
			return fmt.Errorf("unknown category %q", elementsCategory)
		}
		categories = []catalog.Category{c}
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tNAME\tCATEGORY\tDESCRIPTION")
	for _, c := range categories {
		for _, t := range cat.ByCategory(c) {
			label := c.Label()
			if t.IsModifier() {
				label += " (modifier)"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.Symbol, t.Name, label, t.Description)
		}
	}
	return w.Flush()
}

func showElement(cmd *cobra.Command, args []string) error {
	cat, err := loadCatalog()
	if err != nil {
		return err
	}
	t, ok := cat.Lookup(args[0])
	if !ok {
		return fmt.Errorf("unknown element %q (see `ptable elements`)", args[0])
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return err
	}
	out, err := r.Render(elementMarkdown(t))
	if err != nil {
		return err
	}
	_, err = io.WriteString(cmd.OutOrStdout(), out)
	return err
}

// elementMarkdown renders a technique and its detail block as Markdown.
func elementMarkdown(t catalog.Technique) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s (%s)\n\n", t.Name, t.Symbol)
	fmt.Fprintf(&sb, "*%s*\n\n", t.Category.Label())
	sb.WriteString(t.Description + "\n\n")
	if t.Example != "" {
		fmt.Fprintf(&sb, "> %s\n\n", t.Example)
	}

	d := t.Detail
	if d == nil {
		return sb.String()
	}
	if d.Title != "" {
		fmt.Fprintf(&sb, "## %s\n\n", d.Title)
	}
	if d.Body != "" {
		sb.WriteString(d.Body + "\n\n")
	}
	if len(d.BestPractices) > 0 {
		sb.WriteString("### Best practices\n\n")
		for _, bp := range d.BestPractices {
			fmt.Fprintf(&sb, "- %s\n", bp)
		}
		sb.WriteString("\n")
	}
	for _, ex := range d.Examples {
		sb.WriteString("### Example\n\n")
		fmt.Fprintf(&sb, "**Before:** %s\n\n**After:** %s\n\n", ex.Before, ex.After)
	}
	if d.Config != "" {
		fmt.Fprintf(&sb, "### Configuration\n\n```\n%s\n```\n\n", strings.TrimSpace(d.Config))
	}
	if len(d.Guidance) > 0 {
		sb.WriteString("### When to use\n\n| Scenario | Recommendation |\n|---|---|\n")
		for _, g := range d.Guidance {
			fmt.Fprintf(&sb, "| %s | %s |\n", g.Scenario, g.Recommendation)
		}
	}
	return sb.String()
}
