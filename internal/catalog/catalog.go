// Package catalog holds the static table of prompt-engineering techniques.
// Each technique is an "element": a short symbol, a name and a category that
// places it in one of the table's groups. The catalog is loaded once and never
// mutated.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"prompttable/internal/logging"

	"gopkg.in/yaml.v3"
)

// Category groups techniques into columns of the table.
type Category string

const (
	CategoryCore      Category = "core"
	CategoryOpenAI    Category = "openai"
	CategoryAnthropic Category = "anthropic"
	CategoryGoogle    Category = "google"
	CategoryMeta      Category = "meta"
	CategoryCommand   Category = "command"

	// Media categories. Techniques in these change the output medium.
	CategoryVideo Category = "video"
	CategoryAudio Category = "audio"
	CategoryVoice Category = "voice"
)

// AllCategories lists every category in display order.
var AllCategories = []Category{
	CategoryCore,
	CategoryOpenAI,
	CategoryAnthropic,
	CategoryGoogle,
	CategoryMeta,
	CategoryCommand,
	CategoryVideo,
	CategoryAudio,
	CategoryVoice,
}

// IsModifier reports whether techniques of this category are modifiers.
func (c Category) IsModifier() bool {
	switch c {
	case CategoryVideo, CategoryAudio, CategoryVoice:
		return true
	}
	return false
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

// Label returns the display label for the category.
func (c Category) Label() string {
	switch c {
	case CategoryCore:
		return "General"
	case CategoryOpenAI:
		return "OpenAI"
	case CategoryAnthropic:
		return "Anthropic"
	case CategoryGoogle:
		return "Google"
	case CategoryMeta:
		return "Meta"
	case CategoryCommand:
		return "Commands"
	case CategoryVideo:
		return "Video"
	case CategoryAudio:
		return "Audio"
	case CategoryVoice:
		return "Voice"
	}
	return string(c)
}

// ExamplePair is a before/after prompt illustrating a technique.
type ExamplePair struct {
	Before string `yaml:"before" json:"before"`
	After  string `yaml:"after" json:"after"`
}

// GuidanceRow is one row of a usage-guidance table.
type GuidanceRow struct {
	Scenario       string `yaml:"scenario" json:"scenario"`
	Recommendation string `yaml:"recommendation" json:"recommendation"`
}

// Detail is the optional long-form reference for a technique.
type Detail struct {
	Title         string        `yaml:"title" json:"title"`
	Body          string        `yaml:"body" json:"body"`
	BestPractices []string      `yaml:"best_practices,omitempty" json:"best_practices,omitempty"`
	Examples      []ExamplePair `yaml:"examples,omitempty" json:"examples,omitempty"`
	Config        string        `yaml:"config,omitempty" json:"config,omitempty"`
	Guidance      []GuidanceRow `yaml:"guidance,omitempty" json:"guidance,omitempty"`
}

// Technique is a single element of the table.
type Technique struct {
	Symbol      string   `yaml:"symbol" json:"symbol"`
	Name        string   `yaml:"name" json:"name"`
	Category    Category `yaml:"category" json:"category"`
	Description string   `yaml:"description" json:"description"`
	Example     string   `yaml:"example" json:"example"`
	Detail      *Detail  `yaml:"detail,omitempty" json:"detail,omitempty"`
}

// IsModifier reports whether the technique changes the output medium.
func (t Technique) IsModifier() bool {
	return t.Category.IsModifier()
}

// Catalog is an immutable, ordered set of techniques indexed by symbol.
type Catalog struct {
	techniques []Technique
	bySymbol   map[string]int
}

type catalogFile struct {
	Techniques []Technique `yaml:"techniques"`
}

//go:embed catalog.yaml
var embeddedCatalog []byte

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the catalog embedded in the binary.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Parse(embeddedCatalog)
		if err != nil {
			panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// Load reads a catalog from a YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	logging.Get(logging.CategoryCatalog).Info("loaded %d techniques from %s", c.Len(), path)
	return c, nil
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return New(f.Techniques)
}

// New builds a catalog from techniques, rejecting empty or duplicate symbols
// and unknown categories.
func New(techniques []Technique) (*Catalog, error) {
	c := &Catalog{
		techniques: make([]Technique, 0, len(techniques)),
		bySymbol:   make(map[string]int, len(techniques)),
	}
	for i, t := range techniques {
		t.Symbol = strings.TrimSpace(t.Symbol)
		if t.Symbol == "" {
			return nil, fmt.Errorf("technique %d has an empty symbol", i)
		}
		if _, dup := c.bySymbol[t.Symbol]; dup {
			return nil, fmt.Errorf("duplicate symbol %q", t.Symbol)
		}
		if !t.Category.Valid() {
			return nil, fmt.Errorf("technique %s: unknown category %q", t.Symbol, t.Category)
		}
		c.bySymbol[t.Symbol] = len(c.techniques)
		c.techniques = append(c.techniques, t)
	}
	return c, nil
}

// Len returns the number of techniques.
func (c *Catalog) Len() int {
	return len(c.techniques)
}

// All returns every technique in catalog order.
func (c *Catalog) All() []Technique {
	out := make([]Technique, len(c.techniques))
	copy(out, c.techniques)
	return out
}

// Lookup finds a technique by symbol.
func (c *Catalog) Lookup(symbol string) (Technique, bool) {
	i, ok := c.bySymbol[symbol]
	if !ok {
		return Technique{}, false
	}
	return c.techniques[i], true
}

// MustLookup is Lookup for symbols known to exist. It panics otherwise.
func (c *Catalog) MustLookup(symbol string) Technique {
	t, ok := c.Lookup(symbol)
	if !ok {
		panic(fmt.Sprintf("catalog: unknown symbol %q", symbol))
	}
	return t
}

// Resolve looks up several symbols at once, failing on the first unknown one.
func (c *Catalog) Resolve(symbols []string) ([]Technique, error) {
	out := make([]Technique, 0, len(symbols))
	for _, s := range symbols {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		t, ok := c.Lookup(s)
		if !ok {
			return nil, fmt.Errorf("unknown element %q", s)
		}
		out = append(out, t)
	}
	return out, nil
}

// ByCategory returns the techniques of one category in catalog order.
func (c *Catalog) ByCategory(cat Category) []Technique {
	var out []Technique
	for _, t := range c.techniques {
		if t.Category == cat {
			out = append(out, t)
		}
	}
	return out
}

// Categories returns the categories present in the catalog, in display order.
func (c *Catalog) Categories() []Category {
	present := make(map[Category]bool)
	for _, t := range c.techniques {
		present[t.Category] = true
	}
	var out []Category
	for _, cat := range AllCategories {
		if present[cat] {
			out = append(out, cat)
		}
	}
	return out
}
