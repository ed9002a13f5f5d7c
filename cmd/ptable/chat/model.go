// Package chat implements the interactive ptable builder: an element grid,
// option pickers and a transcript over a session.Builder.
package chat

import (
	"context"

	"prompttable/cmd/ptable/ui"
	"prompttable/internal/builder"
	"prompttable/internal/catalog"
	"prompttable/internal/session"
	"prompttable/internal/usage"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds configuration for initializing the builder UI.
type Config struct {
	Catalog *catalog.Catalog
	Builder *session.Builder
	Styles  ui.Styles
	Usage   *usage.Tracker // optional
}

// focus determines which component receives keys
type focus int

const (
	focusGrid focus = iota
	focusInput
)

// inputMode is what Enter does with the input line
type inputMode int

const (
	inputPrompt inputMode = iota
	inputRefine           // "<image path> [notes]"
)

// Layout constants
const (
	headerHeight  = 1
	optionsHeight = 2
	statusHeight  = 1
	inputHeight   = 1
	footerHeight  = 1
)

// =============================================================================
// MESSAGES
// =============================================================================

// EventMsg carries a session.Event into the program.
type EventMsg session.Event

type turnDoneMsg struct {
	result session.TurnResult
	err    error
}

type planDoneMsg struct {
	message *session.Message
	err     error
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the bubbletea model of the interactive builder.
type Model struct {
	styles  ui.Styles
	catalog *catalog.Catalog
	b       *session.Builder
	usage   *usage.Tracker

	// Element grid: one row per category
	categories []catalog.Category
	rows       [][]catalog.Technique
	cursorRow  int
	cursorCol  int

	// Option cursors into builder.TargetModels / OutputTypes / StackTags
	modelIdx  int
	outputIdx int
	stackIdx  int // -1 = no stack tag

	focus     focus
	inputMode inputMode
	input     textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model
	renderer  *glamour.TermRenderer

	width  int
	height int
	ready  bool

	busy        bool
	planning    bool
	spinnerTick int
	status      string
	err         error

	ctx    context.Context
	cancel context.CancelFunc
}

// New builds the model. The caller subscribes the program to the builder.
func New(cfg Config) Model {
	cat := cfg.Catalog
	if cat == nil {
		cat = catalog.Default()
	}

	ti := textinput.New()
	ti.Placeholder = "Describe what you need... (Enter to send, Tab for the grid)"
	ti.Prompt = "| "
	ti.CharLimit = 4096
	ti.Width = 80
	ti.PromptStyle = cfg.Styles.Prompt

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = cfg.Styles.Spinner

	vp := viewport.New(80, 10)

	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(76),
	)

	ctx, cancel := context.WithCancel(context.Background())
	if cfg.Usage != nil {
		ctx = usage.NewContext(ctx, cfg.Usage)
	}

	m := Model{
		styles:   cfg.Styles,
		catalog:  cat,
		b:        cfg.Builder,
		usage:    cfg.Usage,
		stackIdx: -1,
		focus:    focusGrid,
		input:    ti,
		viewport: vp,
		spinner:  sp,
		renderer: renderer,
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, c := range cat.Categories() {
		m.categories = append(m.categories, c)
		m.rows = append(m.rows, cat.ByCategory(c))
	}
	m.syncOptionCursors()
	m.refreshTranscript()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Shutdown cancels in-flight requests.
func (m Model) Shutdown() {
	if m.b != nil {
		m.b.Stop()
	}
	m.cancel()
}

// syncOptionCursors positions the option cursors on the builder's options.
func (m *Model) syncOptionCursors() {
	opts := m.b.Options()
	m.modelIdx = max(indexOf(builder.TargetModels, opts.TargetModel), 0)
	m.outputIdx = max(indexOf(builder.OutputTypes, opts.OutputType), 0)
	m.stackIdx = -1
	if len(opts.StackTags) > 0 {
		m.stackIdx = indexOf(builder.StackTags, opts.StackTags[0])
	}
}

func indexOf(list []string, v string) int {
	for i, s := range list {
		if s == v {
			return i
		}
	}
	return -1
}

// current returns the technique under the cursor.
func (m Model) current() (catalog.Technique, bool) {
	if m.cursorRow < 0 || m.cursorRow >= len(m.rows) {
		return catalog.Technique{}, false
	}
	row := m.rows[m.cursorRow]
	if m.cursorCol < 0 || m.cursorCol >= len(row) {
		return catalog.Technique{}, false
	}
	return row[m.cursorCol], true
}
