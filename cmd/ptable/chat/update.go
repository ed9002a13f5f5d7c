package chat

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"prompttable/internal/backend"
	"prompttable/internal/builder"
	"prompttable/internal/logging"
	"prompttable/internal/session"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
)

// spinner ticks per loading message
const loadingRotation = 25

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		if !m.busy && !m.planning {
			return m, nil
		}
		m.spinnerTick++
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case EventMsg:
		m.refreshTranscript()
		return m, nil

	case turnDoneMsg:
		m.busy = m.b.Busy()
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.status = outcomeStatus(msg.result.Outcome)
		}
		m.refreshTranscript()
		return m, nil

	case planDoneMsg:
		m.planning = false
		if msg.err != nil {
			m.err = msg.err
		} else if msg.message != nil && msg.message.Plan != nil && msg.message.Plan.Error {
			m.status = "Plan output could not be parsed"
		} else {
			m.status = "Plan ready"
		}
		m.refreshTranscript()
		return m, nil
	}

	if m.focus == focusInput {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height

	gridHeight := len(m.rows)
	vpHeight := height - headerHeight - gridHeight - optionsHeight - statusHeight - inputHeight - footerHeight - 2
	if vpHeight < 3 {
		vpHeight = 3
	}
	m.viewport.Width = width
	m.viewport.Height = vpHeight
	m.input.Width = width - 4
	m.ready = true

	wrap := width - 4
	if wrap < 20 {
		wrap = 20
	}
	if r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(wrap)); err == nil {
		m.renderer = r
	}
	m.refreshTranscript()
}

// =============================================================================
// KEYS
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.err = nil

	switch msg.String() {
	case "ctrl+c":
		m.Shutdown()
		return m, tea.Quit

	case "esc":
		if m.b.Stop() {
			m.busy = false
			m.status = "Stopped"
			m.refreshTranscript()
			return m, nil
		}
		if m.inputMode == inputRefine {
			m.inputMode = inputPrompt
			m.input.Placeholder = "Describe what you need... (Enter to send, Tab for the grid)"
			m.status = ""
		}
		return m, nil

	case "tab":
		if m.focus == focusGrid {
			m.focus = focusInput
			return m, m.input.Focus()
		}
		m.focus = focusGrid
		m.input.Blur()
		return m, nil

	case "ctrl+r":
		m.b.Reset()
		m.busy = false
		m.planning = false
		m.status = "Session reset"
		m.refreshTranscript()
		return m, nil

	case "ctrl+g":
		m.busy = true
		m.spinnerTick = 0
		return m, tea.Batch(m.spinner.Tick, m.regenerate())

	case "ctrl+p":
		if m.planning {
			return m, nil
		}
		m.planning = true
		m.status = "Generating plan..."
		return m, tea.Batch(m.spinner.Tick, m.generatePlan(m.input.Value()))

	case "ctrl+f":
		m.inputMode = inputRefine
		m.focus = focusInput
		m.input.Placeholder = "path/to/annotated.png then your notes (Esc to cancel)"
		m.status = "Refine: give an image path and notes"
		return m, m.input.Focus()
	}

	if m.focus == focusGrid {
		return m.handleGridKey(msg)
	}
	return m.handleInputKey(msg)
}

func (m Model) handleGridKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.cursorRow > 0 {
			m.cursorRow--
			m.clampCol()
		}
	case "down", "j":
		if m.cursorRow < len(m.rows)-1 {
			m.cursorRow++
			m.clampCol()
		}
	case "left", "h":
		if m.cursorCol > 0 {
			m.cursorCol--
		}
	case "right", "l":
		if m.cursorRow < len(m.rows) && m.cursorCol < len(m.rows[m.cursorRow])-1 {
			m.cursorCol++
		}
	case " ", "enter", "x":
		m.toggleCurrent()
	case "m":
		m.modelIdx = (m.modelIdx + 1) % len(builder.TargetModels)
		m.applyOptions()
	case "o":
		m.outputIdx = (m.outputIdx + 1) % len(builder.OutputTypes)
		m.applyOptions()
	case "t":
		m.stackIdx++
		if m.stackIdx >= len(builder.StackTags) {
			m.stackIdx = -1
		}
		m.applyOptions()
	case "c":
		m.b.ClearSelection()
		m.status = "Selection cleared"
	case "q":
		m.Shutdown()
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type != tea.KeyEnter {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	value := strings.TrimSpace(m.input.Value())
	if value == "" {
		return m, nil
	}

	if m.inputMode == inputRefine {
		img, notes, err := loadRefinement(value)
		if err != nil {
			m.err = err
			return m, nil
		}
		m.inputMode = inputPrompt
		m.input.Reset()
		m.busy = true
		m.spinnerTick = 0
		return m, tea.Batch(m.spinner.Tick, m.refine(img, notes))
	}

	m.input.Reset()
	m.busy = true
	m.spinnerTick = 0
	m.status = ""
	return m, tea.Batch(m.spinner.Tick, m.generate(value))
}

func (m *Model) clampCol() {
	if n := len(m.rows[m.cursorRow]); m.cursorCol >= n {
		m.cursorCol = n - 1
	}
}

func (m *Model) toggleCurrent() {
	t, ok := m.current()
	if !ok {
		return
	}
	before := m.b.Mode()
	selected := m.b.Toggle(t)
	after := m.b.Mode()

	verb := "Removed"
	if selected {
		verb = "Added"
	}
	m.status = fmt.Sprintf("%s %s (%s)", verb, t.Name, t.Symbol)
	if before != after {
		m.status += fmt.Sprintf(" - mode is now %s", after)
	}
	logging.Get(logging.CategoryUI).Debug("toggle %s selected=%v mode=%s", t.Symbol, selected, after)
}

func (m *Model) applyOptions() {
	opts := builder.Options{
		TargetModel: builder.TargetModels[m.modelIdx],
		OutputType:  builder.OutputTypes[m.outputIdx],
	}
	if m.stackIdx >= 0 {
		opts.StackTags = []string{builder.StackTags[m.stackIdx]}
	}
	m.b.SetOptions(opts)
}

// loadRefinement parses "<path> [notes]" and reads the image.
func loadRefinement(value string) (backend.Image, string, error) {
	path, notes, _ := strings.Cut(value, " ")
	data, err := os.ReadFile(path)
	if err != nil {
		return backend.Image{}, "", fmt.Errorf("cannot read image: %w", err)
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return backend.Image{}, "", errors.New("not an image: " + path)
	}
	return backend.Image{Data: data, MIMEType: mime}, strings.TrimSpace(notes), nil
}

func outcomeStatus(o session.Outcome) string {
	switch o {
	case session.OutcomeCompleted:
		return "Done"
	case session.OutcomeFailed:
		return "Generation failed"
	case session.OutcomeStopped:
		return "Stopped"
	}
	return ""
}

// =============================================================================
// COMMANDS
// =============================================================================

func (m Model) generate(input string) tea.Cmd {
	b, ctx := m.b, m.ctx
	return func() tea.Msg {
		res, err := b.Generate(ctx, input)
		return turnDoneMsg{result: res, err: err}
	}
}

func (m Model) regenerate() tea.Cmd {
	b, ctx := m.b, m.ctx
	return func() tea.Msg {
		res, err := b.Regenerate(ctx)
		return turnDoneMsg{result: res, err: err}
	}
}

func (m Model) refine(img backend.Image, notes string) tea.Cmd {
	b, ctx := m.b, m.ctx
	return func() tea.Msg {
		res, err := b.Refine(ctx, img, notes)
		return turnDoneMsg{result: res, err: err}
	}
}

func (m Model) generatePlan(input string) tea.Cmd {
	b, ctx := m.b, m.ctx
	return func() tea.Msg {
		msg, err := b.GeneratePlan(ctx, input)
		return planDoneMsg{message: msg, err: err}
	}
}
