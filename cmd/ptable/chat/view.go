package chat

import (
	"fmt"
	"strings"

	"prompttable/internal/builder"
	"prompttable/internal/plan"
	"prompttable/internal/session"

	"github.com/charmbracelet/lipgloss"
)

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	sections := []string{
		m.renderHeader(),
		m.renderGrid(),
		m.renderOptions(),
		m.viewport.View(),
		m.renderStatus(),
		m.input.View(),
		m.renderFooter(),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader() string {
	mode := m.b.Mode()
	badge := m.styles.Badge.Render(strings.ToUpper(string(mode)))
	title := m.styles.Header.Render("ptable")
	info := m.b.Backend().Name()
	if m.usage != nil {
		info += fmt.Sprintf(" | %d tokens", m.usage.Stats().Total.Total)
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, title, " ", badge, "  ", m.styles.Muted.Render(info))
}

func (m Model) renderGrid() string {
	sel := m.b.Selection()
	var lines []string
	for r, row := range m.rows {
		label := m.styles.Muted.Render(fmt.Sprintf("%-10s", m.categories[r].Label()))
		tiles := make([]string, 0, len(row))
		for c, t := range row {
			cursor := m.focus == focusGrid && r == m.cursorRow && c == m.cursorCol
			tiles = append(tiles, m.styles.CategoryTile(t.Category, sel.Contains(t.Symbol), cursor).Render(t.Symbol))
		}
		lines = append(lines, label+" "+strings.Join(tiles, " "))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderOptions() string {
	opts := m.b.Options()
	stack := "none"
	if len(opts.StackTags) > 0 {
		stack = strings.Join(opts.StackTags, ", ")
	}
	line1 := fmt.Sprintf("%s %s   %s %s   %s %s",
		m.styles.Bold.Render("[m]odel:"), opts.TargetModel,
		m.styles.Bold.Render("[o]utput:"), opts.OutputType,
		m.styles.Bold.Render("s[t]ack:"), stack)

	detail := ""
	if t, ok := m.current(); ok {
		detail = m.styles.Subtitle.Render(fmt.Sprintf("%s - %s", t.Name, t.Description))
	}
	return line1 + "\n" + detail
}

func (m Model) renderStatus() string {
	switch {
	case m.err != nil:
		return m.styles.Error.Render("Error: " + m.err.Error())
	case m.busy:
		return m.spinner.View() + " " + m.loadingMessage()
	case m.planning:
		return m.spinner.View() + " Generating plan..."
	case m.status != "":
		return m.styles.Info.Render(m.status)
	}
	return m.styles.Muted.Render(m.b.Mode().Action() + " with Enter")
}

// loadingMessage rotates through the mode's loading vocabulary.
func (m Model) loadingMessage() string {
	msgs := m.b.Mode().LoadingMessages()
	if len(msgs) == 0 {
		return "Working..."
	}
	return msgs[(m.spinnerTick/loadingRotation)%len(msgs)]
}

func (m Model) renderFooter() string {
	return m.styles.Footer.Render("tab focus | space toggle | esc stop | ctrl+g regenerate | ctrl+f refine | ctrl+p plan | ctrl+r reset | ctrl+c quit")
}

// refreshTranscript re-renders the transcript into the viewport.
func (m *Model) refreshTranscript() {
	msgs := m.b.Transcript()
	if len(msgs) == 0 {
		m.viewport.SetContent(m.styles.Muted.Render(emptyHint(m.b.Mode())))
		return
	}

	var sb strings.Builder
	for _, msg := range msgs {
		sb.WriteString(m.renderMessage(msg))
		sb.WriteString("\n")
	}
	m.viewport.SetContent(sb.String())
	m.viewport.GotoBottom()
}

func emptyHint(mode builder.Mode) string {
	return fmt.Sprintf("Select elements in the grid, then type a request. Current mode: %s.", mode)
}

func (m Model) renderMessage(msg session.Message) string {
	switch {
	case msg.Stopped:
		return m.styles.SystemNotice.Render(msg.Text)
	case msg.Failed:
		return m.styles.Error.Render(msg.Text)
	case msg.Role == session.RoleUser:
		out := m.styles.UserMessage.Render("You: " + msg.Text)
		if msg.Image != nil {
			out += "\n" + m.styles.Muted.Render(fmt.Sprintf("[attached %s, %d bytes]", msg.Image.MIMEType, len(msg.Image.Data)))
		}
		return out
	case msg.Plan != nil:
		return m.styles.AgentResponse.Render(m.markdown(planMarkdown(msg.Plan)))
	}

	out := m.markdown(msg.Text)
	if msg.Image != nil {
		out += "\n" + m.styles.Muted.Render(fmt.Sprintf("[illustration: %s, %d bytes]", msg.Image.MIMEType, len(msg.Image.Data)))
	}
	return m.styles.AgentResponse.Render(out)
}

func (m Model) markdown(text string) string {
	if m.renderer == nil {
		return text
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

// planMarkdown renders a plan as a numbered Markdown list.
func planMarkdown(p *plan.Plan) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "### %s\n\n", p.Title)
	for i, s := range p.Steps {
		fmt.Fprintf(&sb, "%d. **[%s]** %s", i+1, s.Type, s.Label)
		if s.Detail != "" {
			fmt.Fprintf(&sb, ": %s", s.Detail)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
