package main

import (
	"context"
	"fmt"
	"os"

	"prompttable/cmd/ptable/chat"
	"prompttable/cmd/ptable/ui"
	"prompttable/internal/builder"
	"prompttable/internal/logging"
	"prompttable/internal/session"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

// runInteractive launches the builder TUI
func runInteractive(cmd *cobra.Command, args []string) error {
	cfg := currentConfig()

	cat, err := loadCatalog()
	if err != nil {
		return err
	}

	var opts []session.Option
	if cfg.UI.Bell {
		opts = append(opts, session.WithCue(ringBell))
	}
	b, err := newBuilder(context.Background(), opts...)
	if err != nil {
		return err
	}

	tracker := openUsage()
	defer closeUsage(tracker)

	model := chat.New(chat.Config{
		Catalog: cat,
		Builder: b,
		Styles:  ui.NewStyles(ui.ThemeByName(cfg.UI.Theme)),
		Usage:   tracker,
	})

	p := tea.NewProgram(model, tea.WithAltScreen())
	// Stop and Reset emit from inside Update, so Send must not block the loop.
	unsubscribe := b.Subscribe(func(ev session.Event) {
		go p.Send(chat.EventMsg(ev))
	})
	defer unsubscribe()

	logging.UI("interactive builder started: backend=%s", b.Backend().Name())
	final, err := p.Run()
	if m, ok := final.(chat.Model); ok {
		m.Shutdown()
	}
	if err != nil {
		return fmt.Errorf("interactive builder: %w", err)
	}
	return nil
}

// ringBell is the mode-change cue.
func ringBell(mode builder.Mode) {
	fmt.Fprint(os.Stderr, "\a")
}
