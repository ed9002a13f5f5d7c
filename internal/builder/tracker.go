package builder

import (
	"prompttable/internal/catalog"
	"prompttable/internal/logging"
)

// CueFunc is invoked when a toggle moves the derived mode to a non-default
// value. The interactive builder rings the terminal bell.
type CueFunc func(Mode)

// Tracker wraps a selection and watches its derived mode.
type Tracker struct {
	sel  *Selection
	mode Mode
	cue  CueFunc
}

// NewTracker returns a tracker over an empty selection.
func NewTracker(cue CueFunc) *Tracker {
	return &Tracker{sel: NewSelection(), mode: ModeText, cue: cue}
}

// Toggle flips membership of t and fires the cue once if the derived mode
// changed to a non-default value.
func (tr *Tracker) Toggle(t catalog.Technique) bool {
	selected := tr.sel.Toggle(t)
	tr.refresh()
	return selected
}

// Clear empties the selection.
func (tr *Tracker) Clear() {
	tr.sel.Clear()
	tr.refresh()
}

func (tr *Tracker) refresh() {
	next := tr.sel.Mode()
	if next == tr.mode {
		return
	}
	logging.Builder("mode %s -> %s", tr.mode, next)
	tr.mode = next
	if !next.IsDefault() && tr.cue != nil {
		tr.cue(next)
	}
}

// Mode returns the current derived mode.
func (tr *Tracker) Mode() Mode {
	return tr.mode
}

// Selection returns a copy of the tracked selection.
func (tr *Tracker) Selection() *Selection {
	return tr.sel.Clone()
}
