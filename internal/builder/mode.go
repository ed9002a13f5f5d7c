package builder

import (
	"prompttable/internal/catalog"
)

// Mode is the output medium derived from a selection's modifiers.
type Mode string

const (
	ModeText  Mode = "text"
	ModeVideo Mode = "video"
	ModeAudio Mode = "audio"
	ModeVoice Mode = "voice"
)

// modePriority is highest first. Text is the fallback and not listed.
var modePriority = []struct {
	category catalog.Category
	mode     Mode
}{
	{catalog.CategoryVideo, ModeVideo},
	{catalog.CategoryAudio, ModeAudio},
	{catalog.CategoryVoice, ModeVoice},
}

// DeriveMode classifies a selection. Only modifiers are considered; the
// highest-priority media category present wins (video, then audio, then
// voice). Without modifiers the mode is text.
func DeriveMode(items []catalog.Technique) Mode {
	present := make(map[catalog.Category]bool)
	for _, t := range items {
		if t.IsModifier() {
			present[t.Category] = true
		}
	}
	for _, p := range modePriority {
		if present[p.category] {
			return p.mode
		}
	}
	return ModeText
}

// IsDefault reports whether m is the text mode.
func (m Mode) IsDefault() bool {
	return m == ModeText || m == ""
}

// Action is the label of the primary generate affordance for the mode.
func (m Mode) Action() string {
	switch m {
	case ModeVideo:
		return "Generate Video Brief"
	case ModeAudio:
		return "Compose Audio Brief"
	case ModeVoice:
		return "Draft Voice Script"
	}
	return "Generate"
}

// LoadingMessages is the rotating status vocabulary shown while a turn is in
// flight.
func (m Mode) LoadingMessages() []string {
	switch m {
	case ModeVideo:
		return []string{
			"Blocking out the shots...",
			"Setting up the camera moves...",
			"Lighting the scene...",
		}
	case ModeAudio:
		return []string{
			"Tuning the instruments...",
			"Layering the soundscape...",
			"Mixing the levels...",
		}
	case ModeVoice:
		return []string{
			"Warming up the narrator...",
			"Marking the pauses...",
			"Rehearsing the delivery...",
		}
	}
	return []string{
		"Combining elements...",
		"Catalyzing the reaction...",
		"Distilling the answer...",
	}
}
