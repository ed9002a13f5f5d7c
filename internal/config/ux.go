package config

// UIConfig holds user interface configuration.
type UIConfig struct {
	// Theme is "dark" or "light"
	Theme string `yaml:"theme"`

	// Bell rings the terminal bell when the generation mode switches to a
	// media mode.
	Bell bool `yaml:"bell"`
}

// ValidThemes lists the supported UI themes.
var ValidThemes = []string{"dark", "light"}

// DefaultUIConfig returns sensible UI defaults.
func DefaultUIConfig() *UIConfig {
	return &UIConfig{
		Theme: "dark",
		Bell:  true,
	}
}

func isValidTheme(theme string) bool {
	for _, t := range ValidThemes {
		if t == theme {
			return true
		}
	}
	return false
}
