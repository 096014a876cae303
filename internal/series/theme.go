package series

import "fmt"

// Theme is the dashboard color scheme.
type Theme string

// Themes.
const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Grey scale used for axis labels and grid lines.
const (
	Grey600 = "#a99a97"
	Grey900 = "#2d2424"
)

// ChartBackground is transparent so the card background shows through.
const ChartBackground = "#ffffff00"

// ParseTheme converts s to a Theme. Empty input is light.
func ParseTheme(s string) (Theme, error) {
	switch Theme(s) {
	case "", ThemeLight:
		return ThemeLight, nil
	case ThemeDark:
		return ThemeDark, nil
	default:
		return "", fmt.Errorf("unknown theme %q", s)
	}
}

// Palette holds the theme dependent colors of a chart.
type Palette struct {
	Mode        Theme
	LabelColor  string
	BorderColor string
}

// PaletteFor returns the palette of theme.
func PaletteFor(theme Theme) Palette {
	if theme == ThemeDark {
		return Palette{Mode: ThemeDark, LabelColor: Grey600, BorderColor: Grey900}
	}
	return Palette{Mode: ThemeLight, LabelColor: Grey600, BorderColor: Grey600}
}
