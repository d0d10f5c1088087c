package ui

import (
	"strings"

	"github.com/gdamore/tcell/v2"
)

// Theme holds widget colors and the matching tview color tags for text markup.
type Theme struct {
	Surface     tcell.Color
	Border      tcell.Color
	FocusBorder tcell.Color
	SelectionBg tcell.Color
	SelectionFg tcell.Color
	TextPrimary tcell.Color
	TextMuted   tcell.Color

	TableHeader   tcell.Color
	TableHeaderBg tcell.Color
	TableZebra1   tcell.Color
	TableZebra2   tcell.Color

	TagTextPrimary string
	TagMuted       string
	TagAccent      string
	TagSuccess     string
	TagWarning     string
	TagError       string

	// Level tags, Critical first
	TagLevels [4]string
}

func hex(s string) tcell.Color { return tcell.GetColor(s) }

var themeOrder = []string{"dark", "light", "high-contrast"}

func themeByName(name string) (string, Theme) {
	switch name {
	case "light":
		return name, themeLight()
	case "high-contrast":
		return name, themeHighContrast()
	}
	return "dark", themeDark()
}

func themeDark() Theme {
	return Theme{
		Surface:     hex("#111821"),
		Border:      hex("#2a3444"),
		FocusBorder: hex("#58a6ff"),
		SelectionBg: hex("#263244"),
		SelectionFg: hex("#dbe4ee"),
		TextPrimary: hex("#e6edf3"),
		TextMuted:   hex("#8b95a3"),

		TableHeader:   hex("#f2c14e"),
		TableHeaderBg: hex("#1b2533"),
		TableZebra1:   hex("#151d28"),
		TableZebra2:   hex("#111821"),

		TagTextPrimary: "#e6edf3",
		TagMuted:       "#8b95a3",
		TagAccent:      "#3ddbd9",
		TagSuccess:     "#3fb950",
		TagWarning:     "#f2a93b",
		TagError:       "#f85149",
		TagLevels:      [4]string{"#ff5f5f", "#ffaf5f", "#ffd75f", "#87d7af"},
	}
}

func themeLight() Theme {
	return Theme{
		Surface:     hex("#ffffff"),
		Border:      hex("#d0d7de"),
		FocusBorder: hex("#0969da"),
		SelectionBg: hex("#ddf4ff"),
		SelectionFg: hex("#1f2328"),
		TextPrimary: hex("#1f2328"),
		TextMuted:   hex("#656d76"),

		TableHeader:   hex("#1f2328"),
		TableHeaderBg: hex("#eaeef2"),
		TableZebra1:   hex("#ffffff"),
		TableZebra2:   hex("#f6f8fa"),

		TagTextPrimary: "#1f2328",
		TagMuted:       "#656d76",
		TagAccent:      "#0969da",
		TagSuccess:     "#1a7f37",
		TagWarning:     "#9a6700",
		TagError:       "#cf222e",
		TagLevels:      [4]string{"#cf222e", "#bc4c00", "#9a6700", "#1a7f37"},
	}
}

func themeHighContrast() Theme {
	return Theme{
		Surface:     tcell.ColorBlack,
		Border:      tcell.ColorWhite,
		FocusBorder: tcell.ColorYellow,
		SelectionBg: tcell.ColorWhite,
		SelectionFg: tcell.ColorBlack,
		TextPrimary: tcell.ColorWhite,
		TextMuted:   tcell.ColorSilver,

		TableHeader:   tcell.ColorYellow,
		TableHeaderBg: tcell.ColorBlack,
		TableZebra1:   tcell.ColorBlack,
		TableZebra2:   tcell.ColorBlack,

		TagTextPrimary: "white",
		TagMuted:       "silver",
		TagAccent:      "aqua",
		TagSuccess:     "lime",
		TagWarning:     "yellow",
		TagError:       "red",
		TagLevels:      [4]string{"red", "fuchsia", "yellow", "lime"},
	}
}

// levelTag colors Critical/High/Medium/Low values; anything else is plain text.
func (t Theme) levelTag(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "critical":
		return t.TagLevels[0]
	case "high":
		return t.TagLevels[1]
	case "medium":
		return t.TagLevels[2]
	case "low":
		return t.TagLevels[3]
	}
	return t.TagTextPrimary
}
