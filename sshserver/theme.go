package sshserver

import (
	"strconv"

	"pkt.systems/chimerax/schema"
)

type rgb struct {
	r int
	g int
	b int
}

type tuiTheme struct {
	Name             schema.ThemeName
	TabBarBG         rgb
	TabActiveBG      rgb
	TabActiveFG      rgb
	TabInactiveBG    rgb
	TabInactiveFG    rgb
	ErrorFG          rgb
	StderrFG         rgb
	MetaFG           rgb
	PromptFG         rgb
	SpinnerFG        rgb
	ReasoningFG      rgb
	ReasoningBold    rgb
	CodeFG           rgb
	AboutLinkFG      rgb
	AboutCopyrightFG rgb
	HelpArgFG        rgb
}

const (
	ansiReset  = "\x1b[0m"
	ansiBold   = "\x1b[1m"
	ansiDim    = "\x1b[2m"
	ansiItalic = "\x1b[3m"
)

var tuiThemes = map[schema.ThemeName]tuiTheme{
	"aurora": {
		Name:             "aurora",
		TabBarBG:         rgb{r: 13, g: 27, b: 42},
		TabActiveBG:      rgb{r: 80, g: 250, b: 123},
		TabActiveFG:      rgb{r: 13, g: 27, b: 42},
		TabInactiveBG:    rgb{r: 13, g: 27, b: 42},
		TabInactiveFG:    rgb{r: 224, g: 241, b: 255},
		ErrorFG:          rgb{r: 255, g: 85, b: 85},
		StderrFG:         rgb{r: 255, g: 121, b: 198},
		MetaFG:           rgb{r: 120, g: 144, b: 156},
		PromptFG:         rgb{r: 255, g: 255, b: 255},
		SpinnerFG:        rgb{r: 0, g: 200, b: 170},
		ReasoningFG:      rgb{r: 0, g: 200, b: 170},
		ReasoningBold:    rgb{r: 189, g: 147, b: 249},
		CodeFG:           rgb{r: 139, g: 233, b: 253},
		AboutLinkFG:      rgb{r: 139, g: 233, b: 253},
		AboutCopyrightFG: rgb{r: 68, g: 110, b: 140},
		HelpArgFG:        rgb{r: 138, g: 190, b: 183},
	},
	"gruvbox": {
		Name:             "gruvbox",
		TabBarBG:         rgb{r: 60, g: 56, b: 54},
		TabActiveBG:      rgb{r: 250, g: 189, b: 47},
		TabActiveFG:      rgb{r: 40, g: 40, b: 40},
		TabInactiveBG:    rgb{r: 60, g: 56, b: 54},
		TabInactiveFG:    rgb{r: 235, g: 219, b: 178},
		ErrorFG:          rgb{r: 251, g: 73, b: 52},
		StderrFG:         rgb{r: 211, g: 134, b: 155},
		MetaFG:           rgb{r: 146, g: 131, b: 116},
		PromptFG:         rgb{r: 255, g: 255, b: 255},
		SpinnerFG:        rgb{r: 131, g: 165, b: 152},
		ReasoningFG:      rgb{r: 131, g: 165, b: 152},
		ReasoningBold:    rgb{r: 214, g: 93, b: 14},
		CodeFG:           rgb{r: 250, g: 189, b: 47},
		AboutLinkFG:      rgb{r: 250, g: 189, b: 47},
		AboutCopyrightFG: rgb{r: 75, g: 110, b: 166},
		HelpArgFG:        rgb{r: 131, g: 165, b: 152},
	},
	"mono": {
		Name:             "mono",
		TabBarBG:         rgb{r: 28, g: 28, b: 28},
		TabActiveBG:      rgb{r: 220, g: 220, b: 220},
		TabActiveFG:      rgb{r: 28, g: 28, b: 28},
		TabInactiveBG:    rgb{r: 28, g: 28, b: 28},
		TabInactiveFG:    rgb{r: 188, g: 188, b: 188},
		ErrorFG:          rgb{r: 255, g: 255, b: 255},
		StderrFG:         rgb{r: 208, g: 208, b: 208},
		MetaFG:           rgb{r: 138, g: 138, b: 138},
		PromptFG:         rgb{r: 255, g: 255, b: 255},
		SpinnerFG:        rgb{r: 178, g: 178, b: 178},
		ReasoningFG:      rgb{r: 158, g: 158, b: 158},
		ReasoningBold:    rgb{r: 235, g: 235, b: 235},
		CodeFG:           rgb{r: 218, g: 218, b: 218},
		AboutLinkFG:      rgb{r: 218, g: 218, b: 218},
		AboutCopyrightFG: rgb{r: 118, g: 118, b: 118},
		HelpArgFG:        rgb{r: 168, g: 168, b: 168},
	},
}

func themeForName(name schema.ThemeName) tuiTheme {
	if name == "" {
		name = schema.DefaultTheme
	}
	if theme, ok := tuiThemes[name]; ok {
		return theme
	}
	return tuiThemes[schema.DefaultTheme]
}

func ansiFgRGB(c rgb) string {
	return "\x1b[38;2;" + strconv.Itoa(c.r) + ";" + strconv.Itoa(c.g) + ";" + strconv.Itoa(c.b) + "m"
}

func ansiBgRGB(c rgb) string {
	return "\x1b[48;2;" + strconv.Itoa(c.r) + ";" + strconv.Itoa(c.g) + ";" + strconv.Itoa(c.b) + "m"
}
