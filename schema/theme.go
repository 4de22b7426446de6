package schema

import "strings"

// DefaultTheme is the default UI theme name.
const DefaultTheme ThemeName = "aurora"

// themeAliases maps accepted spellings onto canonical theme names.
var themeAliases = map[string]ThemeName{
	"aurora":     "aurora",
	"gruvbox":    "gruvbox",
	"mono":       "mono",
	"monochrome": "mono",
}

// AvailableThemes returns the supported theme names.
func AvailableThemes() []ThemeName {
	return []ThemeName{"aurora", "gruvbox", "mono"}
}

// NormalizeThemeName returns a canonical theme name if supported.
func NormalizeThemeName(name string) (ThemeName, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.ReplaceAll(key, "_", "-")
	theme, ok := themeAliases[key]
	return theme, ok
}
