package command

import (
	"strings"
)

// Command is one parsed slash command line.
type Command struct {
	Name      string
	Args      []string
	Raw       string
	Remainder string
}

// Parse recognizes a slash command. Leading whitespace is ignored; the
// second return value is false for plain prompt text.
func Parse(input string) (Command, bool) {
	trimmed := strings.TrimLeft(input, " \t")
	if !strings.HasPrefix(trimmed, "/") {
		return Command{}, false
	}
	raw := strings.TrimSpace(trimmed[1:])
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return Command{Raw: raw}, true
	}
	cmd := Command{
		Name: strings.ToLower(fields[0]),
		Args: []string{},
		Raw:  raw,
	}
	if len(fields) > 1 {
		cmd.Args = fields[1:]
	}
	// Remainder keeps the original spacing of everything after the name,
	// for commands that take free-form text.
	rest := raw
	for i := 0; i < len(rest); i++ {
		if rest[i] == ' ' || rest[i] == '\t' {
			cmd.Remainder = strings.TrimSpace(rest[i:])
			break
		}
	}
	return cmd, true
}
