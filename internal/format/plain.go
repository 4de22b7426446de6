// Package format turns engine execution events into buffer lines.
package format

import (
	"fmt"
	"strings"

	"pkt.systems/chimerax/schema"
)

// PlainRenderer formats events as plain text lines. Agent, reasoning,
// and command lines get a style marker prefix; everything else comes
// out bare.
type PlainRenderer struct{}

// NewPlainRenderer returns a default plain-text renderer.
func NewPlainRenderer() *PlainRenderer {
	return &PlainRenderer{}
}

// FormatEvent converts an ExecEvent into user-facing lines. Lifecycle
// events that carry no printable payload yield nothing.
func (p *PlainRenderer) FormatEvent(event schema.ExecEvent) ([]string, error) {
	switch event.Type {
	case schema.EventTurnFailed:
		msg := "turn failed"
		if event.Error != nil && event.Error.Message != "" {
			msg += ": " + event.Error.Message
		}
		return []string{msg}, nil
	case schema.EventError:
		return []string{errorLine(event.Message)}, nil
	case schema.EventItemStarted, schema.EventItemUpdated, schema.EventItemCompleted:
		return p.formatItem(event.Type, event.Item), nil
	}
	return nil, nil
}

func (p *PlainRenderer) formatItem(eventType schema.EventType, item *schema.ItemEvent) []string {
	if item == nil {
		return nil
	}
	switch item.Type {
	case schema.ItemAgentMessage:
		return markLines(schema.AgentMarker, splitLines(item.Text))
	case schema.ItemReasoning:
		if item.Text == "" {
			return nil
		}
		return markLines(schema.ReasoningMarker, splitLines(item.Text))
	case schema.ItemCommandExecution:
		return markLines(schema.CommandMarker, formatCommand(item, eventType))
	case schema.ItemFileChange:
		return formatFileChange(item)
	case schema.ItemToolCall:
		return formatToolCall(item, eventType)
	case schema.ItemError:
		return []string{errorLine(item.Text)}
	}
	label := string(item.Type)
	if label == "" {
		label = "item"
	}
	return []string{label + " event"}
}

func errorLine(msg string) string {
	if msg == "" {
		msg = "unknown"
	}
	return "error: " + msg
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// splitOutput breaks captured process output into lines, dropping the
// trailing newline the engines always append.
func splitOutput(output string) []string {
	return strings.Split(strings.TrimRight(output, "\n"), "\n")
}

func markLines(marker string, lines []string) []string {
	if marker == "" || len(lines) == 0 {
		return lines
	}
	marked := make([]string, len(lines))
	for i, line := range lines {
		marked[i] = marker + line
	}
	return marked
}

func formatCommand(item *schema.ItemEvent, eventType schema.EventType) []string {
	var lines []string
	prompt := ""
	if item.Command != "" {
		prompt = "$ " + item.Command
		lines = append(lines, prompt)
	}
	if item.Output != "" {
		out := splitOutput(item.Output)
		// some engines echo the command as the first output line
		if prompt != "" && len(out) > 0 && out[0] == prompt {
			out = out[1:]
		}
		lines = append(lines, out...)
	}
	if eventType == schema.EventItemCompleted && item.ExitCode != nil {
		lines = append(lines, fmt.Sprintf("exit code: %d", *item.ExitCode))
	}
	return lines
}

func formatFileChange(item *schema.ItemEvent) []string {
	if len(item.Changes) == 0 {
		return []string{"file change"}
	}
	lines := make([]string, 0, len(item.Changes)+1)
	lines = append(lines, "file changes:")
	for _, change := range item.Changes {
		kind := strings.TrimSpace(change.Kind)
		if kind == "" {
			kind = "update"
		}
		lines = append(lines, fmt.Sprintf("- %s %s", kind, change.Path))
	}
	return lines
}

func formatToolCall(item *schema.ItemEvent, eventType schema.EventType) []string {
	name := strings.TrimSpace(item.Text)
	if name == "" {
		name = "tool call"
	}
	lines := []string{"tool: " + name}
	if eventType != schema.EventItemStarted && item.Output != "" {
		lines = append(lines, splitOutput(item.Output)...)
	}
	return lines
}
