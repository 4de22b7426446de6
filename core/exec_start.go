package core

import (
	"fmt"
	"strings"
	"time"

	"pkt.systems/chimerax/internal/project"
	"pkt.systems/chimerax/schema"
)

func buildExecStartLines(now time.Time, tab *tab, info project.GitInfo) []string {
	labelWidth := maxLabelWidth([]string{"Project", "Branch", "Remote", "Git status", "Engine", "Model", "Session"})
	projectLabel := ""
	session := ""
	engine := schema.EngineID("")
	model := schema.ModelID("")
	if tab != nil {
		projectLabel = tab.Project.Name
		session = string(tab.SessionID)
		engine = tab.Engine
		model = tab.Model
	}
	if strings.TrimSpace(projectLabel) == "" {
		projectLabel = "(unknown)"
	}
	if strings.TrimSpace(session) == "" {
		session = "(new)"
	}
	modelLabel := string(model)
	if strings.TrimSpace(modelLabel) == "" {
		modelLabel = "(default)"
	}

	lines := []string{
		schema.WorkedForMarker + fmt.Sprintf("%s Starting %s exec", now.Format("15:04:05"), engine),
	}
	lines = append(lines, formatLabeledLines("Project", []string{projectLabel}, labelWidth)...)
	lines = append(lines, formatLabeledLines("Branch", []string{info.Branch}, labelWidth)...)
	lines = append(lines, formatLabeledLines("Remote", info.Remotes, labelWidth)...)
	lines = append(lines, formatLabeledLines("Git status", info.StatusLines, labelWidth)...)
	lines = append(lines, formatLabeledLines("Engine", []string{string(engine)}, labelWidth)...)
	lines = append(lines, formatLabeledLines("Model", []string{modelLabel}, labelWidth)...)
	lines = append(lines, formatLabeledLines("Session", []string{session}, labelWidth)...)
	return lines
}

func maxLabelWidth(labels []string) int {
	max := 0
	for _, label := range labels {
		if label == "" {
			continue
		}
		width := len(label) + 1
		if width > max {
			max = width
		}
	}
	return max
}

func formatLabeledLines(label string, values []string, labelWidth int) []string {
	if labelWidth <= 0 {
		labelWidth = len(label) + 1
	}
	if len(values) == 0 {
		values = []string{"(unknown)"}
	}
	lines := make([]string, 0, len(values))
	prefix := fmt.Sprintf("%-*s ", labelWidth, label+":")
	indent := strings.Repeat(" ", len(prefix))
	for i, value := range values {
		if strings.TrimSpace(value) == "" {
			value = "(unknown)"
		}
		if i == 0 {
			lines = append(lines, prefix+value)
		} else {
			lines = append(lines, indent+value)
		}
	}
	return lines
}
