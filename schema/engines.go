package schema

import "strings"

const (
	// EngineClaude is the primary engine backed by the claude CLI.
	EngineClaude EngineID = "claude"
	// EngineCodex is backed by the codex CLI.
	EngineCodex EngineID = "codex"
	// EngineGemini is backed by the gemini CLI.
	EngineGemini EngineID = "gemini"
)

// DefaultEngine is used when a tab does not specify one.
const DefaultEngine = EngineClaude

var engineIDs = []EngineID{EngineClaude, EngineCodex, EngineGemini}

// AvailableEngines returns the supported engine identifiers.
func AvailableEngines() []EngineID {
	out := make([]EngineID, len(engineIDs))
	copy(out, engineIDs)
	return out
}

// NormalizeEngineID validates and normalizes an engine identifier.
func NormalizeEngineID(engine string) (EngineID, error) {
	trimmed := strings.ToLower(strings.TrimSpace(engine))
	switch EngineID(trimmed) {
	case EngineClaude, EngineCodex, EngineGemini:
		return EngineID(trimmed), nil
	default:
		return "", ErrInvalidEngine
	}
}
