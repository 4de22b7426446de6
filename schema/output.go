package schema

// Buffer lines carry a one-byte style marker prefix so renderers can
// classify a line without re-parsing its content. Markers sit in the C0
// control range and never appear in engine output.
const (
	// StderrMarker tags lines captured from an engine's stderr.
	StderrMarker = "\x1f"
	// AgentMarker tags agent message lines; markdown applies.
	AgentMarker = "\x1c"
	// ReasoningMarker tags reasoning lines; markdown applies.
	ReasoningMarker = "\x1d"
	// CommandMarker tags command execution output; rendered verbatim.
	CommandMarker = "\x1a"
	// WorkedForMarker tags the elapsed-time separator after a turn.
	WorkedForMarker = "\x1e"
	// HelpMarker tags /help lines; markdown applies.
	HelpMarker = "\x16"

	// AboutVersionMarker, AboutCopyrightMarker and AboutLinkMarker tag the
	// three styled lines of /version output.
	AboutVersionMarker   = "\x17"
	AboutCopyrightMarker = "\x18"
	AboutLinkMarker      = "\x19"
)
