package schema

// TabState describes the execution state of a tab.
type TabState string

const (
	// TabStateIdle indicates the tab has no in-flight backend activity.
	TabStateIdle TabState = "idle"
	// TabStateStreaming indicates the backend is streaming output.
	TabStateStreaming TabState = "streaming"
	// TabStateClosing indicates an in-flight close or detach; the state is
	// terminal once the tab leaves the store.
	TabStateClosing TabState = "closing"
)

// TabSnapshot is a read-only view of tab state for transports.
type TabSnapshot struct {
	ID                TabID
	Title             TabTitle
	Project           ProjectRef
	Engine            EngineID
	Model             ModelID
	SessionID         SessionID
	State             TabState
	HasUnsavedChanges bool
	Order             int
	Active            bool
}

// WindowSnapshot is a read-only view of a detached window.
type WindowSnapshot struct {
	Label     WindowLabel
	Title     TabTitle
	Project   ProjectRef
	Engine    EngineID
	SessionID SessionID
}

// BufferSnapshot represents the current scrollback view of a tab.
type BufferSnapshot struct {
	TabID        TabID
	Lines        []string
	TotalLines   int
	ScrollOffset int
	AtBottom     bool
}

// SystemBufferSnapshot represents output not tied to a tab.
type SystemBufferSnapshot struct {
	Lines        []string
	TotalLines   int
	ScrollOffset int
	AtBottom     bool
}
