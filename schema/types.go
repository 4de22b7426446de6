package schema

// UserID identifies a workspace owner in the system.
type UserID string

// TabID identifies a tab for the lifetime of the store. IDs are never
// reused, including across detach and restore.
type TabID string

// TabTitle is the user-facing label of a tab.
type TabTitle string

// SessionID identifies a backend CLI conversation.
type SessionID string

// EngineID identifies which AI CLI backend a tab targets.
type EngineID string

// ModelID identifies an LLM model.
type ModelID string

// ThemeName identifies a UI theme.
type ThemeName string

// WindowLabel is the opaque identifier of a detached top-level window.
type WindowLabel string

// ProjectRef identifies a project working directory bound to a tab.
type ProjectRef struct {
	Name string
	Path string
}
