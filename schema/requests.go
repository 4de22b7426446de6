package schema

// Tab lifecycle.

// CreateTabRequest describes a request to create a tab. Session, project
// path, and title are all optional; with neither session nor project path
// the tab is created in the empty state for later binding.
type CreateTabRequest struct {
	UserID      UserID
	ProjectPath string
	SessionID   SessionID
	Engine      EngineID
	Title       TabTitle
}

// CreateTabResponse reports the created tab.
type CreateTabResponse struct {
	Tab TabSnapshot
}

// CloseTabRequest describes a request to close a tab. Force bypasses the
// unsaved-changes confirmation step.
type CloseTabRequest struct {
	UserID UserID
	TabID  TabID
	Force  bool
}

// CloseTabResponse reports the outcome of a close request. Exactly one of
// Closed or NeedsConfirmation is true; NeedsConfirmation means no state was
// mutated and the caller should prompt, then repeat with Force.
type CloseTabResponse struct {
	Closed            bool
	NeedsConfirmation bool
	Tab               TabSnapshot
}

// ListTabsRequest describes a request to list tabs.
type ListTabsRequest struct {
	UserID UserID
}

// ListTabsResponse reports tabs in order plus the active pointer.
type ListTabsResponse struct {
	Tabs      []TabSnapshot
	ActiveTab TabID
	Windows   []WindowSnapshot
	Theme     ThemeName
}

// ActivateTabRequest describes a request to activate a tab.
type ActivateTabRequest struct {
	UserID UserID
	TabID  TabID
}

// ActivateTabResponse reports the activated tab snapshot.
type ActivateTabResponse struct {
	Tab TabSnapshot
}

// ReorderTabsRequest moves the tab at From to position To.
type ReorderTabsRequest struct {
	UserID UserID
	From   int
	To     int
}

// ReorderTabsResponse reports the new ordering.
type ReorderTabsResponse struct {
	Tabs []TabSnapshot
}

// UpdateStreamingRequest reports backend streaming activity for a tab.
// SessionID, when set, lazily binds a session resolved by the backend.
type UpdateStreamingRequest struct {
	UserID    UserID
	TabID     TabID
	Streaming bool
	SessionID SessionID
}

// UpdateStreamingResponse reports the updated tab snapshot.
type UpdateStreamingResponse struct {
	Tab TabSnapshot
}

// Window detachment.

// DetachTabRequest moves a tab's presentation into its own window.
type DetachTabRequest struct {
	UserID UserID
	TabID  TabID
}

// DetachTabResponse reports the window label on success.
type DetachTabResponse struct {
	Window WindowLabel
}

// CreateWindowRequest creates a session binding directly in a new window,
// without inserting a local tab.
type CreateWindowRequest struct {
	UserID      UserID
	ProjectPath string
	SessionID   SessionID
	Engine      EngineID
	Title       TabTitle
}

// CreateWindowResponse reports the window label on success.
type CreateWindowResponse struct {
	Window WindowLabel
}

// CloseWindowRequest disposes a detached window and its render surface.
// The backend session referenced by the window is left untouched.
type CloseWindowRequest struct {
	UserID UserID
	Window WindowLabel
}

// CloseWindowResponse reports the closed window snapshot.
type CloseWindowResponse struct {
	Window WindowSnapshot
}

// Prompt dispatch.

// SendPromptRequest describes a prompt submission.
type SendPromptRequest struct {
	UserID UserID
	TabID  TabID
	Prompt string
}

// SendPromptResponse reports prompt acceptance and tab state.
type SendPromptResponse struct {
	Tab      TabSnapshot
	Accepted bool
}

// StopSessionRequest describes a request to stop a streaming tab.
type StopSessionRequest struct {
	UserID UserID
	TabID  TabID
}

// StopSessionResponse reports the updated tab snapshot.
type StopSessionResponse struct {
	Tab TabSnapshot
}

// RenewSessionRequest resets a tab's backend session binding.
type RenewSessionRequest struct {
	UserID UserID
	TabID  TabID
}

// RenewSessionResponse reports the updated tab snapshot.
type RenewSessionResponse struct {
	Tab TabSnapshot
}

// Tab settings.

// SetEngineRequest switches the engine a tab targets.
type SetEngineRequest struct {
	UserID UserID
	TabID  TabID
	Engine EngineID
}

// SetEngineResponse reports the updated tab snapshot.
type SetEngineResponse struct {
	Tab TabSnapshot
}

// SetModelRequest describes a request to set the model for a tab.
type SetModelRequest struct {
	UserID UserID
	TabID  TabID
	Model  ModelID
}

// SetModelResponse reports the updated tab snapshot.
type SetModelResponse struct {
	Tab TabSnapshot
}

// SetProjectRequest rebinds a tab to a different project path.
type SetProjectRequest struct {
	UserID      UserID
	TabID       TabID
	ProjectPath string
}

// SetProjectResponse reports the updated tab snapshot.
type SetProjectResponse struct {
	Tab TabSnapshot
}

// ListProjectsRequest lists projects known to the workspace.
type ListProjectsRequest struct {
	UserID UserID
}

// ListProjectsResponse reports the known projects.
type ListProjectsResponse struct {
	Projects []ProjectRef
}

// CreateProjectRequest creates a fresh project directory.
type CreateProjectRequest struct {
	UserID UserID
	Name   string
}

// CreateProjectResponse reports the created project.
type CreateProjectResponse struct {
	Project ProjectRef
}

// SetThemeRequest describes a request to set the UI theme.
type SetThemeRequest struct {
	UserID UserID
	Theme  ThemeName
}

// SetThemeResponse reports the applied theme.
type SetThemeResponse struct {
	Theme ThemeName
}

// Buffer view and scrolling.

// GetBufferRequest describes a request to fetch buffer lines.
type GetBufferRequest struct {
	UserID UserID
	TabID  TabID
	Limit  int
}

// GetBufferResponse reports the buffer snapshot.
type GetBufferResponse struct {
	Buffer BufferSnapshot
}

// ScrollBufferRequest describes a request to scroll the buffer.
type ScrollBufferRequest struct {
	UserID UserID
	TabID  TabID
	Delta  int
	Limit  int
}

// ScrollBufferResponse reports the buffer snapshot after scrolling.
type ScrollBufferResponse struct {
	Buffer BufferSnapshot
}

// System output.

// AppendOutputRequest appends lines to a tab buffer.
type AppendOutputRequest struct {
	UserID UserID
	TabID  TabID
	Lines  []string
}

// AppendOutputResponse reports the updated tab snapshot.
type AppendOutputResponse struct {
	Tab TabSnapshot
}

// AppendSystemOutputRequest appends lines to the workspace system buffer.
type AppendSystemOutputRequest struct {
	UserID UserID
	Lines  []string
}

// AppendSystemOutputResponse reports completion of the append.
type AppendSystemOutputResponse struct{}

// GetSystemBufferRequest describes a request to fetch system buffer lines.
type GetSystemBufferRequest struct {
	UserID UserID
	Limit  int
}

// GetSystemBufferResponse reports the system buffer snapshot.
type GetSystemBufferResponse struct {
	Buffer SystemBufferSnapshot
}

// History.

// GetHistoryRequest describes a request to fetch prompt history.
type GetHistoryRequest struct {
	UserID UserID
	TabID  TabID
}

// GetHistoryResponse reports the prompt history.
type GetHistoryResponse struct {
	Entries []string
}

// AppendHistoryRequest describes a request to append a history entry.
type AppendHistoryRequest struct {
	UserID UserID
	TabID  TabID
	Entry  string
}

// AppendHistoryResponse reports the updated history.
type AppendHistoryResponse struct {
	Entries []string
}

// Usage.

// GetTabUsageRequest describes a request to fetch latest usage for a tab.
type GetTabUsageRequest struct {
	UserID UserID
	TabID  TabID
}

// GetTabUsageResponse reports the last observed usage for a tab.
type GetTabUsageResponse struct {
	Usage *TurnUsage
}
