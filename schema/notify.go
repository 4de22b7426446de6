package schema

// OutputEvent represents appended output lines for a tab.
type OutputEvent struct {
	UserID UserID
	TabID  TabID
	Lines  []string
}

// SystemOutputEvent represents output not tied to a tab.
type SystemOutputEvent struct {
	UserID UserID
	Lines  []string
}

// TabEventType describes tab lifecycle or state changes.
type TabEventType string

const (
	// TabEventCreated indicates a tab was created.
	TabEventCreated TabEventType = "created"
	// TabEventClosed indicates a tab was closed.
	TabEventClosed TabEventType = "closed"
	// TabEventActivated indicates a tab became active.
	TabEventActivated TabEventType = "activated"
	// TabEventReordered indicates the tab order changed.
	TabEventReordered TabEventType = "reordered"
	// TabEventDetached indicates a tab moved into its own window.
	TabEventDetached TabEventType = "detached"
	// TabEventUpdated indicates a tab was updated.
	TabEventUpdated TabEventType = "updated"
	// TabEventStatus indicates a tab state change.
	TabEventStatus TabEventType = "status"
)

// TabEvent represents a change to a tab or the tab list. Background tabs
// receive these regardless of visibility.
type TabEvent struct {
	UserID    UserID
	Type      TabEventType
	Tab       TabSnapshot
	ActiveTab TabID
	Window    WindowLabel
	Theme     ThemeName
}

// WindowEventType describes detached window lifecycle changes.
type WindowEventType string

const (
	// WindowEventOpened indicates a window was opened.
	WindowEventOpened WindowEventType = "opened"
	// WindowEventClosed indicates a window was closed.
	WindowEventClosed WindowEventType = "closed"
)

// WindowEvent represents a detached window lifecycle change.
type WindowEvent struct {
	UserID UserID
	Type   WindowEventType
	Window WindowSnapshot
}
