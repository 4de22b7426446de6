package schema

import "errors"

var (
	// ErrInvalidRequest indicates a malformed request payload.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidUser indicates an invalid user identifier.
	ErrInvalidUser = errors.New("invalid user")
	// ErrInvalidEngine indicates an unsupported engine identifier.
	ErrInvalidEngine = errors.New("invalid engine")
	// ErrInvalidModel indicates an invalid model identifier.
	ErrInvalidModel = errors.New("invalid model")
	// ErrInvalidProject indicates an invalid project path.
	ErrInvalidProject = errors.New("invalid project path")
	// ErrProjectNotFound indicates the project directory does not exist.
	ErrProjectNotFound = errors.New("project not found")
	// ErrProjectExists indicates a project directory already exists.
	ErrProjectExists = errors.New("project already exists")
	// ErrTabNotFound indicates a requested tab could not be found. Store
	// operations treat it as a stale reference: logged, never fatal.
	ErrTabNotFound = errors.New("tab not found")
	// ErrNoTabs indicates no tabs exist for the workspace.
	ErrNoTabs = errors.New("no tabs")
	// ErrInvalidReorder indicates out-of-range reorder indices.
	ErrInvalidReorder = errors.New("invalid reorder index")
	// ErrDetachFailed indicates the window manager could not open a window.
	// The originating tab remains in the store; the operation is retryable.
	ErrDetachFailed = errors.New("window detachment failed")
	// ErrWindowNotFound indicates an unknown window label.
	ErrWindowNotFound = errors.New("window not found")
	// ErrTabBusy indicates the tab is already streaming.
	ErrTabBusy = errors.New("tab is busy")
	// ErrEmptyPrompt indicates the prompt was empty.
	ErrEmptyPrompt = errors.New("empty prompt")
	// ErrEngineUnavailable indicates no runner is configured for the engine.
	ErrEngineUnavailable = errors.New("engine not available")
)
