package core

import (
	"context"

	"pkt.systems/chimerax/schema"
)

// OpenWindowRequest asks the window manager to open a top-level window for a
// session. The label in the returned snapshot is allocated by the manager.
type OpenWindowRequest struct {
	UserID    schema.UserID
	Title     schema.TabTitle
	Project   schema.ProjectRef
	Engine    schema.EngineID
	SessionID schema.SessionID
}

// CloseWindowRequest asks the window manager to dispose a window.
type CloseWindowRequest struct {
	UserID schema.UserID
	Label  schema.WindowLabel
}

// WindowManager opens and disposes detached top-level windows. Open may fail;
// the caller keeps the originating tab intact and surfaces ErrDetachFailed.
type WindowManager interface {
	OpenWindow(ctx context.Context, req OpenWindowRequest) (schema.WindowSnapshot, error)
	CloseWindow(ctx context.Context, req CloseWindowRequest) (schema.WindowSnapshot, error)
}
