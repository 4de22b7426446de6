// Package logx binds workbench identifiers to loggers and contexts.
// User and tab markers travel on the context so nested call sites can
// skip re-attaching fields the logger already carries.
package logx

import (
	"context"

	"pkt.systems/chimerax/schema"
	"pkt.systems/pslog"
)

type contextKey int

const (
	userKey contextKey = iota
	tabKey
)

// marked reports whether the context already carries value under key.
func marked[T ~string](ctx context.Context, key contextKey, value T) bool {
	current, ok := ctx.Value(key).(T)
	return ok && current == value
}

func withField[T ~string](log pslog.Logger, key string, value T) pslog.Logger {
	if value == "" {
		return log
	}
	return log.With(key, value)
}

// WithUser returns the context logger annotated with the user id,
// unless the context marks that id as already attached.
func WithUser(ctx context.Context, userID schema.UserID) pslog.Logger {
	log := pslog.Ctx(ctx)
	if userID == "" || marked(ctx, userKey, userID) {
		return log
	}
	return log.With("user", userID)
}

// WithUserTab returns the context logger annotated with user and tab
// identifiers, skipping markers the context already carries.
func WithUserTab(ctx context.Context, userID schema.UserID, tabID schema.TabID) pslog.Logger {
	log := WithUser(ctx, userID)
	if tabID == "" || marked(ctx, tabKey, tabID) {
		return log
	}
	return log.With("tab", tabID)
}

// WithProject annotates the logger with project metadata when present.
func WithProject(log pslog.Logger, project schema.ProjectRef) pslog.Logger {
	log = withField(log, "project", project.Name)
	return withField(log, "project_path", project.Path)
}

// WithEngine annotates the logger with an engine id when present.
func WithEngine(log pslog.Logger, engine schema.EngineID) pslog.Logger {
	return withField(log, "engine", engine)
}

// WithSession annotates the logger with a session id when present.
func WithSession(log pslog.Logger, sessionID schema.SessionID) pslog.Logger {
	return withField(log, "session", sessionID)
}

// WithWindow annotates the logger with a window label when present.
func WithWindow(log pslog.Logger, label schema.WindowLabel) pslog.Logger {
	return withField(log, "window", label)
}

// ContextWithUser marks the user id as attached on the context.
func ContextWithUser(ctx context.Context, userID schema.UserID) context.Context {
	if ctx == nil || userID == "" {
		return ctx
	}
	return context.WithValue(ctx, userKey, userID)
}

// ContextWithTab marks the tab id as attached on the context.
func ContextWithTab(ctx context.Context, tabID schema.TabID) context.Context {
	if ctx == nil || tabID == "" {
		return ctx
	}
	return context.WithValue(ctx, tabKey, tabID)
}

// ContextWithUserTab marks both user and tab ids on the context.
func ContextWithUserTab(ctx context.Context, userID schema.UserID, tabID schema.TabID) context.Context {
	return ContextWithTab(ContextWithUser(ctx, userID), tabID)
}

// ContextWithUserLogger attaches the logger and the user marker.
func ContextWithUserLogger(ctx context.Context, log pslog.Logger, userID schema.UserID) context.Context {
	return ContextWithUser(pslog.ContextWithLogger(ctx, log), userID)
}

// ContextWithUserTabLogger attaches the logger and both markers.
func ContextWithUserTabLogger(ctx context.Context, log pslog.Logger, userID schema.UserID, tabID schema.TabID) context.Context {
	return ContextWithUserTab(pslog.ContextWithLogger(ctx, log), userID, tabID)
}

// CopyContextFields carries user/tab markers from src over to dst.
// Used when work continues on a detached context after the session
// context is gone.
func CopyContextFields(dst context.Context, src context.Context) context.Context {
	if src == nil {
		return dst
	}
	if user, ok := src.Value(userKey).(schema.UserID); ok {
		dst = ContextWithUser(dst, user)
	}
	if tab, ok := src.Value(tabKey).(schema.TabID); ok {
		dst = ContextWithTab(dst, tab)
	}
	return dst
}
