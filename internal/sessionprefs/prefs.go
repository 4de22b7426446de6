// Package sessionprefs carries per-connection presentation settings.
package sessionprefs

import "context"

// Prefs captures per-connection presentation preferences. Workspace
// state, including the active tab, lives in the core service instead.
type Prefs struct {
	FullCommandOutput bool
	RenderMarkdown    bool
}

type prefsKey struct{}

// New returns Prefs with defaults applied.
func New() *Prefs {
	return &Prefs{RenderMarkdown: true}
}

// WithContext stores prefs in the context.
func WithContext(ctx context.Context, prefs *Prefs) context.Context {
	if ctx == nil || prefs == nil {
		return ctx
	}
	return context.WithValue(ctx, prefsKey{}, prefs)
}

// FromContext returns the prefs stored in the context, or nil.
func FromContext(ctx context.Context) *Prefs {
	if ctx == nil {
		return nil
	}
	prefs, _ := ctx.Value(prefsKey{}).(*Prefs)
	return prefs
}
