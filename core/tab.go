package core

import (
	"context"

	"pkt.systems/chimerax/schema"
)

// tab tracks the state of a single session tab.
type tab struct {
	ID        schema.TabID
	Title     schema.TabTitle
	Project   schema.ProjectRef
	Engine    schema.EngineID
	Model     schema.ModelID
	SessionID schema.SessionID
	State     schema.TabState
	LastUsage *schema.TurnUsage
	unsaved   bool
	buffer    *buffer
	history   *historyBuffer
	Run       RunHandle
	RunCancel context.CancelFunc
}

// Snapshot returns a transport-friendly view of the tab.
func (t *tab) Snapshot(order int, active bool) schema.TabSnapshot {
	return schema.TabSnapshot{
		ID:                t.ID,
		Title:             t.Title,
		Project:           t.Project,
		Engine:            t.Engine,
		Model:             t.Model,
		SessionID:         t.SessionID,
		State:             t.State,
		HasUnsavedChanges: t.unsaved,
		Order:             order,
		Active:            active,
	}
}
