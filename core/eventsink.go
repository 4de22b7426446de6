package core

import "pkt.systems/chimerax/schema"

// EventSink receives tab, window, and output events from the core service.
type EventSink interface {
	OnOutput(event schema.OutputEvent)
	OnSystemOutput(event schema.SystemOutputEvent)
	OnTabEvent(event schema.TabEvent)
	OnWindowEvent(event schema.WindowEvent)
}
