package core

import "pkt.systems/chimerax/schema"

// reorderIDs moves the id at position from to position to and returns a new
// slice; the input is never mutated. Out-of-range indices are rejected with
// ErrInvalidReorder. from == to returns a copy of the input unchanged.
func reorderIDs(order []schema.TabID, from, to int) ([]schema.TabID, error) {
	if from < 0 || from >= len(order) || to < 0 || to >= len(order) {
		return nil, schema.ErrInvalidReorder
	}
	out := append([]schema.TabID(nil), order...)
	if from == to {
		return out, nil
	}
	moved := out[from]
	out = append(out[:from], out[from+1:]...)
	rest := append([]schema.TabID(nil), out[to:]...)
	out = append(append(out[:to], moved), rest...)
	return out, nil
}
