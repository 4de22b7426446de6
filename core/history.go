package core

import "strings"

const defaultHistoryMax = 200

// historyBuffer is a bounded prompt history. The newest entry sits at the
// end; consecutive duplicates collapse.
type historyBuffer struct {
	entries []string
	max     int
}

func newHistory(max int) *historyBuffer {
	if max <= 0 {
		max = defaultHistoryMax
	}
	return &historyBuffer{max: max}
}

func newHistoryFromPersisted(entries []string) *historyBuffer {
	h := newHistory(defaultHistoryMax)
	h.entries = clampTail(entries, h.max)
	return h
}

// Append records an entry. Blank entries and repeats of the latest entry
// are dropped; the return value reports whether anything changed.
func (h *historyBuffer) Append(entry string) bool {
	if h == nil || strings.TrimSpace(entry) == "" {
		return false
	}
	if n := len(h.entries); n > 0 && h.entries[n-1] == entry {
		return false
	}
	h.entries = clampTail(append(h.entries, entry), h.max)
	return true
}

func (h *historyBuffer) Entries() []string {
	if h == nil {
		return nil
	}
	return append([]string(nil), h.entries...)
}

// clampTail keeps the newest max entries, copying when the source came
// from outside the buffer.
func clampTail(entries []string, max int) []string {
	if len(entries) == 0 {
		return nil
	}
	if len(entries) > max {
		entries = entries[len(entries)-max:]
	}
	return append([]string(nil), entries...)
}
