package core

import "pkt.systems/chimerax/schema"

const defaultMaxLines = schema.DefaultBufferMaxLines

// bufferView is a snapshot of a buffer's visible state.
type bufferView struct {
	Lines        []string
	TotalLines   int
	ScrollOffset int
	AtBottom     bool
}

// buffer stores scrollback lines and scroll state. scrollOffset counts
// lines up from the bottom; 0 means the view is pinned to new output.
type buffer struct {
	lines        []string
	scrollOffset int
	maxLines     int
}

// persistedBuffer captures buffer lines and scroll offset for persistence.
type persistedBuffer struct {
	Lines        []string
	ScrollOffset int
}

// newBuffer returns a buffer with default limits applied.
func newBuffer() *buffer {
	return &buffer{maxLines: defaultMaxLines}
}

func newBufferWithMaxLines(maxLines int) *buffer {
	buf := newBuffer()
	if maxLines > 0 {
		buf.maxLines = maxLines
	}
	return buf
}

// newBufferFromPersistedWithMaxLines constructs a buffer from persisted
// data, clipping lines and offset to the configured limit.
func newBufferFromPersistedWithMaxLines(state persistedBuffer, maxLines int) *buffer {
	b := newBufferWithMaxLines(maxLines)
	b.lines = append([]string(nil), state.Lines...)
	if b.maxLines > 0 && len(b.lines) > b.maxLines {
		b.lines = b.lines[len(b.lines)-b.maxLines:]
	}
	b.scrollOffset = clampToTotal(state.ScrollOffset, len(b.lines))
	return b
}

func (b *buffer) limit() int {
	if b.maxLines > 0 {
		return b.maxLines
	}
	return defaultMaxLines
}

// Append adds lines to the buffer. A scrolled-up view keeps its anchor:
// the offset grows with the new lines so the visible content stays put.
func (b *buffer) Append(lines ...string) {
	if len(lines) == 0 {
		return
	}
	b.lines = append(b.lines, lines...)
	if b.scrollOffset > 0 {
		b.scrollOffset += len(lines)
	}
	if max := b.limit(); len(b.lines) > max {
		b.lines = b.lines[len(b.lines)-max:]
		b.scrollOffset = clampToTotal(b.scrollOffset, len(b.lines))
	}
}

// ResetScroll returns the view to the bottom.
func (b *buffer) ResetScroll() {
	b.scrollOffset = 0
}

// Scroll adjusts the scroll offset by delta. Positive delta scrolls up
// toward older lines. Limit is the viewport height.
func (b *buffer) Scroll(delta, limit int) {
	offset := b.scrollOffset + delta
	if offset < 0 {
		offset = 0
	}
	if max := maxScrollOffset(len(b.lines), limit); offset > max {
		offset = max
	}
	b.scrollOffset = offset
}

// Snapshot returns the window of lines visible for the given viewport
// limit, clamping a stale offset along the way.
func (b *buffer) Snapshot(limit int) bufferView {
	total := len(b.lines)
	if limit <= 0 || limit > total {
		limit = total
	}
	if max := maxScrollOffset(total, limit); b.scrollOffset > max {
		b.scrollOffset = max
	}

	end := total - b.scrollOffset
	if end < 0 {
		end = 0
	}
	start := end - limit
	if start < 0 {
		start = 0
	}

	lines := make([]string, end-start)
	copy(lines, b.lines[start:end])
	return bufferView{
		Lines:        lines,
		TotalLines:   total,
		ScrollOffset: b.scrollOffset,
		AtBottom:     b.scrollOffset == 0,
	}
}

// Export returns the buffer state for persistence.
func (b *buffer) Export() persistedBuffer {
	if b == nil {
		return persistedBuffer{}
	}
	return persistedBuffer{
		Lines:        append([]string(nil), b.lines...),
		ScrollOffset: clampToTotal(b.scrollOffset, len(b.lines)),
	}
}

// maxScrollOffset is how far up the view can go before the first line
// reaches the bottom of the viewport.
func maxScrollOffset(total, limit int) int {
	if limit <= 0 || total <= limit {
		return 0
	}
	return total - limit
}

func clampToTotal(offset, total int) int {
	if offset < 0 {
		return 0
	}
	if offset > total {
		return total
	}
	return offset
}
