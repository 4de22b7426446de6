package sshserver

import (
	"fmt"
	"io"
	"strings"
)

// screen paints full frames on the client's alternate screen buffer. Every
// Render clears and redraws; no diffing.
type screen struct {
	out io.Writer
}

func newScreen(out io.Writer) *screen {
	return &screen{out: out}
}

func (s *screen) EnterAltScreen() {
	_, _ = io.WriteString(s.out, "\x1b[?1049h\x1b[H\x1b[2J")
}

func (s *screen) ExitAltScreen() {
	_, _ = io.WriteString(s.out, "\x1b[?1049l\x1b[?25h")
}

func (s *screen) Render(lines []string, cursorRow, cursorCol int) error {
	if cursorRow < 1 {
		cursorRow = 1
	}
	if cursorCol < 1 {
		cursorCol = 1
	}
	var frame strings.Builder
	frame.WriteString("\x1b[?25l\x1b[H\x1b[2J")
	for i, line := range lines {
		if i > 0 {
			frame.WriteString("\r\n")
		}
		frame.WriteString(line)
	}
	// Park the cursor and reveal it only after the frame is complete.
	fmt.Fprintf(&frame, "\x1b[%d;%dH\x1b[?25h", cursorRow, cursorCol)
	_, err := io.WriteString(s.out, frame.String())
	return err
}
