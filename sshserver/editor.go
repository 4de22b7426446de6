package sshserver

import (
	"bufio"
	"io"
	"slices"
	"unicode"
	"unicode/utf8"
)

type keyKind int

const (
	keyRune keyKind = iota
	keyEnter
	keyBackspace
	keyDelete
	keyLeft
	keyRight
	keyHome
	keyEnd
	keyPageUp
	keyPageDown
	keyCtrlA
	keyCtrlE
	keyCtrlW
	keyCtrlD
	keyCtrlC
	keyTab
	keyShiftTab
	keyAltB
	keyAltF
	keyUp
	keyDown
	keyCtrlJ
	keyCtrlU
	keyCtrlK
)

type key struct {
	kind keyKind
	r    rune
}

// ctrlKeys maps single control bytes to keys. CR and ESC need stateful
// handling and stay out of the table.
var ctrlKeys = map[byte]keyKind{
	'\n': keyCtrlJ,
	0x7f: keyBackspace,
	0x08: keyBackspace,
	0x01: keyCtrlA,
	0x03: keyCtrlC,
	0x04: keyCtrlD,
	0x05: keyCtrlE,
	0x09: keyTab,
	0x0b: keyCtrlK,
	0x15: keyCtrlU,
	0x17: keyCtrlW,
}

// csiKeys maps CSI sequence bodies (everything after ESC [) to keys.
var csiKeys = map[string]keyKind{
	"A":    keyUp,
	"B":    keyDown,
	"C":    keyRight,
	"D":    keyLeft,
	"H":    keyHome,
	"F":    keyEnd,
	"5~":   keyPageUp,
	"6~":   keyPageDown,
	"3~":   keyDelete,
	"Z":    keyShiftTab,
	"1;2Z": keyShiftTab,
}

// readKeys decodes terminal input into key events until the reader
// fails, then closes out. A CR LF pair counts as a single enter.
func readKeys(r io.Reader, out chan<- key) {
	defer close(out)
	br := bufio.NewReader(r)
	swallowLF := false
	for {
		b, err := br.ReadByte()
		if err != nil {
			return
		}
		if swallowLF {
			swallowLF = false
			if b == '\n' {
				continue
			}
		}
		switch b {
		case 0x1b:
			readEscape(br, out)
			continue
		case '\r':
			out <- key{kind: keyEnter}
			swallowLF = true
			continue
		}
		if kind, ok := ctrlKeys[b]; ok {
			out <- key{kind: kind}
			continue
		}
		if b < utf8.RuneSelf {
			out <- key{kind: keyRune, r: rune(b)}
			continue
		}
		_ = br.UnreadByte()
		rn, _, err := br.ReadRune()
		if err != nil {
			return
		}
		out <- key{kind: keyRune, r: rn}
	}
}

func readEscape(br *bufio.Reader, out chan<- key) {
	b, err := br.ReadByte()
	if err != nil {
		return
	}
	switch b {
	case '[':
		readCSI(br, out)
	case 'O':
		readSS3(br, out)
	case 'b', 'B':
		out <- key{kind: keyAltB}
	case 'f', 'F':
		out <- key{kind: keyAltF}
	}
}

func readCSI(br *bufio.Reader, out chan<- key) {
	var seq []byte
	for {
		b, err := br.ReadByte()
		if err != nil {
			return
		}
		seq = append(seq, b)
		if b == '~' || unicode.IsLetter(rune(b)) {
			break
		}
		if len(seq) > 8 {
			return
		}
	}
	if kind, ok := csiKeys[string(seq)]; ok {
		out <- key{kind: kind}
	}
}

func readSS3(br *bufio.Reader, out chan<- key) {
	b, err := br.ReadByte()
	if err != nil {
		return
	}
	switch b {
	case 'H':
		out <- key{kind: keyHome}
	case 'F':
		out <- key{kind: keyEnd}
	}
}

// lineEditor is a multi-line rune buffer with a cursor. Lines are
// separated by embedded newlines; motion commands treat them the way
// a shell editor would.
type lineEditor struct {
	buf    []rune
	cursor int
}

func (e *lineEditor) String() string {
	return string(e.buf)
}

func (e *lineEditor) Len() int {
	return len(e.buf)
}

func (e *lineEditor) Clear() {
	e.buf = nil
	e.cursor = 0
}

func (e *lineEditor) SetString(value string) {
	if value == "" {
		e.Clear()
		return
	}
	e.buf = []rune(value)
	e.cursor = len(e.buf)
}

func (e *lineEditor) InsertRune(r rune) {
	if e.cursor < 0 {
		e.cursor = 0
	}
	if e.cursor > len(e.buf) {
		e.cursor = len(e.buf)
	}
	e.buf = slices.Insert(e.buf, e.cursor, r)
	e.cursor++
}

func (e *lineEditor) Backspace() {
	if e.cursor <= 0 {
		return
	}
	e.buf = slices.Delete(e.buf, e.cursor-1, e.cursor)
	e.cursor--
}

func (e *lineEditor) Delete() {
	if e.cursor < 0 || e.cursor >= len(e.buf) {
		return
	}
	e.buf = slices.Delete(e.buf, e.cursor, e.cursor+1)
}

func (e *lineEditor) MoveLeft() {
	if e.cursor > 0 {
		e.cursor--
	}
}

func (e *lineEditor) MoveRight() {
	if e.cursor < len(e.buf) {
		e.cursor++
	}
}

func (e *lineEditor) MoveStart() {
	e.cursor = 0
}

func (e *lineEditor) MoveEnd() {
	e.cursor = len(e.buf)
}

func (e *lineEditor) MoveWordLeft() {
	e.cursor = prevWordBoundary(e.buf, e.cursor)
}

func (e *lineEditor) MoveWordRight() {
	e.cursor = nextWordBoundary(e.buf, e.cursor)
}

func (e *lineEditor) DeleteWordBackward() {
	start := prevWordBoundary(e.buf, e.cursor)
	if start == e.cursor {
		return
	}
	e.buf = slices.Delete(e.buf, start, e.cursor)
	e.cursor = start
}

func (e *lineEditor) MoveUp() {
	start, _ := lineSpan(e.buf, e.cursor)
	if start == 0 {
		return
	}
	col := e.cursor - start
	prevStart, prevEnd := lineSpan(e.buf, start-1)
	if col > prevEnd-prevStart {
		col = prevEnd - prevStart
	}
	e.cursor = prevStart + col
}

func (e *lineEditor) MoveDown() {
	start, end := lineSpan(e.buf, e.cursor)
	if end >= len(e.buf) {
		return
	}
	col := e.cursor - start
	nextStart, nextEnd := lineSpan(e.buf, end+1)
	if col > nextEnd-nextStart {
		col = nextEnd - nextStart
	}
	e.cursor = nextStart + col
}

func (e *lineEditor) KillLineStart() {
	start, _ := lineSpan(e.buf, e.cursor)
	if start >= e.cursor {
		return
	}
	e.buf = slices.Delete(e.buf, start, e.cursor)
	e.cursor = start
}

func (e *lineEditor) KillLineEnd() {
	_, end := lineSpan(e.buf, e.cursor)
	if end <= e.cursor {
		return
	}
	e.buf = slices.Delete(e.buf, e.cursor, end)
}

// lineSpan returns the bounds of the line containing pos: start is the
// index after the preceding newline, end is the index of the next
// newline or the end of the buffer.
func lineSpan(buf []rune, pos int) (int, int) {
	start := 0
	for i := pos - 1; i >= 0; i-- {
		if buf[i] == '\n' {
			start = i + 1
			break
		}
	}
	end := len(buf)
	for i := pos; i < len(buf); i++ {
		if buf[i] == '\n' {
			end = i
			break
		}
	}
	return start, end
}

// prevWordBoundary skips trailing spaces, then the word before from.
func prevWordBoundary(buf []rune, from int) int {
	i := from
	for i > 0 && isEditorSpace(buf[i-1]) {
		i--
	}
	for i > 0 && !isEditorSpace(buf[i-1]) {
		i--
	}
	return i
}

func nextWordBoundary(buf []rune, from int) int {
	i := from
	for i < len(buf) && isEditorSpace(buf[i]) {
		i++
	}
	for i < len(buf) && !isEditorSpace(buf[i]) {
		i++
	}
	return i
}

func isEditorSpace(r rune) bool {
	return r == ' ' || r == '\t'
}
