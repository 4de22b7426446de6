package sshserver

import (
	"strings"
	"testing"
)

func decodeKeys(t *testing.T, input string) []key {
	t.Helper()
	ch := make(chan key, 16)
	go readKeys(strings.NewReader(input), ch)
	var keys []key
	for k := range ch {
		keys = append(keys, k)
	}
	return keys
}

func TestReadKeysDecodesSequences(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  []keyKind
	}{
		{"shift tab", "\x1b[Z", []keyKind{keyShiftTab}},
		{"arrows", "\x1b[A\x1b[B\x1b[C\x1b[D", []keyKind{keyUp, keyDown, keyRight, keyLeft}},
		{"page keys", "\x1b[5~\x1b[6~", []keyKind{keyPageUp, keyPageDown}},
		{"ss3 home end", "\x1bOH\x1bOF", []keyKind{keyHome, keyEnd}},
		{"alt word motion", "\x1bb\x1bf", []keyKind{keyAltB, keyAltF}},
		{"crlf is one enter", "\r\n", []keyKind{keyEnter}},
		{"bare lf is ctrl-j", "\n", []keyKind{keyCtrlJ}},
		{"control chars", "\x01\x05\x17", []keyKind{keyCtrlA, keyCtrlE, keyCtrlW}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			keys := decodeKeys(t, tc.input)
			if len(keys) != len(tc.want) {
				t.Fatalf("decoded %d keys, want %d: %v", len(keys), len(tc.want), keys)
			}
			for i, k := range keys {
				if k.kind != tc.want[i] {
					t.Fatalf("key %d = %v, want %v", i, k.kind, tc.want[i])
				}
			}
		})
	}
}

func TestReadKeysUTF8Runes(t *testing.T) {
	keys := decodeKeys(t, "aå")
	if len(keys) != 2 {
		t.Fatalf("decoded %d keys, want 2", len(keys))
	}
	if keys[0].r != 'a' || keys[1].r != 'å' {
		t.Fatalf("runes = %q %q, want a å", keys[0].r, keys[1].r)
	}
}

func TestLineEditorWordMotion(t *testing.T) {
	var e lineEditor
	e.SetString("alpha beta")
	e.MoveWordLeft()
	if e.cursor != 6 {
		t.Fatalf("cursor = %d, want 6 (start of beta)", e.cursor)
	}
	e.MoveWordLeft()
	if e.cursor != 0 {
		t.Fatalf("cursor = %d, want 0", e.cursor)
	}
	e.MoveWordRight()
	if e.cursor != 5 {
		t.Fatalf("cursor = %d, want 5 (end of alpha)", e.cursor)
	}
	e.MoveEnd()
	e.DeleteWordBackward()
	if got := e.String(); got != "alpha " {
		t.Fatalf("buffer = %q, want %q", got, "alpha ")
	}
}

func TestLineEditorInsertAndDelete(t *testing.T) {
	var e lineEditor
	for _, r := range "abd" {
		e.InsertRune(r)
	}
	e.MoveLeft()
	e.InsertRune('c')
	if got := e.String(); got != "abcd" {
		t.Fatalf("buffer = %q, want abcd", got)
	}
	e.Backspace()
	e.Delete()
	if got := e.String(); got != "ab" {
		t.Fatalf("buffer = %q, want ab", got)
	}
}

func TestLineEditorVerticalMotionKeepsColumn(t *testing.T) {
	var e lineEditor
	e.SetString("first line\nxy\nthird line")
	// cursor sits at the end of the third line
	e.MoveUp()
	if e.cursor != 13 {
		t.Fatalf("cursor = %d, want 13 (end of short line)", e.cursor)
	}
	e.MoveUp()
	if got := e.cursor; got != 2 {
		t.Fatalf("cursor = %d, want 2 (column restored on long line)", got)
	}
	e.MoveDown()
	e.MoveDown()
	if lineStart, _ := lineSpan(e.buf, e.cursor); lineStart != 14 {
		t.Fatalf("cursor landed on line starting at %d, want 14", lineStart)
	}
}

func TestLineEditorKillCommands(t *testing.T) {
	var e lineEditor
	e.SetString("one two three")
	e.MoveStart()
	e.MoveWordRight()
	e.KillLineEnd()
	if got := e.String(); got != "one" {
		t.Fatalf("after kill to end: %q, want one", got)
	}
	e.MoveEnd()
	e.KillLineStart()
	if e.Len() != 0 || e.cursor != 0 {
		t.Fatalf("after kill to start: %q cursor %d", e.String(), e.cursor)
	}
}
