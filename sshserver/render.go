package sshserver

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"pkt.systems/chimerax/internal/markdown"
	"pkt.systems/chimerax/schema"
)

// messageClass selects how a buffer line is styled. The class comes
// from the one-byte marker prefix the formatter writes, or from the
// line text itself for plain output.
type messageClass int

const (
	classPlain messageClass = iota
	classError
	classStderr
	classMeta
	classWorked
	classAgent
	classReasoning
	classCommand
	classHelp
	classAboutVersion
	classAboutCopyright
	classAboutLink
)

var markerClasses = []struct {
	marker string
	class  messageClass
}{
	{schema.WorkedForMarker, classWorked},
	{schema.AgentMarker, classAgent},
	{schema.ReasoningMarker, classReasoning},
	{schema.CommandMarker, classCommand},
	{schema.HelpMarker, classHelp},
	{schema.AboutVersionMarker, classAboutVersion},
	{schema.AboutCopyrightMarker, classAboutCopyright},
	{schema.AboutLinkMarker, classAboutLink},
}

// splitMarker strips the style marker from a buffer line and reports
// the class it selects. Stderr lines that read like command failures
// restyle as errors.
func splitMarker(raw string) (messageClass, string) {
	for _, mc := range markerClasses {
		if strings.HasPrefix(raw, mc.marker) {
			return mc.class, raw[len(mc.marker):]
		}
	}
	class := classPlain
	text := raw
	if strings.HasPrefix(text, schema.StderrMarker) {
		class = classStderr
		text = text[len(schema.StderrMarker):]
	}
	if strings.HasPrefix(text, "error:") ||
		strings.HasPrefix(text, "command failed:") ||
		strings.HasPrefix(text, "command error:") {
		class = classError
	}
	return class, text
}

type barPalette struct {
	bar      string
	active   string
	inactive string
	marker   string
}

func newBarPalette(theme tuiTheme) barPalette {
	return barPalette{
		bar:      ansiBgRGB(theme.TabBarBG) + ansiFgRGB(theme.TabInactiveFG),
		active:   ansiBgRGB(theme.TabActiveBG) + ansiFgRGB(theme.TabActiveFG) + ansiBold,
		inactive: ansiBgRGB(theme.TabInactiveBG) + ansiFgRGB(theme.TabInactiveFG),
		marker:   ansiBgRGB(theme.TabBarBG) + ansiFgRGB(theme.TabInactiveFG) + ansiBold,
	}
}

// renderTabBar paints the one-line tab strip. windowStart is the index
// of the leftmost visible tab from the previous frame; the returned
// value is the index to carry into the next frame so the strip does
// not jump while the active tab stays visible.
func renderTabBar(tabs []schema.TabSnapshot, active schema.TabID, width int, theme tuiTheme, windowStart int) (string, int) {
	if width <= 0 {
		width = 80
	}
	pal := newBarPalette(theme)
	if len(tabs) == 0 {
		return padBarLine(pal.bar+pal.inactive+" no tabs "+pal.bar, width), windowStart
	}
	labels, widths, activeIdx, total := tabBarLabels(tabs, active)
	if total <= width {
		return padBarLine(pal.bar+renderTabRange(tabs, labels, active, 0, len(tabs), pal), width), 0
	}

	win := tabViewportFrom(widths, windowStart, width)
	if activeIdx < win.start {
		win = tabViewportFrom(widths, activeIdx, width)
	} else if activeIdx >= win.end {
		win = tabViewportTo(widths, activeIdx+1, width)
	}

	var b strings.Builder
	b.WriteString(pal.bar)
	if win.leftHidden {
		b.WriteString(pal.marker)
		b.WriteString("<")
		b.WriteString(pal.bar)
	}
	b.WriteString(renderTabRange(tabs, labels, active, win.start, win.end, pal))
	line := b.String()
	if win.rightHidden {
		if visibleWidth(line) > width-1 {
			line = trimANSIToWidth(line, width-1)
		}
		if pad := (width - 1) - visibleWidth(line); pad > 0 {
			line += strings.Repeat(" ", pad)
		}
		line = trimANSIToWidth(line+pal.marker+">"+pal.bar, width)
		return line + ansiReset, win.start
	}
	return padBarLine(line, width), win.start
}

func tabBarLabels(tabs []schema.TabSnapshot, active schema.TabID) (labels []string, widths []int, activeIdx, total int) {
	labels = make([]string, len(tabs))
	widths = make([]int, len(tabs))
	for i, tab := range tabs {
		name := string(tab.Title)
		if name == "" {
			name = tab.Project.Name
		}
		if name == "" {
			name = string(tab.ID)
		}
		labels[i] = " " + truncateName(name, 10) + " "
		widths[i] = utf8.RuneCountInString(labels[i])
		total += widths[i]
		if tab.ID == active {
			activeIdx = i
		}
	}
	return labels, widths, activeIdx, total
}

func renderTabRange(tabs []schema.TabSnapshot, labels []string, active schema.TabID, start, end int, pal barPalette) string {
	var b strings.Builder
	for i := start; i < end; i++ {
		if tabs[i].ID == active {
			b.WriteString(pal.active)
		} else {
			b.WriteString(pal.inactive)
		}
		b.WriteString(labels[i])
		b.WriteString(pal.bar)
	}
	return b.String()
}

func padBarLine(line string, width int) string {
	if pad := width - visibleWidth(line); pad > 0 {
		line += strings.Repeat(" ", pad)
	}
	return trimANSIToWidth(line, width) + ansiReset
}

// tabWindow is the visible slice [start, end) of the tab strip plus
// whether an overflow indicator is needed on either side.
type tabWindow struct {
	start       int
	end         int
	leftHidden  bool
	rightHidden bool
}

func indicatorAvail(width int, left, right bool) int {
	if left {
		width--
	}
	if right {
		width--
	}
	if width < 1 {
		width = 1
	}
	return width
}

// tabViewportFrom grows a window rightward from start. The indicators
// eat into the label budget and whether they appear depends on how
// many labels fit, so the loop reruns until the flags settle.
func tabViewportFrom(widths []int, start, width int) tabWindow {
	n := len(widths)
	if n == 0 {
		return tabWindow{}
	}
	if start < 0 {
		start = 0
	}
	if start >= n {
		start = n - 1
	}
	win := tabWindow{start: start, end: start + 1, leftHidden: start > 0}
	for i := 0; i < 3; i++ {
		win.end = extendRight(widths, start, indicatorAvail(width, win.leftHidden, win.rightHidden))
		win.rightHidden = win.end < n
		win.leftHidden = start > 0
	}
	return win
}

// tabViewportTo grows a window leftward so that tab end-1 is the
// rightmost visible one.
func tabViewportTo(widths []int, end, width int) tabWindow {
	n := len(widths)
	if n == 0 {
		return tabWindow{}
	}
	if end < 1 {
		end = 1
	}
	if end > n {
		end = n
	}
	win := tabWindow{start: end - 1, end: end, rightHidden: end < n}
	for i := 0; i < 3; i++ {
		win.start = extendLeft(widths, end, indicatorAvail(width, win.leftHidden, win.rightHidden))
		win.leftHidden = win.start > 0
		win.rightHidden = end < n
	}
	return win
}

// extendRight returns the exclusive end index of the labels that fit
// in avail columns starting at start. At least one label is always
// included even when it overflows.
func extendRight(widths []int, start, avail int) int {
	n := len(widths)
	if n == 0 {
		return 0
	}
	if start < 0 {
		start = 0
	}
	if start >= n {
		return n
	}
	if avail < 1 {
		avail = 1
	}
	end := start
	used := 0
	for end < n && used+widths[end] <= avail {
		used += widths[end]
		end++
	}
	if end == start {
		end = start + 1
	}
	return end
}

func extendLeft(widths []int, end, avail int) int {
	n := len(widths)
	if n == 0 || end < 1 {
		return 0
	}
	if end > n {
		end = n
	}
	if avail < 1 {
		avail = 1
	}
	start := end
	used := 0
	for start > 0 && used+widths[start-1] <= avail {
		used += widths[start-1]
		start--
	}
	if start == end {
		start = end - 1
	}
	return start
}

// inlineStyle sets the ANSI treatment for markdown-bearing classes.
// Nil color fields fall back to the terminal default.
type inlineStyle struct {
	italic   bool
	bold     bool
	fg       *rgb
	strongFG *rgb
	codeFG   *rgb
}

func (s inlineStyle) base() string {
	var code string
	if s.italic {
		code += ansiItalic
	}
	if s.bold {
		code += ansiBold
	}
	if s.fg != nil {
		code += ansiFgRGB(*s.fg)
	}
	return code
}

func (s inlineStyle) spanCode(sp markdown.Span) string {
	code := s.base()
	if sp.Code && s.codeFG != nil {
		code += ansiFgRGB(*s.codeFG)
	}
	if sp.Bold {
		code += ansiBold
		if s.strongFG != nil {
			code += ansiFgRGB(*s.strongFG)
		}
	}
	if sp.Italic {
		code += ansiItalic
	}
	return code
}

func classInlineStyle(class messageClass, theme tuiTheme) (inlineStyle, bool) {
	switch class {
	case classAgent:
		return inlineStyle{codeFG: &theme.CodeFG}, true
	case classReasoning:
		return inlineStyle{italic: true, fg: &theme.ReasoningFG, strongFG: &theme.ReasoningBold, codeFG: &theme.CodeFG}, true
	case classHelp:
		return inlineStyle{strongFG: &theme.AboutLinkFG, codeFG: &theme.HelpArgFG}, true
	}
	return inlineStyle{}, false
}

// classPrefix returns the ANSI prefix for classes rendered as styled
// plain text. The second result is false for classPlain and for the
// classes that need markdown or special handling.
func classPrefix(class messageClass, theme tuiTheme) (string, bool) {
	switch class {
	case classError:
		return ansiBold + ansiFgRGB(theme.ErrorFG), true
	case classStderr:
		return ansiBold + ansiFgRGB(theme.StderrFG), true
	case classMeta:
		return ansiDim + ansiItalic + ansiFgRGB(theme.MetaFG), true
	case classCommand:
		return ansiDim + ansiFgRGB(theme.MetaFG), true
	case classAboutVersion:
		return ansiBold + ansiItalic, true
	case classAboutCopyright:
		return ansiFgRGB(theme.AboutCopyrightFG), true
	case classAboutLink:
		return ansiItalic + ansiFgRGB(theme.AboutLinkFG), true
	}
	return "", false
}

// renderLine styles a single buffer line clipped to width, without
// wrapping.
func renderLine(raw string, width int, theme tuiTheme) string {
	if width <= 0 {
		return ""
	}
	class, text := splitMarker(raw)
	if class == classWorked {
		return ansiDim + ansiItalic + ansiFgRGB(theme.MetaFG) + workedRule(text, width) + ansiReset
	}
	if style, ok := classInlineStyle(class, theme); ok {
		return renderInline(text, width, style)
	}
	out := trimToWidth(sanitizeOutputLine(text), width)
	if out == "" {
		return ""
	}
	if prefix, ok := classPrefix(class, theme); ok {
		return prefix + out + ansiReset
	}
	return out
}

// renderLines styles a buffer line with word wrapping, yielding one or
// more screen rows of at most width columns.
func renderLines(raw string, width int, theme tuiTheme) []string {
	if width <= 0 {
		return []string{""}
	}
	class, text := splitMarker(raw)
	if class == classWorked {
		return []string{renderLine(raw, width, theme)}
	}
	if style, ok := classInlineStyle(class, theme); ok {
		return wrapInline(text, width, style)
	}
	if prefix, ok := classPrefix(class, theme); ok {
		return wrapStyled(text, width, prefix)
	}
	return wrapPlain(text, width)
}

// workedRule draws the horizontal rule that closes a turn, with the
// elapsed-time label embedded near the left edge.
func workedRule(label string, width int) string {
	if width <= 0 {
		return ""
	}
	label = strings.TrimSpace(label)
	if label == "" {
		label = "Worked"
	}
	lead := "── " + label + " "
	if n := utf8.RuneCountInString(lead); n < width {
		return lead + strings.Repeat("─", width-n)
	}
	return trimToWidth(lead, width)
}

func renderInline(text string, width int, style inlineStyle) string {
	if width <= 0 {
		return ""
	}
	spans := markdown.ParseInline(sanitizeOutputLine(text))
	if len(spans) == 0 {
		return ""
	}
	var b strings.Builder
	for _, sp := range spans {
		if sp.Text == "" {
			continue
		}
		b.WriteString(ansiReset)
		b.WriteString(style.spanCode(sp))
		b.WriteString(sp.Text)
	}
	if b.Len() == 0 {
		return ""
	}
	return trimANSIToWidth(b.String(), width) + ansiReset
}

func wrapInline(text string, width int, style inlineStyle) []string {
	if width <= 0 {
		return []string{""}
	}
	spans := markdown.ParseInline(sanitizeOutputLine(text))
	if len(spans) == 0 {
		return []string{""}
	}
	w := lineWrap{width: width, styled: true}
	for _, sp := range spans {
		if sp.Text == "" {
			continue
		}
		code := style.spanCode(sp)
		for _, tok := range splitWords(sp.Text, false) {
			if tok.space {
				w.gap(code, utf8.RuneCountInString(tok.text))
			} else {
				w.word(code, tok.text)
			}
		}
	}
	return w.result()
}

func wrapPlain(text string, width int) []string {
	if width <= 0 {
		return []string{""}
	}
	sanitized := sanitizeOutputLine(text)
	if sanitized == "" {
		return []string{""}
	}
	w := lineWrap{width: width}
	for _, tok := range splitWords(sanitized, true) {
		if tok.space {
			w.gap("", utf8.RuneCountInString(tok.text))
		} else {
			w.word("", tok.text)
		}
	}
	return w.result()
}

func wrapStyled(text string, width int, code string) []string {
	lines := wrapPlain(text, width)
	if len(lines) == 1 && lines[0] == "" {
		return lines
	}
	out := make([]string, len(lines))
	for i, line := range lines {
		if line == "" {
			continue
		}
		out[i] = code + line + ansiReset
	}
	return out
}

// lineWrap accumulates words into width-bounded lines. In styled mode
// it tracks the active ANSI code so style switches only emit when the
// code actually changes, and every produced line ends with a reset.
type lineWrap struct {
	width   int
	styled  bool
	lines   []string
	buf     strings.Builder
	used    int
	skipGap bool
	code    string
}

func (w *lineWrap) setCode(code string) {
	if !w.styled {
		return
	}
	if code == w.code && w.buf.Len() > 0 {
		return
	}
	if code == "" && w.buf.Len() == 0 {
		w.code = ""
		return
	}
	w.buf.WriteString(ansiReset)
	w.buf.WriteString(code)
	w.code = code
}

func (w *lineWrap) flush(wrapped bool) {
	if w.buf.Len() == 0 {
		return
	}
	line := w.buf.String()
	if w.styled {
		line = trimANSIToWidth(line+ansiReset, w.width) + ansiReset
	} else {
		line = trimToWidth(line, w.width)
	}
	w.lines = append(w.lines, line)
	w.buf.Reset()
	w.used = 0
	w.code = ""
	w.skipGap = wrapped
}

// gap inserts n spaces. A gap at the start of a wrapped continuation
// line is dropped, and a gap that would overflow forces the wrap
// instead of spilling.
func (w *lineWrap) gap(code string, n int) {
	if n <= 0 {
		return
	}
	if w.used == 0 && w.skipGap {
		return
	}
	if w.used+n > w.width {
		w.flush(true)
		return
	}
	w.setCode(code)
	w.buf.WriteString(strings.Repeat(" ", n))
	w.used += n
	w.skipGap = false
}

func (w *lineWrap) word(code, text string) {
	runes := []rune(text)
	n := len(runes)
	if n > w.width {
		// too long for any line, hard-split into width-sized chunks
		if w.used > 0 {
			w.flush(true)
		}
		for at := 0; at < n; at += w.width {
			next := at + w.width
			if next > n {
				next = n
			}
			w.setCode(code)
			w.buf.WriteString(string(runes[at:next]))
			w.used += next - at
			if w.used >= w.width {
				w.flush(true)
			}
		}
		return
	}
	if w.used+n > w.width && w.used > 0 {
		w.flush(true)
	}
	w.setCode(code)
	w.buf.WriteString(text)
	w.used += n
	w.skipGap = false
}

func (w *lineWrap) result() []string {
	w.flush(false)
	if len(w.lines) == 0 {
		return []string{""}
	}
	return w.lines
}

type wordToken struct {
	text  string
	space bool
}

// splitWords breaks text into word and whitespace tokens. Every
// whitespace rune maps to a single space; with groupRuns set,
// consecutive spaces stay together in one token.
func splitWords(text string, groupRuns bool) []wordToken {
	var tokens []wordToken
	var buf strings.Builder
	run := 0
	flushWord := func() {
		if buf.Len() > 0 {
			tokens = append(tokens, wordToken{text: buf.String()})
			buf.Reset()
		}
	}
	flushRun := func() {
		if run > 0 {
			tokens = append(tokens, wordToken{text: strings.Repeat(" ", run), space: true})
			run = 0
		}
	}
	for _, r := range text {
		if unicode.IsSpace(r) {
			flushWord()
			if groupRuns {
				run++
			} else {
				tokens = append(tokens, wordToken{text: " ", space: true})
			}
			continue
		}
		flushRun()
		buf.WriteRune(r)
	}
	flushWord()
	flushRun()
	return tokens
}

// sanitizeOutputLine strips escape sequences and control bytes from a
// line of process output before it is styled. Tabs expand to four
// spaces so column math stays in rune units.
func sanitizeOutputLine(text string) string {
	if text == "" {
		return ""
	}
	var b strings.Builder
	for i := 0; i < len(text); {
		if text[i] == 0x1b {
			i = ansiSkip(text, i)
			continue
		}
		r, size := utf8.DecodeRuneInString(text[i:])
		i += size
		switch {
		case r == utf8.RuneError && size == 1:
		case r == '\t':
			b.WriteString("    ")
		case r < 0x20 || r == 0x7f:
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ansiSkip returns the index just past the escape sequence that starts
// at text[start] (which must be ESC). CSI sequences end at a final
// byte in 0x40..0x7e; OSC sequences end at BEL or ESC backslash.
func ansiSkip(text string, start int) int {
	i := start + 1
	if i >= len(text) {
		return i
	}
	switch text[i] {
	case '[':
		for i++; i < len(text); i++ {
			if c := text[i]; c >= 0x40 && c <= 0x7e {
				return i + 1
			}
		}
		return i
	case ']':
		for i++; i < len(text); i++ {
			switch text[i] {
			case 0x07:
				return i + 1
			case 0x1b:
				if i+1 < len(text) && text[i+1] == '\\' {
					return i + 2
				}
			}
		}
		return i
	default:
		return i + 1
	}
}

// visibleWidth counts the printable runes in text, ignoring escape
// sequences.
func visibleWidth(text string) int {
	width := 0
	for i := 0; i < len(text); {
		if text[i] == 0x1b {
			i = ansiSkip(text, i)
			continue
		}
		_, size := utf8.DecodeRuneInString(text[i:])
		if size == 0 {
			break
		}
		i += size
		width++
	}
	return width
}

// trimANSIToWidth clips text to width printable runes while keeping
// all escape sequences, so style state past the clip point survives.
func trimANSIToWidth(text string, width int) string {
	if width <= 0 {
		return ""
	}
	var b strings.Builder
	visible := 0
	for i := 0; i < len(text); {
		if text[i] == 0x1b {
			start := i
			i = ansiSkip(text, i)
			b.WriteString(text[start:i])
			continue
		}
		if visible >= width {
			break
		}
		r, size := utf8.DecodeRuneInString(text[i:])
		if size == 0 {
			break
		}
		b.WriteRune(r)
		i += size
		visible++
	}
	return b.String()
}
