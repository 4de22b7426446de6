package markdown

import "strings"

// Span is a run of text with a uniform inline style.
type Span struct {
	Text   string
	Bold   bool
	Italic bool
	Code   bool
}

// ParseInline splits input into styled spans. It understands **bold**,
// *italic*, and `code`; markers without a closing counterpart are kept
// as literal text. Backslash escapes the next byte.
func ParseInline(input string) []Span {
	if input == "" {
		return nil
	}
	var (
		spans  []Span
		buf    strings.Builder
		bold   bool
		italic bool
		code   bool
	)

	flush := func() {
		if buf.Len() == 0 {
			return
		}
		spans = append(spans, Span{
			Text:   buf.String(),
			Bold:   bold,
			Italic: italic,
			Code:   code,
		})
		buf.Reset()
	}

	i := 0
	for i < len(input) {
		ch := input[i]
		switch {
		case ch == '\\' && i+1 < len(input):
			buf.WriteByte(input[i+1])
			i += 2
		case ch == '`':
			if code {
				flush()
				code = false
				i++
				continue
			}
			if strings.Contains(input[i+1:], "`") {
				flush()
				code = true
				i++
				continue
			}
			buf.WriteByte(ch)
			i++
		case ch == '*' && !code:
			if strings.HasPrefix(input[i:], "**") {
				if bold {
					flush()
					bold = false
				} else if strings.Contains(input[i+2:], "**") {
					flush()
					bold = true
				} else {
					buf.WriteString("**")
				}
				i += 2
				continue
			}
			if italic {
				flush()
				italic = false
				i++
				continue
			}
			if strings.Contains(input[i+1:], "*") {
				flush()
				italic = true
				i++
				continue
			}
			buf.WriteByte(ch)
			i++
		default:
			buf.WriteByte(ch)
			i++
		}
	}
	flush()
	return spans
}
