package markup

import (
	"html"
	"strings"
)

// Translator converts reply text into display-ready content.
type Translator interface {
	Translate(text string) string
	// Plain renders text with no markup interpretation, for error messages.
	Plain(text string) string
}

// HTML renders safe HTML: only <ul>, <li>, <strong>, <em> and <br> are emitted,
// every other character of the input is escaped.
type HTML struct{}

func (HTML) Translate(text string) string {
	blocks := parse(text)
	var sb strings.Builder
	for i, b := range blocks {
		if b.isList() {
			sb.WriteString("<ul>")
			for _, item := range b.items {
				sb.WriteString("<li>")
				writeHTMLSpans(&sb, item)
				sb.WriteString("</li>")
			}
			sb.WriteString("</ul>")
			continue
		}
		writeHTMLSpans(&sb, b.line)
		if i < len(blocks)-1 {
			sb.WriteString("<br>")
		}
	}
	return sb.String()
}

// Plain escapes text and keeps its line breaks.
func (HTML) Plain(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(html.EscapeString(text), "\n", "<br>")
}

func writeHTMLSpans(sb *strings.Builder, spans []span) {
	for _, s := range spans {
		text := html.EscapeString(s.text)
		switch s.kind {
		case spanStrong:
			sb.WriteString("<strong>" + text + "</strong>")
		case spanEm:
			sb.WriteString("<em>" + text + "</em>")
		default:
			sb.WriteString(text)
		}
	}
}
