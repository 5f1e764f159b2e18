package markup

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Terminal renders the same subset for a terminal: bold and italic through
// lipgloss, list items as bullet lines, breaks as newlines.
type Terminal struct {
	Strong lipgloss.Style
	Em     lipgloss.Style
	Bullet string
}

func NewTerminal() Terminal {
	return Terminal{
		Strong: lipgloss.NewStyle().Bold(true),
		Em:     lipgloss.NewStyle().Italic(true),
		Bullet: "• ",
	}
}

func (t Terminal) Translate(text string) string {
	var lines []string
	for _, b := range parse(text) {
		if b.isList() {
			for _, item := range b.items {
				lines = append(lines, t.Bullet+t.spans(item))
			}
			continue
		}
		lines = append(lines, t.spans(b.line))
	}
	return strings.Join(lines, "\n")
}

// Plain returns text as is; a terminal has nothing to escape.
func (t Terminal) Plain(text string) string {
	return text
}

func (t Terminal) spans(spans []span) string {
	var sb strings.Builder
	for _, s := range spans {
		switch s.kind {
		case spanStrong:
			sb.WriteString(t.Strong.Render(s.text))
		case spanEm:
			sb.WriteString(t.Em.Render(s.text))
		default:
			sb.WriteString(s.text)
		}
	}
	return sb.String()
}
