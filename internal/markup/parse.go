// Package markup turns the small markdown subset produced by the advice service
// (bullet lines, **bold**, *italic*) into display markup.
package markup

import "strings"

type spanKind int

const (
	spanText spanKind = iota
	spanStrong
	spanEm
)

type span struct {
	kind spanKind
	text string
}

// block is either one text line or a run of consecutive bullet items.
type block struct {
	items [][]span
	line  []span
}

func (b block) isList() bool {
	return b.items != nil
}

const bulletMarker = "* "

// parse never fails: anything it does not recognise stays literal text.
func parse(text string) []block {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")

	var blocks []block
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, bulletMarker) {
			item := parseInline(strings.TrimSpace(trimmed[len(bulletMarker):]))
			if n := len(blocks); n > 0 && blocks[n-1].isList() {
				blocks[n-1].items = append(blocks[n-1].items, item)
				continue
			}
			blocks = append(blocks, block{items: [][]span{item}})
			continue
		}
		blocks = append(blocks, block{line: parseInline(line)})
	}
	return blocks
}

// parseInline scans one line for **strong** and *em* spans. Markers without a
// closing partner are kept as literal asterisks.
func parseInline(line string) []span {
	var (
		out []span
		buf strings.Builder
	)
	flush := func() {
		if buf.Len() > 0 {
			out = append(out, span{kind: spanText, text: buf.String()})
			buf.Reset()
		}
	}

	for i := 0; i < len(line); {
		if line[i] != '*' {
			buf.WriteByte(line[i])
			i++
			continue
		}
		if strings.HasPrefix(line[i:], "**") {
			if end := strings.Index(line[i+2:], "**"); end > 0 {
				flush()
				out = append(out, span{kind: spanStrong, text: line[i+2 : i+2+end]})
				i += 2 + end + 2
				continue
			}
			// unterminated bold: emit one asterisk and let the next one try as italic
			buf.WriteByte('*')
			i++
			continue
		}
		if end := strings.IndexByte(line[i+1:], '*'); end > 0 && strings.TrimSpace(line[i+1:i+1+end]) != "" {
			flush()
			out = append(out, span{kind: spanEm, text: line[i+1 : i+1+end]})
			i += 1 + end + 1
			continue
		}
		buf.WriteByte('*')
		i++
	}
	flush()
	return out
}
