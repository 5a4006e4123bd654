package invoice

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Page breaks from the PDF backends count as line breaks; a carriage return
// that is not part of CRLF glues two fragments of the same line.
var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", " ", "\f", "\n", "\v", "\n")

// Normalize cleans raw extracted text. Each line is trimmed and its
// whitespace runs collapsed to single spaces; blank lines are dropped.
// clean is the line list joined by newlines, for block-level regex searches.
func Normalize(raw string) (clean string, lines []string) {
	if raw == "" {
		return "", nil
	}

	text := lineBreaks.Replace(norm.NFC.String(raw))
	for _, l := range strings.Split(text, "\n") {
		if l = collapse(l); l != "" {
			lines = append(lines, l)
		}
	}
	return strings.Join(lines, "\n"), lines
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
