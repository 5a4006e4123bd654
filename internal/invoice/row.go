package invoice

import (
	"regexp"
	"strings"
)

const maxRowLines = 10

// Header label phrases that can precede the values on a row.
var rowLabelRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bArt\.?\s*73\b`),
	regexp.MustCompile(`(?i)\bTipologia\s+documento\b`),
	regexp.MustCompile(`(?i)\bNumero\s+documento\b`),
	regexp.MustCompile(`(?i)\bData\s+documento\b`),
	regexp.MustCompile(`(?i)\bCodice\s+destinatario\b`),
	regexp.MustCompile(`(?i)\bCod\.\s*destinatario\b`),
}

// Single label words left over when header and values share a line.
var gluedLabelRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bNumero\s`),
	regexp.MustCompile(`(?i)\bData\s`),
	regexp.MustCompile(`(?i)\bCodice\s`),
	regexp.MustCompile(`(?i)\bCod\.\s`),
	regexp.MustCompile(`(?i)\bdocumento\b`),
	regexp.MustCompile(`(?i)\bdestinatario\b`),
}

// CollectRow returns the lines holding the DOCUMENTO values for a header
// ending at headerEnd. When the last header line already carries values
// (a TDxx code or a date) it is the whole row.
func CollectRow(lines []string, headerEnd int) []string {
	return collectRow(classifyLines(lines), headerEnd)
}

func collectRow(lines []line, headerEnd int) []string {
	if headerEnd < 0 || headerEnd >= len(lines) {
		return nil
	}

	if gluedRow(lines, headerEnd) {
		return []string{lines[headerEnd].text}
	}

	var row []string
	// Set while the previous accepted line is a TDxx description that has
	// not reached its values yet; lowercase lines then continue it.
	inDescription := false
	for _, l := range lines[headerEnd+1:] {
		if len(row) >= maxRowLines || l.kind == lineDelimiter {
			break
		}

		switch {
		case l.shape == shapeTypeCode:
			row = append(row, l.text)
			inDescription = !l.hasDate
		case l.kind == lineDataRow || l.isShortData():
			row = append(row, l.text)
			inDescription = false
		case inDescription && lowercaseRe.MatchString(l.text):
			row = append(row, l.text)
		}
	}
	return row
}

// gluedRow reports whether the last header line already carries values.
func gluedRow(lines []line, headerEnd int) bool {
	if headerEnd < 0 || headerEnd >= len(lines) {
		return false
	}
	last := lines[headerEnd]
	return last.hasTypeCode || last.hasDate
}

// cleanRowText joins row lines and strips header label phrases. Single label
// words are only stripped from glued rows.
func cleanRowText(row []string, glued bool) string {
	text := strings.Join(row, " ")
	for _, re := range rowLabelRes {
		text = re.ReplaceAllString(text, " ")
	}
	if glued {
		for _, re := range gluedLabelRes {
			text = re.ReplaceAllString(text, " ")
		}
	}
	return collapse(text)
}
