package invoice

import (
	"regexp"
)

// lineKind is the role a text line can play around the DOCUMENTO table.
type lineKind int

const (
	lineUnrecognized lineKind = iota
	lineHeaderLabel
	lineDataRow
	lineDelimiter
)

func (k lineKind) String() string {
	switch k {
	case lineHeaderLabel:
		return "header-label"
	case lineDataRow:
		return "data-row"
	case lineDelimiter:
		return "delimiter"
	default:
		return "unrecognized"
	}
}

// dataShape is the value a whole line looks like, if any.
type dataShape int

const (
	shapeNone dataShape = iota
	shapeTypeCode
	shapeDigits
	shapeDate
	shapeRecipient
	shapePrefixed
)

var (
	typeCodeLineRe   = regexp.MustCompile(`(?i)^TD\d{2}\b`)
	typeCodeRe       = regexp.MustCompile(`(?i)\bTD\d{2}\b`)
	digitsLineRe     = regexp.MustCompile(`^\d+$`)
	dateRe           = regexp.MustCompile(`\d{4}-\d{2}-\d{2}|\d{2}-\d{2}-\d{4}|\d{2}/\d{2}/\d{4}`)
	dateLineRe       = regexp.MustCompile(`^(?:\d{4}-\d{2}-\d{2}|\d{2}-\d{2}-\d{4}|\d{2}/\d{2}/\d{4})$`)
	recipientRe      = regexp.MustCompile(`^[A-Z0-9]{6,7}$`)
	prefixedNumberRe = regexp.MustCompile(`^[A-Z]{2,4}\s+\d+/\d+$`)
	lowercaseRe      = regexp.MustCompile(`[a-z]`)
	digitRe          = regexp.MustCompile(`\d`)
	typeWordRe       = regexp.MustCompile(`(?i)\b(?:fattura|nota|parcella)\b`)
	delimiterRe      = regexp.MustCompile(`(?i)^(?:Cod\.|Prezzo totale|RIEPILOGHI|Totale documento)`)
	recipientLabelRe = regexp.MustCompile(`(?i)^Cod\.\s*destinatario`)
	headerPartRe     = regexp.MustCompile(`(?i)\b(?:Tipologia|Numero|Data|Codice|documento|destinatario)\b|\bCod\.|\bArt\.?\s*73\b`)
)

// line is a normalized text line classified once.
type line struct {
	text        string
	kind        lineKind
	shape       dataShape
	hasDate     bool
	hasTypeCode bool
	headerWords bool
}

func classifyLine(s string) line {
	l := line{
		text:        s,
		hasDate:     dateRe.MatchString(s),
		hasTypeCode: typeCodeRe.MatchString(s),
		headerWords: headerPartRe.MatchString(s),
	}

	switch {
	case typeCodeLineRe.MatchString(s):
		l.shape = shapeTypeCode
	case digitsLineRe.MatchString(s):
		l.shape = shapeDigits
	case dateLineRe.MatchString(s):
		l.shape = shapeDate
	case recipientRe.MatchString(s) && !l.headerWords:
		// "CODICE" on its own is a split label, not a code
		l.shape = shapeRecipient
	case prefixedNumberRe.MatchString(s):
		l.shape = shapePrefixed
	}

	switch {
	case delimiterRe.MatchString(s) && !recipientLabelRe.MatchString(s):
		l.kind = lineDelimiter
	case l.shape != shapeNone || l.hasDate:
		l.kind = lineDataRow
	case l.headerWords:
		l.kind = lineHeaderLabel
	}
	return l
}

func classifyLines(lines []string) []line {
	out := make([]line, len(lines))
	for i, s := range lines {
		out[i] = classifyLine(s)
	}
	return out
}

// isShortData is the last-resort rule for columnar layouts: a short line
// without lowercase text that carries a digit or a lone number prefix, and
// no document type word.
func (l line) isShortData() bool {
	return len(l.text) < 30 &&
		!lowercaseRe.MatchString(l.text) &&
		(digitRe.MatchString(l.text) || lonePrefixRe.MatchString(l.text)) &&
		!typeWordRe.MatchString(l.text)
}
