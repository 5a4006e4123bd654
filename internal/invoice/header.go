package invoice

import (
	"regexp"
	"strings"
)

// HeaderStrategy names the anchor a header was located from.
type HeaderStrategy string

const (
	// StrategyPrimary starts from the "Tipologia documento" label.
	StrategyPrimary HeaderStrategy = "primary"
	// StrategySecondary starts from an isolated "Art. 73" line, which
	// columnar layouts print before the other labels.
	StrategySecondary HeaderStrategy = "secondary"
)

const (
	primaryAbsorbLimit   = 3
	secondaryAbsorbLimit = 8
)

// Labels of the DOCUMENTO table header, in print order.
const (
	LabelDocumentType  = "Tipologia documento"
	LabelArticle73     = "Art. 73"
	LabelNumber        = "Numero documento"
	LabelDate          = "Data documento"
	LabelRecipientCode = "Codice destinatario"
)

var headerLabels = []string{LabelDocumentType, LabelArticle73, LabelNumber, LabelDate, LabelRecipientCode}

var (
	primaryAnchorRe   = regexp.MustCompile(`(?i)Tipologia\s+documento`)
	secondaryAnchorRe = regexp.MustCompile(`(?i)^Art\.?\s*73\s*$`)
	article73Re       = regexp.MustCompile(`(?i)Art\.?\s*73`)
)

var labelVariants = map[string][]*regexp.Regexp{
	LabelDocumentType: {
		regexp.MustCompile(`(?is)Tipologia\s+documento`),
		regexp.MustCompile(`(?is)Tipologia.*?documento`),
	},
	LabelArticle73: {article73Re},
	LabelNumber: {
		regexp.MustCompile(`(?is)Numero\s+documento`),
		regexp.MustCompile(`(?is)N\.?\s*documento`),
		regexp.MustCompile(`(?is)Numero\s+doc\.?`),
		regexp.MustCompile(`(?is)Numero.*?documento`),
	},
	LabelDate: {
		regexp.MustCompile(`(?is)Data\s+documento`),
		regexp.MustCompile(`(?is)Data\s+doc\.?`),
		regexp.MustCompile(`(?is)Data.*?documento`),
	},
	LabelRecipientCode: {
		regexp.MustCompile(`(?is)Cod(?:ice)?\s+destinatario`),
		regexp.MustCompile(`(?is)Cod\.\s*destinatario`),
		regexp.MustCompile(`(?is)Codice.*?destinatario`),
		regexp.MustCompile(`(?is)Cod\..*?destinatario`),
	},
}

// Words of the labels that wrap across lines; two of them on any absorbed
// line count as the label.
var labelParts = map[string][]*regexp.Regexp{
	LabelNumber: {
		regexp.MustCompile(`(?i)\bNumero\b`),
		regexp.MustCompile(`(?i)\bdocumento\b`),
	},
	LabelDate: {
		regexp.MustCompile(`(?i)\bData\b`),
		regexp.MustCompile(`(?i)\bdocumento\b`),
	},
	LabelRecipientCode: {
		regexp.MustCompile(`(?i)\bCodice\b`),
		regexp.MustCompile(`(?i)\bdestinatario\b`),
		regexp.MustCompile(`(?i)\bCod\b\.?`),
	},
}

// HeaderLocation describes where the DOCUMENTO header sits in the line list.
// Start and End are inclusive line indexes, -1 when the header was not found.
type HeaderLocation struct {
	Found         bool            `json:"found"`
	Strategy      HeaderStrategy  `json:"strategy,omitempty"`
	Start         int             `json:"start"`
	End           int             `json:"end"`
	Lines         []string        `json:"lines"`
	FoundLabels   map[string]bool `json:"found_labels"`
	MissingLabels []string        `json:"missing_labels"`
}

// HasArticle73 reports whether the header carries the Art. 73 marker.
func (h HeaderLocation) HasArticle73() bool {
	for _, l := range h.Lines {
		if article73Re.MatchString(l) {
			return true
		}
	}
	return false
}

// LocateHeader finds the DOCUMENTO table header in normalized lines.
func LocateHeader(lines []string) HeaderLocation {
	return locateHeader(classifyLines(lines))
}

func locateHeader(lines []line) HeaderLocation {
	loc := HeaderLocation{
		Start:         -1,
		End:           -1,
		FoundLabels:   make(map[string]bool, len(headerLabels)),
		MissingLabels: append([]string(nil), headerLabels...),
	}
	for _, lbl := range headerLabels {
		loc.FoundLabels[lbl] = false
	}

	primary, secondary := -1, -1
	for i, l := range lines {
		if primary < 0 && primaryAnchorRe.MatchString(l.text) {
			primary = i
		}
		if secondary < 0 && secondaryAnchorRe.MatchString(l.text) {
			secondary = i
		}
	}

	start, limit := primary, primaryAbsorbLimit
	loc.Strategy = StrategyPrimary
	if secondary >= 0 && (primary < 0 || secondary >= primary) {
		start, limit = secondary, secondaryAbsorbLimit
		loc.Strategy = StrategySecondary
	}
	if start < 0 {
		loc.Strategy = ""
		return loc
	}

	end := start
	for absorbed := 0; absorbed < limit; absorbed++ {
		if allLabelsFound(matchLabels(lines[start : end+1])) {
			break
		}
		if end+1 >= len(lines) || lines[end+1].kind == lineDataRow {
			break
		}
		end++
	}

	loc.Found = true
	loc.Start = start
	loc.End = end
	loc.Lines = make([]string, 0, end-start+1)
	for _, l := range lines[start : end+1] {
		loc.Lines = append(loc.Lines, l.text)
	}
	loc.FoundLabels = matchLabels(lines[start : end+1])
	loc.MissingLabels = loc.MissingLabels[:0]
	for _, lbl := range headerLabels {
		if !loc.FoundLabels[lbl] {
			loc.MissingLabels = append(loc.MissingLabels, lbl)
		}
	}
	return loc
}

func matchLabels(lines []line) map[string]bool {
	texts := make([]string, len(lines))
	for i, l := range lines {
		texts[i] = l.text
	}
	blob := strings.Join(texts, " ")

	found := make(map[string]bool, len(headerLabels))
	for _, lbl := range headerLabels {
		found[lbl] = labelInBlob(lbl, blob) || labelFromParts(lbl, texts)
	}
	return found
}

func labelInBlob(label, blob string) bool {
	for _, re := range labelVariants[label] {
		if re.MatchString(blob) {
			return true
		}
	}
	return false
}

func labelFromParts(label string, texts []string) bool {
	seen := 0
	for _, part := range labelParts[label] {
		for _, t := range texts {
			if part.MatchString(t) {
				seen++
				break
			}
		}
	}
	return seen >= 2
}

func allLabelsFound(found map[string]bool) bool {
	for _, lbl := range headerLabels {
		if !found[lbl] {
			return false
		}
	}
	return true
}
