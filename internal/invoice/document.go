package invoice

import (
	"regexp"
	"strings"

	"fatture/pkg/models"

	"github.com/agext/levenshtein"
)

const (
	anchoredTypeThreshold   = 0.5
	unanchoredTypeThreshold = 0.7
	numberLookback          = 6
)

var (
	dateTokenRe = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}|\d{2}-\d{2}-\d{4}|\d{2}/\d{2}/\d{4})\b`)

	v2NumberRe     = regexp.MustCompile(`\bV2[\s\-_/\\]*(\d{6,})`)
	lonePrefixRe   = regexp.MustCompile(`^[A-Za-z0-9]{1,5}[-/_]$`)
	longNumberRe   = regexp.MustCompile(`^\d{6,}$`)
	compositeRe    = regexp.MustCompile(`^[A-Za-z0-9]+(?:[-/_.][A-Za-z0-9]+)+$`)
	letterDigitsRe = regexp.MustCompile(`^[A-Z]+\d+$`)
	bareTypeCodeRe = regexp.MustCompile(`(?i)^TD\d{2}$`)

	citationRe      = regexp.MustCompile(`^\d{3}/\d{2}$`)
	stopWordRe      = regexp.MustCompile(`(?i)^(?:DPR|lett\.|a\)|b\)|c\))$`)
	eightDigitsRe   = regexp.MustCompile(`^\d{8,}$`)
	dashPrefixRe    = regexp.MustCompile(`^[A-Za-z0-9]{1,5}-$`)
	dashNumberRe    = regexp.MustCompile(`^[A-Za-z0-9]{1,5}-\d{3,}$`)
	prefixedInRowRe = regexp.MustCompile(`\b([A-Z]{2,4})\s+(\d+/\d+)\b`)

	typeFragmentRe = regexp.MustCompile(`(?i)\b(?:Art\.?\s*73|Numero\s+documento|Data\s+documento|Cod(?:ice)?\.?\s*destinatario)\b`)
)

var citationTokens = map[string]bool{"633/72": true, "600/73": true, "600/1973": true}

// rowContext is the DOCUMENTO data row as the disambiguators see it.
type rowContext struct {
	lines     []string // accepted row lines, as printed
	text      string   // lines joined, header fragments removed
	tokens    []string
	dateIndex int // token index of the issue date, -1 when absent
	dateLine  int // first row line containing a date, -1 when absent
	date      string
}

func newRowContext(lines []string, glued bool) rowContext {
	rc := rowContext{
		lines:     lines,
		text:      cleanRowText(lines, glued),
		dateIndex: -1,
		dateLine:  -1,
	}
	rc.tokens = strings.Fields(rc.text)

	for i, tok := range rc.tokens {
		if m := dateTokenRe.FindStringSubmatch(tok); m != nil {
			rc.dateIndex = i
			rc.date = m[1]
			break
		}
	}
	for i, l := range lines {
		if dateRe.MatchString(l) {
			rc.dateLine = i
			break
		}
	}
	return rc
}

func (rc rowContext) hasDate() bool {
	return rc.dateIndex >= 0
}

// recipientCode is the first code-shaped token after the date.
func (rc rowContext) recipientCode() string {
	if !rc.hasDate() {
		return ""
	}
	for _, tok := range rc.tokens[rc.dateIndex+1:] {
		if tok = cleanToken(tok); recipientRe.MatchString(tok) {
			return tok
		}
	}
	return ""
}

// preDateTokens are the row tokens before the date, or the whole row when
// there is no date.
func (rc rowContext) preDateTokens() []string {
	if !rc.hasDate() {
		return rc.tokens
	}
	return rc.tokens[:rc.dateIndex]
}

var numberChain = chain[rowContext, string]{
	numberFromV2,
	numberFromCandidateLines,
	numberBeforeDate,
	numberFromPrefixedPattern,
	numberFromBareDigits,
}

func isCitation(tok string) bool {
	if citationRe.MatchString(tok) || citationTokens[tok] {
		return true
	}
	return strings.HasPrefix(strings.ToUpper(tok), "DPR") && strings.Contains(tok, "633/72")
}

func cleanToken(tok string) string {
	return strings.Trim(tok, ",;:")
}

func numberFromV2(rc rowContext) (string, bool) {
	m := v2NumberRe.FindStringSubmatch(rc.text)
	if m == nil {
		return "", false
	}
	return "V2-" + m[1], true
}

func isNumberCandidateLine(s string, withDate bool) bool {
	if dateRe.MatchString(s) || isCitation(s) || bareTypeCodeRe.MatchString(s) {
		return false
	}
	if !withDate && recipientRe.MatchString(s) {
		return false
	}
	switch {
	case lonePrefixRe.MatchString(s), longNumberRe.MatchString(s),
		prefixedNumberRe.MatchString(s), letterDigitsRe.MatchString(s):
		return true
	case compositeRe.MatchString(s):
		return digitRe.MatchString(s)
	}
	return false
}

// numberFromCandidateLines looks at whole row lines printed before the date
// line. A lone prefix followed by a number line is joined to it; otherwise
// the candidate nearest the date wins.
func numberFromCandidateLines(rc rowContext) (string, bool) {
	limit := len(rc.lines)
	if rc.dateLine >= 0 {
		limit = rc.dateLine
	}

	var nearest string
	for i := 0; i < limit; i++ {
		s := rc.lines[i]
		if !isNumberCandidateLine(s, rc.dateLine >= 0) {
			continue
		}
		if lonePrefixRe.MatchString(s) {
			if i+1 < limit && isNumberCandidateLine(rc.lines[i+1], rc.dateLine >= 0) && !lonePrefixRe.MatchString(rc.lines[i+1]) {
				return joinPrefix(s, rc.lines[i+1]), true
			}
			continue
		}
		nearest = s
	}
	return nearest, nearest != ""
}

func joinPrefix(prefix, number string) string {
	if strings.ContainsAny(prefix[len(prefix)-1:], "-/_") {
		return prefix + number
	}
	return prefix + " " + number
}

func isRejectedBeforeDate(tok string) bool {
	return tok == "" || isCitation(tok) || recipientRe.MatchString(tok) ||
		stopWordRe.MatchString(tok) || !digitRe.MatchString(tok)
}

// numberShape reports whether tok looks like a document number when it is
// not adjacent to the date.
func numberShape(tok string) bool {
	if isCitation(tok) {
		return false
	}
	return eightDigitsRe.MatchString(tok) || dashNumberRe.MatchString(tok) ||
		(strings.Contains(tok, "/") && digitRe.MatchString(tok) && !dateRe.MatchString(tok))
}

func numberBeforeDate(rc rowContext) (string, bool) {
	if !rc.hasDate() {
		for i, tok := range rc.tokens {
			if tok = cleanToken(tok); numberShape(tok) {
				return withDashPrefix(rc.tokens, i, tok), true
			}
		}
		return "", false
	}
	if rc.dateIndex == 0 {
		return "", false
	}

	if tok := cleanToken(rc.tokens[rc.dateIndex-1]); !isRejectedBeforeDate(tok) {
		return tok, true
	}
	for i := rc.dateIndex - 2; i >= 0 && rc.dateIndex-1-i <= numberLookback; i-- {
		if tok := cleanToken(rc.tokens[i]); numberShape(tok) {
			return withDashPrefix(rc.tokens, i, tok), true
		}
	}
	return "", false
}

// withDashPrefix joins a split "AB-" prefix printed before a long number.
func withDashPrefix(tokens []string, i int, tok string) string {
	if i == 0 || !eightDigitsRe.MatchString(tok) {
		return tok
	}
	if prev := cleanToken(tokens[i-1]); dashPrefixRe.MatchString(prev) {
		return prev + tok
	}
	return tok
}

func numberFromPrefixedPattern(rc rowContext) (string, bool) {
	search := func(text string) (string, bool) {
		for _, m := range prefixedInRowRe.FindAllStringSubmatch(text, -1) {
			if strings.EqualFold(m[1], "DPR") || citationTokens[m[2]] {
				continue
			}
			return m[1] + " " + m[2], true
		}
		return "", false
	}

	if rc.hasDate() {
		after := strings.Join(rc.tokens[rc.dateIndex+1:], " ")
		if n, ok := search(after); ok {
			return n, true
		}
	}
	return search(rc.text)
}

// numberFromBareDigits accepts a plain numeric token before the date even
// when it has the length of a recipient code.
func numberFromBareDigits(rc rowContext) (string, bool) {
	if rc.dateIndex <= 0 {
		return "", false
	}
	tok := cleanToken(rc.tokens[rc.dateIndex-1])
	if digitsLineRe.MatchString(tok) && !isCitation(tok) {
		return tok, true
	}
	return "", false
}

// documentType classifies the text before the date against the catalog.
// Unrecognized descriptions are returned as printed, minus the number.
func (c *Catalog) documentType(rc rowContext, number string) string {
	tokens := rc.preDateTokens()
	if number != "" {
		tokens = cutAt(tokens, number)
	}
	if len(tokens) == 0 {
		return ""
	}

	if entry, ok := c.classify(tokens); ok {
		return entry
	}
	return collapse(typeFragmentRe.ReplaceAllString(strings.Join(tokens, " "), " "))
}

func (c *Catalog) classify(tokens []string) (string, bool) {
	text := strings.ToLower(strings.Join(tokens, " "))

	codes := make(map[string]bool)
	for _, tok := range tokens {
		if len(tok) >= 4 && typeCodeLineRe.MatchString(tok) {
			codes[strings.ToUpper(tok[:4])] = true
		}
	}

	best, bestScore, anchored := "", anchoredTypeThreshold, false
	for _, e := range c.entries {
		if !codes[e.code] {
			continue
		}
		anchored = true
		score := levenshtein.Similarity(text, e.lower, nil)
		if text == strings.ToLower(e.code) {
			// columnar layouts print the bare code
			score = 1
		}
		if score > bestScore {
			best, bestScore = e.text, score
		}
	}
	if anchored {
		return best, best != ""
	}

	best, bestScore = "", unanchoredTypeThreshold
	for _, e := range c.entries {
		if e.tail == "" {
			continue
		}
		if score := levenshtein.Similarity(text, e.tail, nil); score > bestScore {
			best, bestScore = e.text, score
		}
	}
	return best, best != ""
}

// cutAt drops the last occurrence of number's tokens and everything after
// it. A number joined from a split prefix ("AB/" + "000123") is cut at the
// prefix token.
func cutAt(tokens []string, number string) []string {
	seq := strings.Fields(number)
	for i := len(tokens) - len(seq); i >= 0; i-- {
		match := true
		for j, s := range seq {
			if cleanToken(tokens[i+j]) != s {
				match = false
				break
			}
		}
		if match {
			return tokens[:i]
		}
	}
	for i := len(tokens) - 1; i >= 0; i-- {
		tok := cleanToken(tokens[i])
		if len(tok) >= 2 && tok != number && strings.HasPrefix(number, tok) && !bareTypeCodeRe.MatchString(tok) {
			return tokens[:i]
		}
	}
	return tokens
}

// extractDocument fills the document section from the row following the
// located header.
func (p *Parser) extractDocument(lines []line, header HeaderLocation) (*models.Document, rowContext) {
	doc := &models.Document{}
	if header.HasArticle73() {
		doc.Article73 = strPtr(LabelArticle73)
	}

	rc := newRowContext(collectRow(lines, header.End), gluedRow(lines, header.End))
	if len(rc.tokens) == 0 {
		return doc, rc
	}

	if rc.hasDate() {
		doc.IssueDate = strPtr(rc.date)
		doc.RecipientCode = strPtr(rc.recipientCode())
	}

	number, _ := numberChain.first(rc)
	doc.Number = strPtr(number)
	doc.TypeCode = strPtr(p.catalog.documentType(rc, number))
	return doc, rc
}
