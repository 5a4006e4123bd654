package invoice

import (
	"regexp"
	"strings"

	"fatture/pkg/models"
)

const dueAmountWindow = 200

// Known payment method names, most specific first.
var paymentMethods = []string{
	"RIBA", "SEPA Direct Debit", "SEPA", "Bonifico",
	"Domiciliazione", "Contanti", "RID", "Assegno",
}

// Words printed after an MPxx code in tabular layouts that are column
// labels, not method names.
var paymentMethodDenylist = map[string]bool{
	"data": true, "allegati": true, "iban": true, "importo": true,
	"scadenza": true, "istituto": true, "beneficiario": true, "codice": true,
}

var (
	inlineMethodRe   = regexp.MustCompile(`(?i)\bMP\d{2}\s+([\p{L}\p{N}_]+)`)
	methodRegionRe   = regexp.MustCompile(`(?is)Modalit\S*\s*pagamento(.*?)MP\d{2}`)
	methodNameRes    = make([]*regexp.Regexp, len(paymentMethods))
	dueCombinedRe    = regexp.MustCompile(`(?i)Data scadenza\s+([\d\-/]+)\s+([\d\.,]+)`)
	dueDateRe        = regexp.MustCompile(`(?i)Data scadenza\s+(\d[\d\-/]*\d)`)
	paymentSectionRe = regexp.MustCompile(`(?is)MP\d{2}.*?(?:Allegati|\z)`)
)

func init() {
	for i, name := range paymentMethods {
		methodNameRes[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(name) + `\b`)
	}
}

type dueTerms struct {
	date   string
	amount *float64
}

var methodChain = chain[string, string]{
	methodInline,
	methodFromRegion,
}

var dueChain = chain[string, dueTerms]{
	dueCombined,
	dueDateThenAmount,
}

func extractPayment(clean string) models.Payment {
	var p models.Payment
	if method, ok := methodChain.first(clean); ok {
		p.Method = &method
	}
	if due, ok := dueChain.first(clean); ok {
		p.DueDate = strPtr(due.date)
		p.DueAmount = due.amount
	}
	return p
}

func methodInline(clean string) (string, bool) {
	for _, m := range inlineMethodRe.FindAllStringSubmatch(clean, -1) {
		if !paymentMethodDenylist[strings.ToLower(m[1])] {
			return m[1], true
		}
	}
	return "", false
}

func methodFromRegion(clean string) (string, bool) {
	m := methodRegionRe.FindStringSubmatch(clean)
	if m == nil {
		return "", false
	}
	for i, re := range methodNameRes {
		if re.MatchString(m[1]) {
			return paymentMethods[i], true
		}
	}
	return "", false
}

// dueCombined matches the inline layout: date and amount on one line.
func dueCombined(clean string) (dueTerms, bool) {
	m := dueCombinedRe.FindStringSubmatch(clean)
	if m == nil {
		return dueTerms{}, false
	}
	return dueTerms{date: m[1], amount: amountPtr(m[2])}, true
}

// dueDateThenAmount handles the multi-line layout: the nearest Italian
// amount after the date, within the rest of its MPxx section, else within
// the next 200 bytes.
func dueDateThenAmount(clean string) (dueTerms, bool) {
	m := dueDateRe.FindStringSubmatchIndex(clean)
	if m == nil {
		return dueTerms{}, false
	}
	due := dueTerms{date: clean[m[2]:m[3]]}
	after := m[1]

	for _, sec := range paymentSectionRe.FindAllStringIndex(clean, -1) {
		if sec[0] <= after && after <= sec[1] {
			if a := italianAmountRe.FindString(clean[after:sec[1]]); a != "" {
				due.amount = amountPtr(a)
				return due, true
			}
			break
		}
	}

	end := min(after+dueAmountWindow, len(clean))
	if a := italianAmountRe.FindString(clean[after:end]); a != "" {
		due.amount = amountPtr(a)
	}
	return due, true
}
