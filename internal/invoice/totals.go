package invoice

import (
	"regexp"
	"strings"

	"fatture/pkg/models"
)

var (
	lineItemsBlockRe = regexp.MustCompile(`(?is)Prezzo totale\n(.*?)RIEPILOGHI IVA E TOTALI`)
	lineItemRe       = regexp.MustCompile(`(?m)^(.*?)\s+(\d{1,3}(?:[\.,]\d{1,3})?)\s+([\d\.,]+)\s+([A-Z]{1,3})\s+([\d\.,]+)\s+([\d\.,]+)\s*$`)

	taxableAmountRe = regexp.MustCompile(`(?i)Totale imponibile\s+([\d\.,]+)`)
	taxAmountRe     = regexp.MustCompile(`(?i)Totale imposta\s+([\d\.,]+)`)
	totalAmountRe   = regexp.MustCompile(`(?i)Totale documento\s+([\d\.,]+)`)
)

// extractLineItems reads the detail table between "Prezzo totale" and
// "RIEPILOGHI IVA E TOTALI". Rows that do not have the six columns are
// skipped.
func extractLineItems(clean string) []models.LineItem {
	items := []models.LineItem{}

	block := lineItemsBlockRe.FindStringSubmatch(clean)
	if block == nil {
		return items
	}

	for _, m := range lineItemRe.FindAllStringSubmatch(block[1], -1) {
		items = append(items, models.LineItem{
			Description:   strings.TrimSpace(m[1]),
			Quantity:      amountPtr(m[2]),
			UnitPrice:     amountPtr(m[3]),
			UnitOfMeasure: strPtr(m[4]),
			VATPercent:    amountPtr(m[5]),
			LineTotal:     amountPtr(m[6]),
		})
	}
	return items
}

func extractTotals(clean string) models.Totals {
	return models.Totals{
		TaxableAmount: amountGroup(taxableAmountRe, clean),
		TaxAmount:     amountGroup(taxAmountRe, clean),
		TotalAmount:   amountGroup(totalAmountRe, clean),
	}
}

func amountGroup(re *regexp.Regexp, s string) *float64 {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	return amountPtr(m[1])
}
