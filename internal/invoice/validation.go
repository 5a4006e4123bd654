package invoice

import (
	"math"

	"fatture/internal/logger"
	"fatture/pkg/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// amountTolerance is the rounding slack allowed between printed amounts.
var amountTolerance = decimal.New(1, -2)

// TotalsValidation cross-checks the amounts of a parsed record.
type TotalsValidation struct {
	log zerolog.Logger
}

// NewTotalsValidation creates a new totals validation service
func NewTotalsValidation() *TotalsValidation {
	return &TotalsValidation{
		log: logger.WithComponent("totals-validation"),
	}
}

// TotalsValidationResult lists the inconsistencies found. The record is
// never modified.
type TotalsValidationResult struct {
	Issues         []*ValidationError `json:"issues"`
	Warnings       []string           `json:"warnings"`
	HasDiscrepancy bool               `json:"has_discrepancy"`
	// Computed holds totals derivable from the others when one is missing.
	Computed models.Totals `json:"computed"`
}

// Validate checks that taxable plus tax equals the document total, that the
// line totals add up to the taxable amount and that the due amount does not
// exceed the total.
func (tv *TotalsValidation) Validate(record *models.InvoiceRecord) *TotalsValidationResult {
	result := &TotalsValidationResult{
		Issues:   []*ValidationError{},
		Warnings: []string{},
	}
	if record == nil {
		return result
	}

	t := record.Totals
	taxable, hasTaxable := dec(t.TaxableAmount)
	tax, hasTax := dec(t.TaxAmount)
	total, hasTotal := dec(t.TotalAmount)

	switch {
	case hasTaxable && hasTax && hasTotal:
		if sum := taxable.Add(tax); !within(sum, total) {
			tv.addIssue(result, "totals.total_amount", total.StringFixed(2),
				"taxable "+taxable.StringFixed(2)+" + tax "+tax.StringFixed(2)+" = "+sum.StringFixed(2))
		}
	case hasTaxable && hasTax:
		result.Computed.TotalAmount = floatPtr(taxable.Add(tax))
		result.Warnings = append(result.Warnings, "Total amount missing, computed from taxable + tax")
	case hasTotal && hasTax:
		result.Computed.TaxableAmount = floatPtr(total.Sub(tax))
		result.Warnings = append(result.Warnings, "Taxable amount missing, computed from total - tax")
	case hasTotal && hasTaxable:
		result.Computed.TaxAmount = floatPtr(total.Sub(taxable))
		result.Warnings = append(result.Warnings, "Tax amount missing, computed from total - taxable")
	}

	if hasTaxable && len(record.LineItems) > 0 {
		sum, complete := decimal.Zero, true
		for _, item := range record.LineItems {
			v, ok := dec(item.LineTotal)
			if !ok {
				complete = false
				break
			}
			sum = sum.Add(v)
		}
		if complete && !within(sum, taxable) {
			tv.addIssue(result, "line_items", sum.StringFixed(2),
				"line totals do not add up to taxable amount "+taxable.StringFixed(2))
		}
	}

	if due, ok := dec(record.Payment.DueAmount); ok && hasTotal && due.Sub(total).GreaterThan(amountTolerance) {
		tv.addIssue(result, "payment.due_amount", due.StringFixed(2),
			"due amount exceeds document total "+total.StringFixed(2))
	}

	tv.log.Debug().
		Int("issues", len(result.Issues)).
		Strs("warnings", result.Warnings).
		Msg("Totals validation completed")

	return result
}

func (tv *TotalsValidation) addIssue(result *TotalsValidationResult, field string, value interface{}, message string) {
	result.Issues = append(result.Issues, NewValidationError(field, value, message))
	result.HasDiscrepancy = true
	tv.log.Warn().
		Str("field", field).
		Interface("value", value).
		Str("detail", message).
		Msg("Totals inconsistency")
}

func dec(v *float64) (decimal.Decimal, bool) {
	if v == nil {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(*v), true
}

func within(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(amountTolerance)
}

// floatPtr returns nil when d does not fit a float64.
func floatPtr(d decimal.Decimal) *float64 {
	f := d.InexactFloat64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return nil
	}
	return &f
}
