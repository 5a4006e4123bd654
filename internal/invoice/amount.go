package invoice

import (
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	thousandsOnlyRe = regexp.MustCompile(`^-?\d{1,3}(?:\.\d{3})+$`)
	italianAmountRe = regexp.MustCompile(`\d{1,3}(?:\.\d{3})*,\d{2}`)
)

// ParseAmount converts an amount as printed on an Italian invoice to a float.
// "1.234,56" is 1234.56; "50.00" and "50,00" are both 50; "1.500" is 1500.
// The second result is false when the string is not a number or does not
// fit a float64.
func ParseAmount(s string) (float64, bool) {
	d, ok := parseDecimal(s)
	if !ok {
		return 0, false
	}
	f := d.InexactFloat64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func parseDecimal(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimPrefix(s, "€"))
	s = strings.TrimRight(s, ".,")
	if s == "" {
		return decimal.Zero, false
	}

	switch {
	case strings.Contains(s, ","):
		if strings.LastIndex(s, ".") > strings.LastIndex(s, ",") {
			// 1,234.56
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		}
	case thousandsOnlyRe.MatchString(s):
		s = strings.ReplaceAll(s, ".", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// amountPtr parses s and returns nil when it is not a number.
func amountPtr(s string) *float64 {
	v, ok := ParseAmount(s)
	if !ok {
		return nil
	}
	return &v
}
