package invoice

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"fatture/pkg/models"
)

const minLegalNameLen = 5

var (
	sellerBlockRe = regexp.MustCompile(`(?is)Cedente/prestatore\s*\(fornitore\)(.*?)(?:Cessionario/committente|Tipologia documento)`)
	buyerBlockRe  = regexp.MustCompile(`(?is)Cessionario/committente\s*\(cliente\)(.*?)(?:Tipologia documento|RIEPILOGHI|Cod\.)`)

	vatIDRe        = fieldRe(`\bIVA\s*[:\-]?\s*(\S+)`)
	taxCodeRe      = fieldRe(`Codice fiscale\s*[:\-]?\s*(\S+)`)
	provinceRe     = fieldRe(`Provincia\s*[:\-]?\s*([A-Z]{2})`)
	postalCodeRe   = fieldRe(`Cap\s*[:\-]?\s*(\d{5})`)
	countryRe      = fieldRe(`Nazione\s*[:\-]?\s*(\S+)`)
	phoneRe        = fieldRe(`Telefono\s*[:\-]?\s*(\S+)`)
	legalNameLabel = regexp.MustCompile(`(?i)Denominazione\s*[:\-]?\s*`)

	sellerNameRe    = fieldRe(`Denominazione\s*[:\-]?\s*(.*?)(?:Comune|Regime fiscale|Indirizzo|Cap|Provincia|Nazione|Telefono|$)`)
	sellerRegimeRe  = fieldRe(`Regime fiscale\s*[:\-]?\s*(.*?)(?:Indirizzo|Comune|Provincia|Cap|Nazione|Telefono|$)`)
	sellerAddressRe = fieldRe(`Indirizzo\s*[:\-]?\s*(.*?)(?:Comune|Provincia|Cap|Nazione|Telefono|$)`)
	sellerCityRe    = fieldRe(`Comune\s*[:\-]?\s*(.*?)(?:Provincia|Cap|Nazione|Telefono|$)`)
	sellerNameStop  = regexp.MustCompile(`(?i)\b(?:Regime fiscale|Indirizzo|Comune|Provincia|Cap|Nazione|Telefono)\b`)

	buyerNameRe    = fieldRe(`Denominazione\s*[:\-]?\s*(.*?)(?:Indirizzo|Comune|Provincia|Cap|Nazione|$)`)
	buyerAddressRe = fieldRe(`Indirizzo\s*[:\-]?\s*(.*?)(?:Comune|Provincia|Cap|Nazione|$)`)
	buyerCityRe    = fieldRe(`Comune\s*[:\-]?\s*(.*?)(?:Provincia|Cap|Nazione|$)`)
	buyerNameStop  = regexp.MustCompile(`(?i)\b(?:Indirizzo|Comune|Provincia|Cap|Nazione)\b`)
)

func fieldRe(pattern string) *regexp.Regexp {
	return regexp.MustCompile(`(?ims)` + pattern)
}

// group returns the trimmed first capture group, or nil.
func group(re *regexp.Regexp, s string) *string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	return strPtr(strings.TrimSpace(m[1]))
}

func extractSeller(clean string) *models.Party {
	m := sellerBlockRe.FindStringSubmatch(clean)
	if m == nil {
		return nil
	}
	block := m[1]

	return &models.Party{
		VATID:        group(vatIDRe, block),
		TaxCode:      group(taxCodeRe, block),
		LegalName:    legalName(block, sellerNameRe, sellerNameStop),
		FiscalRegime: group(sellerRegimeRe, block),
		Address:      group(sellerAddressRe, block),
		City:         group(sellerCityRe, block),
		Province:     group(provinceRe, block),
		PostalCode:   group(postalCodeRe, block),
		Country:      group(countryRe, block),
		Phone:        group(phoneRe, block),
	}
}

func extractBuyer(clean string) *models.Party {
	m := buyerBlockRe.FindStringSubmatch(clean)
	if m == nil {
		return nil
	}
	block := m[1]

	return &models.Party{
		VATID:      group(vatIDRe, block),
		TaxCode:    group(taxCodeRe, block),
		LegalName:  legalName(block, buyerNameRe, buyerNameStop),
		Address:    group(buyerAddressRe, block),
		City:       group(buyerCityRe, block),
		Province:   group(provinceRe, block),
		PostalCode: group(postalCodeRe, block),
		Country:    group(countryRe, block),
	}
}

// legalName reads Denominazione. Names wrapped over several lines come back
// implausibly short from the single-line pattern; they are then read up to
// the next field label.
func legalName(block string, re, stop *regexp.Regexp) *string {
	if name := group(re, block); name != nil && utf8.RuneCountInString(*name) >= minLegalNameLen {
		return name
	}

	loc := legalNameLabel.FindStringIndex(block)
	if loc == nil {
		return nil
	}
	tail := block[loc[1]:]
	if s := stop.FindStringIndex(tail); s != nil {
		tail = tail[:s[0]]
	}
	return strPtr(collapse(tail))
}
