package invoice

import (
	"fatture/internal/logger"
	"fatture/pkg/models"

	"github.com/rs/zerolog"
)

// Diagnostics explains how the DOCUMENTO section was read.
type Diagnostics struct {
	Header    HeaderLocation `json:"header"`
	RowLines  []string       `json:"row_lines"`
	RowText   string         `json:"row_text"`
	Tokens    []string       `json:"tokens"`
	DateIndex int            `json:"date_index"`
}

// Parser turns invoice text into an InvoiceRecord. It holds no per-call
// state and is safe for concurrent use.
type Parser struct {
	catalog *Catalog
	log     zerolog.Logger
}

// NewParser returns a parser classifying document types against catalog.
// A nil catalog selects DefaultCatalog.
func NewParser(catalog *Catalog) *Parser {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Parser{
		catalog: catalog,
		log:     logger.WithComponent("invoice-parser"),
	}
}

// ParseText parses text with the default catalog.
func ParseText(text string) *models.InvoiceRecord {
	return NewParser(nil).Parse(text)
}

// Parse never fails: fields that cannot be recovered are left nil.
func (p *Parser) Parse(text string) *models.InvoiceRecord {
	record, _ := p.ParseWithDiagnostics(text)
	return record
}

// ParseWithDiagnostics parses text and reports the header and row used for
// the document section.
func (p *Parser) ParseWithDiagnostics(text string) (*models.InvoiceRecord, *Diagnostics) {
	record := models.NewInvoiceRecord()
	diag := &Diagnostics{
		Header:    HeaderLocation{Start: -1, End: -1},
		DateIndex: -1,
	}
	if text == "" {
		return record, diag
	}

	clean, rawLines := Normalize(text)
	lines := classifyLines(rawLines)

	record.Seller = guard(p.log, "seller", func() *models.Party { return extractSeller(clean) })
	record.Buyer = guard(p.log, "buyer", func() *models.Party { return extractBuyer(clean) })

	diag.Header = guard(p.log, "header", func() HeaderLocation { return locateHeader(lines) })
	if diag.Header.Found {
		record.Document = guard(p.log, "document", func() *models.Document {
			doc, rc := p.extractDocument(lines, diag.Header)
			diag.RowLines = rc.lines
			diag.RowText = rc.text
			diag.Tokens = rc.tokens
			diag.DateIndex = rc.dateIndex
			return doc
		})
	}

	record.LineItems = guard(p.log, "line_items", func() []models.LineItem { return extractLineItems(clean) })
	if record.LineItems == nil {
		record.LineItems = []models.LineItem{}
	}
	record.Totals = guard(p.log, "totals", func() models.Totals { return extractTotals(clean) })
	record.Payment = guard(p.log, "payment", func() models.Payment { return extractPayment(clean) })

	p.log.Debug().
		Int("lines", len(lines)).
		Bool("header_found", diag.Header.Found).
		Str("strategy", string(diag.Header.Strategy)).
		Bool("document_keys", record.HasDocumentKeys()).
		Int("line_items", len(record.LineItems)).
		Msg("Parsed invoice text")

	return record, diag
}
