// Package invoice recovers structured data from the text of Italian
// electronic invoices (the PDF rendering of FatturaPA documents).
//
// The parser works on plain text only. It locates the DOCUMENTO table header,
// which PDF backends print on one line or spread over several, collects the
// value row that follows it and disambiguates issue date, document number
// and document type positionally around the date. Seller, buyer, line items,
// totals and payment terms are read from label-bounded blocks.
//
// Parsing never fails. Every field that cannot be recovered is nil, and a
// section whose anchor is missing is nil as a whole.
//
// Around the parser the package provides the extraction pipeline (PDF text
// layer, fallback backend, OCR), totals validation and an optional LLM
// completion step for document fields the heuristics left empty.
//
// Environment Variables:
//   - TD_CATALOG_PATH: catalog file read by DefaultCatalog (default "TDxx fattura.help")
package invoice

import (
	"context"

	"fatture/pkg/models"
)

// InvoiceExtractor reads a PDF invoice and parses it.
type InvoiceExtractor interface {
	ExtractInvoice(ctx context.Context, pdfPath string) (*ExtractResult, error)
}

// ExtractResult is the outcome of extracting one PDF.
type ExtractResult struct {
	// Text is the text the record was parsed from.
	Text string `json:"-"`

	Record *models.InvoiceRecord `json:"record"`

	// Backend names the text source: a PDF backend or an OCR service.
	Backend string `json:"backend"`

	OCRUsed bool `json:"ocr_used"`

	// Diagnostics is set when the extractor runs with diagnostics enabled.
	Diagnostics *Diagnostics `json:"diagnostics,omitempty"`
}
