package models

// InvoiceRecord is the structured content recovered from the text of one
// Italian electronic invoice. A nil pointer anywhere in the tree means the
// value was not found; it is never conflated with a found-but-blank value.
type InvoiceRecord struct {
	Seller    *Party     `json:"seller"`     // Cedente/prestatore (fornitore)
	Buyer     *Party     `json:"buyer"`      // Cessionario/committente (cliente)
	Document  *Document  `json:"document"`   // DOCUMENTO table values
	LineItems []LineItem `json:"line_items"` // Always non-nil, empty when no table was found
	Totals    Totals     `json:"totals"`
	Payment   Payment    `json:"payment"`
}

// Party is one side of the invoice.
type Party struct {
	VATID        *string `json:"vat_id"`
	TaxCode      *string `json:"tax_code"`
	LegalName    *string `json:"legal_name"`
	FiscalRegime *string `json:"fiscal_regime"` // Seller only
	Address      *string `json:"address"`
	City         *string `json:"city"`
	Province     *string `json:"province"`    // Two-letter code
	PostalCode   *string `json:"postal_code"` // Five digits
	Country      *string `json:"country"`
	Phone        *string `json:"phone"` // Seller only
}

// Document holds the values of the DOCUMENTO header row.
type Document struct {
	TypeCode      *string `json:"type_code"`      // "TDxx description" or free text
	Number        *string `json:"number"`         // Original formatting preserved
	IssueDate     *string `json:"issue_date"`     // Verbatim, never reformatted
	RecipientCode *string `json:"recipient_code"` // Codice destinatario, 6-7 chars
	Article73     *string `json:"article_73"`     // "Art. 73" when the marker is present
}

// LineItem is one row of the detail table.
type LineItem struct {
	Description   string   `json:"description"`
	Quantity      *float64 `json:"quantity"`
	UnitPrice     *float64 `json:"unit_price"`
	UnitOfMeasure *string  `json:"unit_of_measure"`
	VATPercent    *float64 `json:"vat_percent"`
	LineTotal     *float64 `json:"line_total"`
}

// Totals holds the RIEPILOGHI amounts.
type Totals struct {
	TaxableAmount *float64 `json:"taxable_amount"`
	TaxAmount     *float64 `json:"tax_amount"`
	TotalAmount   *float64 `json:"total_amount"`
}

// Payment holds the payment terms.
type Payment struct {
	Method    *string  `json:"method"`
	DueDate   *string  `json:"due_date"`
	DueAmount *float64 `json:"due_amount"`
}

// NewInvoiceRecord returns a record with every section absent.
func NewInvoiceRecord() *InvoiceRecord {
	return &InvoiceRecord{LineItems: []LineItem{}}
}

// HasDocumentKeys reports whether at least one of number, issue date or
// recipient code was recovered. Extraction pipelines use it to decide whether
// the text is worth an OCR retry.
func (r *InvoiceRecord) HasDocumentKeys() bool {
	if r == nil || r.Document == nil {
		return false
	}
	d := r.Document
	return d.Number != nil || d.IssueDate != nil || d.RecipientCode != nil
}
