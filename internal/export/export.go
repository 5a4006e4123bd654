// Package export turns parsed invoices into flat rows and writes them to
// tabular sinks (CSV, Excel).
package export

import (
	"encoding/json"
	"strconv"

	"fatture/pkg/models"
)

// Meta describes how a record was obtained.
type Meta struct {
	File    string
	Backend string
	OCRUsed bool
	// Error is set for documents that could not be extracted.
	Error string
}

// Columns is the fixed column order of every flattened row.
var Columns = []string{
	"file",
	"backend",
	"ocr_used",
	"document.type_code",
	"document.number",
	"document.issue_date",
	"document.recipient_code",
	"document.article_73",
	"seller.vat_id",
	"seller.tax_code",
	"seller.legal_name",
	"seller.fiscal_regime",
	"seller.address",
	"seller.city",
	"seller.province",
	"seller.postal_code",
	"seller.country",
	"seller.phone",
	"buyer.vat_id",
	"buyer.tax_code",
	"buyer.legal_name",
	"buyer.address",
	"buyer.city",
	"buyer.province",
	"buyer.postal_code",
	"buyer.country",
	"line_items.count",
	"line_items",
	"totals.taxable_amount",
	"totals.tax_amount",
	"totals.total_amount",
	"payment.method",
	"payment.due_date",
	"payment.due_amount",
	"error",
}

// Row holds one value per column, in Columns order. A value is a string,
// a float64, an int, a bool, or nil when the field was not found.
type Row []any

// Sink receives flattened rows.
type Sink interface {
	Write(row Row) error
	Close() error
}

// Flatten maps a record onto Columns. record may be nil for failed documents.
func Flatten(record *models.InvoiceRecord, meta Meta) Row {
	if record == nil {
		record = models.NewInvoiceRecord()
	}

	var doc models.Document
	if record.Document != nil {
		doc = *record.Document
	}
	var seller, buyer models.Party
	if record.Seller != nil {
		seller = *record.Seller
	}
	if record.Buyer != nil {
		buyer = *record.Buyer
	}

	var errValue any
	if meta.Error != "" {
		errValue = meta.Error
	}

	return Row{
		meta.File,
		meta.Backend,
		meta.OCRUsed,
		str(doc.TypeCode),
		str(doc.Number),
		str(doc.IssueDate),
		str(doc.RecipientCode),
		str(doc.Article73),
		str(seller.VATID),
		str(seller.TaxCode),
		str(seller.LegalName),
		str(seller.FiscalRegime),
		str(seller.Address),
		str(seller.City),
		str(seller.Province),
		str(seller.PostalCode),
		str(seller.Country),
		str(seller.Phone),
		str(buyer.VATID),
		str(buyer.TaxCode),
		str(buyer.LegalName),
		str(buyer.Address),
		str(buyer.City),
		str(buyer.Province),
		str(buyer.PostalCode),
		str(buyer.Country),
		len(record.LineItems),
		lineItems(record.LineItems),
		num(record.Totals.TaxableAmount),
		num(record.Totals.TaxAmount),
		num(record.Totals.TotalAmount),
		str(record.Payment.Method),
		str(record.Payment.DueDate),
		num(record.Payment.DueAmount),
		errValue,
	}
}

// Strings renders the row as text cells. Absent values are empty strings and
// amounts keep two decimals.
func (r Row) Strings() []string {
	out := make([]string, len(r))
	for i, v := range r {
		switch v := v.(type) {
		case nil:
		case string:
			out[i] = v
		case float64:
			out[i] = strconv.FormatFloat(v, 'f', 2, 64)
		case int:
			out[i] = strconv.Itoa(v)
		case bool:
			out[i] = strconv.FormatBool(v)
		}
	}
	return out
}

// Get returns the value of column, or nil when the column is unknown.
func (r Row) Get(column string) any {
	for i, c := range Columns {
		if c == column && i < len(r) {
			return r[i]
		}
	}
	return nil
}

// lineItems keeps the detail rows as a JSON array in a single cell.
func lineItems(items []models.LineItem) any {
	if len(items) == 0 {
		return nil
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil
	}
	return string(data)
}

func str(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func num(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
