package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"path/filepath"
	"testing"

	"fatture/pkg/models"

	"github.com/xuri/excelize/v2"
)

func sp(s string) *string { return &s }

func fp(f float64) *float64 { return &f }

func sampleRecord() *models.InvoiceRecord {
	r := models.NewInvoiceRecord()
	r.Seller = &models.Party{VATID: sp("IT01234567890"), LegalName: sp("ACME FORNITURE S.R.L.")}
	r.Document = &models.Document{
		TypeCode:  sp("TD01 Fattura"),
		Number:    sp("2025/0042"),
		IssueDate: sp("15-03-2025"),
	}
	r.LineItems = []models.LineItem{{Description: "CONSULENZA"}, {Description: "MATERIALE"}}
	r.Totals = models.Totals{TaxableAmount: fp(250), TaxAmount: fp(55), TotalAmount: fp(305)}
	return r
}

func column(t *testing.T, name string) int {
	t.Helper()
	for i, c := range Columns {
		if c == name {
			return i
		}
	}
	t.Fatalf("no column %q", name)
	return -1
}

func TestFlatten(t *testing.T) {
	row := Flatten(sampleRecord(), Meta{File: "a.pdf", Backend: "native"})
	if len(row) != len(Columns) {
		t.Fatalf("len(row) = %d, want %d", len(row), len(Columns))
	}

	tests := []struct {
		column string
		want   any
	}{
		{"file", "a.pdf"},
		{"backend", "native"},
		{"ocr_used", false},
		{"document.number", "2025/0042"},
		{"document.issue_date", "15-03-2025"},
		{"document.recipient_code", nil},
		{"seller.vat_id", "IT01234567890"},
		{"buyer.legal_name", nil},
		{"line_items.count", 2},
		{"totals.total_amount", 305.0},
		{"payment.due_amount", nil},
		{"error", nil},
	}
	for _, tt := range tests {
		if got := row.Get(tt.column); got != tt.want {
			t.Errorf("%s = %#v, want %#v", tt.column, got, tt.want)
		}
	}

	cell, ok := row.Get("line_items").(string)
	if !ok {
		t.Fatalf("line_items = %#v, want JSON text", row.Get("line_items"))
	}
	var items []models.LineItem
	if err := json.Unmarshal([]byte(cell), &items); err != nil {
		t.Fatalf("line_items is not JSON: %v", err)
	}
	if len(items) != 2 || items[0].Description != "CONSULENZA" || items[1].Description != "MATERIALE" {
		t.Errorf("line_items = %s", cell)
	}
}

func TestFlattenFailedDocument(t *testing.T) {
	row := Flatten(nil, Meta{File: "broken.pdf", Error: "invalid PDF"})
	if row.Get("error") != "invalid PDF" || row.Get("line_items.count") != 0 || row.Get("line_items") != nil {
		t.Errorf("row = %v", row)
	}
	s := row.Strings()
	if s[column(t, "document.number")] != "" || s[column(t, "ocr_used")] != "false" {
		t.Errorf("Strings() = %q", s)
	}
}

func TestCSVWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewCSVWriter(&buf)
	if err := w.Write(Flatten(sampleRecord(), Meta{File: "a.pdf", Backend: "native"})); err != nil {
		t.Fatal(err)
	}
	if err := w.Write(Flatten(nil, Meta{File: "b.pdf", Error: "no text"})); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r := csv.NewReader(&buf)
	r.Comma = ';'
	records, err := r.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want header plus 2", len(records))
	}
	if records[0][0] != "file" || records[1][column(t, "totals.total_amount")] != "305.00" {
		t.Errorf("records = %q", records[:2])
	}
	if records[2][column(t, "error")] != "no text" {
		t.Errorf("error cell = %q", records[2][column(t, "error")])
	}
}

func TestCSVWriterHeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	if err := NewCSVWriter(&buf).Close(); err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("file;backend;ocr_used;")) {
		t.Errorf("output = %q", buf.String())
	}
}

func TestExcelSinkAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fatture.xlsx")

	for _, file := range []string{"a.pdf", "b.pdf"} {
		s, err := OpenExcelSink(path, "")
		if err != nil {
			t.Fatalf("OpenExcelSink() error = %v", err)
		}
		if err := s.Write(Flatten(sampleRecord(), Meta{File: file, Backend: "native"})); err != nil {
			t.Fatal(err)
		}
		if err := s.Close(); err != nil {
			t.Fatal(err)
		}
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if got := f.GetSheetList(); len(got) != 1 || got[0] != DefaultSheet {
		t.Errorf("GetSheetList() = %v", got)
	}
	rows, err := f.GetRows(DefaultSheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header plus 2", len(rows))
	}
	if rows[0][0] != "file" || rows[1][0] != "a.pdf" || rows[2][0] != "b.pdf" {
		t.Errorf("first column = %q %q %q", rows[0][0], rows[1][0], rows[2][0])
	}

	cell, _ := excelize.CoordinatesToCellName(column(t, "totals.total_amount")+1, 2)
	typ, err := f.GetCellType(DefaultSheet, cell)
	if err != nil {
		t.Fatal(err)
	}
	if typ != excelize.CellTypeNumber && typ != excelize.CellTypeUnset {
		t.Errorf("total cell type = %v, want number", typ)
	}
	if v, _ := f.GetCellValue(DefaultSheet, cell); v != "305" {
		t.Errorf("total cell = %q, want 305", v)
	}
}
