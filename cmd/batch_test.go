package cmd

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fatture/internal/invoice"
	"fatture/internal/logger"
	"fatture/internal/store"
	"fatture/pkg/models"
)

type fakeExtractor struct {
	parser *invoice.Parser
	texts  map[string]string
}

func (f *fakeExtractor) ExtractInvoice(ctx context.Context, pdfPath string) (*invoice.ExtractResult, error) {
	text, ok := f.texts[filepath.Base(pdfPath)]
	if !ok {
		return nil, &invoice.InvoiceError{Op: "ExtractInvoice", Err: invoice.ErrInvalidPDF, File: pdfPath}
	}
	return &invoice.ExtractResult{Text: text, Record: f.parser.Parse(text), Backend: "native"}, nil
}

func TestBatchPipeline(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.pdf", "a.PDF", "rotto.pdf", "note.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("%PDF-1.4"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	files, err := findPDFFiles(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 3 || filepath.Base(files[0]) != "a.PDF" {
		t.Fatalf("findPDFFiles() = %v", files)
	}

	extractor := &fakeExtractor{
		parser: invoice.NewParser(invoice.FallbackCatalog()),
		texts: map[string]string{
			"a.PDF": "Tipologia documento Numero documento Data documento\nTD01 fattura 12 01-02-2025\nTotale imponibile 100,00\nTotale imposta 22,00\nTotale documento 122,00",
			"b.pdf": "nessun dato",
		},
	}

	log := logger.WithComponent("batch-test")
	results := processPDFsInParallel(context.Background(), files, extractor, 2, log, false)

	wantStatus := []string{statusSuccess, statusWarning, statusError}
	for i, r := range results {
		if r.Index != i || r.Status != wantStatus[i] {
			t.Errorf("results[%d] = %s %s, want %s", i, r.Filename, r.Status, wantStatus[i])
		}
	}
	if !errors.Is(results[2].Error, invoice.ErrInvalidPDF) {
		t.Errorf("results[2].Error = %v", results[2].Error)
	}
	if s, w, e := countStatuses(results); s != 1 || w != 1 || e != 1 {
		t.Errorf("countStatuses() = %d %d %d", s, w, e)
	}

	csvPath := filepath.Join(dir, "out.csv")
	dbPath := filepath.Join(dir, "fatture.db")
	err = exportResults(context.Background(), results, exportTargets{
		runID:   "run-test",
		csvPath: csvPath,
		dbPath:  dbPath,
	}, log)
	if err != nil {
		t.Fatalf("exportResults() error = %v", err)
	}

	f, err := os.Open(csvPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.Comma = ';'
	rows, err := r.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 4 {
		t.Fatalf("CSV has %d rows, want header plus 3", len(rows))
	}
	if rows[1][0] != "a.PDF" || !strings.Contains(rows[3][len(rows[3])-1], "invalid") {
		t.Errorf("CSV rows = %q", rows[1:])
	}

	archive, err := store.Open(context.Background(), dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer archive.Close()
	entries, err := archive.List(context.Background(), store.ListOptions{RunID: "run-test"})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("archived %d entries, want 2", len(entries))
	}
}

func TestArchiveResultsSkipsUnsavableRecord(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "fatture.db")
	inf := math.Inf(1)

	broken := models.NewInvoiceRecord()
	broken.Totals.TotalAmount = &inf

	results := []BatchResult{
		{Filename: "a.pdf", Path: "/in/a.pdf", Result: &invoice.ExtractResult{Record: models.NewInvoiceRecord(), Backend: "native"}},
		{Filename: "b.pdf", Path: "/in/b.pdf", Result: &invoice.ExtractResult{Record: broken, Backend: "native"}},
		{Filename: "c.pdf", Path: "/in/c.pdf", Result: &invoice.ExtractResult{Record: models.NewInvoiceRecord(), Backend: "fallback"}},
	}

	saved, err := archiveResults(context.Background(), results, "run-x", dbPath, logger.WithComponent("batch-test"))
	if err == nil || !strings.Contains(err.Error(), "b.pdf") {
		t.Errorf("archiveResults() error = %v, want failure for b.pdf", err)
	}
	if saved != 2 {
		t.Errorf("archiveResults() saved = %d, want 2", saved)
	}

	archive, err := store.Open(context.Background(), dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer archive.Close()
	entries, err := archive.List(context.Background(), store.ListOptions{RunID: "run-x"})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("archived %d entries, want 2", len(entries))
	}
	for _, e := range entries {
		if e.File == "/in/b.pdf" {
			t.Errorf("unsavable record was archived")
		}
	}
}
