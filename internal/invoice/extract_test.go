package invoice

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"fatture/internal/ocr"
)

type fakeText struct {
	name string
	text string
	err  error
}

func (f fakeText) Name() string { return f.name }

func (f fakeText) ExtractText(ctx context.Context, path string) (string, error) {
	return f.text, f.err
}

type fakeOCR struct {
	text  string
	err   error
	calls int
}

func (f *fakeOCR) Name() string { return ocr.BackendVision }

func (f *fakeOCR) ProcessPDF(ctx context.Context, r io.Reader) (string, error) {
	f.calls++
	return f.text, f.err
}

func (f *fakeOCR) ProcessPDFWithMetadata(ctx context.Context, r io.Reader) (*ocr.OCRResult, error) {
	text, err := f.ProcessPDF(ctx, r)
	if err != nil {
		return nil, err
	}
	return &ocr.OCRResult{Text: text, Backend: f.Name()}, nil
}

func (f *fakeOCR) Close() error { return nil }

const extractInvoiceText = `Tipologia documento Art. 73 Numero documento Data documento Codice destinatario
TD01 fattura 12 01-02-2025 0000000
Totale documento 100,00`

func writeFakePDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fattura.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExtractInvoiceBackends(t *testing.T) {
	tests := []struct {
		name        string
		native      fakeText
		fallback    fakeText
		ocr         *fakeOCR
		wantBackend string
		wantOCR     bool
		wantNumber  string
	}{
		{
			name:        "native text layer",
			native:      fakeText{name: "native", text: extractInvoiceText},
			fallback:    fakeText{name: "fallback", err: errors.New("unused")},
			ocr:         &fakeOCR{},
			wantBackend: "native",
			wantNumber:  "12",
		},
		{
			name:        "fallback when native is nearly empty",
			native:      fakeText{name: "native", text: " \f 1 "},
			fallback:    fakeText{name: "fallback", text: extractInvoiceText},
			wantBackend: "fallback",
			wantNumber:  "12",
		},
		{
			name:        "native error degrades to fallback",
			native:      fakeText{name: "native", err: errors.New("malformed xref")},
			fallback:    fakeText{name: "fallback", text: extractInvoiceText},
			wantBackend: "fallback",
			wantNumber:  "12",
		},
		{
			name:        "OCR when no document keys",
			native:      fakeText{name: "native", text: "Fattura elettronica senza tabella documento"},
			fallback:    fakeText{name: "fallback"},
			ocr:         &fakeOCR{text: extractInvoiceText},
			wantBackend: ocr.BackendVision,
			wantOCR:     true,
			wantNumber:  "12",
		},
		{
			name:        "OCR failure keeps text layer",
			native:      fakeText{name: "native", text: "Fattura elettronica senza tabella documento"},
			fallback:    fakeText{name: "fallback"},
			ocr:         &fakeOCR{err: errors.New("quota")},
			wantBackend: "native",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var service ocr.OCRService
			if tt.ocr != nil {
				service = tt.ocr
			}
			e := NewExtractorWithBackends(NewParser(FallbackCatalog()), tt.native, tt.fallback, service)

			result, err := e.ExtractInvoice(context.Background(), writeFakePDF(t))
			if err != nil {
				t.Fatalf("ExtractInvoice() error = %v", err)
			}
			if result.Backend != tt.wantBackend || result.OCRUsed != tt.wantOCR {
				t.Errorf("Backend = %q, OCRUsed = %v", result.Backend, result.OCRUsed)
			}

			var number string
			if result.Record.Document != nil && result.Record.Document.Number != nil {
				number = *result.Record.Document.Number
			}
			if number != tt.wantNumber {
				t.Errorf("Number = %q, want %q", number, tt.wantNumber)
			}
			if tt.wantNumber != "" && tt.ocr != nil && !tt.wantOCR && tt.ocr.calls != 0 {
				t.Errorf("OCR ran %d times for a complete text layer", tt.ocr.calls)
			}
		})
	}
}

func TestExtractInvoiceEmptyDocument(t *testing.T) {
	e := NewExtractorWithBackends(nil, fakeText{name: "native"}, fakeText{name: "fallback"}, nil)

	result, err := e.ExtractInvoice(context.Background(), "scan.pdf")
	if err != nil {
		t.Fatalf("ExtractInvoice() error = %v", err)
	}
	if result.Record == nil || result.Record.Document != nil || result.Record.LineItems == nil {
		t.Errorf("Record = %+v, want an empty record", result.Record)
	}
}

func TestExtractInvoiceCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := NewExtractorWithBackends(nil, fakeText{name: "native", text: extractInvoiceText}, nil, nil)
	_, err := e.ExtractInvoice(ctx, "fattura.pdf")
	if !errors.Is(err, ErrContextCanceled) {
		t.Fatalf("ExtractInvoice() error = %v, want ErrContextCanceled", err)
	}
}

func TestExtractInvoiceDiagnostics(t *testing.T) {
	e := NewExtractorWithBackends(NewParser(FallbackCatalog()), fakeText{name: "native", text: extractInvoiceText}, nil, nil)
	e.SetDiagnostics(true)

	result, err := e.ExtractInvoice(context.Background(), "fattura.pdf")
	if err != nil {
		t.Fatalf("ExtractInvoice() error = %v", err)
	}
	if result.Diagnostics == nil || !result.Diagnostics.Header.Found {
		t.Errorf("Diagnostics = %+v, want a located header", result.Diagnostics)
	}
}
