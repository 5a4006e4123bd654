package pdftext

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestExtractorsRejectInvalidFiles(t *testing.T) {
	dir := t.TempDir()
	notPDF := filepath.Join(dir, "fattura.pdf")
	if err := os.WriteFile(notPDF, []byte("questa non e una fattura"), 0o644); err != nil {
		t.Fatal(err)
	}
	missing := filepath.Join(dir, "missing.pdf")
	truncated := filepath.Join(dir, "troncata.pdf")
	if err := os.WriteFile(truncated, []byte("%PDF-1.7\n1 0 obj\n<< /Type /Catalog\nstartxref\n999999\n%%EOF\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, ex := range []Extractor{NewRowExtractor(), NewPlainExtractor()} {
		for _, path := range []string{notPDF, missing, truncated} {
			t.Run(ex.Name()+"/"+filepath.Base(path), func(t *testing.T) {
				text, err := ex.ExtractText(context.Background(), path)
				if err == nil {
					t.Fatalf("ExtractText() = %q, want error", text)
				}
				var extractErr *ExtractError
				if !errors.As(err, &extractErr) {
					t.Fatalf("error %v is not an *ExtractError", err)
				}
				if extractErr.Backend != ex.Name() || extractErr.Path != path {
					t.Errorf("ExtractError = %+v", extractErr)
				}
			})
		}
	}
}

func TestExtractorsCloseFiles(t *testing.T) {
	fds, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		t.Skip("no /proc/self/fd")
	}
	before := len(fds)

	path := filepath.Join(t.TempDir(), "fattura.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4\n%%EOF\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, ex := range []Extractor{NewRowExtractor(), NewPlainExtractor()} {
		for i := 0; i < 50; i++ {
			ex.ExtractText(context.Background(), path)
		}
	}

	fds, err = os.ReadDir("/proc/self/fd")
	if err != nil {
		t.Fatal(err)
	}
	if len(fds) > before+2 {
		t.Errorf("open descriptors grew from %d to %d", before, len(fds))
	}
}

func TestPlainExtractorHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPlainExtractor().ExtractText(ctx, "unused.pdf")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("ExtractText() error = %v, want context.Canceled", err)
	}
}

func TestMeaningfulChars(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{" \n\f\t", 0},
		{"TD01 è", 5},
		{"Totale\fdocumento", 15},
	}
	for _, tt := range tests {
		if got := MeaningfulChars(tt.text); got != tt.want {
			t.Errorf("MeaningfulChars(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}
