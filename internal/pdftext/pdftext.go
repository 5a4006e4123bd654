// Package pdftext reads the embedded text layer of PDF invoices.
//
// Two extractors are provided. RowExtractor rebuilds visual rows from the
// positioned glyphs (ledongthuc/pdf) and is the native backend. PlainExtractor
// dumps the content streams in document order (dslipak/pdf) and is used as a
// fallback when the row reconstruction produces too little text. Both return
// pages separated by a form feed.
package pdftext

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Backend names reported by the extractors.
const (
	BackendNative   = "native"
	BackendFallback = "fallback"
)

// PageSeparator sits between page texts.
const PageSeparator = "\f"

var (
	// ErrOpenFailed is returned when the file cannot be opened as a PDF.
	ErrOpenFailed = errors.New("cannot open PDF")

	// ErrExtractFailed is returned when the PDF library fails while reading text.
	ErrExtractFailed = errors.New("text extraction failed")
)

// Extractor reads the text layer of a PDF file.
type Extractor interface {
	Name() string
	ExtractText(ctx context.Context, path string) (string, error)
}

// ExtractError carries the backend and file of a failed extraction.
type ExtractError struct {
	Backend string
	Path    string
	Err     error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("pdftext: %s backend failed on %s: %v", e.Backend, e.Path, e.Err)
}

func (e *ExtractError) Unwrap() error {
	return e.Err
}

func newExtractError(backend, path string, err error) error {
	return &ExtractError{Backend: backend, Path: path, Err: err}
}

// MeaningfulChars counts the non-whitespace runes in text.
func MeaningfulChars(text string) int {
	n := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

func joinPages(pages []string) string {
	return strings.Join(pages, PageSeparator)
}
