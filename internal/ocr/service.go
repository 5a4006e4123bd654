// Package ocr recovers text from scanned or image-only PDF invoices.
//
// Two backends are provided: Google Cloud Vision document text detection and
// a Google Document AI OCR processor. Both send the PDF inline (no Cloud
// Storage upload) and return the page texts separated by form feeds, the
// same page separator the PDF text backends use.
//
// Environment Variables:
//   - GOOGLE_APPLICATION_CREDENTIALS: Path to service account JSON file, OR
//   - GOOGLE_CREDENTIALS: Inline JSON credentials string
//   - OCR_LANGUAGES: Vision language hints (default "it,en")
//   - GOOGLE_CLOUD_PROJECT, GOOGLE_CLOUD_LOCATION, DOCUMENT_AI_PROCESSOR_ID,
//     DOCUMENT_AI_PROCESSOR_VERSION: Document AI processor
//
// API Limitations:
//   - Maximum file size: 20MB for synchronous processing
//   - Vision: maximum 5 pages for synchronous processing
//   - Document AI: 15 pages for the synchronous OCR processor
package ocr

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// Backend names accepted by NewOCRService.
const (
	BackendVision     = "vision"
	BackendDocumentAI = "documentai"
	BackendNone       = "none"
)

// pageSeparator sits between page texts.
const pageSeparator = "\f"

// OCRService defines the interface for OCR text extraction services.
type OCRService interface {
	// Name identifies the backend in logs and results.
	Name() string

	// ProcessPDF extracts text from a PDF document.
	// Returns the concatenated text from all pages.
	ProcessPDF(ctx context.Context, pdfData io.Reader) (string, error)

	// ProcessPDFWithMetadata extracts text from a PDF document with additional metadata.
	ProcessPDFWithMetadata(ctx context.Context, pdfData io.Reader) (*OCRResult, error)

	Close() error
}

// OCRResult contains the results of OCR processing with metadata.
type OCRResult struct {
	// Text is the extracted text content from all pages, concatenated in reading order.
	Text string `json:"text"`

	// Backend is the service that produced the text.
	Backend string `json:"backend"`

	// PageCount is the number of pages that were processed.
	PageCount int `json:"page_count"`

	// Confidence is the average page confidence (0.0 to 1.0), 0 when the
	// backend does not report one.
	Confidence float32 `json:"confidence"`

	// ProcessedAt is the timestamp when the OCR processing completed.
	ProcessedAt time.Time `json:"processed_at"`

	// LanguageCodes contains the detected languages in the document.
	LanguageCodes []string `json:"language_codes,omitempty"`

	// ProcessingDuration is how long the OCR processing took.
	ProcessingDuration time.Duration `json:"processing_duration"`
}

// Options configures the backends created by NewOCRService.
type Options struct {
	// LanguageHints are passed to Vision; empty uses DefaultLanguageHints.
	LanguageHints []string

	DocumentAI DocumentAIConfig
}

// OptionsFromEnv reads OCR_LANGUAGES and the Document AI variables.
func OptionsFromEnv() Options {
	return Options{
		LanguageHints: languageHintsFromEnv(),
		DocumentAI:    DocumentAIConfigFromEnv(),
	}
}

// NewOCRService creates the OCR backend named by backend. BackendNone, or an
// empty name, returns a nil service and no error: OCR is disabled.
func NewOCRService(ctx context.Context, backend string, opts Options) (OCRService, error) {
	const op = "NewOCRService"

	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendNone:
		return nil, nil
	case BackendVision:
		return NewGoogleVisionOCRService(ctx, opts.LanguageHints)
	case BackendDocumentAI:
		return NewDocumentAIOCRService(ctx, opts.DocumentAI)
	default:
		return nil, NewOCRError(op, ErrUnknownBackend, fmt.Sprintf("backend %q", backend))
	}
}

// readPDF reads and validates the document shared by both backends.
func readPDF(op string, pdfData io.Reader) ([]byte, error) {
	pdfBytes, err := io.ReadAll(pdfData)
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to read PDF data")
	}

	if len(pdfBytes) > MaxFileSizeBytes {
		return nil, WrapOCRError(op, ErrPDFTooLarge, fmt.Sprintf("file size: %d bytes", len(pdfBytes)))
	}

	if len(pdfBytes) < 4 || string(pdfBytes[:4]) != "%PDF" {
		return nil, WrapOCRError(op, ErrInvalidPDF, "missing PDF header")
	}
	return pdfBytes, nil
}
