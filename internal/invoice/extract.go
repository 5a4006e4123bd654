package invoice

import (
	"context"
	"os"
	"strings"

	"fatture/internal/logger"
	"fatture/internal/ocr"
	"fatture/internal/pdftext"
	"fatture/pkg/models"
)

// MinNativeChars is the number of non-space characters below which the
// native text layer is considered missing and the fallback backend is tried.
const MinNativeChars = 10

// Extractor reads a PDF invoice through the text backends and, when the
// text layer is unusable, through OCR.
type Extractor struct {
	parser      *Parser
	native      pdftext.Extractor
	fallback    pdftext.Extractor
	ocr         ocr.OCRService
	diagnostics bool
}

// NewExtractor uses the native and fallback PDF backends. ocrService may be
// nil to disable OCR.
func NewExtractor(parser *Parser, ocrService ocr.OCRService) *Extractor {
	return NewExtractorWithBackends(parser, pdftext.NewRowExtractor(), pdftext.NewPlainExtractor(), ocrService)
}

// NewExtractorWithBackends creates an extractor with explicit backends (for testing).
func NewExtractorWithBackends(parser *Parser, native, fallback pdftext.Extractor, ocrService ocr.OCRService) *Extractor {
	if parser == nil {
		parser = NewParser(nil)
	}
	return &Extractor{
		parser:   parser,
		native:   native,
		fallback: fallback,
		ocr:      ocrService,
	}
}

// SetDiagnostics attaches header diagnostics to every result.
func (e *Extractor) SetDiagnostics(on bool) {
	e.diagnostics = on
}

// ExtractInvoice reads and parses one PDF. Backend failures are logged and
// degrade to the next source; only cancellation of ctx is returned as an
// error. A document no backend could read yields an empty record.
func (e *Extractor) ExtractInvoice(ctx context.Context, pdfPath string) (*ExtractResult, error) {
	const op = "ExtractInvoice"
	log := logger.WithFile("invoice-extractor", pdfPath)

	text, backend := e.readTextLayer(ctx, pdfPath)
	if ctx.Err() != nil {
		return nil, &InvoiceError{Op: op, Err: ErrContextCanceled, File: pdfPath}
	}

	result := e.parse(text, backend)

	if e.ocr != nil && (strings.TrimSpace(text) == "" || !result.Record.HasDocumentKeys()) {
		log.Info().
			Str("backend", backend).
			Msg("Text layer lacks document keys, running OCR")

		ocrText, err := e.runOCR(ctx, pdfPath)
		switch {
		case ctx.Err() != nil:
			return nil, &InvoiceError{Op: op, Err: ErrContextCanceled, File: pdfPath}
		case err != nil:
			log.Warn().Err(err).Str("ocr", e.ocr.Name()).Msg("OCR failed, keeping text layer result")
		case strings.TrimSpace(ocrText) != "":
			result = e.parse(ocrText, e.ocr.Name())
			result.OCRUsed = true
		}
	}

	if strings.TrimSpace(result.Text) == "" {
		log.Warn().Msg("No text could be extracted")
	}

	log.Info().
		Str("backend", result.Backend).
		Bool("ocr_used", result.OCRUsed).
		Bool("document_keys", result.Record.HasDocumentKeys()).
		Msg("Invoice extracted")

	return result, nil
}

// readTextLayer returns the native text, or the fallback text when the native
// backend yields fewer than MinNativeChars meaningful characters.
func (e *Extractor) readTextLayer(ctx context.Context, pdfPath string) (string, string) {
	log := logger.WithFile("invoice-extractor", pdfPath)

	var text string
	backend := pdftext.BackendNative
	if e.native != nil {
		backend = e.native.Name()
		t, err := e.native.ExtractText(ctx, pdfPath)
		if err != nil {
			log.Warn().Err(err).Msg("Native text extraction failed")
		}
		text = t
	}

	if pdftext.MeaningfulChars(text) >= MinNativeChars || e.fallback == nil || ctx.Err() != nil {
		return text, backend
	}

	t, err := e.fallback.ExtractText(ctx, pdfPath)
	if err != nil {
		log.Warn().Err(err).Msg("Fallback text extraction failed")
		return text, backend
	}
	if pdftext.MeaningfulChars(t) > pdftext.MeaningfulChars(text) {
		log.Debug().Msg("Using fallback text layer")
		return t, e.fallback.Name()
	}
	return text, backend
}

func (e *Extractor) runOCR(ctx context.Context, pdfPath string) (string, error) {
	const op = "runOCR"

	f, err := os.Open(pdfPath)
	if err != nil {
		return "", &InvoiceError{Op: op, Err: err, File: pdfPath}
	}
	defer f.Close()

	return e.ocr.ProcessPDF(ctx, f)
}

func (e *Extractor) parse(text, backend string) *ExtractResult {
	result := &ExtractResult{Text: text, Backend: backend}

	var record *models.InvoiceRecord
	if e.diagnostics {
		record, result.Diagnostics = e.parser.ParseWithDiagnostics(text)
	} else {
		record = e.parser.Parse(text)
	}
	result.Record = record
	return result
}
