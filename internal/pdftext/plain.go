package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"fatture/internal/logger"

	"github.com/dslipak/pdf"
	"github.com/rs/zerolog"
)

// PlainExtractor returns the text of the content streams in document order.
type PlainExtractor struct {
	log zerolog.Logger
}

func NewPlainExtractor() *PlainExtractor {
	return &PlainExtractor{log: logger.WithComponent("pdftext-fallback")}
}

func (e *PlainExtractor) Name() string {
	return BackendFallback
}

func (e *PlainExtractor) ExtractText(ctx context.Context, path string) (text string, err error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	defer func() {
		if rec := recover(); rec != nil {
			e.log.Warn().Str("file", path).Interface("panic", rec).Msg("PDF library panicked")
			text = ""
			err = newExtractError(BackendFallback, path, fmt.Errorf("%w: %v", ErrExtractFailed, rec))
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		return "", newExtractError(BackendFallback, path, fmt.Errorf("%w: %v", ErrOpenFailed, err))
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", newExtractError(BackendFallback, path, fmt.Errorf("%w: %v", ErrOpenFailed, err))
	}

	r, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return "", newExtractError(BackendFallback, path, fmt.Errorf("%w: %v", ErrOpenFailed, err))
	}

	b, err := r.GetPlainText()
	if err != nil {
		return "", newExtractError(BackendFallback, path, fmt.Errorf("%w: %v", ErrExtractFailed, err))
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(b); err != nil {
		return "", newExtractError(BackendFallback, path, fmt.Errorf("%w: %v", ErrExtractFailed, err))
	}

	e.log.Debug().
		Str("file", path).
		Int("text_length", buf.Len()).
		Msg("Extracted plain text")

	return buf.String(), nil
}
