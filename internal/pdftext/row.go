package pdftext

import (
	"context"
	"fmt"
	"strings"

	"fatture/internal/logger"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"
)

// RowExtractor rebuilds text rows from glyph positions.
type RowExtractor struct {
	log zerolog.Logger
}

func NewRowExtractor() *RowExtractor {
	return &RowExtractor{log: logger.WithComponent("pdftext-native")}
}

func (e *RowExtractor) Name() string {
	return BackendNative
}

// ExtractText joins the words of each row with a space and the rows with a
// newline. Malformed content streams make the library panic; the panic is
// reported as ErrExtractFailed.
func (e *RowExtractor) ExtractText(ctx context.Context, path string) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			e.log.Warn().Str("file", path).Interface("panic", rec).Msg("PDF library panicked")
			text = ""
			err = newExtractError(BackendNative, path, fmt.Errorf("%w: %v", ErrExtractFailed, rec))
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", newExtractError(BackendNative, path, fmt.Errorf("%w: %v", ErrOpenFailed, err))
	}
	defer f.Close()

	var pages []string
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}

		rows, err := p.GetTextByRow()
		if err != nil {
			return "", newExtractError(BackendNative, path, fmt.Errorf("%w: page %d: %v", ErrExtractFailed, i, err))
		}

		var page strings.Builder
		for _, row := range rows {
			words := make([]string, 0, len(row.Content))
			for _, word := range row.Content {
				if s := strings.TrimSpace(word.S); s != "" {
					words = append(words, s)
				}
			}
			if len(words) == 0 {
				continue
			}
			page.WriteString(strings.Join(words, " "))
			page.WriteString("\n")
		}
		pages = append(pages, page.String())
	}

	e.log.Debug().
		Str("file", path).
		Int("pages", len(pages)).
		Msg("Extracted text rows")

	return joinPages(pages), nil
}
