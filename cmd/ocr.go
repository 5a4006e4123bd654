package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fatture/internal/config"
	"fatture/internal/logger"
	"fatture/internal/ocr"
	"fatture/internal/pdftext"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var ocrCmd = &cobra.Command{
	Use:   "ocr [pdf-file]",
	Short: "Print the raw text of a PDF as one backend sees it",
	Long: `Extract the text of a PDF with a single backend, without parsing it.

Backends:
  native     - PDF text layer, words grouped into rows
  fallback   - PDF text layer, plain content stream text
  vision     - Google Cloud Vision document text detection
  documentai - Google Document AI OCR processor

Comparing the backends shows why a document parses differently from what
its rendering suggests. Vision supports up to 5 pages and 20MB per PDF.

Required environment variables for OCR backends:
  GOOGLE_APPLICATION_CREDENTIALS - Path to service account JSON file, OR
  GOOGLE_CREDENTIALS - Inline JSON credentials string
  GOOGLE_CLOUD_PROJECT, DOCUMENT_AI_PROCESSOR_ID - Document AI only`,
	Example: `  # Native text layer to stdout
  fatture ocr fattura.pdf --backend native

  # OCR with Vision and metadata as JSON
  fatture ocr scansione.pdf --backend vision --json -o result.json`,
	Args: cobra.ExactArgs(1),
	RunE: runOCR,
}

// OCROutput represents the JSON output structure when --json flag is used
type OCROutput struct {
	Text               string    `json:"text"`
	Backend            string    `json:"backend"`
	PageCount          int       `json:"page_count,omitempty"`
	Confidence         float32   `json:"confidence,omitempty"`
	LanguageCodes      []string  `json:"language_codes,omitempty"`
	MeaningfulChars    int       `json:"meaningful_chars"`
	ProcessedAt        time.Time `json:"processed_at,omitempty"`
	ProcessingDuration string    `json:"processing_duration,omitempty"`
	FileName           string    `json:"file_name"`
	FileSize           int64     `json:"file_size"`
}

func init() {
	rootCmd.AddCommand(ocrCmd)

	ocrCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	ocrCmd.Flags().String("backend", "", "native, fallback, vision or documentai (default: OCR_BACKEND)")
	ocrCmd.Flags().BoolP("metadata", "m", false, "Include metadata in output")
	ocrCmd.Flags().Bool("json", false, "Output as JSON")
	ocrCmd.Flags().Int("timeout", 300, "Processing timeout in seconds")
}

func runOCR(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("ocr")

	outputPath, _ := cmd.Flags().GetString("output")
	backend, _ := cmd.Flags().GetString("backend")
	includeMetadata, _ := cmd.Flags().GetBool("metadata")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	pdfPath := args[0]

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if backend == "" {
		backend = cfg.OCRBackend
	}
	backend = strings.ToLower(backend)

	log.Info().
		Str("file", pdfPath).
		Str("backend", backend).
		Bool("json", jsonOutput).
		Int("timeout", timeoutSecs).
		Msg("Starting text extraction")

	fileInfo, err := validatePDFFile(pdfPath, log)
	if err != nil {
		return err
	}

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	startTime := time.Now()
	var result *ocr.OCRResult

	switch backend {
	case pdftext.BackendNative, pdftext.BackendFallback:
		result, err = extractTextLayer(ctx, backend, pdfPath)
		if err != nil {
			return handleOCRError(err, log)
		}
	case config.OCRBackendNone:
		return fmt.Errorf("backend %q disables OCR; use native, fallback, vision or documentai", backend)
	default:
		result, err = runOCRBackend(ctx, backend, pdfPath, cfg, log)
		if err != nil {
			return err
		}
	}

	log.Info().
		Str("backend", result.Backend).
		Int("page_count", result.PageCount).
		Dur("duration", time.Since(startTime)).
		Int("text_length", len(result.Text)).
		Msg("Text extraction completed")

	return outputResults(result, fileInfo, outputPath, jsonOutput, includeMetadata, log)
}

func extractTextLayer(ctx context.Context, backend, pdfPath string) (*ocr.OCRResult, error) {
	var extractor pdftext.Extractor = pdftext.NewRowExtractor()
	if backend == pdftext.BackendFallback {
		extractor = pdftext.NewPlainExtractor()
	}

	start := time.Now()
	text, err := extractor.ExtractText(ctx, pdfPath)
	if err != nil {
		return nil, err
	}
	return &ocr.OCRResult{
		Text:               text,
		Backend:            extractor.Name(),
		PageCount:          strings.Count(text, pdftext.PageSeparator) + 1,
		ProcessedAt:        time.Now(),
		ProcessingDuration: time.Since(start),
	}, nil
}

func runOCRBackend(ctx context.Context, backend, pdfPath string, cfg *config.Config, log zerolog.Logger) (*ocr.OCRResult, error) {
	service, err := createOCRService(ctx, backend, cfg, log)
	if err != nil {
		return nil, err
	}
	if service == nil {
		return nil, fmt.Errorf("no OCR backend selected")
	}
	defer service.Close()

	pdfFile, err := os.Open(pdfPath)
	if err != nil {
		log.Error().
			Err(err).
			Str("file", pdfPath).
			Msg("Failed to open PDF file")
		return nil, fmt.Errorf("failed to open PDF file: %w", err)
	}
	defer func() {
		if closeErr := pdfFile.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close PDF file")
		}
	}()

	result, err := service.ProcessPDFWithMetadata(ctx, pdfFile)
	if err != nil {
		return nil, handleOCRError(err, log)
	}
	return result, nil
}

// ocrOptions maps the configuration onto the OCR backends.
func ocrOptions(cfg *config.Config) ocr.Options {
	return ocr.Options{
		LanguageHints: cfg.OCRLanguages,
		DocumentAI: ocr.DocumentAIConfig{
			ProjectID:        cfg.GoogleCloudProject,
			Location:         cfg.GoogleCloudLocation,
			ProcessorID:      cfg.DocumentAIProcessorID,
			ProcessorVersion: cfg.DocumentAIProcessorVersion,
		},
	}
}

// createOCRService creates the OCR backend; "none" yields a nil service.
func createOCRService(ctx context.Context, backend string, cfg *config.Config, log zerolog.Logger) (ocr.OCRService, error) {
	ocrService, err := ocr.NewOCRService(ctx, backend, ocrOptions(cfg))
	if err != nil {
		switch {
		case errors.Is(err, ocr.ErrMissingCredentials):
			log.Error().
				Err(err).
				Msg("Google Cloud credentials not configured")
			return nil, fmt.Errorf("Google Cloud credentials not configured. Please set one of:\n\n" +
				"1. Export GOOGLE_APPLICATION_CREDENTIALS with path to service account JSON:\n" +
				"   export GOOGLE_APPLICATION_CREDENTIALS=/path/to/service-account-key.json\n\n" +
				"2. Export GOOGLE_CREDENTIALS with inline JSON\n\n" +
				"3. Run with --ocr none to skip OCR\n\n" +
				"Original error: %w", err)
		case errors.Is(err, ocr.ErrInvalidConfiguration):
			log.Error().
				Err(err).
				Msg("Document AI configuration invalid")
			return nil, fmt.Errorf("invalid Document AI configuration. Please check your .env file:\n" +
				"  GOOGLE_CLOUD_PROJECT - your Google Cloud project ID\n" +
				"  GOOGLE_CLOUD_LOCATION - processing location (us, eu)\n" +
				"  DOCUMENT_AI_PROCESSOR_ID - your Document AI OCR processor ID\n" +
				"Original error: %w", err)
		case errors.Is(err, ocr.ErrUnknownBackend):
			return nil, fmt.Errorf("unknown OCR backend %q (use vision, documentai or none)", backend)
		}
		log.Error().
			Err(err).
			Msg("Failed to create OCR service")
		return nil, fmt.Errorf("failed to create OCR service: %w", err)
	}

	if ocrService != nil {
		log.Debug().Str("backend", ocrService.Name()).Msg("OCR service created successfully")
	}
	return ocrService, nil
}

// handleOCRError provides user-friendly error messages for OCR failures
func handleOCRError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Text extraction failed")

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("text extraction timed out. Try increasing --timeout or processing a smaller file")
	case errors.Is(err, context.Canceled), errors.Is(err, ocr.ErrContextCanceled):
		return fmt.Errorf("text extraction was canceled")
	case errors.Is(err, ocr.ErrPDFTooLarge):
		return fmt.Errorf("PDF file is too large (maximum 20MB). Try compressing or splitting the file")
	case errors.Is(err, ocr.ErrTooManyPages):
		return fmt.Errorf("PDF has too many pages for synchronous OCR. Try splitting into smaller files")
	case errors.Is(err, ocr.ErrInvalidPDF), errors.Is(err, pdftext.ErrOpenFailed):
		return fmt.Errorf("invalid or corrupted PDF file. Please check the file integrity")
	case errors.Is(err, pdftext.ErrExtractFailed):
		return fmt.Errorf("the PDF text layer could not be read; try another backend: %w", err)
	case errors.Is(err, ocr.ErrEmptyDocument):
		return fmt.Errorf("no readable text found in the document")
	case errors.Is(err, ocr.ErrPermissionDenied):
		return fmt.Errorf("permission denied. Please ensure your service account can use the Vision or Document AI API")
	case errors.Is(err, ocr.ErrQuotaExceeded):
		return fmt.Errorf("Google Cloud API quota exceeded. Check your project quotas in the Google Cloud Console")
	case errors.Is(err, ocr.ErrProcessorNotFound):
		return fmt.Errorf("Document AI processor not found. Please check DOCUMENT_AI_PROCESSOR_ID")
	case errors.Is(err, ocr.ErrOCRFailed):
		return fmt.Errorf("OCR processing failed. This may be due to network issues or service unavailability: %w", err)
	default:
		return fmt.Errorf("text extraction failed: %w", err)
	}
}

// outputResults formats and outputs the extracted text
func outputResults(result *ocr.OCRResult, fileInfo os.FileInfo, outputPath string, jsonOutput, includeMetadata bool, log zerolog.Logger) error {
	if jsonOutput {
		return writeJSONOutput(OCROutput{
			Text:               result.Text,
			Backend:            result.Backend,
			FileName:           filepath.Base(fileInfo.Name()),
			FileSize:           fileInfo.Size(),
			PageCount:          result.PageCount,
			Confidence:         result.Confidence,
			LanguageCodes:      result.LanguageCodes,
			MeaningfulChars:    pdftext.MeaningfulChars(result.Text),
			ProcessedAt:        result.ProcessedAt,
			ProcessingDuration: result.ProcessingDuration.String(),
		}, outputPath, log)
	}

	var output strings.Builder
	if includeMetadata {
		fmt.Fprintf(&output, "=== %s (%s) ===\n", filepath.Base(fileInfo.Name()), result.Backend)
		fmt.Fprintf(&output, "File size: %d bytes\n", fileInfo.Size())
		if result.PageCount > 0 {
			fmt.Fprintf(&output, "Pages processed: %d\n", result.PageCount)
		}
		if result.Confidence > 0 {
			fmt.Fprintf(&output, "Confidence: %.1f%%\n", result.Confidence*100)
		}
		if len(result.LanguageCodes) > 0 {
			fmt.Fprintf(&output, "Languages: %s\n", strings.Join(result.LanguageCodes, ", "))
		}
		fmt.Fprintf(&output, "Processing time: %v\n", result.ProcessingDuration)
		output.WriteString("\n=== Extracted Text ===\n\n")
	}
	output.WriteString(result.Text)
	output.WriteString("\n")

	return writeOutput([]byte(output.String()), outputPath, log)
}
