package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"fatture/internal/config"
	"fatture/internal/invoice"
	"fatture/internal/logger"
	"fatture/pkg/models"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var parseCmd = &cobra.Command{
	Use:   "parse [pdf-file]",
	Short: "Extract structured data from an Italian e-invoice PDF",
	Long: `Read the text of an Italian electronic invoice PDF and recover seller, buyer,
the DOCUMENTO header row (type, number, issue date, recipient code), line
items, totals and payment terms.

The native PDF text layer is read first. When it is nearly empty the
fallback backend is used, and when the document keys (number, date,
recipient code) are still missing the PDF is sent to OCR. Fields that
cannot be recovered are null in the output.

Optional environment variables:
  TD_CATALOG_PATH - Document type catalog (default "TDxx fattura.help")
  OCR_BACKEND - vision, documentai or none (default vision)
  GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS - OCR credentials
  OPENAI_API_KEY - Required with --complete`,
	Example: `  # Print the extracted record as JSON
  fatture parse fattura.pdf

  # Save to file, without OCR
  fatture parse fattura.pdf -o fattura.json --ocr none

  # Show how the DOCUMENTO header was located
  fatture parse fattura.pdf --debug-header

  # Ask the LLM for document fields the parser left empty
  fatture parse fattura.pdf --complete`,
	Args: cobra.ExactArgs(1),
	RunE: runParse,
}

// ParseOutput represents the JSON output structure for one parsed document
type ParseOutput struct {
	Record      *models.InvoiceRecord           `json:"record"`
	Metadata    ParseMetadata                   `json:"metadata"`
	Validation  *invoice.TotalsValidationResult `json:"validation,omitempty"`
	Completion  *invoice.CompletionResult       `json:"completion,omitempty"`
	Diagnostics *invoice.Diagnostics            `json:"diagnostics,omitempty"`
}

// ParseMetadata contains information about the processing operation
type ParseMetadata struct {
	FileName           string    `json:"file_name"`
	FileSize           int64     `json:"file_size_bytes"`
	Backend            string    `json:"backend"`
	OCRUsed            bool      `json:"ocr_used"`
	ProcessedAt        time.Time `json:"processed_at"`
	ProcessingDuration string    `json:"processing_duration"`
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	parseCmd.Flags().String("ocr", "", "OCR backend: vision, documentai or none (default: OCR_BACKEND)")
	parseCmd.Flags().Int("timeout", 120, "Processing timeout in seconds")
	parseCmd.Flags().Bool("complete", false, "Fill missing document fields with an OpenAI model")
	parseCmd.Flags().Bool("debug-header", false, "Include header and row diagnostics in the output")
	parseCmd.Flags().Bool("validate", true, "Cross-check totals and include the result")
}

func runParse(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("parse")

	outputPath, _ := cmd.Flags().GetString("output")
	ocrBackend, _ := cmd.Flags().GetString("ocr")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")
	complete, _ := cmd.Flags().GetBool("complete")
	debugHeader, _ := cmd.Flags().GetBool("debug-header")
	validate, _ := cmd.Flags().GetBool("validate")

	pdfPath := args[0]

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if ocrBackend == "" {
		ocrBackend = cfg.OCRBackend
	}

	log.Info().
		Str("file", pdfPath).
		Str("output", outputPath).
		Str("ocr", ocrBackend).
		Bool("complete", complete).
		Int("timeout", timeoutSecs).
		Msg("Starting invoice parsing")

	fileInfo, err := validatePDFFile(pdfPath, log)
	if err != nil {
		return err
	}

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	ocrService, err := createOCRService(ctx, ocrBackend, cfg, log)
	if err != nil {
		return err
	}
	if ocrService != nil {
		defer ocrService.Close()
	}

	extractor := invoice.NewExtractor(invoice.NewParser(invoice.LoadCatalog(cfg.CatalogPath)), ocrService)
	extractor.SetDiagnostics(debugHeader)

	startTime := time.Now()
	result, err := extractor.ExtractInvoice(ctx, pdfPath)
	if err != nil {
		return handleExtractError(err, log)
	}

	output := ParseOutput{
		Record: result.Record,
		Metadata: ParseMetadata{
			FileName: filepath.Base(fileInfo.Name()),
			FileSize: fileInfo.Size(),
			Backend:  result.Backend,
			OCRUsed:  result.OCRUsed,
		},
	}
	if debugHeader {
		output.Diagnostics = result.Diagnostics
	}

	if complete {
		completion, err := completeRecord(ctx, result, cfg, log)
		if err != nil {
			return err
		}
		output.Completion = completion
	}

	if validate {
		output.Validation = invoice.NewTotalsValidation().Validate(result.Record)
	}

	processingDuration := time.Since(startTime)
	output.Metadata.ProcessedAt = time.Now()
	output.Metadata.ProcessingDuration = processingDuration.String()

	log.Info().
		Str("backend", result.Backend).
		Bool("ocr_used", result.OCRUsed).
		Bool("document_keys", result.Record.HasDocumentKeys()).
		Dur("duration", processingDuration).
		Msg("Invoice parsing completed")

	return writeJSONOutput(output, outputPath, log)
}

// completeRecord runs the LLM completion step on the extracted text.
func completeRecord(ctx context.Context, result *invoice.ExtractResult, cfg *config.Config, log zerolog.Logger) (*invoice.CompletionResult, error) {
	service, err := invoice.NewCompletionService(ctx, cfg.OpenAIAPIKey, invoice.CompletionConfig{
		MaxRetries:  cfg.CompletionMaxRetries,
		OpenAIModel: cfg.OpenAIModel,
	})
	if err != nil {
		if errors.Is(err, invoice.ErrMissingCredentials) {
			return nil, fmt.Errorf("--complete needs OPENAI_API_KEY in the environment or .env file")
		}
		return nil, fmt.Errorf("failed to create completion service: %w", err)
	}

	completion, err := service.Complete(ctx, result.Record, result.Text)
	if err != nil {
		// The parsed record is still valid output.
		log.Warn().Err(err).Msg("Completion failed, keeping parser result")
		return nil, nil
	}
	return completion, nil
}

// validatePDFFile checks if the file exists, is readable, and appears to be a PDF
func validatePDFFile(pdfPath string, log zerolog.Logger) (os.FileInfo, error) {
	fileInfo, err := os.Stat(pdfPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Error().
				Str("file", pdfPath).
				Msg("PDF file not found")
			return nil, fmt.Errorf("PDF file not found: %s", pdfPath)
		}
		if os.IsPermission(err) {
			log.Error().
				Str("file", pdfPath).
				Msg("Permission denied accessing PDF file")
			return nil, fmt.Errorf("permission denied accessing PDF file: %s", pdfPath)
		}
		return nil, fmt.Errorf("error accessing PDF file: %w", err)
	}

	if !fileInfo.Mode().IsRegular() {
		log.Error().
			Str("file", pdfPath).
			Msg("Path is not a regular file")
		return nil, fmt.Errorf("path is not a regular file: %s", pdfPath)
	}

	if !strings.HasSuffix(strings.ToLower(pdfPath), ".pdf") {
		log.Warn().
			Str("file", pdfPath).
			Msg("File does not have .pdf extension")
	}

	if fileInfo.Size() == 0 {
		log.Error().
			Str("file", pdfPath).
			Msg("PDF file is empty")
		return nil, fmt.Errorf("PDF file is empty: %s", pdfPath)
	}

	return fileInfo, nil
}

// createContextWithTimeout creates a context with timeout and signal handling
func createContextWithTimeout(timeoutSecs int, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSecs)*time.Second)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling processing")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// handleExtractError provides user-friendly error messages for extraction failures
func handleExtractError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Invoice extraction failed")

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("invoice processing timed out. Try increasing --timeout")
	case errors.Is(err, invoice.ErrContextCanceled), errors.Is(err, context.Canceled):
		return fmt.Errorf("invoice processing was canceled")
	case errors.Is(err, invoice.ErrInvalidPDF):
		return fmt.Errorf("invalid or corrupted PDF file. Please check the file integrity")
	default:
		return fmt.Errorf("invoice processing failed: %w", err)
	}
}

// writeJSONOutput writes v as indented JSON to outputPath, or stdout when empty.
func writeJSONOutput(v any, outputPath string, log zerolog.Logger) error {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal JSON output")
		return fmt.Errorf("failed to create JSON output: %w", err)
	}
	return writeOutput(append(jsonData, '\n'), outputPath, log)
}

func writeOutput(data []byte, outputPath string, log zerolog.Logger) error {
	if outputPath == "" {
		if _, err := os.Stdout.Write(data); err != nil {
			log.Error().Err(err).Msg("Failed to write to stdout")
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}

	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		log.Error().
			Err(err).
			Str("output_file", outputPath).
			Msg("Failed to write output file")
		return fmt.Errorf("failed to write output file: %w", err)
	}

	log.Info().
		Str("output_file", outputPath).
		Int("bytes", len(data)).
		Msg("Results written to file")
	return nil
}
