package ocr

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"fatture/internal/logger"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// DocumentAIConfig holds configuration for the Document AI OCR processor.
type DocumentAIConfig struct {
	// ProjectID is the Google Cloud project ID where Document AI is enabled.
	ProjectID string

	// Location is the processing location ("us" or "eu").
	// Should match where the processor is created.
	Location string

	// ProcessorID is the ID of a Document OCR processor.
	ProcessorID string

	// ProcessorVersion pins a processor version; empty uses the default.
	ProcessorVersion string

	// Timeout is the maximum time to wait for processing.
	Timeout time.Duration
}

// ProcessorName is the resource name used in ProcessRequest.
func (c DocumentAIConfig) ProcessorName() string {
	name := fmt.Sprintf("projects/%s/locations/%s/processors/%s", c.ProjectID, c.Location, c.ProcessorID)
	if c.ProcessorVersion != "" {
		name += "/processorVersions/" + c.ProcessorVersion
	}
	return name
}

// DocumentAIOCRService implements OCRService with a Document AI OCR processor.
type DocumentAIOCRService struct {
	client *documentai.DocumentProcessorClient
	config DocumentAIConfig
	log    zerolog.Logger
}

// DocumentAIConfigFromEnv reads GOOGLE_CLOUD_PROJECT (or GOOGLE_PROJECT_ID),
// GOOGLE_CLOUD_LOCATION (or GOOGLE_LOCATION), DOCUMENT_AI_PROCESSOR_ID (or
// GOOGLE_PROCESSOR_ID) and DOCUMENT_AI_PROCESSOR_VERSION.
func DocumentAIConfigFromEnv() DocumentAIConfig {
	return DocumentAIConfig{
		ProjectID:        getEnvVar("GOOGLE_CLOUD_PROJECT", "GOOGLE_PROJECT_ID"),
		Location:         getEnvVar("GOOGLE_CLOUD_LOCATION", "GOOGLE_LOCATION"),
		ProcessorID:      getEnvVar("DOCUMENT_AI_PROCESSOR_ID", "GOOGLE_PROCESSOR_ID"),
		ProcessorVersion: getEnvVar("DOCUMENT_AI_PROCESSOR_VERSION"),
	}
}

// NewDocumentAIOCRService creates the service for the processor in config.
// Credentials come from GOOGLE_CREDENTIALS or GOOGLE_APPLICATION_CREDENTIALS;
// an empty Location means "eu".
func NewDocumentAIOCRService(ctx context.Context, config DocumentAIConfig) (OCRService, error) {
	const op = "NewDocumentAIOCRService"

	if config.Location == "" {
		config.Location = "eu"
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	if err := config.validate(); err != nil {
		return nil, WrapOCRError(op, ErrInvalidConfiguration, err.Error())
	}

	var clientOptions []option.ClientOption

	// Regional endpoint for anything but the US multi-region
	if config.Location != "us" {
		endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", config.Location)
		clientOptions = append(clientOptions, option.WithEndpoint(endpoint))
	}

	hasCredentials := false
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		clientOptions = append(clientOptions, option.WithCredentialsJSON([]byte(credJSON)))
		hasCredentials = true
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		clientOptions = append(clientOptions, option.WithCredentialsFile(credFile))
		hasCredentials = true
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, clientOptions...)
	if err != nil {
		if !hasCredentials {
			return nil, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapOCRError(op, err, fmt.Sprintf("failed to create Document AI client for location: %s", config.Location))
	}

	return NewDocumentAIOCRServiceWithClient(config, client), nil
}

// NewDocumentAIOCRServiceWithClient creates the service with explicit config and client (for testing).
func NewDocumentAIOCRServiceWithClient(config DocumentAIConfig, client *documentai.DocumentProcessorClient) *DocumentAIOCRService {
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	return &DocumentAIOCRService{
		client: client,
		config: config,
		log:    logger.WithComponent("ocr-documentai"),
	}
}

func (c DocumentAIConfig) validate() error {
	if c.ProjectID == "" {
		return fmt.Errorf("GOOGLE_CLOUD_PROJECT or GOOGLE_PROJECT_ID is required")
	}
	if c.ProcessorID == "" {
		return fmt.Errorf("DOCUMENT_AI_PROCESSOR_ID or GOOGLE_PROCESSOR_ID is required")
	}
	return nil
}

// Name implements OCRService.
func (d *DocumentAIOCRService) Name() string {
	return BackendDocumentAI
}

// ProcessPDF extracts text from a PDF document.
func (d *DocumentAIOCRService) ProcessPDF(ctx context.Context, pdfData io.Reader) (string, error) {
	result, err := d.ProcessPDFWithMetadata(ctx, pdfData)
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

// ProcessPDFWithMetadata sends the PDF to the OCR processor and returns
// Document.Text with page breaks restored.
func (d *DocumentAIOCRService) ProcessPDFWithMetadata(ctx context.Context, pdfData io.Reader) (*OCRResult, error) {
	const op = "ProcessPDFWithMetadata"
	startTime := time.Now()

	pdfBytes, err := readPDF(op, pdfData)
	if err != nil {
		return nil, err
	}

	processCtx, cancel := context.WithTimeout(ctx, d.config.Timeout)
	defer cancel()

	req := &documentaipb.ProcessRequest{
		Name: d.config.ProcessorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  pdfBytes,
				MimeType: "application/pdf",
			},
		},
	}

	d.log.Debug().
		Str("processor", req.Name).
		Int("size_bytes", len(pdfBytes)).
		Msg("Sending PDF to Document AI")

	resp, err := d.client.ProcessDocument(processCtx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, WrapOCRError(op, ErrContextCanceled, ctx.Err().Error())
		}
		return nil, classifyAPIError(op, err)
	}
	if resp.Document == nil {
		return nil, WrapOCRError(op, ErrOCRFailed, "no document in response")
	}

	result := documentResult(resp.Document)
	if strings.TrimSpace(result.Text) == "" {
		return nil, WrapOCRError(op, ErrEmptyDocument, "Document AI returned no text")
	}
	result.ProcessedAt = time.Now()
	result.ProcessingDuration = result.ProcessedAt.Sub(startTime)

	d.log.Info().
		Int("pages", result.PageCount).
		Int("text_length", len(result.Text)).
		Dur("duration", result.ProcessingDuration).
		Msg("Document AI OCR completed")

	return result, nil
}

// documentResult splits Document.Text on the page layout text anchors so
// pages are separated like the other backends.
func documentResult(doc *documentaipb.Document) *OCRResult {
	result := &OCRResult{
		Backend:   BackendDocumentAI,
		PageCount: len(doc.Pages),
	}

	var pages []string
	var confidenceSum float32
	languageSet := make(map[string]bool)
	for _, page := range doc.Pages {
		if page.Layout == nil {
			continue
		}
		confidenceSum += page.Layout.Confidence
		if anchor := page.Layout.TextAnchor; anchor != nil {
			var b strings.Builder
			for _, seg := range anchor.TextSegments {
				start, end := int(seg.StartIndex), int(seg.EndIndex)
				if start >= 0 && end <= len(doc.Text) && start < end {
					b.WriteString(doc.Text[start:end])
				}
			}
			pages = append(pages, b.String())
		}
		for _, lang := range page.DetectedLanguages {
			if lang.LanguageCode != "" {
				languageSet[lang.LanguageCode] = true
			}
		}
	}

	if len(pages) == len(doc.Pages) && len(pages) > 0 {
		result.Text = strings.Join(pages, pageSeparator)
	} else {
		result.Text = doc.Text
	}
	if len(doc.Pages) > 0 {
		result.Confidence = confidenceSum / float32(len(doc.Pages))
	}
	for lang := range languageSet {
		result.LanguageCodes = append(result.LanguageCodes, lang)
	}
	sort.Strings(result.LanguageCodes)
	return result
}

// Close closes the underlying Document AI client.
func (d *DocumentAIOCRService) Close() error {
	if d.client != nil {
		return d.client.Close()
	}
	return nil
}

// getEnvVar returns the first non-empty environment variable from the list.
func getEnvVar(names ...string) string {
	for _, name := range names {
		if value := os.Getenv(name); value != "" {
			return value
		}
	}
	return ""
}
