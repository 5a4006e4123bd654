package ocr

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/genproto/googleapis/rpc/status"
)

func TestNewOCRServiceUnknownBackend(t *testing.T) {
	_, err := NewOCRService(context.Background(), "tesseract", Options{})
	if !errors.Is(err, ErrUnknownBackend) {
		t.Fatalf("NewOCRService() error = %v, want ErrUnknownBackend", err)
	}
	var ocrErr *OCRError
	if !errors.As(err, &ocrErr) || ocrErr.Op != "NewOCRService" {
		t.Errorf("error %v is not an *OCRError for NewOCRService", err)
	}
}

func TestDocumentAIConfigFromEnv(t *testing.T) {
	t.Setenv("GOOGLE_CLOUD_PROJECT", "")
	t.Setenv("GOOGLE_PROJECT_ID", "fatture-prod")
	t.Setenv("GOOGLE_CLOUD_LOCATION", "")
	t.Setenv("GOOGLE_LOCATION", "")
	t.Setenv("DOCUMENT_AI_PROCESSOR_ID", "abc123")
	t.Setenv("DOCUMENT_AI_PROCESSOR_VERSION", "")

	got := DocumentAIConfigFromEnv()
	want := DocumentAIConfig{ProjectID: "fatture-prod", ProcessorID: "abc123"}
	if got != want {
		t.Errorf("DocumentAIConfigFromEnv() = %+v, want %+v", got, want)
	}
}

func TestNewDocumentAIOCRServiceRequiresProcessor(t *testing.T) {
	_, err := NewOCRService(context.Background(), BackendDocumentAI, Options{
		DocumentAI: DocumentAIConfig{ProjectID: "fatture-prod"},
	})
	if !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("NewOCRService() error = %v, want ErrInvalidConfiguration", err)
	}
	if !strings.Contains(err.Error(), "DOCUMENT_AI_PROCESSOR_ID") {
		t.Errorf("error %q does not name the missing variable", err)
	}
}

func TestReadPDF(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"valid header", []byte("%PDF-1.7\n..."), nil},
		{"missing header", []byte("<html></html>"), ErrInvalidPDF},
		{"too short", []byte("%P"), ErrInvalidPDF},
		{"too large", append([]byte("%PDF"), make([]byte, MaxFileSizeBytes)...), ErrPDFTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readPDF("test", bytes.NewReader(tt.data))
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("readPDF() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("readPDF() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestProcessVisionResponse(t *testing.T) {
	g := NewGoogleVisionOCRServiceWithClient(nil, nil)
	if !reflect.DeepEqual(g.languageHints, DefaultLanguageHints) {
		t.Errorf("languageHints = %v, want defaults", g.languageHints)
	}

	resp := &visionpb.AnnotateFileResponse{
		Responses: []*visionpb.AnnotateImageResponse{
			{FullTextAnnotation: &visionpb.TextAnnotation{
				Text: "Tipologia documento\nTD01 Fattura",
				Pages: []*visionpb.Page{{
					Confidence: 0.9,
					Property: &visionpb.TextAnnotation_TextProperty{
						DetectedLanguages: []*visionpb.TextAnnotation_DetectedLanguage{{LanguageCode: "it"}},
					},
				}},
			}},
			{FullTextAnnotation: &visionpb.TextAnnotation{
				Text:  "Totale documento 50,00",
				Pages: []*visionpb.Page{{Confidence: 0.7}},
			}},
		},
	}

	result, err := g.processVisionResponse(resp)
	if err != nil {
		t.Fatalf("processVisionResponse() error = %v", err)
	}
	if want := "Tipologia documento\nTD01 Fattura\fTotale documento 50,00"; result.Text != want {
		t.Errorf("Text = %q, want %q", result.Text, want)
	}
	if result.PageCount != 2 || result.Backend != BackendVision {
		t.Errorf("PageCount = %d, Backend = %q", result.PageCount, result.Backend)
	}
	if result.Confidence < 0.79 || result.Confidence > 0.81 {
		t.Errorf("Confidence = %v, want 0.8", result.Confidence)
	}
	if !reflect.DeepEqual(result.LanguageCodes, []string{"it"}) {
		t.Errorf("LanguageCodes = %v", result.LanguageCodes)
	}
}

func TestProcessVisionResponseErrors(t *testing.T) {
	g := NewGoogleVisionOCRServiceWithClient(nil, []string{"it"})

	if _, err := g.processVisionResponse(&visionpb.AnnotateFileResponse{}); !errors.Is(err, ErrEmptyDocument) {
		t.Errorf("empty response error = %v, want ErrEmptyDocument", err)
	}

	blank := &visionpb.AnnotateFileResponse{Responses: []*visionpb.AnnotateImageResponse{
		{FullTextAnnotation: &visionpb.TextAnnotation{Text: "  \n"}},
	}}
	if _, err := g.processVisionResponse(blank); !errors.Is(err, ErrEmptyDocument) {
		t.Errorf("blank text error = %v, want ErrEmptyDocument", err)
	}

	pages := make([]*visionpb.AnnotateImageResponse, MaxPagesSync+1)
	for i := range pages {
		pages[i] = &visionpb.AnnotateImageResponse{}
	}
	if _, err := g.processVisionResponse(&visionpb.AnnotateFileResponse{Responses: pages}); !errors.Is(err, ErrTooManyPages) {
		t.Errorf("too many pages error = %v, want ErrTooManyPages", err)
	}

	failed := &visionpb.AnnotateFileResponse{Responses: []*visionpb.AnnotateImageResponse{
		{Error: &status.Status{Message: "bad image"}},
	}}
	if _, err := g.processVisionResponse(failed); err == nil || !strings.Contains(err.Error(), "bad image") {
		t.Errorf("page error = %v, want it to mention the API message", err)
	}
}

func TestDocumentResultSplitsPages(t *testing.T) {
	text := "PAGINA UNO\nPAGINA DUE\n"
	doc := &documentaipb.Document{
		Text: text,
		Pages: []*documentaipb.Document_Page{
			{Layout: &documentaipb.Document_Page_Layout{
				Confidence: 1,
				TextAnchor: &documentaipb.Document_TextAnchor{TextSegments: []*documentaipb.Document_TextAnchor_TextSegment{
					{StartIndex: 0, EndIndex: 11},
				}},
			}},
			{Layout: &documentaipb.Document_Page_Layout{
				Confidence: 0.5,
				TextAnchor: &documentaipb.Document_TextAnchor{TextSegments: []*documentaipb.Document_TextAnchor_TextSegment{
					{StartIndex: 11, EndIndex: int64(len(text))},
				}},
			}},
		},
	}

	result := documentResult(doc)
	if want := "PAGINA UNO\n\fPAGINA DUE\n"; result.Text != want {
		t.Errorf("Text = %q, want %q", result.Text, want)
	}
	if result.PageCount != 2 || result.Confidence != 0.75 {
		t.Errorf("PageCount = %d, Confidence = %v", result.PageCount, result.Confidence)
	}
}

func TestDocumentResultWithoutLayout(t *testing.T) {
	doc := &documentaipb.Document{Text: "solo testo"}
	if got := documentResult(doc).Text; got != "solo testo" {
		t.Errorf("Text = %q, want the document text", got)
	}
}

func TestProcessorName(t *testing.T) {
	c := DocumentAIConfig{ProjectID: "p", Location: "eu", ProcessorID: "abc"}
	if got := c.ProcessorName(); got != "projects/p/locations/eu/processors/abc" {
		t.Errorf("ProcessorName() = %q", got)
	}
	c.ProcessorVersion = "rc"
	if got := c.ProcessorName(); got != "projects/p/locations/eu/processors/abc/processorVersions/rc" {
		t.Errorf("ProcessorName() = %q", got)
	}
	if err := (DocumentAIConfig{ProjectID: "p"}).validate(); err == nil {
		t.Error("validate() accepted a config without processor")
	}
}

func TestClassifyAPIError(t *testing.T) {
	tests := []struct {
		msg  string
		want error
	}{
		{"rpc error: code = PermissionDenied desc = denied", ErrPermissionDenied},
		{"rpc error: code = ResourceExhausted desc = quota", ErrQuotaExceeded},
		{"rpc error: code = NotFound desc = processor", ErrProcessorNotFound},
		{"rpc error: code = InvalidArgument desc = bad pdf", ErrInvalidPDF},
		{"rpc error: code = Internal desc = boom", ErrOCRFailed},
	}
	for _, tt := range tests {
		if err := classifyAPIError("op", errors.New(tt.msg)); !errors.Is(err, tt.want) {
			t.Errorf("classifyAPIError(%q) = %v, want %v", tt.msg, err, tt.want)
		}
	}
}
