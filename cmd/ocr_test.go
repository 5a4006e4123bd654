package cmd

import (
	"reflect"
	"testing"

	"fatture/internal/config"
	"fatture/internal/ocr"
)

func TestOCROptions(t *testing.T) {
	cfg := &config.Config{
		OCRLanguages:               []string{"it"},
		GoogleCloudProject:         "fatture-prod",
		GoogleCloudLocation:        "us",
		DocumentAIProcessorID:      "abc123",
		DocumentAIProcessorVersion: "pretrained-ocr-v2.0",
	}

	got := ocrOptions(cfg)
	want := ocr.Options{
		LanguageHints: []string{"it"},
		DocumentAI: ocr.DocumentAIConfig{
			ProjectID:        "fatture-prod",
			Location:         "us",
			ProcessorID:      "abc123",
			ProcessorVersion: "pretrained-ocr-v2.0",
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ocrOptions() = %+v, want %+v", got, want)
	}
	if name := got.DocumentAI.ProcessorName(); name != "projects/fatture-prod/locations/us/processors/abc123/processorVersions/pretrained-ocr-v2.0" {
		t.Errorf("ProcessorName() = %q", name)
	}
}
