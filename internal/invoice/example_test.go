package invoice_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"fatture/internal/invoice"
	"fatture/internal/ocr"
)

// Example reads a PDF through the text backends, retrying with OCR when the
// text layer has no document keys.
func Example() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// Credentials are read from the environment.
	ocrService, err := ocr.NewOCRService(ctx, ocr.BackendVision, ocr.OptionsFromEnv())
	if err != nil {
		log.Printf("OCR disabled: %v", err)
		ocrService = nil
	}

	extractor := invoice.NewExtractor(invoice.NewParser(nil), ocrService)
	result, err := extractor.ExtractInvoice(ctx, "fattura.pdf")
	if err != nil {
		log.Fatal(err)
	}

	if doc := result.Record.Document; doc != nil && doc.Number != nil {
		fmt.Printf("Fattura %s (backend %s)\n", *doc.Number, result.Backend)
	}
}

func ExampleParser_Parse() {
	text := "Tipologia documento\n" +
		"TD24 fattura differita di cui all'art.21, comma 4,\n" +
		"terzo periodo lett.a) DPR 633/72\n" +
		"3097\n" +
		"23-07-2025\n" +
		"0000000"

	record := invoice.NewParser(invoice.FallbackCatalog()).Parse(text)
	doc := record.Document
	fmt.Println(*doc.TypeCode)
	fmt.Println(*doc.Number, *doc.IssueDate, *doc.RecipientCode)
	// Output:
	// TD24 fattura differita di cui all'art.21, comma 4, terzo periodo lett.a) DPR 633/72
	// 3097 23-07-2025 0000000
}

func ExampleParser_Parse_empty() {
	record := invoice.NewParser(invoice.FallbackCatalog()).Parse("")
	out, _ := json.Marshal(record)
	fmt.Println(string(out))
	// Output:
	// {"seller":null,"buyer":null,"document":null,"line_items":[],"totals":{"taxable_amount":null,"tax_amount":null,"total_amount":null},"payment":{"method":null,"due_date":null,"due_amount":null}}
}

func ExampleParseAmount() {
	for _, s := range []string{"1.234,56", "50.00", "1.500", "n/d"} {
		v, ok := invoice.ParseAmount(s)
		fmt.Println(s, v, ok)
	}
	// Output:
	// 1.234,56 1234.56 true
	// 50.00 50 true
	// 1.500 1500 true
	// n/d 0 false
}

func ExampleLocateHeader() {
	lines := []string{
		"Tipologia documento",
		"Art. 73",
		"Numero documento",
		"Data documento",
		"Codice destinatario",
		"TD01",
		"FPR 538/25",
	}
	h := invoice.LocateHeader(lines)
	fmt.Println(h.Strategy, h.Start, h.End, h.MissingLabels)
	// Output:
	// secondary 1 4 [Tipologia documento]
}

func ExampleTotalsValidation_Validate() {
	record := invoice.NewParser(invoice.FallbackCatalog()).Parse(
		"Totale imponibile 100,00\nTotale imposta 22,00\nTotale documento 120,00")

	result := invoice.NewTotalsValidation().Validate(record)
	for _, issue := range result.Issues {
		fmt.Println(issue.Field)
	}
	// Output:
	// totals.total_amount
}
