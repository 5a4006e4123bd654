package invoice

import (
	"context"
	"errors"
	"testing"

	"fatture/pkg/models"

	"github.com/sashabaranov/go-openai"
)

type fakeChat struct {
	replies []string
	errs    []error
	calls   int
}

func (f *fakeChat) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return openai.ChatCompletionResponse{}, f.errs[i]
	}
	content := ""
	if i < len(f.replies) {
		content = f.replies[i]
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: content}}},
	}, nil
}

const completionText = `Tipologia documento Numero documento Data documento Codice destinatario
TD01 fattura A-17 05/03/2025 ABC1234
Totale imponibile 1.000,00
Totale imposta 220,00
Totale documento 1.220,00`

func newTestCompletion(t *testing.T, chat *fakeChat, retries int) *DefaultCompletionService {
	t.Helper()
	s, err := NewCompletionServiceWithClient(chat, CompletionConfig{MaxRetries: retries, OpenAIModel: "test"})
	if err != nil {
		t.Fatalf("NewCompletionServiceWithClient() error = %v", err)
	}
	return s
}

func TestNewCompletionServiceRequiresKey(t *testing.T) {
	_, err := NewCompletionService(context.Background(), "", CompletionConfig{})
	if !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("NewCompletionService() error = %v, want ErrMissingCredentials", err)
	}
}

func TestCompleteScreensReply(t *testing.T) {
	chat := &fakeChat{replies: []string{"```json\n" + `{
		"type_code": "TD01 fattura",
		"number": "A-17",
		"issue_date": "2025-03-05",
		"recipient_code": "ABC1234",
		"taxable_amount": "1.000,00",
		"tax_amount": "999,00",
		"total_amount": "1.220,00"
	}` + "\n```"}}
	s := newTestCompletion(t, chat, 3)

	record := models.NewInvoiceRecord()
	result, err := s.Complete(context.Background(), record, completionText)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	doc := record.Document
	if doc == nil || doc.Number == nil || *doc.Number != "A-17" {
		t.Fatalf("Document = %+v, want number A-17", doc)
	}
	if doc.IssueDate != nil {
		t.Errorf("IssueDate = %q, want nil for a reformatted date", *doc.IssueDate)
	}
	if result.Rejected[FieldIssueDate] != "not found in text" {
		t.Errorf("Rejected = %v", result.Rejected)
	}
	if result.Rejected[FieldTaxAmount] != "not found in text" || record.Totals.TaxAmount != nil {
		t.Errorf("tax amount should be rejected, got %v", record.Totals.TaxAmount)
	}
	if record.Totals.TotalAmount == nil || *record.Totals.TotalAmount != 1220 {
		t.Errorf("TotalAmount = %v, want 1220", record.Totals.TotalAmount)
	}
	if len(result.Filled) != 5 {
		t.Errorf("Filled = %v, want 5 fields", result.Filled)
	}
}

func TestCompleteKeepsParsedValues(t *testing.T) {
	chat := &fakeChat{replies: []string{`{"number": "ABC1234", "issue_date": "05/03/2025"}`}}
	s := newTestCompletion(t, chat, 1)

	number := "A-17"
	record := models.NewInvoiceRecord()
	record.Document = &models.Document{Number: &number}

	if _, err := s.Complete(context.Background(), record, completionText); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if *record.Document.Number != "A-17" {
		t.Errorf("Number = %q, parsed value was overwritten", *record.Document.Number)
	}
	if record.Document.IssueDate == nil || *record.Document.IssueDate != "05/03/2025" {
		t.Errorf("IssueDate = %v, want 05/03/2025", record.Document.IssueDate)
	}
}

func TestCompleteRetriesInvalidReplies(t *testing.T) {
	chat := &fakeChat{
		errs:    []error{errors.New("rate limited")},
		replies: []string{"", "not json", `{"unexpected": "field"}`, `{"recipient_code": "ABC1234"}`},
	}
	s := newTestCompletion(t, chat, 4)

	record := models.NewInvoiceRecord()
	result, err := s.Complete(context.Background(), record, completionText)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if chat.calls != 4 {
		t.Errorf("calls = %d, want 4", chat.calls)
	}
	if len(result.Filled) != 1 || *record.Document.RecipientCode != "ABC1234" {
		t.Errorf("Filled = %v", result.Filled)
	}
}

func TestCompleteGivesUp(t *testing.T) {
	chat := &fakeChat{replies: []string{"no", "still no"}}
	s := newTestCompletion(t, chat, 2)

	_, err := s.Complete(context.Background(), models.NewInvoiceRecord(), completionText)
	if !errors.Is(err, ErrCompletionFailed) {
		t.Fatalf("Complete() error = %v, want ErrCompletionFailed", err)
	}
}

func TestCompleteSkipsCompleteRecords(t *testing.T) {
	chat := &fakeChat{}
	s := newTestCompletion(t, chat, 1)

	record := ParseText(completionText)
	record.Document = &models.Document{
		TypeCode: strPtr("TD01"), Number: strPtr("A-17"),
		IssueDate: strPtr("05/03/2025"), RecipientCode: strPtr("ABC1234"),
	}
	record.Totals = models.Totals{TaxableAmount: amountPtr("1.000,00"), TaxAmount: amountPtr("220,00"), TotalAmount: amountPtr("1.220,00")}

	result, err := s.Complete(context.Background(), record, completionText)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if chat.calls != 0 || len(result.Requested) != 0 {
		t.Errorf("calls = %d, requested = %v", chat.calls, result.Requested)
	}
}

func TestIsCompletedNumber(t *testing.T) {
	tests := map[string]bool{
		"A-17":       true,
		"FPR 538/25": true,
		"05/03/2025": false,
		"633/72":     false,
		"ABC":        false,
	}
	for in, want := range tests {
		if got := isCompletedNumber(in); got != want {
			t.Errorf("isCompletedNumber(%q) = %v, want %v", in, got, want)
		}
	}
}
