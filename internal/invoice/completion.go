package invoice

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"fatture/internal/logger"
	"fatture/pkg/models"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Fields the completion step can fill.
const (
	FieldTypeCode      = "document.type_code"
	FieldNumber        = "document.number"
	FieldIssueDate     = "document.issue_date"
	FieldRecipientCode = "document.recipient_code"
	FieldTaxableAmount = "totals.taxable_amount"
	FieldTaxAmount     = "totals.tax_amount"
	FieldTotalAmount   = "totals.total_amount"
)

// CompletionService fills fields the parser could not recover by asking a
// chat model. Values are only accepted when they occur verbatim in the text.
type CompletionService interface {
	// MissingFields lists the completable fields that are nil in record.
	MissingFields(record *models.InvoiceRecord) []string

	// Complete fills missing fields of record in place.
	Complete(ctx context.Context, record *models.InvoiceRecord, text string) (*CompletionResult, error)
}

// CompletionConfig configures the completion service.
type CompletionConfig struct {
	MaxRetries  int     // Chat attempts before giving up
	OpenAIModel string  // e.g. gpt-4o-mini
	Temperature float32 // Sampling temperature
	MaxTextSize int     // Invoice text sent to the model, in bytes
}

// CompletionResult reports what the model proposed and what was kept.
type CompletionResult struct {
	Requested []string          `json:"requested"`
	Filled    []string          `json:"filled"`
	Rejected  map[string]string `json:"rejected,omitempty"` // field -> reason
}

// chatCompleter is the part of the OpenAI client the service uses.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// DefaultCompletionService implements CompletionService with go-openai.
type DefaultCompletionService struct {
	client chatCompleter
	config CompletionConfig
	schema *jsonschema.Schema
	log    zerolog.Logger
}

// completionReply is the JSON object the model must return.
type completionReply struct {
	TypeCode      *string `json:"type_code"`
	Number        *string `json:"number"`
	IssueDate     *string `json:"issue_date"`
	RecipientCode *string `json:"recipient_code"`
	TaxableAmount *string `json:"taxable_amount"`
	TaxAmount     *string `json:"tax_amount"`
	TotalAmount   *string `json:"total_amount"`
}

const completionSchema = `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "type_code":      {"type": ["string", "null"]},
    "number":         {"type": ["string", "null"]},
    "issue_date":     {"type": ["string", "null"]},
    "recipient_code": {"type": ["string", "null"]},
    "taxable_amount": {"type": ["string", "null"]},
    "tax_amount":     {"type": ["string", "null"]},
    "total_amount":   {"type": ["string", "null"]}
  }
}`

// NewCompletionService creates the service backed by the OpenAI API.
func NewCompletionService(ctx context.Context, apiKey string, config CompletionConfig) (CompletionService, error) {
	const op = "NewCompletionService"

	if apiKey == "" {
		return nil, NewInvoiceError(op, ErrMissingCredentials, "OPENAI_API_KEY is required")
	}
	if config.OpenAIModel == "" {
		config.OpenAIModel = openai.GPT4oMini
	}

	return NewCompletionServiceWithClient(openai.NewClient(apiKey), config)
}

// NewCompletionServiceWithClient creates the service with an explicit client.
func NewCompletionServiceWithClient(client chatCompleter, config CompletionConfig) (*DefaultCompletionService, error) {
	const op = "NewCompletionServiceWithClient"

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("completion.json", strings.NewReader(completionSchema)); err != nil {
		return nil, WrapInvoiceError(op, err, "add schema")
	}
	schema, err := compiler.Compile("completion.json")
	if err != nil {
		return nil, WrapInvoiceError(op, err, "compile schema")
	}

	if config.MaxRetries <= 0 {
		config.MaxRetries = 1
	}
	if config.MaxTextSize <= 0 {
		config.MaxTextSize = 12000
	}

	return &DefaultCompletionService{
		client: client,
		config: config,
		schema: schema,
		log:    logger.WithComponent("invoice-completion"),
	}, nil
}

// MissingFields lists the completable fields that are nil in record.
func (s *DefaultCompletionService) MissingFields(record *models.InvoiceRecord) []string {
	doc := record.Document
	if doc == nil {
		doc = &models.Document{}
	}

	var missing []string
	for _, f := range []struct {
		name  string
		value interface{}
	}{
		{FieldTypeCode, doc.TypeCode},
		{FieldNumber, doc.Number},
		{FieldIssueDate, doc.IssueDate},
		{FieldRecipientCode, doc.RecipientCode},
		{FieldTaxableAmount, record.Totals.TaxableAmount},
		{FieldTaxAmount, record.Totals.TaxAmount},
		{FieldTotalAmount, record.Totals.TotalAmount},
	} {
		switch v := f.value.(type) {
		case *string:
			if v == nil {
				missing = append(missing, f.name)
			}
		case *float64:
			if v == nil {
				missing = append(missing, f.name)
			}
		}
	}
	return missing
}

// Complete asks the model for the missing fields and fills the ones that
// pass screening. A record without missing fields is returned untouched
// without calling the model.
func (s *DefaultCompletionService) Complete(ctx context.Context, record *models.InvoiceRecord, text string) (*CompletionResult, error) {
	const op = "Complete"

	result := &CompletionResult{
		Requested: s.MissingFields(record),
		Filled:    []string{},
		Rejected:  map[string]string{},
	}
	if len(result.Requested) == 0 {
		s.log.Debug().Msg("Record is already complete")
		return result, nil
	}
	if strings.TrimSpace(text) == "" {
		return nil, NewInvoiceError(op, ErrEmptyText, "nothing to complete from")
	}

	s.log.Info().
		Strs("missing_fields", result.Requested).
		Msg("Found missing fields, proceeding with completion")

	reply, err := s.requestCompletion(ctx, text, result.Requested)
	if err != nil {
		return nil, err
	}

	s.applyReply(record, reply, text, result)

	s.log.Info().
		Strs("filled", result.Filled).
		Int("rejected", len(result.Rejected)).
		Msg("Record completion finished")

	return result, nil
}

func (s *DefaultCompletionService) requestCompletion(ctx context.Context, text string, missing []string) (*completionReply, error) {
	const op = "requestCompletion"

	prompt := buildCompletionPrompt(truncateText(text, s.config.MaxTextSize), missing)

	s.log.Debug().
		Int("prompt_length", len(prompt)).
		Str("model", s.config.OpenAIModel).
		Msg("Sending completion request")

	var lastErr error
	for attempt := 1; attempt <= s.config.MaxRetries; attempt++ {
		resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       s.config.OpenAIModel,
			Temperature: s.config.Temperature,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: completionSystemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
			MaxTokens: 500,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, NewInvoiceError(op, ErrContextCanceled, ctx.Err().Error())
			}
			lastErr = err
			s.log.Warn().
				Err(err).
				Int("attempt", attempt).
				Int("max_retries", s.config.MaxRetries).
				Msg("Completion request failed, retrying")
			continue
		}

		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("no response choices")
			continue
		}

		reply, err := s.decodeReply(resp.Choices[0].Message.Content)
		if err != nil {
			lastErr = err
			s.log.Warn().
				Err(err).
				Int("attempt", attempt).
				Msg("Invalid completion reply, retrying")
			continue
		}
		return reply, nil
	}

	return nil, NewInvoiceError(op, ErrCompletionFailed,
		fmt.Sprintf("all %d attempts failed, last error: %v", s.config.MaxRetries, lastErr))
}

// decodeReply validates content against the reply schema and decodes it.
func (s *DefaultCompletionService) decodeReply(content string) (*completionReply, error) {
	content = stripCodeFence(content)

	var v interface{}
	if err := json.Unmarshal([]byte(content), &v); err != nil {
		return nil, fmt.Errorf("reply is not JSON: %w", err)
	}
	if err := s.schema.Validate(v); err != nil {
		return nil, fmt.Errorf("reply does not match schema: %w", err)
	}

	var reply completionReply
	if err := json.Unmarshal([]byte(content), &reply); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	return &reply, nil
}

// applyReply copies screened values into the nil fields of record.
func (s *DefaultCompletionService) applyReply(record *models.InvoiceRecord, reply *completionReply, text string, result *CompletionResult) {
	clean, _ := Normalize(text)
	requested := make(map[string]bool, len(result.Requested))
	for _, f := range result.Requested {
		requested[f] = true
	}

	accept := func(field string, value *string, check func(string) bool) (string, bool) {
		if value == nil || !requested[field] {
			return "", false
		}
		v := strings.TrimSpace(*value)
		switch {
		case v == "":
			return "", false
		case !strings.Contains(text, v) && !strings.Contains(clean, v):
			result.Rejected[field] = "not found in text"
			return "", false
		case check != nil && !check(v):
			result.Rejected[field] = "invalid format"
			return "", false
		}
		result.Filled = append(result.Filled, field)
		return v, true
	}

	document := func() *models.Document {
		if record.Document == nil {
			record.Document = &models.Document{}
		}
		return record.Document
	}

	if v, ok := accept(FieldTypeCode, reply.TypeCode, nil); ok {
		document().TypeCode = &v
	}
	if v, ok := accept(FieldNumber, reply.Number, isCompletedNumber); ok {
		document().Number = &v
	}
	if v, ok := accept(FieldIssueDate, reply.IssueDate, dateLineRe.MatchString); ok {
		document().IssueDate = &v
	}
	if v, ok := accept(FieldRecipientCode, reply.RecipientCode, recipientRe.MatchString); ok {
		document().RecipientCode = &v
	}

	amounts := []struct {
		field string
		value *string
		dst   **float64
	}{
		{FieldTaxableAmount, reply.TaxableAmount, &record.Totals.TaxableAmount},
		{FieldTaxAmount, reply.TaxAmount, &record.Totals.TaxAmount},
		{FieldTotalAmount, reply.TotalAmount, &record.Totals.TotalAmount},
	}
	for _, a := range amounts {
		isAmount := func(v string) bool { _, ok := ParseAmount(v); return ok }
		if v, ok := accept(a.field, a.value, isAmount); ok {
			*a.dst = amountPtr(v)
		}
	}
}

// isCompletedNumber rejects dates and legal citations offered as numbers.
func isCompletedNumber(v string) bool {
	return digitRe.MatchString(v) && !dateLineRe.MatchString(v) && !isCitation(v)
}

const completionSystemPrompt = `You read the text of Italian electronic invoices (FatturaPA rendered to PDF).
Return ONLY a JSON object with these keys: type_code, number, issue_date,
recipient_code, taxable_amount, tax_amount, total_amount.

Rules:
- Copy every value exactly as it is printed in the text. Do not reformat dates or amounts.
- type_code is the "Tipologia documento" cell, e.g. "TD01 fattura".
- number is the "Numero documento", never a legal reference such as "DPR 633/72".
- issue_date is the "Data documento" (formats dd-mm-yyyy, dd/mm/yyyy or yyyy-mm-dd).
- recipient_code is the 6 or 7 character "Codice destinatario".
- Amounts come from the RIEPILOGHI section: "Totale imponibile", "Totale imposta", "Totale documento".
- Use null for anything you cannot find.`

func buildCompletionPrompt(text string, missing []string) string {
	var prompt strings.Builder
	prompt.WriteString("Fields to extract (leave the others null):\n")
	for _, f := range missing {
		prompt.WriteString("- ")
		prompt.WriteString(f[strings.Index(f, ".")+1:])
		prompt.WriteString("\n")
	}
	prompt.WriteString("\nInvoice text:\n")
	prompt.WriteString(text)
	return prompt.String()
}

func truncateText(text string, max int) string {
	if len(text) <= max {
		return text
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

// stripCodeFence removes a ```json fence some models wrap replies in.
func stripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimPrefix(content, "json")
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}
