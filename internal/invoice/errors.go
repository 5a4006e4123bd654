package invoice

import (
	"errors"
	"fmt"
)

// Common invoice extraction errors. The parser itself never returns errors;
// these come from the pipeline and the completion step around it.
var (
	// ErrInvalidPDF is returned when the file is not a readable PDF document.
	ErrInvalidPDF = errors.New("invalid or corrupted PDF document")

	// ErrEmptyText is returned when no backend recovered any text.
	ErrEmptyText = errors.New("no text could be extracted from the document")

	// ErrMissingCredentials is returned when the OpenAI API key is not configured.
	ErrMissingCredentials = errors.New("missing OpenAI API key")

	// ErrCompletionFailed is returned when the LLM gave no usable answer.
	ErrCompletionFailed = errors.New("record completion failed")

	// ErrContextCanceled is returned when extraction is canceled via context.
	ErrContextCanceled = errors.New("invoice extraction was canceled")
)

// InvoiceError wraps errors with the operation and document that failed.
type InvoiceError struct {
	// Op is the operation that failed (e.g., "ExtractInvoice", "Complete").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string

	// File is the PDF being processed, if any.
	File string
}

// Error implements the error interface.
func (e *InvoiceError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("invoice: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	if e.File != "" {
		return fmt.Sprintf("invoice: %s failed (file: %s): %v", e.Op, e.File, e.Err)
	}
	return fmt.Sprintf("invoice: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *InvoiceError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *InvoiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewInvoiceError creates a new InvoiceError with the specified operation and underlying error.
func NewInvoiceError(op string, err error, details string) *InvoiceError {
	return &InvoiceError{
		Op:      op,
		Err:     err,
		Details: details,
	}
}

// WrapInvoiceError wraps an error as an InvoiceError if it isn't already one.
func WrapInvoiceError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var invoiceErr *InvoiceError
	if errors.As(err, &invoiceErr) {
		return err // Already wrapped
	}

	return NewInvoiceError(op, err, details)
}

// ValidationError is one inconsistency found in a parsed record.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}
