package invoice

import (
	"testing"

	"fatture/pkg/models"
)

func floatp(v float64) *float64 { return &v }

func TestTotalsValidation(t *testing.T) {
	tests := []struct {
		name         string
		record       *models.InvoiceRecord
		wantIssues   []string
		wantWarnings int
	}{
		{
			name:   "consistent",
			record: testParser().Parse(inlineInvoice),
		},
		{
			name: "rounding within tolerance",
			record: &models.InvoiceRecord{Totals: models.Totals{
				TaxableAmount: floatp(100.005), TaxAmount: floatp(22), TotalAmount: floatp(122),
			}},
		},
		{
			name: "total mismatch",
			record: &models.InvoiceRecord{Totals: models.Totals{
				TaxableAmount: floatp(100), TaxAmount: floatp(22), TotalAmount: floatp(120),
			}},
			wantIssues: []string{"totals.total_amount"},
		},
		{
			name: "line totals and due amount",
			record: &models.InvoiceRecord{
				LineItems: []models.LineItem{{LineTotal: floatp(60)}, {LineTotal: floatp(30)}},
				Totals:    models.Totals{TaxableAmount: floatp(100), TaxAmount: floatp(22), TotalAmount: floatp(122)},
				Payment:   models.Payment{DueAmount: floatp(150)},
			},
			wantIssues: []string{"line_items", "payment.due_amount"},
		},
		{
			name: "missing total is computed",
			record: &models.InvoiceRecord{Totals: models.Totals{
				TaxableAmount: floatp(100), TaxAmount: floatp(22),
			}},
			wantWarnings: 1,
		},
		{
			name:   "nil record",
			record: nil,
		},
	}

	tv := NewTotalsValidation()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tv.Validate(tt.record)
			if len(result.Issues) != len(tt.wantIssues) {
				t.Fatalf("Issues = %v, want %v", result.Issues, tt.wantIssues)
			}
			for i, issue := range result.Issues {
				if issue.Field != tt.wantIssues[i] {
					t.Errorf("Issues[%d].Field = %q, want %q", i, issue.Field, tt.wantIssues[i])
				}
			}
			if result.HasDiscrepancy != (len(tt.wantIssues) > 0) {
				t.Errorf("HasDiscrepancy = %v", result.HasDiscrepancy)
			}
			if len(result.Warnings) != tt.wantWarnings {
				t.Errorf("Warnings = %v", result.Warnings)
			}
		})
	}
}

func TestTotalsValidationComputesMissingTotal(t *testing.T) {
	record := &models.InvoiceRecord{Totals: models.Totals{TaxableAmount: floatp(1012.10), TaxAmount: floatp(222.46)}}
	result := NewTotalsValidation().Validate(record)
	if result.Computed.TotalAmount == nil || *result.Computed.TotalAmount != 1234.56 {
		t.Errorf("Computed.TotalAmount = %v, want 1234.56", result.Computed.TotalAmount)
	}
	if record.Totals.TotalAmount != nil {
		t.Error("Validate modified the record")
	}
}

func TestTotalsValidationComputedOverflow(t *testing.T) {
	record := &models.InvoiceRecord{Totals: models.Totals{TaxableAmount: floatp(1e308), TaxAmount: floatp(1e308)}}
	result := NewTotalsValidation().Validate(record)
	if result.Computed.TotalAmount != nil {
		t.Errorf("Computed.TotalAmount = %v, want nil", *result.Computed.TotalAmount)
	}
}
