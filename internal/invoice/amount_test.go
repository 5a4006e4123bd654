package invoice

import (
	"strings"
	"testing"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{"1.234,56", 1234.56, true},
		{"50,00", 50, true},
		{"50.00", 50, true},
		{"1.500", 1500, true},
		{"1.234.567,89", 1234567.89, true},
		{"1,234.56", 1234.56, true},
		{"€ 12,30", 12.3, true},
		{"-5,00", -5, true},
		{"22", 22, true},
		{"22,", 22, true},
		{"", 0, false},
		{"abc", 0, false},
		{"1.2.3,,4", 0, false},
		{"9" + strings.Repeat("9", 400) + ",00", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseAmount(tt.in)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ParseAmount(%q) = %v, %v, want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestAmountPtr(t *testing.T) {
	if amountPtr("n/a") != nil {
		t.Error("amountPtr(\"n/a\") != nil")
	}
	if p := amountPtr("305,00"); p == nil || *p != 305 {
		t.Errorf("amountPtr(\"305,00\") = %v", p)
	}
}
