package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func parserFor(body string) *RequestBodyParser {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	return NewRequestBodyParser(req)
}

func TestRequestBodyParser_JSONAndForm(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"json", `{"unit":" 12 ","fuel":"1 234,50 $","call_count":"7","taxes_included":true}`},
		{"form", "unit=+12+&fuel=1+234%2C50+%24&call_count=7&taxes_included=on"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := parserFor(tt.body)
			if err := p.Err(); err != nil {
				t.Fatalf("Err() = %v", err)
			}
			if got := p.Get("unit"); got != "12" {
				t.Errorf("Get(unit) = %q", got)
			}
			if got := p.Amount("fuel"); !got.Equal(decimal.RequireFromString("1234.50")) {
				t.Errorf("Amount(fuel) = %s", got)
			}
			if got := p.Count("call_count"); got != 7 {
				t.Errorf("Count(call_count) = %d", got)
			}
			if !p.Bool("taxes_included") {
				t.Error("Bool(taxes_included) = false")
			}
		})
	}
}

func TestRequestBodyParser_JSONNumbersStayExact(t *testing.T) {
	p := parserFor(`{"meter_end": 1481.30, "misc": null}`)
	if got := p.Amount("meter_end"); !got.Equal(decimal.RequireFromString("1481.3")) {
		t.Errorf("Amount(meter_end) = %s", got)
	}
	if got := p.Amount("misc"); !got.IsZero() {
		t.Errorf("Amount(misc) = %s, want 0", got)
	}
}

func TestRequestBodyParser_Aliases(t *testing.T) {
	p := parserFor(`{"amount":"80"}`)
	if got := p.Amount("total", "amount"); !got.Equal(decimal.NewFromInt(80)) {
		t.Errorf("Amount(total, amount) = %s", got)
	}
}

func TestRequestBodyParser_EmptyAndInvalid(t *testing.T) {
	if p := parserFor(""); p.Err() != nil || p.Get("x") != "" {
		t.Errorf("empty body: err=%v", p.Err())
	}
	if p := parserFor(`{"x":`); p.Err() == nil {
		t.Error("expected error for truncated JSON")
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  Tremblay\x00\x07 Luc\t "); got != "Tremblay Luc" {
		t.Errorf("sanitizeInput() = %q", got)
	}
}

func TestSafeFilename(t *testing.T) {
	if got := safeFilename(`sheet-2025-03-03-unit"12 A".pdf`); got != "sheet-2025-03-03-unit_12_A_.pdf" {
		t.Errorf("safeFilename() = %q", got)
	}
}
