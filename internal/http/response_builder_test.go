package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"montaxi/internal/core"
	"montaxi/internal/storage"
)

func TestWriteErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"validation", core.Invalid("unit", "is required"), http.StatusBadRequest},
		{"wrapped validation", fmt.Errorf("save: %w", core.ErrValidation), http.StatusBadRequest},
		{"not found", fmt.Errorf("driver x: %w", core.ErrNotFound), http.StatusNotFound},
		{"duplicate", fmt.Errorf("week: %w", core.ErrDuplicate), http.StatusConflict},
		{"unexpected", errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			writeError(rr, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
			if rr.Code != tt.code {
				t.Errorf("status = %d, want %d", rr.Code, tt.code)
			}
			if ct := rr.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
				t.Errorf("Content-Type = %q", ct)
			}
		})
	}
}

func TestInternalErrorHidesDetails(t *testing.T) {
	rr := httptest.NewRecorder()
	writeError(rr, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("password=hunter2"))
	if got := rr.Body.String(); got != "{\"error\":\"internal error\"}\n" {
		t.Errorf("body = %q", got)
	}
}

func TestRecordJSONUsesTableColumns(t *testing.T) {
	e := core.Expense{ID: "e1", Date: "2025-04-15", AmountInclTax: decimal.RequireFromString("400"), TaxA: decimal.RequireFromString("17.4")}
	got := recordJSON(storage.ExpenseTable, e)
	if len(got) != len(storage.ExpenseTable.Columns) {
		t.Fatalf("got %d keys, want %d", len(got), len(storage.ExpenseTable.Columns))
	}
	if got["amount_incl_tax"] != "400.00" || got["tax_a"] != "17.40" || got["id"] != "e1" {
		t.Errorf("recordJSON() = %v", got)
	}
}

func TestResponseBuilderAttachment(t *testing.T) {
	rr := httptest.NewRecorder()
	NewResponse().Attachment(contentTypePDF, "a.pdf", []byte("%PDF-1.3")).Write(rr)
	if rr.Header().Get("Content-Disposition") != `attachment; filename="a.pdf"` {
		t.Errorf("Content-Disposition = %q", rr.Header().Get("Content-Disposition"))
	}
	if rr.Body.String() != "%PDF-1.3" {
		t.Errorf("body = %q", rr.Body.String())
	}
}
