// Package http provides the JSON API over the ledger service.
//
// This file builds responses. Records are rendered from their storage table
// codec so the API shows exactly the columns and 2-decimal amounts a file
// or table holds.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"montaxi/internal/calc"
	"montaxi/internal/core"
	"montaxi/internal/log"
	"montaxi/internal/services"
	"montaxi/internal/storage"
	"montaxi/internal/summary"
)

// ResponseBuilder provides a fluent API for JSON and binary responses.
type ResponseBuilder struct {
	statusCode int
	headers    map[string]string
	payload    any
	body       []byte
}

// NewResponse creates a builder with a default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{statusCode: http.StatusOK, headers: make(map[string]string)}
}

func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets a value to be encoded as the body.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	b.headers["Content-Type"] = "application/json; charset=utf-8"
	b.payload = v
	return b
}

// Attachment sets a binary body served as a download named filename.
func (b *ResponseBuilder) Attachment(contentType, filename string, body []byte) *ResponseBuilder {
	b.headers["Content-Type"] = contentType
	b.headers["Content-Disposition"] = `attachment; filename="` + filename + `"`
	b.body = body
	return b
}

// Write sends the built response.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.WriteHeader(b.statusCode)
	switch {
	case b.payload != nil:
		_ = json.NewEncoder(w).Encode(b.payload)
	case len(b.body) > 0:
		_, _ = w.Write(b.body)
	}
}

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// ErrorResponse creates a JSON error response.
func ErrorResponse(statusCode int, message string) *ResponseBuilder {
	return NewResponse().Status(statusCode).JSON(errorBody{Error: message})
}

// writeError maps ledger errors to status codes. Unexpected errors are
// logged and answered with a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		NewResponse().Status(http.StatusBadRequest).JSON(errorBody{Error: verr.Error(), Field: verr.Field}).Write(w)
	case errors.Is(err, core.ErrValidation):
		ErrorResponse(http.StatusBadRequest, err.Error()).Write(w)
	case errors.Is(err, core.ErrNotFound):
		ErrorResponse(http.StatusNotFound, err.Error()).Write(w)
	case errors.Is(err, core.ErrDuplicate):
		ErrorResponse(http.StatusConflict, err.Error()).Write(w)
	default:
		log.NewStructuredLogger(log.FromContext(r.Context())).
			LogError(r.Context(), "Request failed", err, r.Method+" "+r.URL.Path, nil)
		ErrorResponse(http.StatusInternalServerError, "internal error").Write(w)
	}
}

func amountString(d decimal.Decimal) string { return core.FormatAmount(core.Round2(d)) }

// recordJSON renders a record as column/value pairs.
func recordJSON[T any](t *storage.Table[T], rec T) map[string]string {
	values := t.Encode(rec)
	out := make(map[string]string, len(values))
	for i, col := range t.Columns {
		if i < len(values) {
			out[col] = values[i]
		}
	}
	return out
}

func recordsJSON[T any](t *storage.Table[T], recs []T) []map[string]string {
	out := make([]map[string]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, recordJSON(t, r))
	}
	return out
}

// driverJSON adds the display name other records use to refer to the driver.
func driverJSON(d core.Driver) map[string]string {
	out := recordJSON(storage.DriverTable, d)
	out["display_name"] = d.DisplayName()
	return out
}

func driversJSON(drivers []core.Driver) []map[string]string {
	out := make([]map[string]string, 0, len(drivers))
	for _, d := range drivers {
		out = append(out, driverJSON(d))
	}
	return out
}

type revenueResponse struct {
	Entry                map[string]string `json:"entry"`
	SuggestedWithholding string            `json:"suggested_withholding"`
	MeterRollback        bool              `json:"meter_rollback"`
	NetStatus            string            `json:"net_status"`
}

// Values of net_status. A driver credit is a week where the owner owes the driver.
const (
	netOwnerDue     = "owner_due"
	netDriverCredit = "driver_credit"
)

func revenueJSON(res services.RevenueResult) revenueResponse {
	return revenueResponse{
		Entry:                recordJSON(storage.RevenueTable, res.Entry),
		SuggestedWithholding: amountString(res.Breakdown.SuggestedWithholding),
		MeterRollback:        res.Breakdown.MeterRollback,
		NetStatus:            netStatus(res.Breakdown),
	}
}

func netStatus(b calc.RevenueBreakdown) string {
	if b.NetNegative() {
		return netDriverCredit
	}
	return netOwnerDue
}

type taxSplitResponse struct {
	AmountExclTax string `json:"amount_excl_tax"`
	TaxA          string `json:"tax_a"`
	TaxB          string `json:"tax_b"`
	AmountInclTax string `json:"amount_incl_tax"`
}

func taxSplitJSON(s calc.TaxSplit) taxSplitResponse {
	r := s.Rounded()
	return taxSplitResponse{
		AmountExclTax: amountString(r.AmountExclTax),
		TaxA:          amountString(r.TaxA),
		TaxB:          amountString(r.TaxB),
		AmountInclTax: amountString(r.Total),
	}
}

type summaryRowResponse struct {
	Key             string `json:"key"`
	Label           string `json:"label"`
	RevenueGross    string `json:"revenue_gross"`
	DriverPay       string `json:"driver_pay"`
	NetToOwner      string `json:"net_to_owner"`
	GarageExpenses  string `json:"garage_expenses"`
	TaxARecoverable string `json:"tax_a_recoverable"`
	TaxBRecoverable string `json:"tax_b_recoverable"`
	ProfitNet       string `json:"profit_net"`
}

type summaryResponse struct {
	Year   string               `json:"year"`
	By     string               `json:"by"`
	Rows   []summaryRowResponse `json:"rows"`
	Totals summaryRowResponse   `json:"totals"`
}

func summaryJSON(s summary.Summary) summaryResponse {
	row := func(r summary.Row) summaryRowResponse {
		return summaryRowResponse{
			Key:             r.Key,
			Label:           s.Label(r.Key),
			RevenueGross:    amountString(r.RevenueGross),
			DriverPay:       amountString(r.DriverPay),
			NetToOwner:      amountString(r.NetToOwner),
			GarageExpenses:  amountString(r.GarageExpenses),
			TaxARecoverable: amountString(r.TaxARecoverable),
			TaxBRecoverable: amountString(r.TaxBRecoverable),
			ProfitNet:       amountString(r.ProfitNet),
		}
	}
	out := summaryResponse{Year: s.Year, By: string(s.Granularity), Rows: make([]summaryRowResponse, 0, len(s.Rows))}
	for _, r := range s.Rows {
		out.Rows = append(out.Rows, row(r))
	}
	out.Totals = row(s.Totals)
	return out
}

type auditRowResponse struct {
	Date       string `json:"date"`
	Source     string `json:"source"`
	TaxA       string `json:"tax_a"`
	TaxB       string `json:"tax_b"`
	GrossTotal string `json:"gross_total"`
}

func auditJSON(rows []summary.AuditRow) []auditRowResponse {
	out := make([]auditRowResponse, 0, len(rows))
	for _, a := range rows {
		out = append(out, auditRowResponse{
			Date:       a.Date,
			Source:     a.Source,
			TaxA:       amountString(a.TaxA),
			TaxB:       amountString(a.TaxB),
			GrossTotal: amountString(a.GrossTotal),
		})
	}
	return out
}
