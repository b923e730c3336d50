// Package http provides the JSON API over the ledger service.
//
// This file reads request bodies. Both JSON and form-encoded bodies are
// accepted, and amounts go through the same tolerant parser as stored files,
// so "1 234,50 $" and 1234.5 mean the same thing.

package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"montaxi/internal/calc"
	"montaxi/internal/core"
	"montaxi/internal/services"
)

// maxBodyBytes caps request bodies; records are a few hundred bytes.
const maxBodyBytes = 1 << 20

// RequestBodyParser reads the body once and answers field lookups from
// either a JSON object or form values.
type RequestBodyParser struct {
	body     []byte
	jsonData map[string]any
	formData url.Values
	err      error
}

// NewRequestBodyParser reads and parses the request body.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if p.err == nil {
		p.err = p.parse()
	}
	return p
}

func (p *RequestBodyParser) parse() error {
	trimmed := bytes.TrimSpace(p.body)
	if len(trimmed) == 0 {
		p.formData = url.Values{}
		return nil
	}
	if trimmed[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		p.jsonData = make(map[string]any)
		if err := dec.Decode(&p.jsonData); err != nil {
			return core.Invalid("body", "is not valid JSON")
		}
		return nil
	}
	form, err := url.ParseQuery(string(trimmed))
	if err != nil {
		return core.Invalid("body", "is not valid form data")
	}
	p.formData = form
	return nil
}

// Err returns the read or parse error, if any.
func (p *RequestBodyParser) Err() error { return p.err }

// Raw returns the body as read.
func (p *RequestBodyParser) Raw() []byte { return p.body }

// IsJSON reports whether the body was a JSON object.
func (p *RequestBodyParser) IsJSON() bool { return p.jsonData != nil }

// Get returns the first present key, sanitized.
func (p *RequestBodyParser) Get(keys ...string) string {
	for _, key := range keys {
		if p.jsonData != nil {
			if val, ok := p.jsonData[key]; ok && val != nil {
				return sanitizeInput(stringValue(val))
			}
			continue
		}
		if p.formData != nil && p.formData.Has(key) {
			return sanitizeInput(p.formData.Get(key))
		}
	}
	return ""
}

// Amount parses a money field; blanks and garbage read as zero.
func (p *RequestBodyParser) Amount(keys ...string) decimal.Decimal {
	return core.ParseAmount(p.Get(keys...))
}

func (p *RequestBodyParser) Count(keys ...string) int {
	return core.ParseCount(p.Get(keys...))
}

// Bool accepts the usual checkbox spellings.
func (p *RequestBodyParser) Bool(keys ...string) bool {
	switch strings.ToLower(p.Get(keys...)) {
	case "1", "true", "on", "yes", "y", "oui":
		return true
	}
	return false
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

func parseDriver(p *RequestBodyParser) core.Driver {
	return core.Driver{
		LastName:    p.Get("last_name"),
		FirstName:   p.Get("first_name"),
		LicenseID:   p.Get("license_id"),
		Address:     p.Get("address"),
		BadgeNumber: p.Get("badge_number"),
		Phone:       p.Get("phone"),
		Note:        p.Get("note"),
	}
}

func parseTaxi(p *RequestBodyParser) core.Taxi {
	return core.Taxi{
		UnitNumber:    p.Get("unit_number"),
		Plate:         p.Get("plate"),
		DefaultDriver: p.Get("default_driver"),
	}
}

func parseExpense(p *RequestBodyParser) services.ExpenseInput {
	return services.ExpenseInput{
		Date:          p.Get("date"),
		Unit:          p.Get("unit"),
		Driver:        p.Get("driver"),
		Category:      p.Get("category"),
		Details:       p.Get("details"),
		Total:         p.Amount("total", "amount", "amount_incl_tax"),
		TaxesIncluded: p.Bool("taxes_included"),
	}
}

func parseRevenue(p *RequestBodyParser) services.RevenueInput {
	return services.RevenueInput{
		PeriodStart: p.Get("period_start"),
		Unit:        p.Get("unit"),
		Driver:      p.Get("driver"),
		RevenueInput: calc.RevenueInput{
			MeterStart:           p.Amount("meter_start"),
			MeterEnd:             p.Amount("meter_end"),
			FixedAmount:          p.Amount("fixed_amount"),
			CallCount:            p.Count("call_count"),
			STS:                  p.Amount("sts"),
			Credits:              p.Amount("credits"),
			FixedPriceDeductions: p.Amount("fixed_price_deductions"),
			CardPayments:         p.Amount("card_payments"),
			Fuel:                 p.Amount("fuel"),
			Wash:                 p.Amount("wash"),
			Misc:                 p.Amount("misc"),
			ManualWithholding:    p.Amount("withholding_tax"),
		},
	}
}
