// Package calc holds the pay and sales-tax arithmetic. Every function is pure:
// rates are passed in explicitly and nothing is rounded until Entry or Rounded
// is called at the persistence boundary.
package calc

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"montaxi/internal/core"
)

// WithholdingPolicy decides how the withholding tax of a revenue entry is chosen.
type WithholdingPolicy string

const (
	// WithholdingOverride uses a present, nonzero manual value verbatim and
	// falls back to the suggestion otherwise.
	WithholdingOverride WithholdingPolicy = "override"
	// WithholdingRecompute always stores the suggested value.
	WithholdingRecompute WithholdingPolicy = "recompute"
)

func ParseWithholdingPolicy(s string) (WithholdingPolicy, error) {
	switch WithholdingPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", WithholdingOverride:
		return WithholdingOverride, nil
	case WithholdingRecompute:
		return WithholdingRecompute, nil
	}
	return "", fmt.Errorf("unknown withholding policy %q", s)
}

// RevenueInput carries the raw fields of a weekly sheet.
type RevenueInput struct {
	MeterStart           decimal.Decimal
	MeterEnd             decimal.Decimal
	FixedAmount          decimal.Decimal
	CallCount            int
	STS                  decimal.Decimal
	Credits              decimal.Decimal
	FixedPriceDeductions decimal.Decimal
	CardPayments         decimal.Decimal
	Fuel                 decimal.Decimal
	Wash                 decimal.Decimal
	Misc                 decimal.Decimal
	// ManualWithholding is zero when the operator entered nothing.
	ManualWithholding decimal.Decimal
}

// RevenueBreakdown is the unrounded result of ComputeRevenue.
type RevenueBreakdown struct {
	Input                RevenueInput
	MeterTotal           decimal.Decimal
	MeterRollback        bool
	Gross                decimal.Decimal
	CallFeeTotal         decimal.Decimal
	BasePay              decimal.Decimal
	DriverPay            decimal.Decimal
	SuggestedWithholding decimal.Decimal
	WithholdingTax       decimal.Decimal
	TotalDeductions      decimal.Decimal
	NetDueToOwner        decimal.Decimal
}

// ComputeRevenue derives pay, withholding and the amount due to the owner.
// A meter_end below meter_start clamps the meter total to zero and sets
// MeterRollback; it does not fail.
func ComputeRevenue(in RevenueInput, rates core.Rates, policy WithholdingPolicy) RevenueBreakdown {
	b := RevenueBreakdown{Input: in}

	b.MeterTotal = in.MeterEnd.Sub(in.MeterStart)
	if b.MeterTotal.IsNegative() {
		b.MeterTotal = decimal.Zero
		b.MeterRollback = true
	}
	b.Gross = b.MeterTotal.Add(in.FixedAmount)
	b.CallFeeTotal = decimal.NewFromInt(int64(in.CallCount)).Mul(rates.CallCost)
	b.BasePay = b.Gross.Sub(b.CallFeeTotal)
	b.DriverPay = b.BasePay.Mul(core.Percent(rates.DriverPct))
	b.SuggestedWithholding = b.DriverPay.Mul(core.Percent(rates.WithholdingPct))

	b.WithholdingTax = b.SuggestedWithholding
	if policy != WithholdingRecompute && !in.ManualWithholding.IsZero() {
		b.WithholdingTax = in.ManualWithholding
	}

	b.TotalDeductions = in.STS.
		Add(in.Credits).
		Add(in.FixedPriceDeductions).
		Add(in.CardPayments).
		Add(in.Fuel).
		Add(in.Wash).
		Add(in.Misc)

	b.NetDueToOwner = b.Gross.
		Sub(b.DriverPay).
		Sub(b.TotalDeductions).
		Add(b.WithholdingTax)
	return b
}

// NetNegative reports a week where the owner owes the driver.
func (b RevenueBreakdown) NetNegative() bool { return b.NetDueToOwner.IsNegative() }

// Entry rounds the breakdown to cents and writes it onto e. Identity, dates
// and the unit/driver references are left to the caller.
func (b RevenueBreakdown) Entry(e core.RevenueEntry) core.RevenueEntry {
	r := core.Round2
	e.MeterStart = r(b.Input.MeterStart)
	e.MeterEnd = r(b.Input.MeterEnd)
	e.MeterTotal = r(b.MeterTotal)
	e.FixedAmount = r(b.Input.FixedAmount)
	e.Gross = r(b.Gross)
	e.CallCount = b.Input.CallCount
	e.CallFeeTotal = r(b.CallFeeTotal)
	e.BasePay = r(b.BasePay)
	e.DriverPay = r(b.DriverPay)
	e.WithholdingTax = r(b.WithholdingTax)
	e.STS = r(b.Input.STS)
	e.Credits = r(b.Input.Credits)
	e.FixedPriceDeductions = r(b.Input.FixedPriceDeductions)
	e.CardPayments = r(b.Input.CardPayments)
	e.Fuel = r(b.Input.Fuel)
	e.Wash = r(b.Input.Wash)
	e.Misc = r(b.Input.Misc)
	e.NetDueToOwner = r(b.NetDueToOwner)
	return e
}
