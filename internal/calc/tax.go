package calc

import (
	"github.com/shopspring/decimal"

	"montaxi/internal/core"
)

// TaxSplit breaks a total into its pre-tax amount and the two sales taxes.
type TaxSplit struct {
	AmountExclTax decimal.Decimal
	TaxA          decimal.Decimal
	TaxB          decimal.Decimal
	Total         decimal.Decimal
}

// SplitTax back-calculates the taxes contained in total when taxesIncluded
// is set. Otherwise the whole total is the pre-tax amount.
func SplitTax(total decimal.Decimal, taxesIncluded bool, rates core.Rates) TaxSplit {
	if !taxesIncluded {
		return TaxSplit{AmountExclTax: total, TaxA: decimal.Zero, TaxB: decimal.Zero, Total: total}
	}
	a := core.Percent(rates.TaxRateA)
	b := core.Percent(rates.TaxRateB)
	divisor := decimal.NewFromInt(1).Add(a).Add(b)
	excl := total.DivRound(divisor, 16)
	return TaxSplit{
		AmountExclTax: excl,
		TaxA:          excl.Mul(a),
		TaxB:          excl.Mul(b),
		Total:         total,
	}
}

// Rounded rounds each part to cents. A residual cent from rounding goes to
// the pre-tax amount so the stored parts add up to the stored total.
func (s TaxSplit) Rounded() TaxSplit {
	total := core.Round2(s.Total)
	ta := core.Round2(s.TaxA)
	tb := core.Round2(s.TaxB)
	return TaxSplit{
		AmountExclTax: total.Sub(ta).Sub(tb),
		TaxA:          ta,
		TaxB:          tb,
		Total:         total,
	}
}

// HasTax reports whether either tax component is nonzero.
func (s TaxSplit) HasTax() bool { return !s.TaxA.IsZero() || !s.TaxB.IsZero() }

// Expense applies the rounded split to an expense record.
func (s TaxSplit) Expense(e core.Expense) core.Expense {
	r := s.Rounded()
	e.AmountExclTax = r.AmountExclTax
	e.TaxA = r.TaxA
	e.TaxB = r.TaxB
	e.AmountInclTax = r.Total
	return e
}
