package summary

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"montaxi/internal/calc"
	"montaxi/internal/core"
)

// SourceFuelWash labels the sales tax implied by fuel and wash deductions.
const SourceFuelWash = "Fuel/Wash"

// AuditRow is one line of the tax audit: a record that carries recoverable tax.
type AuditRow struct {
	Date       string
	Source     string
	TaxA       decimal.Decimal
	TaxB       decimal.Decimal
	GrossTotal decimal.Decimal
}

// Audit lists every expense with nonzero tax and every revenue entry with
// nonzero synthetic fuel/wash tax for the year, newest first.
func Audit(year string, revenues []core.RevenueEntry, expenses []core.Expense, rates core.Rates) []AuditRow {
	var rows []AuditRow
	for _, e := range expenses {
		if strings.TrimSpace(e.Year) != year || (e.TaxA.IsZero() && e.TaxB.IsZero()) {
			continue
		}
		rows = append(rows, AuditRow{
			Date:       e.Date,
			Source:     e.Category,
			TaxA:       e.TaxA,
			TaxB:       e.TaxB,
			GrossTotal: e.AmountInclTax,
		})
	}
	for _, r := range revenues {
		if strings.TrimSpace(r.Year) != year {
			continue
		}
		total := r.Fuel.Add(r.Wash)
		split := calc.SplitTax(total, true, rates)
		if !split.HasTax() {
			continue
		}
		s := split.Rounded()
		rows = append(rows, AuditRow{
			Date:       r.PeriodStart,
			Source:     SourceFuelWash,
			TaxA:       s.TaxA,
			TaxB:       s.TaxB,
			GrossTotal: s.Total,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Date > rows[j].Date })
	return rows
}
