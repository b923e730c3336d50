// Package summary aggregates revenue entries and expenses into period rows
// and lists the sales-tax items behind the recoverable totals.
package summary

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"montaxi/internal/calc"
	"montaxi/internal/core"
)

type Granularity string

const (
	ByMonth   Granularity = "month"
	ByQuarter Granularity = "quarter"
	ByYear    Granularity = "year"
)

func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(s))); g {
	case "":
		return ByMonth, nil
	case ByMonth, ByQuarter, ByYear:
		return g, nil
	}
	return "", core.Invalid("by", "must be month, quarter or year")
}

// Row is the aggregate of one period.
type Row struct {
	Key             string
	RevenueGross    decimal.Decimal
	DriverPay       decimal.Decimal
	NetToOwner      decimal.Decimal
	GarageExpenses  decimal.Decimal
	TaxARecoverable decimal.Decimal
	TaxBRecoverable decimal.Decimal
	ProfitNet       decimal.Decimal
}

type Summary struct {
	Year        string
	Granularity Granularity
	Rows        []Row
	Totals      Row
}

func (r *Row) add(o Row) {
	r.RevenueGross = r.RevenueGross.Add(o.RevenueGross)
	r.DriverPay = r.DriverPay.Add(o.DriverPay)
	r.NetToOwner = r.NetToOwner.Add(o.NetToOwner)
	r.GarageExpenses = r.GarageExpenses.Add(o.GarageExpenses)
	r.TaxARecoverable = r.TaxARecoverable.Add(o.TaxARecoverable)
	r.TaxBRecoverable = r.TaxBRecoverable.Add(o.TaxBRecoverable)
	r.ProfitNet = r.ProfitNet.Add(o.ProfitNet)
}

// Build groups the records of one year. Every record whose year matches lands
// in exactly one group; groups come back sorted ascending by key.
func Build(year string, by Granularity, revenues []core.RevenueEntry, expenses []core.Expense, rates core.Rates) Summary {
	groups := make(map[string]*Row)
	group := func(key string) *Row {
		g, ok := groups[key]
		if !ok {
			g = &Row{Key: key}
			groups[key] = g
		}
		return g
	}

	for _, r := range revenues {
		if strings.TrimSpace(r.Year) != year {
			continue
		}
		g := group(periodKey(by, r.PeriodStart, r.MonthKey, r.Quarter, r.Year))
		synthetic := calc.SplitTax(r.Fuel.Add(r.Wash), true, rates)
		g.add(Row{
			RevenueGross:    r.Gross,
			DriverPay:       r.DriverPay,
			NetToOwner:      r.NetDueToOwner,
			TaxARecoverable: synthetic.TaxA,
			TaxBRecoverable: synthetic.TaxB,
			ProfitNet:       r.NetDueToOwner,
		})
	}
	for _, e := range expenses {
		if strings.TrimSpace(e.Year) != year {
			continue
		}
		g := group(periodKey(by, e.Date, e.MonthKey, e.Quarter, e.Year))
		g.add(Row{
			GarageExpenses:  e.AmountInclTax,
			TaxARecoverable: e.TaxA,
			TaxBRecoverable: e.TaxB,
			ProfitNet:       e.AmountInclTax.Neg(),
		})
	}

	s := Summary{Year: year, Granularity: by, Rows: make([]Row, 0, len(groups))}
	for _, g := range groups {
		s.Rows = append(s.Rows, *g)
	}
	sort.Slice(s.Rows, func(i, j int) bool { return s.Rows[i].Key < s.Rows[j].Key })
	s.Totals.Key = "total"
	for _, r := range s.Rows {
		s.Totals.add(r)
	}
	return s
}

// periodKey derives the group key from the record date. Records with an
// unreadable date fall back to their stored keys.
func periodKey(by Granularity, date, monthKey, quarter, year string) string {
	t, err := core.ParseDate(date)
	switch by {
	case ByYear:
		return strings.TrimSpace(year)
	case ByQuarter:
		if err == nil {
			return core.QuarterOf(int(t.Month()))
		}
		if m, ok := core.MonthFromKey(monthKey); ok {
			return core.QuarterOf(m)
		}
		return strings.TrimSpace(quarter)
	default:
		if err == nil {
			return core.MonthKey(t)
		}
		return strings.TrimSpace(monthKey)
	}
}

// Years lists the years present in the records, most recent first. The
// current year is always included.
func Years(revenues []core.RevenueEntry, expenses []core.Expense, now time.Time) []string {
	seen := map[string]bool{strconv.Itoa(now.Year()): true}
	for _, r := range revenues {
		if y := strings.TrimSpace(r.Year); y != "" {
			seen[y] = true
		}
	}
	for _, e := range expenses {
		if y := strings.TrimSpace(e.Year); y != "" {
			seen[y] = true
		}
	}
	out := make([]string, 0, len(seen))
	for y := range seen {
		out = append(out, y)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out
}

// Label renders a row key for reports.
func (s Summary) Label(key string) string {
	if s.Granularity == ByYear && key != "total" {
		return fmt.Sprintf("Year %s", key)
	}
	return key
}
