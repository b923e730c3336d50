package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Kind names one of the four record collections.
type Kind string

const (
	KindDriver  Kind = "driver"
	KindTaxi    Kind = "taxi"
	KindExpense Kind = "expense"
	KindRevenue Kind = "revenue"
)

// Kinds lists every collection in a stable order.
func Kinds() []Kind {
	return []Kind{KindDriver, KindTaxi, KindExpense, KindRevenue}
}

func (k Kind) Valid() bool {
	switch k {
	case KindDriver, KindTaxi, KindExpense, KindRevenue:
		return true
	}
	return false
}

type (
	// Rates holds the tunable parameters of every pay and tax computation.
	// Percentages are human-readable (40 means 40%).
	Rates struct {
		CallCost       decimal.Decimal
		DriverPct      decimal.Decimal
		WithholdingPct decimal.Decimal
		TaxRateA       decimal.Decimal // GST/TPS
		TaxRateB       decimal.Decimal // QST/TVQ
	}

	Driver struct {
		ID          string
		LastName    string
		FirstName   string
		LicenseID   string
		Address     string
		BadgeNumber string
		Phone       string
		Note        string
	}

	Taxi struct {
		ID         string
		UnitNumber string
		Plate      string
		// DefaultDriver is a display name, not an identifier.
		DefaultDriver string
	}

	Expense struct {
		ID            string
		Date          string
		MonthKey      string
		Year          string
		Quarter       string
		Unit          string
		Driver        string
		Category      string
		Details       string
		AmountExclTax decimal.Decimal
		TaxA          decimal.Decimal
		TaxB          decimal.Decimal
		AmountInclTax decimal.Decimal
	}

	// RevenueEntry is one weekly sheet for a taxi and its driver.
	RevenueEntry struct {
		ID                   string
		PeriodStart          string
		PeriodEnd            string
		MonthKey             string
		Year                 string
		Quarter              string
		Unit                 string
		Driver               string
		MeterStart           decimal.Decimal
		MeterEnd             decimal.Decimal
		MeterTotal           decimal.Decimal
		FixedAmount          decimal.Decimal
		Gross                decimal.Decimal
		CallCount            int
		CallFeeTotal         decimal.Decimal
		BasePay              decimal.Decimal
		DriverPay            decimal.Decimal
		WithholdingTax       decimal.Decimal
		STS                  decimal.Decimal
		Credits              decimal.Decimal
		FixedPriceDeductions decimal.Decimal
		CardPayments         decimal.Decimal
		Fuel                 decimal.Decimal
		Wash                 decimal.Decimal
		Misc                 decimal.Decimal
		NetDueToOwner        decimal.Decimal
	}
)

// DefaultRates returns the rates used when no settings document exists.
func DefaultRates() Rates {
	return Rates{
		CallCost:       decimal.RequireFromString("1.05"),
		DriverPct:      decimal.NewFromInt(40),
		WithholdingPct: decimal.NewFromInt(18),
		TaxRateA:       decimal.NewFromInt(5),
		TaxRateB:       decimal.RequireFromString("9.975"),
	}
}

func (r Rates) Validate() error {
	checks := []struct {
		field string
		v     decimal.Decimal
	}{
		{"call_cost", r.CallCost},
		{"driver_pct", r.DriverPct},
		{"withholding_pct", r.WithholdingPct},
		{"tax_rate_a", r.TaxRateA},
		{"tax_rate_b", r.TaxRateB},
	}
	for _, c := range checks {
		if c.v.IsNegative() {
			return Invalid(c.field, "must not be negative")
		}
	}
	if r.DriverPct.GreaterThan(decimal.NewFromInt(100)) {
		return Invalid("driver_pct", "must be at most 100")
	}
	return nil
}

// DisplayName is the "Last First" form used wherever a driver is referenced
// by name. Creation and lookup must both go through it.
func DisplayName(lastName, firstName string) string {
	return strings.TrimSpace(strings.TrimSpace(lastName) + " " + strings.TrimSpace(firstName))
}

func (d Driver) DisplayName() string { return DisplayName(d.LastName, d.FirstName) }

func (d Driver) Validate() error {
	if strings.TrimSpace(d.LastName) == "" {
		return Invalid("last_name", "is required")
	}
	return nil
}

func (t Taxi) Validate() error {
	if strings.TrimSpace(t.UnitNumber) == "" {
		return Invalid("unit_number", "is required")
	}
	return nil
}

func (e Expense) Validate() error {
	if _, err := ParseDate(e.Date); err != nil {
		return Invalid("date", "must be YYYY-MM-DD")
	}
	if e.AmountInclTax.IsZero() {
		return Invalid("amount", "is required")
	}
	return nil
}

func (r RevenueEntry) Validate() error {
	if _, err := ParseDate(r.PeriodStart); err != nil {
		return Invalid("period_start", "must be YYYY-MM-DD")
	}
	if strings.TrimSpace(r.Unit) == "" {
		return Invalid("unit", "is required")
	}
	if strings.TrimSpace(r.Driver) == "" {
		return Invalid("driver", "is required")
	}
	return nil
}

// Stamp fills the derived date keys from the expense date.
func (e *Expense) Stamp() {
	if t, err := ParseDate(e.Date); err == nil {
		e.MonthKey, e.Year, e.Quarter = PeriodKeys(t)
	}
}

// Stamp fills the period end and the derived date keys from the period start.
func (r *RevenueEntry) Stamp() {
	if t, err := ParseDate(r.PeriodStart); err == nil {
		r.PeriodEnd = FormatDate(t.AddDate(0, 0, 6))
		r.MonthKey, r.Year, r.Quarter = PeriodKeys(t)
	}
}

