package storage

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"montaxi/internal/core"
)

// Table describes how one record type is laid out on disk or in a table.
// Columns are canonical and ordered; the identifier is always last.
type Table[T any] struct {
	Name    string
	Kind    core.Kind
	Columns []string
	// Aliases maps header names written by older versions to canonical columns.
	Aliases map[string]string
	Encode  func(T) []string
	Decode  func([]string) T
	ID      func(T) string
}

// Column resolves a header cell to a canonical column index, or -1.
func (t *Table[T]) Column(header string) int {
	h := strings.TrimSpace(strings.TrimPrefix(header, "\ufeff"))
	if canon, ok := t.Aliases[strings.ToLower(h)]; ok {
		h = canon
	}
	for i, c := range t.Columns {
		if strings.EqualFold(c, h) {
			return i
		}
	}
	return -1
}

// IsCanonical reports whether header matches the canonical column list exactly.
func (t *Table[T]) IsCanonical(header []string) bool {
	if len(header) != len(t.Columns) {
		return false
	}
	for i, h := range header {
		if h != t.Columns[i] {
			return false
		}
	}
	return true
}

func money(d decimal.Decimal) string { return core.FormatAmount(core.Round2(d)) }

func amount(s string) decimal.Decimal { return core.ParseAmount(s) }

// lowerKeys normalises alias keys for case-insensitive lookups.
func lowerKeys(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[strings.ToLower(k)] = v
	}
	return out
}

var DriverTable = &Table[core.Driver]{
	Name:    "drivers",
	Kind:    core.KindDriver,
	Columns: []string{"last_name", "first_name", "license_id", "address", "badge_number", "phone", "note", "id"},
	Aliases: lowerKeys(map[string]string{
		"Nom":       "last_name",
		"Prenom":    "first_name",
		"Permis":    "license_id",
		"Adresse":   "address",
		"Matricule": "badge_number",
		"Telephone": "phone",
		"Note":      "note",
		"UUID":      "id",
	}),
	Encode: func(d core.Driver) []string {
		return []string{d.LastName, d.FirstName, d.LicenseID, d.Address, d.BadgeNumber, d.Phone, d.Note, d.ID}
	},
	Decode: func(r []string) core.Driver {
		return core.Driver{
			LastName: r[0], FirstName: r[1], LicenseID: r[2], Address: r[3],
			BadgeNumber: r[4], Phone: r[5], Note: r[6], ID: r[7],
		}
	},
	ID:     func(d core.Driver) string { return d.ID },
}

var TaxiTable = &Table[core.Taxi]{
	Name:    "taxis",
	Kind:    core.KindTaxi,
	Columns: []string{"unit_number", "plate", "default_driver", "id"},
	Aliases: lowerKeys(map[string]string{
		"Numero":            "unit_number",
		"Taxi":              "unit_number",
		"Plaque":            "plate",
		"Chauffeur_Defaut":  "default_driver",
		"Chauffeur_Attitre": "default_driver",
		"UUID":              "id",
	}),
	Encode: func(t core.Taxi) []string {
		return []string{t.UnitNumber, t.Plate, t.DefaultDriver, t.ID}
	},
	Decode: func(r []string) core.Taxi {
		return core.Taxi{UnitNumber: r[0], Plate: r[1], DefaultDriver: r[2], ID: r[3]}
	},
	ID:     func(t core.Taxi) string { return t.ID },
}

var ExpenseTable = &Table[core.Expense]{
	Name: "expenses",
	Kind: core.KindExpense,
	Columns: []string{
		"date", "month", "year", "quarter", "unit", "driver", "category", "details",
		"amount_excl_tax", "tax_a", "tax_b", "amount_incl_tax", "id",
	},
	Aliases: lowerKeys(map[string]string{
		"Mois":          "month",
		"Annee":         "year",
		"Trimestre":     "quarter",
		"Taxi":          "unit",
		"Taxi_ID":       "unit",
		"Chauffeur":     "driver",
		"Categorie":     "category",
		"Details":       "details",
		"HT":            "amount_excl_tax",
		"Montant_HT":    "amount_excl_tax",
		"TPS":           "tax_a",
		"TVQ":           "tax_b",
		"Total":         "amount_incl_tax",
		"Montant_Total": "amount_incl_tax",
		"UUID":          "id",
	}),
	Encode: func(e core.Expense) []string {
		return []string{
			e.Date, e.MonthKey, e.Year, e.Quarter, e.Unit, e.Driver, e.Category, e.Details,
			money(e.AmountExclTax), money(e.TaxA), money(e.TaxB), money(e.AmountInclTax), e.ID,
		}
	},
	Decode: func(r []string) core.Expense {
		return core.Expense{
			Date: r[0], MonthKey: r[1], Year: r[2], Quarter: r[3], Unit: r[4], Driver: r[5],
			Category: r[6], Details: r[7],
			AmountExclTax: amount(r[8]), TaxA: amount(r[9]), TaxB: amount(r[10]), AmountInclTax: amount(r[11]),
			ID: r[12],
		}
	},
	ID:     func(e core.Expense) string { return e.ID },
}

var RevenueTable = &Table[core.RevenueEntry]{
	Name: "revenues",
	Kind: core.KindRevenue,
	Columns: []string{
		"period_start", "period_end", "month", "year", "quarter", "unit", "driver",
		"meter_start", "meter_end", "meter_total", "fixed_amount", "gross", "call_count",
		"call_fee_total", "base_pay", "driver_pay", "sts", "credits", "fixed_price_deductions",
		"card_payments", "fuel", "wash", "misc", "withholding_tax", "net_due_to_owner", "id",
	},
	Aliases: lowerKeys(map[string]string{
		"Date_Debut":          "period_start",
		"Date_Fin":            "period_end",
		"Mois":                "month",
		"Annee":               "year",
		"Trimestre":           "quarter",
		"Taxi":                "unit",
		"Taxi_ID":             "unit",
		"Chauffeur":           "driver",
		"Meter_Debut":         "meter_start",
		"Meter_Deb":           "meter_start",
		"Meter_Fin":           "meter_end",
		"Meter_Total":         "meter_total",
		"Fixe":                "fixed_amount",
		"Total_Brut":          "gross",
		"Brut":                "gross",
		"Nb_Appels":           "call_count",
		"Redevance":           "call_fee_total",
		"Redevance_Calc":      "call_fee_total",
		"Base_Salaire":        "base_pay",
		"Total_Sujet_Salaire": "base_pay",
		"Salaire":             "driver_pay",
		"Salaire_Chauffeur":   "driver_pay",
		"STS":                 "sts",
		"Credits":             "credits",
		"Credits_Comptes":     "credits",
		"Prix_Fixes":          "fixed_price_deductions",
		"Visa":                "card_payments",
		"Visa_Debit":          "card_payments",
		"Essence":             "fuel",
		"Lavage":              "wash",
		"Divers":              "misc",
		"Impot":               "withholding_tax",
		"Impot_Ajoute":        "withholding_tax",
		"A_Remettre":          "net_due_to_owner",
		"Grand_Total_Remis":   "net_due_to_owner",
		"UUID":                "id",
	}),
	Encode: func(r core.RevenueEntry) []string {
		return []string{
			r.PeriodStart, r.PeriodEnd, r.MonthKey, r.Year, r.Quarter, r.Unit, r.Driver,
			money(r.MeterStart), money(r.MeterEnd), money(r.MeterTotal), money(r.FixedAmount), money(r.Gross),
			strconv.Itoa(r.CallCount),
			money(r.CallFeeTotal), money(r.BasePay), money(r.DriverPay), money(r.STS), money(r.Credits),
			money(r.FixedPriceDeductions), money(r.CardPayments), money(r.Fuel), money(r.Wash), money(r.Misc),
			money(r.WithholdingTax), money(r.NetDueToOwner), r.ID,
		}
	},
	Decode: func(c []string) core.RevenueEntry {
		return core.RevenueEntry{
			PeriodStart: c[0], PeriodEnd: c[1], MonthKey: c[2], Year: c[3], Quarter: c[4], Unit: c[5], Driver: c[6],
			MeterStart: amount(c[7]), MeterEnd: amount(c[8]), MeterTotal: amount(c[9]),
			FixedAmount: amount(c[10]), Gross: amount(c[11]),
			CallCount:    core.ParseCount(c[12]),
			CallFeeTotal: amount(c[13]), BasePay: amount(c[14]), DriverPay: amount(c[15]),
			STS: amount(c[16]), Credits: amount(c[17]), FixedPriceDeductions: amount(c[18]),
			CardPayments: amount(c[19]), Fuel: amount(c[20]), Wash: amount(c[21]), Misc: amount(c[22]),
			WithholdingTax: amount(c[23]), NetDueToOwner: amount(c[24]),
			ID: c[25],
		}
	},
	ID:     func(r core.RevenueEntry) string { return r.ID },
}
