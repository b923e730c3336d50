// Package report renders stored records into printable and spreadsheet
// documents. Every renderer writes to an io.Writer and reads no state.
package report

import (
	"fmt"
	"io"

	"github.com/phpdave11/gofpdf"
	"github.com/shopspring/decimal"

	"montaxi/internal/core"
	"montaxi/internal/summary"
)

const (
	labelWidth  = 110.0
	amountWidth = 40.0
	lineHeight  = 7.0
)

type document struct {
	pdf *gofpdf.Fpdf
	tr  func(string) string
}

func newDocument(title, orientation string) *document {
	pdf := gofpdf.New(orientation, "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetCreator("montaxi", true)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()
	return &document{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
}

func (d *document) heading(text string) {
	d.pdf.SetFont("Helvetica", "B", 16)
	d.pdf.Cell(0, 10, d.tr(text))
	d.pdf.Ln(12)
}

func (d *document) section(text string) {
	d.pdf.Ln(2)
	d.pdf.SetFont("Helvetica", "B", 12)
	d.pdf.Cell(0, lineHeight, d.tr(text))
	d.pdf.Ln(lineHeight + 1)
}

func (d *document) field(label, value string) {
	d.pdf.SetFont("Helvetica", "", 11)
	d.pdf.CellFormat(45, lineHeight, d.tr(label), "", 0, "L", false, 0, "")
	d.pdf.CellFormat(0, lineHeight, d.tr(value), "", 1, "L", false, 0, "")
}

func (d *document) amount(label string, v decimal.Decimal, bold bool) {
	style := ""
	if bold {
		style = "B"
	}
	d.pdf.SetFont("Helvetica", style, 11)
	d.pdf.CellFormat(labelWidth, lineHeight, d.tr(label), "B", 0, "L", false, 0, "")
	d.pdf.CellFormat(amountWidth, lineHeight, core.FormatAmount(v), "B", 1, "R", false, 0, "")
}

func (d *document) output(w io.Writer) error {
	if err := d.pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

// WeeklySheetPDF renders one revenue entry laid out like the paper weekly
// sheet handed to the driver.
func WeeklySheetPDF(w io.Writer, e core.RevenueEntry) error {
	d := newDocument("Weekly sheet "+e.PeriodStart, "P")
	d.heading("Weekly sheet")

	d.field("Driver", e.Driver)
	d.field("Unit", e.Unit)
	d.field("Week", e.PeriodStart+" to "+e.PeriodEnd)

	d.section("Meter")
	d.amount("Meter start", e.MeterStart, false)
	d.amount("Meter end", e.MeterEnd, false)
	d.amount("Meter total", e.MeterTotal, false)
	d.amount("Fixed amount", e.FixedAmount, false)
	d.amount("Gross", e.Gross, true)

	d.section("Salary")
	d.amount(fmt.Sprintf("Call fees (%d calls)", e.CallCount), e.CallFeeTotal, false)
	d.amount("Base pay", e.BasePay, false)
	d.amount("Driver pay", e.DriverPay, true)

	d.section("Deductions")
	for _, line := range []struct {
		label string
		v     decimal.Decimal
	}{
		{"STS", e.STS},
		{"Credits", e.Credits},
		{"Fixed-price trips", e.FixedPriceDeductions},
		{"Card payments", e.CardPayments},
		{"Fuel", e.Fuel},
		{"Wash", e.Wash},
		{"Miscellaneous", e.Misc},
	} {
		d.amount(line.label, line.v, false)
	}

	d.section("Settlement")
	d.amount("Withholding tax", e.WithholdingTax, false)
	d.amount("Total to remit to owner", e.NetDueToOwner, true)
	if e.NetDueToOwner.IsNegative() {
		d.pdf.SetFont("Helvetica", "I", 10)
		d.pdf.MultiCell(0, 6, d.tr("A negative total means the owner owes the driver for this week."), "", "", false)
	}
	return d.output(w)
}

var summaryColumns = []string{"Period", "Gross", "Driver pay", "Net to owner", "Expenses", "Tax A", "Tax B", "Profit"}

func summaryCells(s summary.Summary, r summary.Row) []string {
	return []string{
		s.Label(r.Key),
		core.FormatAmount(core.Round2(r.RevenueGross)),
		core.FormatAmount(core.Round2(r.DriverPay)),
		core.FormatAmount(core.Round2(r.NetToOwner)),
		core.FormatAmount(core.Round2(r.GarageExpenses)),
		core.FormatAmount(core.Round2(r.TaxARecoverable)),
		core.FormatAmount(core.Round2(r.TaxBRecoverable)),
		core.FormatAmount(core.Round2(r.ProfitNet)),
	}
}

// SummaryPDF renders the periodic summary table of one year.
func SummaryPDF(w io.Writer, s summary.Summary) error {
	d := newDocument("Summary "+s.Year, "L")
	d.heading(fmt.Sprintf("Summary %s (%s)", s.Year, s.Granularity))

	widths := []float64{37, 34, 34, 34, 34, 30, 30, 34}
	row := func(cells []string, bold, fill bool) {
		style := ""
		if bold {
			style = "B"
		}
		d.pdf.SetFont("Helvetica", style, 10)
		for i, c := range cells {
			align := "R"
			if i == 0 {
				align = "L"
			}
			d.pdf.CellFormat(widths[i], lineHeight, d.tr(c), "1", 0, align, fill, 0, "")
		}
		d.pdf.Ln(-1)
	}

	d.pdf.SetFillColor(230, 230, 230)
	row(summaryColumns, true, true)
	for _, r := range s.Rows {
		row(summaryCells(s, r), false, false)
	}
	totals := summaryCells(s, s.Totals)
	totals[0] = "Total"
	row(totals, true, true)

	if len(s.Rows) == 0 {
		d.pdf.Ln(4)
		d.pdf.SetFont("Helvetica", "I", 10)
		d.pdf.Cell(0, 6, d.tr("No records for this year."))
	}
	return d.output(w)
}
