package report

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"montaxi/internal/core"
	"montaxi/internal/summary"
)

const (
	SheetSummary = "Summary"
	SheetAudit   = "Tax audit"
)

var auditColumns = []string{"Date", "Source", "Tax A", "Tax B", "Total"}

// SummaryWorkbook writes an XLSX file with the periodic summary and the
// tax audit of the same year. Amounts are numeric cells with two decimals.
func SummaryWorkbook(w io.Writer, s summary.Summary, audit []summary.AuditRow) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetAudit); err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	amountFmt := "0.00"
	money, err := f.NewStyle(&excelize.Style{CustomNumFmt: &amountFmt})
	if err != nil {
		return err
	}

	if err := writeSummarySheet(f, s, bold, money); err != nil {
		return err
	}
	if err := writeAuditSheet(f, audit, bold, money); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSummarySheet(f *excelize.File, s summary.Summary, bold, money int) error {
	if err := setRow(f, SheetSummary, 1, toAny(summaryColumns)); err != nil {
		return err
	}
	line := func(r summary.Row, label string) []any {
		return []any{
			label,
			number(r.RevenueGross), number(r.DriverPay), number(r.NetToOwner),
			number(r.GarageExpenses), number(r.TaxARecoverable), number(r.TaxBRecoverable),
			number(r.ProfitNet),
		}
	}
	for i, r := range s.Rows {
		if err := setRow(f, SheetSummary, i+2, line(r, s.Label(r.Key))); err != nil {
			return err
		}
	}
	last := len(s.Rows) + 2
	if err := setRow(f, SheetSummary, last, line(s.Totals, "Total")); err != nil {
		return err
	}

	if err := f.SetCellStyle(SheetSummary, "A1", "H1", bold); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetSummary, "B2", fmt.Sprintf("H%d", last), money); err != nil {
		return err
	}
	return f.SetColWidth(SheetSummary, "A", "H", 15)
}

func writeAuditSheet(f *excelize.File, audit []summary.AuditRow, bold, money int) error {
	if err := setRow(f, SheetAudit, 1, toAny(auditColumns)); err != nil {
		return err
	}
	for i, a := range audit {
		row := []any{a.Date, a.Source, number(a.TaxA), number(a.TaxB), number(a.GrossTotal)}
		if err := setRow(f, SheetAudit, i+2, row); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(SheetAudit, "A1", "E1", bold); err != nil {
		return err
	}
	if len(audit) > 0 {
		if err := f.SetCellStyle(SheetAudit, "C2", fmt.Sprintf("E%d", len(audit)+1), money); err != nil {
			return err
		}
	}
	return f.SetColWidth(SheetAudit, "A", "E", 15)
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func number(d decimal.Decimal) float64 {
	return core.Round2(d).InexactFloat64()
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
