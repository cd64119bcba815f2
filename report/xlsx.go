/*
Package report renders engine results as spreadsheets for payroll.

PURPOSE:
  Payroll consumes paid/unpaid leave per employee per month. The admin API
  serves the same MonthlyBreakdown values as JSON or, with format=xlsx,
  as a workbook written here.

LAYOUT (sheet "Monthly Leave"):
  Employee | Month   | Paid | Unpaid | Total
  emp-1    | 2025-01 | 7    | 0      | 7
  ...
  Total    |         | sum  | sum    | sum

SEE ALSO:
  - leave/apportion.go: How the monthly paid/unpaid split is computed
  - api/handlers.go: monthlyReport handler
*/
package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

const (
	SheetName   = "Monthly Leave"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var headers = []any{"Employee", "Month", "Paid", "Unpaid", "Total"}

// WriteMonthlyBreakdown writes one row per employee-month, employees in the
// order given and months chronologically, followed by a totals row.
func WriteMonthlyBreakdown(w io.Writer, breakdowns []leave.MonthlyBreakdown) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}
	if err := f.SetSheetRow(SheetName, "A1", &headers); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	row := 2
	paid, unpaid, total := generic.Days(0), generic.Days(0), generic.Days(0)
	for _, b := range breakdowns {
		for _, month := range b.MonthKeys() {
			m := b.Months[month]
			values := []any{string(b.EmployeeID), month, m.Paid.Round().Float64(), m.Unpaid.Round().Float64(), m.Total.Round().Float64()}
			if err := f.SetSheetRow(SheetName, cell("A", row), &values); err != nil {
				return fmt.Errorf("failed to write row %d: %w", row, err)
			}
			paid, unpaid, total = paid.Add(m.Paid), unpaid.Add(m.Unpaid), total.Add(m.Total)
			row++
		}
	}

	totals := []any{"Total", "", paid.Round().Float64(), unpaid.Round().Float64(), total.Round().Float64()}
	if err := f.SetSheetRow(SheetName, cell("A", row), &totals); err != nil {
		return fmt.Errorf("failed to write totals: %w", err)
	}

	if err := f.SetCellStyle(SheetName, "A1", "E1", bold); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, cell("A", row), cell("E", row), bold); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetName, "A", "A", 24); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func cell(col string, row int) string { return fmt.Sprintf("%s%d", col, row) }
