// Package xlsx exports the treasury ledger as an Excel workbook.
package xlsx

import (
	"fmt"
	"io"
	"strconv"

	"intranet-portal/pkg/treasury"

	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet holding the ledger rows.
const SheetName = "Ledger"

// ContentType is the media type of the exported workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var headers = []string{"ID", "Date", "Type", "Amount", "Description", "Status", "Created by", "Approved by"}

// Export writes ledger to w as an XLSX workbook. Rows keep the ledger's
// order; two summary rows with balance and pending follow after a gap.
func Export(w io.Writer, ledger treasury.Ledger) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("xlsx: rename sheet: %w", err)
	}

	money, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		return fmt.Errorf("xlsx: create style: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("xlsx: create style: %w", err)
	}

	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(SheetName, cell, header)
	}
	f.SetCellStyle(SheetName, "A1", "H1", bold)

	for i, entry := range ledger.Entries {
		row := i + 2
		f.SetCellValue(SheetName, fmt.Sprintf("A%d", row), entry.ID)
		f.SetCellValue(SheetName, fmt.Sprintf("B%d", row), entry.CreatedAt.Format("2006-01-02 15:04"))
		f.SetCellValue(SheetName, fmt.Sprintf("C%d", row), string(entry.Type))
		f.SetCellValue(SheetName, fmt.Sprintf("D%d", row), entry.Signed().InexactFloat64())
		f.SetCellStyle(SheetName, fmt.Sprintf("D%d", row), fmt.Sprintf("D%d", row), money)
		f.SetCellValue(SheetName, fmt.Sprintf("E%d", row), entry.Description)
		f.SetCellValue(SheetName, fmt.Sprintf("F%d", row), string(entry.Status))
		f.SetCellValue(SheetName, fmt.Sprintf("G%d", row), userRef(entry.CreatedBy))
		f.SetCellValue(SheetName, fmt.Sprintf("H%d", row), userRef(entry.ApprovedBy))
	}

	summary := len(ledger.Entries) + 3
	f.SetCellValue(SheetName, fmt.Sprintf("C%d", summary), "Balance")
	f.SetCellValue(SheetName, fmt.Sprintf("D%d", summary), ledger.Balance.InexactFloat64())
	f.SetCellValue(SheetName, fmt.Sprintf("C%d", summary+1), "Pending")
	f.SetCellValue(SheetName, fmt.Sprintf("D%d", summary+1), ledger.Pending.InexactFloat64())
	f.SetCellStyle(SheetName, fmt.Sprintf("C%d", summary), fmt.Sprintf("C%d", summary+1), bold)
	f.SetCellStyle(SheetName, fmt.Sprintf("D%d", summary), fmt.Sprintf("D%d", summary+1), money)

	f.SetColWidth(SheetName, "B", "B", 18)
	f.SetColWidth(SheetName, "E", "E", 48)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("xlsx: write workbook: %w", err)
	}
	return nil
}

func userRef(id *int64) string {
	if id == nil {
		return ""
	}
	return "#" + strconv.FormatInt(*id, 10)
}
