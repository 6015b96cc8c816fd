package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// Column auto-sizing buffers. The estimates sheet is wide enough that the
// usual buffer pushes it past a screenful.
const (
	defaultWidthBuffer   = 1.1
	estimatesWidthBuffer = 0.8
)

// WriteWorkbook writes every table to one workbook, one sheet per table, with
// the header row and first column frozen and columns sized to their content.
func WriteWorkbook(tables []Table, path string) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	for i, tbl := range tables {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), tbl.Name); err != nil {
				return fmt.Errorf("rename sheet %s: %w", tbl.Name, err)
			}
		} else {
			if _, err := f.NewSheet(tbl.Name); err != nil {
				return fmt.Errorf("create sheet %s: %w", tbl.Name, err)
			}
		}
		if err := writeSheet(f, tbl); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, tbl Table) error {
	for col, title := range tbl.Header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("header cell for %s: %w", tbl.Name, err)
		}
		if err := f.SetCellValue(tbl.Name, cell, title); err != nil {
			return fmt.Errorf("write header %s!%s: %w", tbl.Name, cell, err)
		}
	}

	for i, row := range tbl.Rows {
		for col, value := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return fmt.Errorf("cell for %s: %w", tbl.Name, err)
			}
			if err := f.SetCellValue(tbl.Name, cell, value); err != nil {
				return fmt.Errorf("write %s!%s: %w", tbl.Name, cell, err)
			}
		}
	}

	// Keep the header row and key column visible while scrolling.
	if err := f.SetPanes(tbl.Name, &excelize.Panes{
		Freeze:      true,
		XSplit:      1,
		YSplit:      1,
		TopLeftCell: "B2",
		ActivePane:  "bottomRight",
	}); err != nil {
		return fmt.Errorf("freeze panes on %s: %w", tbl.Name, err)
	}

	return autoSizeColumns(f, tbl)
}

func autoSizeColumns(f *excelize.File, tbl Table) error {
	buffer := defaultWidthBuffer
	if tbl.Name == SheetEstimates {
		buffer = estimatesWidthBuffer
	}

	for col := range tbl.Header {
		max := len(tbl.Header[col])
		for _, row := range tbl.Rows {
			if col >= len(row) {
				continue
			}
			if n := len(fmt.Sprint(row[col])); n > max {
				max = n
			}
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return fmt.Errorf("column name for %s: %w", tbl.Name, err)
		}
		width := float64(max+2) * buffer
		if err := f.SetColWidth(tbl.Name, name, name, width); err != nil {
			return fmt.Errorf("set width %s!%s: %w", tbl.Name, name, err)
		}
	}
	return nil
}
