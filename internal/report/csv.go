package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// WriteCSV writes each table to its own file, named base_<table>.csv, and
// returns the written paths. CSV has no sheet concept, so the workbook's
// sheets become sibling files.
func WriteCSV(tables []Table, base string) ([]string, error) {
	paths := make([]string, 0, len(tables))
	for _, tbl := range tables {
		path := fmt.Sprintf("%s_%s.csv", base, tbl.Name)
		if err := writeCSVFile(tbl, path); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeCSVFile(tbl Table, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(tbl.Header); err != nil {
		return fmt.Errorf("write header to %s: %w", path, err)
	}
	record := make([]string, 0, len(tbl.Header))
	for _, row := range tbl.Rows {
		record = record[:0]
		for _, cell := range row {
			record = append(record, formatCell(cell))
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write row to %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return f.Close()
}

func formatCell(v any) string {
	switch c := v.(type) {
	case string:
		return c
	case float64:
		return strconv.FormatFloat(c, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(c, 10)
	case int:
		return strconv.Itoa(c)
	default:
		return fmt.Sprint(c)
	}
}
