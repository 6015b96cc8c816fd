// Package report shapes aggregate rows into named tables and writes them out
// as an Excel workbook or per-table CSV files.
package report

import (
	"github.com/pcmops/jobmetrics/internal/models"
)

// Supported output formats.
const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
)

// Sheet (and CSV suffix) names.
const (
	SheetMetrics   = "job_aggregate_metrics"
	SheetCounts    = "job_metrics_by_count"
	SheetEstimates = "product_estimates"
)

// Table is one named grid of cells ready for export. Cells are strings,
// integers, or floats; nil metric values appear as empty strings.
type Table struct {
	Name   string
	Header []string
	Rows   [][]any
}

// MetricsTable lays out the per-version, per-instance aggregate rows. The
// column order groups the shape metrics (runtime, sizes) ahead of the rates
// and counts, matching the downstream cost models that consume the sheet.
func MetricsTable(rows []models.JobMetricRow) Table {
	t := Table{
		Name: SheetMetrics,
		Header: []string{
			"JobType", "job_runtime_m", "container_runtime_m",
			"stage_in_size_gb", "stage_out_size_gb", "InstanceType",
			"stage_in_rate_MBps", "stage_out_rate_MBps",
			"daily_count_mean", "count", "duration_days",
		},
	}
	for _, r := range rows {
		t.Rows = append(t.Rows, []any{
			r.JobType,
			Cell(r.JobRuntimeMin),
			Cell(r.ContainerRuntimeMin),
			Cell(r.StageInSizeGB),
			Cell(r.StageOutSizeGB),
			r.InstanceType,
			Cell(r.StageInRateMBps),
			Cell(r.StageOutRateMBps),
			Cell(r.DailyCountMean),
			r.Count,
			r.DurationDays,
		})
	}
	return t
}

// CountsTable lays out the version-independent count rows.
func CountsTable(rows []models.JobCountRow) Table {
	t := Table{
		Name: SheetCounts,
		Header: []string{
			"JobType", "recalculated_daily_count_mean",
			"total_count", "total_duration_days",
		},
	}
	for _, r := range rows {
		t.Rows = append(t.Rows, []any{
			r.JobName,
			Cell(r.DailyCountMean),
			r.TotalCount,
			r.DurationDays,
		})
	}
	return t
}

// Cell converts an optional metric into a cell value, mapping nil to an empty
// cell.
func Cell(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}
