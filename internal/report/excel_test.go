package report

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/pcmops/jobmetrics/internal/models"
)

func ptr(v float64) *float64 { return &v }

func sampleMetricRows() []models.JobMetricRow {
	return []models.JobMetricRow{
		{
			JobType:             "topsapp:v2.1",
			InstanceType:        "c5.large",
			JobRuntimeMin:       ptr(46.5507),
			ContainerRuntimeMin: ptr(44.1203),
			StageInSizeGB:       ptr(2.601),
			StageOutSizeGB:      ptr(0.52),
			StageInRateMBps:     ptr(44.9),
			StageOutRateMBps:    ptr(18.2),
			DailyCountMean:      ptr(120.0),
			Count:               1200,
			DurationDays:        10,
		},
		{
			JobType:      "ingest:v1.0",
			InstanceType: "t3.medium",
			// Sparse telemetry leaves every mean empty.
			Count:        205,
			DurationDays: 10,
		},
	}
}

func TestWriteWorkbookRoundTrip(t *testing.T) {
	metrics := MetricsTable(sampleMetricRows())
	counts := CountsTable([]models.JobCountRow{
		{JobName: "topsapp", DailyCountMean: ptr(120.0), TotalCount: 1200, DurationDays: 10},
	})

	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, WriteWorkbook([]Table{metrics, counts}, path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetMetrics, SheetCounts}, f.GetSheetList())

	// Header row.
	title, err := f.GetCellValue(SheetMetrics, "A1")
	require.NoError(t, err)
	assert.Equal(t, "JobType", title)
	title, err = f.GetCellValue(SheetMetrics, "B1")
	require.NoError(t, err)
	assert.Equal(t, "job_runtime_m", title)

	// Data rows land beneath the header.
	jobType, err := f.GetCellValue(SheetMetrics, "A2")
	require.NoError(t, err)
	assert.Equal(t, "topsapp:v2.1", jobType)
	runtime, err := f.GetCellValue(SheetMetrics, "B2")
	require.NoError(t, err)
	assert.Equal(t, "46.5507", runtime)

	// A nil mean writes an empty cell, not a zero.
	empty, err := f.GetCellValue(SheetMetrics, "B3")
	require.NoError(t, err)
	assert.Empty(t, empty)

	total, err := f.GetCellValue(SheetCounts, "C2")
	require.NoError(t, err)
	assert.Equal(t, "1200", total)
}

func TestWriteWorkbookSingleTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counts.xlsx")
	counts := CountsTable([]models.JobCountRow{
		{JobName: "ingest", TotalCount: 205, DurationDays: 10},
	})
	require.NoError(t, WriteWorkbook([]Table{counts}, path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	// The default Sheet1 is renamed rather than left behind.
	assert.Equal(t, []string{SheetCounts}, f.GetSheetList())
}
