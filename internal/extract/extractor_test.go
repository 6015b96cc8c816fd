package extract

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pcmops/jobmetrics/internal/models"
	"github.com/pcmops/jobmetrics/internal/timerange"
)

type combo struct{ jobType, instanceType string }

type metricSet struct {
	count    int64
	runtime  float64 // seconds
	wall     float64 // nanoseconds
	inSize   float64 // bytes
	inRate   float64 // bytes/s
	outSize  float64
	outRate  float64
}

// fakeRepo serves canned aggregates and can fail selected enumerations.
type fakeRepo struct {
	jobTypes         []models.KeyCount
	instances        map[string][]models.KeyCount
	metrics          map[combo]metricSet
	failInstancesFor string
}

func (f *fakeRepo) JobTypes(context.Context, timerange.Window) ([]models.KeyCount, error) {
	return f.jobTypes, nil
}

func (f *fakeRepo) InstanceTypes(_ context.Context, _ timerange.Window, jobType string) ([]models.KeyCount, error) {
	if jobType == f.failInstancesFor {
		return nil, errors.New("search timed out")
	}
	return f.instances[jobType], nil
}

func (f *fakeRepo) mean(jobType, instanceType string, pick func(metricSet) float64) (models.MeanResult, error) {
	m, ok := f.metrics[combo{jobType, instanceType}]
	if !ok || m.count == 0 {
		return models.MeanResult{Relation: "eq"}, nil
	}
	v := pick(m)
	return models.MeanResult{Relation: "eq", Total: m.count, Value: &v}, nil
}

func (f *fakeRepo) MeanJobRuntime(_ context.Context, _ timerange.Window, jt, it string) (models.MeanResult, error) {
	return f.mean(jt, it, func(m metricSet) float64 { return m.runtime })
}

func (f *fakeRepo) MeanContainerRuntime(_ context.Context, _ timerange.Window, jt, it string) (models.MeanResult, error) {
	return f.mean(jt, it, func(m metricSet) float64 { return m.wall })
}

func (f *fakeRepo) MeanStageInSize(_ context.Context, _ timerange.Window, jt, it string) (models.MeanResult, error) {
	return f.mean(jt, it, func(m metricSet) float64 { return m.inSize })
}

func (f *fakeRepo) MeanStageInRate(_ context.Context, _ timerange.Window, jt, it string) (models.MeanResult, error) {
	return f.mean(jt, it, func(m metricSet) float64 { return m.inRate })
}

func (f *fakeRepo) MeanStageOutSize(_ context.Context, _ timerange.Window, jt, it string) (models.MeanResult, error) {
	return f.mean(jt, it, func(m metricSet) float64 { return m.outSize })
}

func (f *fakeRepo) MeanStageOutRate(_ context.Context, _ timerange.Window, jt, it string) (models.MeanResult, error) {
	return f.mean(jt, it, func(m metricSet) float64 { return m.outRate })
}

func tenDayWindow(t *testing.T) timerange.Window {
	t.Helper()
	w, err := timerange.Resolve(10, "", "", time.Date(2024, 4, 11, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return w
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		jobTypes: []models.KeyCount{
			{Key: "topsapp:v2.1", Count: 1490},
			{Key: "topsapp:v2.0", Count: 310},
			{Key: "ingest:v1.0", Count: 205},
		},
		instances: map[string][]models.KeyCount{
			"topsapp:v2.1": {{Key: "c5.large", Count: 1286}, {Key: "t3.medium", Count: 204}},
			"topsapp:v2.0": {{Key: "c5.large", Count: 310}},
			"ingest:v1.0":  {{Key: "t3.medium", Count: 205}},
		},
		metrics: map[combo]metricSet{
			{"topsapp:v2.1", "c5.large"}: {
				count:   1200,
				runtime: 120,            // 2 minutes
				wall:    9e10,           // 1.5 minutes
				inSize:  2 * 1073741824, // 2 GiB
				inRate:  2 * 1048576,    // 2 MiB/s
				outSize: 1073741824 / 2, // 0.5 GiB
				outRate: 1048576,        // 1 MiB/s
			},
			{"topsapp:v2.1", "t3.medium"}: {count: 200, runtime: 300, wall: 2.1e11, inSize: 1073741824, inRate: 1048576, outSize: 1073741824, outRate: 1048576},
			{"topsapp:v2.0", "c5.large"}:  {count: 300, runtime: 180, wall: 1.5e11, inSize: 1073741824, inRate: 1048576, outSize: 1073741824, outRate: 1048576},
			{"ingest:v1.0", "t3.medium"}:  {count: 205, runtime: 60, wall: 3e10, inSize: 1073741824, inRate: 1048576, outSize: 1073741824, outRate: 1048576},
		},
	}
}

func TestRunFlattensRows(t *testing.T) {
	ext := New(newFakeRepo(), zerolog.Nop(), 0)

	rows, err := ext.Run(context.Background(), tenDayWindow(t))
	require.NoError(t, err)
	require.Len(t, rows, 4)

	// Enumerations are walked in sorted order.
	assert.Equal(t, "ingest:v1.0", rows[0].JobType)
	assert.Equal(t, "topsapp:v2.0", rows[1].JobType)
	assert.Equal(t, "topsapp:v2.1", rows[2].JobType)
	assert.Equal(t, "c5.large", rows[2].InstanceType)
	assert.Equal(t, "t3.medium", rows[3].InstanceType)

	row := rows[2] // topsapp:v2.1 on c5.large
	assert.EqualValues(t, 1200, row.Count)
	require.NotNil(t, row.JobRuntimeMin)
	assert.InDelta(t, 2.0, *row.JobRuntimeMin, 1e-9)
	require.NotNil(t, row.ContainerRuntimeMin)
	assert.InDelta(t, 1.5, *row.ContainerRuntimeMin, 1e-9)
	require.NotNil(t, row.StageInSizeGB)
	assert.InDelta(t, 2.0, *row.StageInSizeGB, 1e-9)
	require.NotNil(t, row.StageOutSizeGB)
	assert.InDelta(t, 0.5, *row.StageOutSizeGB, 1e-9)
	require.NotNil(t, row.StageInRateMBps)
	assert.InDelta(t, 2.0, *row.StageInRateMBps, 1e-9)
	require.NotNil(t, row.StageOutRateMBps)
	assert.InDelta(t, 1.0, *row.StageOutRateMBps, 1e-9)
	require.NotNil(t, row.DailyCountMean)
	assert.InDelta(t, 120.0, *row.DailyCountMean, 1e-9)
	assert.InDelta(t, 10.0, row.DurationDays, 1e-9)
}

func TestRunSkipsFailedEnumeration(t *testing.T) {
	repo := newFakeRepo()
	repo.failInstancesFor = "topsapp:v2.0"
	ext := New(repo, zerolog.Nop(), 0)

	rows, err := ext.Run(context.Background(), tenDayWindow(t))
	require.NoError(t, err)

	for _, row := range rows {
		assert.NotEqual(t, "topsapp:v2.0", row.JobType)
	}
	assert.Len(t, rows, 3)
}

func TestRunDropsZeroCountRows(t *testing.T) {
	repo := newFakeRepo()
	repo.instances["ingest:v1.0"] = append(repo.instances["ingest:v1.0"],
		models.KeyCount{Key: "m5.xlarge", Count: 12}) // no successful runs recorded
	ext := New(repo, zerolog.Nop(), 0)

	rows, err := ext.Run(context.Background(), tenDayWindow(t))
	require.NoError(t, err)

	for _, row := range rows {
		assert.NotEqual(t, "m5.xlarge", row.InstanceType)
	}
}

func TestCountsByJobNameMatchesPerVersionRows(t *testing.T) {
	ext := New(newFakeRepo(), zerolog.Nop(), 0)
	rows, err := ext.Run(context.Background(), tenDayWindow(t))
	require.NoError(t, err)

	counts := CountsByJobName(rows, 0)
	require.Len(t, counts, 2)

	byName := make(map[string]models.JobCountRow)
	for _, c := range counts {
		byName[c.JobName] = c
	}

	// Totals equal the sum of the per-version, per-instance rows.
	sums := make(map[string]int64)
	for _, row := range rows {
		sums[row.JobName()] += row.Count
	}
	for name, want := range sums {
		assert.EqualValues(t, want, byName[name].TotalCount, name)
	}

	assert.EqualValues(t, 205, byName["ingest"].TotalCount)
	assert.EqualValues(t, 1700, byName["topsapp"].TotalCount)

	// Daily mean is the unweighted mean of the merged rows' daily means,
	// (120 + 20 + 30) / 3 for topsapp, rounded to four decimals.
	require.NotNil(t, byName["topsapp"].DailyCountMean)
	assert.InDelta(t, 56.6667, *byName["topsapp"].DailyCountMean, 1e-9)
	assert.InDelta(t, 10.0, byName["topsapp"].DurationDays, 1e-9)

	// Output is sorted by job name.
	assert.Equal(t, "ingest", counts[0].JobName)
	assert.Equal(t, "topsapp", counts[1].JobName)
}

func TestCountsByJobNameEmptyInput(t *testing.T) {
	assert.Empty(t, CountsByJobName(nil, 4))
}
