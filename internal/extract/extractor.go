// Package extract walks the cluster's job/instance enumerations and flattens
// the aggregation results into report rows.
package extract

import (
	"context"
	"math"
	"sort"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/pcmops/jobmetrics/internal/models"
	"github.com/pcmops/jobmetrics/internal/repository"
	"github.com/pcmops/jobmetrics/internal/timerange"
)

// Unit conversions from the cluster's raw units to report units.
const (
	secondsPerMinute = 60.0
	nanosPerMinute   = 60.0 * 1e9
	bytesPerGiB      = 1073741824.0
	bytesPerMiB      = 1048576.0
)

// DefaultRounding is the number of decimals kept on every reported value.
// Unrounded floats trip data-conversion warnings in spreadsheet tools.
const DefaultRounding = 4

// Extractor runs the aggregation loop. Queries are issued sequentially; a
// failed enumeration is logged and skipped rather than aborting the run.
type Extractor struct {
	repo     repository.MetricsRepository
	logger   zerolog.Logger
	rounding int
}

// New builds an Extractor. A non-positive rounding falls back to
// DefaultRounding.
func New(repo repository.MetricsRepository, logger zerolog.Logger, rounding int) *Extractor {
	if rounding <= 0 {
		rounding = DefaultRounding
	}
	return &Extractor{repo: repo, logger: logger, rounding: rounding}
}

// Run collects one metric row per (job type, instance type) combination seen
// in the window. Combinations without a successful run are dropped.
func (e *Extractor) Run(ctx context.Context, w timerange.Window) ([]models.JobMetricRow, error) {
	jobTypes, err := e.repo.JobTypes(ctx, w)
	if err != nil {
		return nil, errors.Wrap(err, "list job types")
	}
	sortKeyCounts(jobTypes)

	rows := make([]models.JobMetricRow, 0, len(jobTypes))
	for _, jt := range jobTypes {
		log := e.logger.With().Str("job_type", jt.Key).Logger()
		log.Info().Int64("records", jt.Count).Msg("collecting job type")

		instanceTypes, err := e.repo.InstanceTypes(ctx, w, jt.Key)
		if err != nil {
			if ctx.Err() != nil {
				return rows, ctx.Err()
			}
			log.Error().Err(err).Msg("skipping job type")
			continue
		}
		sortKeyCounts(instanceTypes)

		for _, it := range instanceTypes {
			row, err := e.collectRow(ctx, w, jt.Key, it.Key)
			if err != nil {
				if ctx.Err() != nil {
					return rows, ctx.Err()
				}
				log.Error().Err(err).Str("instance_type", it.Key).Msg("skipping instance type")
				continue
			}
			if row.Count == 0 {
				log.Debug().Str("instance_type", it.Key).Msg("no successful runs")
				continue
			}
			log.Info().
				Str("instance_type", it.Key).
				Int64("count", row.Count).
				Msg("collected instance type")
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (e *Extractor) collectRow(ctx context.Context, w timerange.Window, jobType, instanceType string) (models.JobMetricRow, error) {
	row := models.JobMetricRow{
		JobType:      jobType,
		InstanceType: instanceType,
		DurationDays: e.round(w.DurationDays()),
	}

	runtime, err := e.repo.MeanJobRuntime(ctx, w, jobType, instanceType)
	if err != nil {
		return row, errors.Wrap(err, "mean job runtime")
	}
	row.Count = runtime.Total
	row.JobRuntimeMin = e.scaled(runtime.Value, secondsPerMinute)
	if runtime.Total > 0 && w.DurationDays() > 0 {
		mean := e.round(float64(runtime.Total) / w.DurationDays())
		row.DailyCountMean = &mean
	}

	wall, err := e.repo.MeanContainerRuntime(ctx, w, jobType, instanceType)
	if err != nil {
		return row, errors.Wrap(err, "mean container runtime")
	}
	row.ContainerRuntimeMin = e.scaled(wall.Value, nanosPerMinute)

	inSize, err := e.repo.MeanStageInSize(ctx, w, jobType, instanceType)
	if err != nil {
		return row, errors.Wrap(err, "mean stage-in size")
	}
	row.StageInSizeGB = e.scaled(inSize.Value, bytesPerGiB)

	inRate, err := e.repo.MeanStageInRate(ctx, w, jobType, instanceType)
	if err != nil {
		return row, errors.Wrap(err, "mean stage-in rate")
	}
	row.StageInRateMBps = e.scaled(inRate.Value, bytesPerMiB)

	outSize, err := e.repo.MeanStageOutSize(ctx, w, jobType, instanceType)
	if err != nil {
		return row, errors.Wrap(err, "mean stage-out size")
	}
	row.StageOutSizeGB = e.scaled(outSize.Value, bytesPerGiB)

	outRate, err := e.repo.MeanStageOutRate(ctx, w, jobType, instanceType)
	if err != nil {
		return row, errors.Wrap(err, "mean stage-out rate")
	}
	row.StageOutRateMBps = e.scaled(outRate.Value, bytesPerMiB)

	return row, nil
}

// scaled divides a raw metric by a unit conversion divisor, preserving nil
// for missing values.
func (e *Extractor) scaled(v *float64, divisor float64) *float64 {
	if v == nil {
		return nil
	}
	scaled := e.round(*v / divisor)
	return &scaled
}

func (e *Extractor) round(v float64) float64 {
	return roundTo(v, e.rounding)
}

func roundTo(v float64, decimals int) float64 {
	pow := math.Pow10(decimals)
	return math.Round(v*pow) / pow
}

func sortKeyCounts(kcs []models.KeyCount) {
	sort.Slice(kcs, func(i, j int) bool { return kcs[i].Key < kcs[j].Key })
}

// CountsByJobName merges metric rows into version-independent totals: counts
// sum, daily means average, and the sampled duration carries through. The
// total count of a job name always equals the sum of the per-version,
// per-instance rows it was merged from.
func CountsByJobName(rows []models.JobMetricRow, rounding int) []models.JobCountRow {
	if rounding <= 0 {
		rounding = DefaultRounding
	}

	type accumulator struct {
		total     int64
		dailySum  float64
		dailyN    int
		duration  float64
		durationN int
	}

	groups := make(map[string]*accumulator)
	names := make([]string, 0)
	for _, row := range rows {
		name := row.JobName()
		acc, ok := groups[name]
		if !ok {
			acc = &accumulator{}
			groups[name] = acc
			names = append(names, name)
		}
		acc.total += row.Count
		if row.DailyCountMean != nil {
			acc.dailySum += *row.DailyCountMean
			acc.dailyN++
		}
		acc.duration += row.DurationDays
		acc.durationN++
	}
	sort.Strings(names)

	counts := make([]models.JobCountRow, 0, len(names))
	for _, name := range names {
		acc := groups[name]
		out := models.JobCountRow{
			JobName:      name,
			TotalCount:   acc.total,
			DurationDays: roundTo(acc.duration/float64(acc.durationN), rounding),
		}
		if acc.dailyN > 0 {
			mean := roundTo(acc.dailySum/float64(acc.dailyN), rounding)
			out.DailyCountMean = &mean
		}
		counts = append(counts, out)
	}
	return counts
}
