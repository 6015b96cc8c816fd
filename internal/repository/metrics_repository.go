// Package repository exposes the job-runtime aggregates stored in the metrics
// cluster behind a narrow read-only interface.
package repository

import (
	"context"

	"github.com/pcmops/jobmetrics/internal/es"
	"github.com/pcmops/jobmetrics/internal/models"
	"github.com/pcmops/jobmetrics/internal/timerange"
)

// successExitStatus marks job records that completed cleanly. Only these
// contribute to any aggregate.
const successExitStatus = 0

// MetricsRepository reads job-runtime aggregates for a query window.
type MetricsRepository interface {
	// Enumeration
	JobTypes(ctx context.Context, w timerange.Window) ([]models.KeyCount, error)
	InstanceTypes(ctx context.Context, w timerange.Window, jobType string) ([]models.KeyCount, error)

	// Mean metrics over successful runs of one (job type, instance type)
	// combination. Units are the cluster's raw units; conversion happens in
	// the extractor.
	MeanJobRuntime(ctx context.Context, w timerange.Window, jobType, instanceType string) (models.MeanResult, error)
	MeanContainerRuntime(ctx context.Context, w timerange.Window, jobType, instanceType string) (models.MeanResult, error)
	MeanStageInSize(ctx context.Context, w timerange.Window, jobType, instanceType string) (models.MeanResult, error)
	MeanStageInRate(ctx context.Context, w timerange.Window, jobType, instanceType string) (models.MeanResult, error)
	MeanStageOutSize(ctx context.Context, w timerange.Window, jobType, instanceType string) (models.MeanResult, error)
	MeanStageOutRate(ctx context.Context, w timerange.Window, jobType, instanceType string) (models.MeanResult, error)
}

// Searcher is the slice of the es.Client the repository needs; tests supply
// fakes.
type Searcher interface {
	Search(ctx context.Context, query map[string]any) (*es.SearchResult, error)
}

type metricsRepository struct {
	search Searcher
}

// NewMetricsRepository builds the Elasticsearch-backed repository.
func NewMetricsRepository(s Searcher) MetricsRepository {
	return &metricsRepository{search: s}
}

func (r *metricsRepository) JobTypes(ctx context.Context, w timerange.Window) ([]models.KeyCount, error) {
	res, err := r.search.Search(ctx, es.JobTypesQuery(w))
	if err != nil {
		return nil, err
	}
	if res.Total == 0 {
		return nil, nil
	}
	return res.BucketKeys(), nil
}

func (r *metricsRepository) InstanceTypes(ctx context.Context, w timerange.Window, jobType string) ([]models.KeyCount, error) {
	res, err := r.search.Search(ctx, es.InstanceTypesQuery(w, jobType))
	if err != nil {
		return nil, err
	}
	if res.Total == 0 {
		return nil, nil
	}
	return res.BucketKeys(), nil
}

func (r *metricsRepository) MeanJobRuntime(ctx context.Context, w timerange.Window, jobType, instanceType string) (models.MeanResult, error) {
	return r.meanField(ctx, w, jobType, instanceType, es.FieldJobDuration)
}

func (r *metricsRepository) MeanContainerRuntime(ctx context.Context, w timerange.Window, jobType, instanceType string) (models.MeanResult, error) {
	return r.meanField(ctx, w, jobType, instanceType, es.FieldContainerWall)
}

func (r *metricsRepository) MeanStageInSize(ctx context.Context, w timerange.Window, jobType, instanceType string) (models.MeanResult, error) {
	return r.meanField(ctx, w, jobType, instanceType, es.FieldStageInSize)
}

func (r *metricsRepository) MeanStageInRate(ctx context.Context, w timerange.Window, jobType, instanceType string) (models.MeanResult, error) {
	return r.meanField(ctx, w, jobType, instanceType, es.FieldStageInRate)
}

func (r *metricsRepository) MeanStageOutSize(ctx context.Context, w timerange.Window, jobType, instanceType string) (models.MeanResult, error) {
	return r.meanField(ctx, w, jobType, instanceType, es.FieldStageOutSize)
}

func (r *metricsRepository) MeanStageOutRate(ctx context.Context, w timerange.Window, jobType, instanceType string) (models.MeanResult, error) {
	return r.meanField(ctx, w, jobType, instanceType, es.FieldStageOutRate)
}

func (r *metricsRepository) meanField(ctx context.Context, w timerange.Window, jobType, instanceType, field string) (models.MeanResult, error) {
	res, err := r.search.Search(ctx, es.AvgFieldQuery(w, jobType, instanceType, successExitStatus, field))
	if err != nil {
		return models.MeanResult{}, err
	}
	out := models.MeanResult{Relation: res.Relation, Total: res.Total}
	if res.Total > 0 {
		out.Value = res.FirstValue()
	}
	return out, nil
}
