package es

import (
	"github.com/pcmops/jobmetrics/internal/timerange"
)

// Metric fields produced by the workflow system's job_info records.
const (
	FieldJobDuration   = "job.job_info.duration"                            // seconds
	FieldContainerWall = "job.job_info.metrics.usage_stats.wall_time"       // nanoseconds
	FieldStageInSize   = "job.job_info.metrics.inputs_localized.disk_usage" // bytes
	FieldStageInRate   = "job.job_info.metrics.inputs_localized.transfer_rate"
	FieldStageOutSize  = "job.job_info.metrics.products_staged.disk_usage"
	FieldStageOutRate  = "job.job_info.metrics.products_staged.transfer_rate"
)

const (
	fieldJobType      = "job_type.keyword"
	fieldInstanceType = "job.job_info.facts.ec2_instance_type.keyword"
	fieldExitStatus   = "job.job_info.status"

	// recordTypeFilter restricts searches to job_info records; the indices
	// also hold worker and task events.
	recordTypeFilter = "type.keyword:job_info"

	termsSize = 100
)

// JobTypesQuery enumerates the job types seen in the window, most frequent
// first.
func JobTypesQuery(w timerange.Window) map[string]any {
	return termsQuery(fieldJobType, windowFilters(w))
}

// InstanceTypesQuery enumerates the instance types one job type ran on in the
// window, most frequent first.
func InstanceTypesQuery(w timerange.Window, jobType string) map[string]any {
	filters := append(windowFilters(w), matchPhrase(fieldJobType, jobType))
	return termsQuery(fieldInstanceType, filters)
}

// AvgFieldQuery averages one metric field over the successful runs of a
// (job type, instance type) combination inside the window. track_total_hits
// lifts the 10k hit-count ceiling so the run count stays exact.
func AvgFieldQuery(w timerange.Window, jobType, instanceType string, exitStatus int, field string) map[string]any {
	filters := append(windowFilters(w),
		matchPhrase(fieldJobType, jobType),
		matchPhrase(fieldExitStatus, exitStatus),
		matchPhrase(fieldInstanceType, instanceType),
	)
	return map[string]any{
		"aggs": map[string]any{
			"2": map[string]any{
				"avg": map[string]any{"field": field},
			},
		},
		"size":             0,
		"track_total_hits": true,
		"query":            boolQuery(filters),
	}
}

func termsQuery(field string, filters []any) map[string]any {
	return map[string]any{
		"aggs": map[string]any{
			"2": map[string]any{
				"terms": map[string]any{
					"field": field,
					"order": map[string]any{"_count": "desc"},
					"size":  termsSize,
				},
			},
		},
		"size":  0,
		"query": boolQuery(filters),
	}
}

func boolQuery(filters []any) map[string]any {
	return map[string]any{
		"bool": map[string]any{
			"must": []any{
				map[string]any{"match_all": map[string]any{}},
				map[string]any{
					"query_string": map[string]any{
						"query":            recordTypeFilter,
						"analyze_wildcard": true,
					},
				},
			},
			"filter": filters,
		},
	}
}

func windowFilters(w timerange.Window) []any {
	return []any{
		map[string]any{
			"range": map[string]any{
				"@timestamp": map[string]any{
					"gte":    w.Start.UTC().Format(timerange.ESLayout),
					"lte":    w.End.UTC().Format(timerange.ESLayout),
					"format": "strict_date_optional_time",
				},
			},
		},
	}
}

func matchPhrase(field string, value any) map[string]any {
	return map[string]any{
		"match_phrase": map[string]any{field: value},
	}
}
