package models

import "strings"

// KeyCount is one terms-aggregation bucket: a key and its document count.
type KeyCount struct {
	Key   string `json:"key"`
	Count int64  `json:"doc_count"`
}

// MeanResult is the outcome of a single avg aggregation. Value is nil when no
// documents matched the query constraints.
type MeanResult struct {
	Relation string
	Total    int64
	Value    *float64
}

// JobMetricRow is the flattened aggregate for one (job type, instance type)
// combination. Metric fields are nil when the cluster had no value for them;
// they export as empty cells. Rows are read-only once built.
type JobMetricRow struct {
	JobType             string
	InstanceType        string
	JobRuntimeMin       *float64
	ContainerRuntimeMin *float64
	StageInSizeGB       *float64
	StageOutSizeGB      *float64
	StageInRateMBps     *float64
	StageOutRateMBps    *float64
	DailyCountMean      *float64
	Count               int64
	DurationDays        float64
}

// JobName strips the version suffix from the job type, e.g.
// "topsapp:v2.1" becomes "topsapp".
func (r JobMetricRow) JobName() string {
	name, _, _ := strings.Cut(r.JobType, ":")
	return name
}

// JobCountRow aggregates successful-run counts across every version and
// instance type of a job name.
type JobCountRow struct {
	JobName        string
	DailyCountMean *float64
	TotalCount     int64
	DurationDays   float64
}
