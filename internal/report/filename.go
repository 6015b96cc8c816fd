package report

import (
	"fmt"

	"github.com/pcmops/jobmetrics/internal/timerange"
)

// BasePrefix names the report family in output files.
const BasePrefix = "job_metrics"

// Filename builds the extension-less output name for a run. The name encodes
// the source hostname and the resolved window so repeated runs against the
// same inputs collide rather than accumulate.
func Filename(host string, w timerange.Window) string {
	if w.FromDaysBack() {
		return fmt.Sprintf("%s_for_%s_spanning_%d_days_back_from_%s",
			BasePrefix, host, w.DaysBack, w.End.UTC().Format(timerange.BasicLayout))
	}
	return fmt.Sprintf("%s_for_%s_from_%s_to_%s",
		BasePrefix, host,
		w.Start.UTC().Format(timerange.BasicLayout),
		w.End.UTC().Format(timerange.BasicLayout))
}
