// Package detect holds the rule-based threshold detector and the feature
// extraction that feeds the external anomaly scorer.
package detect

import (
	"fmt"

	"github.com/medichain/medguard/internal/alert"
	"github.com/medichain/medguard/internal/monitor"
)

// Thresholds configure the rule detector. Both must be exceeded strictly
// and simultaneously for an alert to fire; high fan-out with low volume or
// high volume from a single chatty client alone stays quiet.
type Thresholds struct {
	RequestRate  float64 // requests per second over the window
	AvgPerSource float64 // average requests per distinct source
}

// Evaluate applies the thresholds to a window snapshot. It is a pure
// function of its inputs; when both thresholds are breached it returns a
// medium-severity rule-based alert carrying the top offenders. Values
// exactly equal to a threshold do not fire.
func Evaluate(stats monitor.WindowStats, th Thresholds) (alert.Alert, bool) {
	rate := stats.RequestRate()
	if rate <= th.RequestRate || stats.AvgPerSource <= th.AvgPerSource {
		return alert.Alert{}, false
	}

	top := make([]map[string]any, 0, len(stats.TopSources))
	for _, s := range stats.TopSources {
		top = append(top, map[string]any{"source": s.Source, "count": s.Count})
	}

	a := alert.New(alert.ClassRule, alert.SeverityMedium,
		fmt.Sprintf("traffic threshold breach: %.1f req/s from %d sources (%.1f req/source)",
			rate, stats.UniqueSources, stats.AvgPerSource),
		map[string]any{
			"request_rate":       rate,
			"request_count":      stats.RequestCount,
			"unique_sources":     stats.UniqueSources,
			"avg_per_source":     stats.AvgPerSource,
			"top_sources":        top,
			"most_targeted_path": stats.TopPath,
		})
	return a, true
}
