package monitor

import (
	"sort"
	"time"
)

// SourceCount is one entry of the top-offenders ranking.
type SourceCount struct {
	Source string `json:"source"`
	Count  int    `json:"count"`
}

// WindowStats are the traffic statistics derived from one window of
// records. They are recomputed every tick and never persisted.
type WindowStats struct {
	Start time.Time `json:"window_start"`
	End   time.Time `json:"window_end"`

	RequestCount  int     `json:"request_count"`
	UniqueSources int     `json:"unique_sources"`
	AvgPerSource  float64 `json:"avg_requests_per_source"`

	SourceCounts map[string]int `json:"source_counts"`
	TopSources   []SourceCount  `json:"top_sources"`

	PathCounts map[string]int `json:"path_counts"`
	TopPath    string         `json:"most_targeted_path"`

	MethodCounts map[string]int `json:"method_counts"`

	AvgContentLength float64 `json:"avg_content_length"`
}

// RequestRate reports requests per second over the window duration,
// guarding against a zero-length window.
func (s WindowStats) RequestRate() float64 {
	secs := s.End.Sub(s.Start).Seconds()
	if secs < 1 {
		secs = 1
	}
	return float64(s.RequestCount) / secs
}

const TopSourceCount = 5

// Aggregate computes WindowStats from a window snapshot. The most targeted
// path is the highest-count path; ties break in favor of the path seen
// first in the window.
func Aggregate(records []Record, start, end time.Time) WindowStats {
	stats := WindowStats{
		Start:        start,
		End:          end,
		RequestCount: len(records),
		SourceCounts: make(map[string]int),
		PathCounts:   make(map[string]int),
		MethodCounts: make(map[string]int),
		TopSources:   []SourceCount{},
	}
	if len(records) == 0 {
		return stats
	}

	var pathOrder []string
	var totalContent int64
	for _, rec := range records {
		stats.SourceCounts[rec.Source]++
		if stats.PathCounts[rec.Path] == 0 {
			pathOrder = append(pathOrder, rec.Path)
		}
		stats.PathCounts[rec.Path]++
		stats.MethodCounts[rec.Method]++
		totalContent += rec.ContentLength
	}

	stats.UniqueSources = len(stats.SourceCounts)
	stats.AvgPerSource = float64(stats.RequestCount) / float64(stats.UniqueSources)
	stats.AvgContentLength = float64(totalContent) / float64(stats.RequestCount)

	best := 0
	for _, p := range pathOrder {
		if stats.PathCounts[p] > best {
			best = stats.PathCounts[p]
			stats.TopPath = p
		}
	}

	stats.TopSources = topSources(stats.SourceCounts, TopSourceCount)
	return stats
}

// topSources ranks sources by count descending; equal counts order by
// source string for deterministic output.
func topSources(counts map[string]int, n int) []SourceCount {
	ranked := make([]SourceCount, 0, len(counts))
	for src, c := range counts {
		ranked = append(ranked, SourceCount{Source: src, Count: c})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Source < ranked[j].Source
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
