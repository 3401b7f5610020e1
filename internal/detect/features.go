package detect

import (
	"github.com/medichain/medguard/internal/monitor"
)

// Vector is the fixed-shape numeric input handed to the external scorer.
// The pseudo-TCP-flag ratios are derived heuristically from HTTP verbs:
// the main request path has no transport-layer capture, so verb mix is the
// closest available stand-in. That is a documented limitation, not
// something to silently "fix".
type Vector struct {
	Duration       float64 `json:"duration"`
	PacketCount    int     `json:"packet_count"`
	ByteCount      int64   `json:"byte_count"`
	FlowCount      int     `json:"flow_count"`
	PacketsPerFlow float64 `json:"packets_per_flow"`
	BytesPerFlow   float64 `json:"bytes_per_flow"`
	PacketRate     float64 `json:"packet_rate"`
	Protocol       string  `json:"protocol"`

	// Flag ratios, always in [0,1].
	SynRatio float64 `json:"syn_ratio"` // share of GET/HEAD requests
	AckRatio float64 `json:"ack_ratio"` // share of completed exchanges, approximated by non-GET verbs
	PshRatio float64 `json:"psh_ratio"` // share of body-carrying verbs
	FinRatio float64 `json:"fin_ratio"` // share of DELETE requests
}

// MinActivity is the window request count above which feature extraction
// and scoring run at all. Quiet windows are not worth a subprocess.
const MinActivity = 10

// ExtractFeatures maps a window snapshot onto a Vector. Every divisor is
// floored at 1 so a defensively built vector from an empty window still
// has all ratio fields inside [0,1].
func ExtractFeatures(stats monitor.WindowStats) Vector {
	duration := stats.End.Sub(stats.Start).Seconds()
	if duration < 1 {
		duration = 1
	}
	flows := stats.UniqueSources
	if flows < 1 {
		flows = 1
	}
	total := stats.RequestCount
	if total < 1 {
		total = 1
	}

	byteCount := int64(stats.AvgContentLength * float64(stats.RequestCount))

	gets := stats.MethodCounts["GET"] + stats.MethodCounts["HEAD"]
	posts := stats.MethodCounts["POST"] + stats.MethodCounts["PUT"] + stats.MethodCounts["PATCH"]
	deletes := stats.MethodCounts["DELETE"]

	protocol := "UDP"
	if stats.MethodCounts["POST"] > 0 {
		protocol = "TCP"
	}

	return Vector{
		Duration:       duration,
		PacketCount:    stats.RequestCount,
		ByteCount:      byteCount,
		FlowCount:      stats.UniqueSources,
		PacketsPerFlow: float64(stats.RequestCount) / float64(flows),
		BytesPerFlow:   float64(byteCount) / float64(flows),
		PacketRate:     float64(stats.RequestCount) / duration,
		Protocol:       protocol,

		SynRatio: float64(gets) / float64(total),
		AckRatio: float64(total-gets) / float64(total),
		PshRatio: float64(posts) / float64(total),
		FinRatio: float64(deletes) / float64(total),
	}
}
