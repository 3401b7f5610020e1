// Package score bridges the pipeline to the external anomaly scorer. The
// scorer is an opaque process: JSON payload in on stdin, JSON verdict out
// on stdout. Every failure mode resolves to a negative verdict so the
// pipeline degrades to "no detection this cycle" instead of crashing.
package score

import "strings"

// Verdict is the scorer's classification for a feature vector or a single
// string candidate.
type Verdict struct {
	IsAttack   bool    `json:"is_attack"`
	Confidence float64 `json:"confidence"`
	AttackType string  `json:"attack_type,omitempty"`
}

// Negative is the default verdict used whenever the scorer is unavailable
// or returns garbage.
func Negative() Verdict { return Verdict{IsAttack: false, Confidence: 0} }

// Positive reports whether v should raise an alert: an explicit attack
// flag, or high confidence on its own.
func (v Verdict) Positive() bool {
	return v.IsAttack || v.Confidence > 0.7
}

// Attack buckets for ml-based alerts. Scorer labels are free-form, so they
// are folded into a small fixed set by substring match.
const (
	AttackSYNFlood    = "SYN flood"
	AttackUDPFlood    = "UDP flood"
	AttackHTTPFlood   = "HTTP flood"
	AttackSlowRequest = "slow request"
)

// ClassifyAttack maps a scorer-provided label onto one of the fixed attack
// buckets, defaulting to the generic HTTP flood bucket.
func ClassifyAttack(label string) string {
	l := strings.ToLower(label)
	switch {
	case strings.Contains(l, "syn"):
		return AttackSYNFlood
	case strings.Contains(l, "udp"):
		return AttackUDPFlood
	case strings.Contains(l, "slow"):
		return AttackSlowRequest
	default:
		return AttackHTTPFlood
	}
}
