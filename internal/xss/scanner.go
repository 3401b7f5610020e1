// Package xss extracts injection candidates from request surfaces and runs
// them through the external scorer. Scanning is best-effort middleware: a
// scorer outage or malformed body never blocks the request.
package xss

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/medichain/medguard/internal/alert"
	"github.com/medichain/medguard/internal/logging"
	"github.com/medichain/medguard/internal/metrics"
	"github.com/medichain/medguard/internal/score"
	"github.com/medichain/medguard/internal/stats"
)

// Candidate is one string pulled from a request surface.
type Candidate struct {
	Surface string // query, body, header, path
	Key     string
	Value   string
}

const (
	DefaultMinLength     = 8
	DefaultMaxCandidates = 25
	previewLimit         = 50
)

// Headers never worth scanning: credentials, not content.
var skipHeaders = map[string]bool{
	"Authorization": true,
	"Cookie":        true,
}

// Scanner scores extracted candidates and records detections.
type Scanner struct {
	Scorer        score.Scorer
	Emitter       *alert.Emitter
	Stats         *stats.Cache
	Metrics       *metrics.Metrics
	MinLength     int
	MaxCandidates int
}

func NewScanner(sc score.Scorer, em *alert.Emitter, st *stats.Cache, m *metrics.Metrics, minLength, maxCandidates int) *Scanner {
	if minLength <= 0 {
		minLength = DefaultMinLength
	}
	if maxCandidates <= 0 {
		maxCandidates = DefaultMaxCandidates
	}
	return &Scanner{
		Scorer:        sc,
		Emitter:       em,
		Stats:         st,
		Metrics:       m,
		MinLength:     minLength,
		MaxCandidates: maxCandidates,
	}
}

// ExtractCandidates pulls scan candidates from query values, recursively
// flattened JSON body fields, header values (minus credentials) and
// non-empty path segments. Candidates shorter than minLength are noise and
// skipped.
func ExtractCandidates(r *http.Request, body []byte, minLength int) []Candidate {
	var out []Candidate

	for key, values := range r.URL.Query() {
		for _, v := range values {
			if len(v) >= minLength {
				out = append(out, Candidate{Surface: "query", Key: key, Value: v})
			}
		}
	}

	if len(body) > 0 {
		var parsed any
		if err := json.Unmarshal(body, &parsed); err == nil {
			out = append(out, flattenBody("", parsed, minLength)...)
		}
	}

	for key, values := range r.Header {
		if skipHeaders[http.CanonicalHeaderKey(key)] {
			continue
		}
		for _, v := range values {
			if len(v) >= minLength {
				out = append(out, Candidate{Surface: "header", Key: key, Value: v})
			}
		}
	}

	for _, seg := range strings.Split(r.URL.Path, "/") {
		if seg != "" && len(seg) >= minLength {
			out = append(out, Candidate{Surface: "path", Key: "segment", Value: seg})
		}
	}

	return out
}

// flattenBody walks nested JSON objects and arrays, emitting every string
// leaf keyed by its dotted path.
func flattenBody(prefix string, node any, minLength int) []Candidate {
	var out []Candidate
	switch v := node.(type) {
	case string:
		if len(v) >= minLength {
			key := prefix
			if key == "" {
				key = "body"
			}
			out = append(out, Candidate{Surface: "body", Key: key, Value: v})
		}
	case map[string]any:
		for k, child := range v {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			out = append(out, flattenBody(key, child, minLength)...)
		}
	case []any:
		for i, child := range v {
			out = append(out, flattenBody(fmt.Sprintf("%s[%d]", prefix, i), child, minLength)...)
		}
	}
	return out
}

// Scan scores each candidate sequentially, bounded by MaxCandidates, and
// emits an xss alert per positive verdict. Scorer failures are logged and
// skipped.
func (s *Scanner) Scan(ctx context.Context, candidates []Candidate, source string) {
	if s.Scorer == nil {
		return
	}
	if len(candidates) > s.MaxCandidates {
		candidates = candidates[:s.MaxCandidates]
	}
	for _, c := range candidates {
		if s.Metrics != nil {
			s.Metrics.IncScanCandidates(c.Surface)
		}
		verdict, err := s.Scorer.Score(ctx, map[string]any{"candidate": c.Value})
		if err != nil {
			logging.L.Errorw("candidate scoring failed", "surface", c.Surface, "key", c.Key, "err", err)
			continue
		}
		if !verdict.Positive() {
			continue
		}
		s.report(c, verdict, source)
	}
}

func (s *Scanner) report(c Candidate, verdict score.Verdict, source string) {
	subtype := verdict.AttackType
	if subtype == "" {
		subtype = "xss"
	}

	a := alert.New(alert.ClassXSS, alert.SeverityHigh,
		fmt.Sprintf("injection attempt in %s parameter %q", c.Surface, c.Key),
		map[string]any{
			"vector_type": c.Surface,
			"field":       c.Key,
			"preview":     truncate(c.Value, previewLimit),
			"source":      source,
		})
	a.Confidence = verdict.Confidence
	a.AttackType = subtype
	s.Emitter.Emit(a)
	if s.Metrics != nil {
		s.Metrics.IncAlerts(string(a.Class), string(a.Severity))
	}

	if s.Stats != nil {
		s.Stats.RecordDetection(subtype, time.Now().UTC())
	}
}

// truncate cuts v to at most limit bytes without splitting a rune, so the
// preview stays valid UTF-8 in the alert JSON.
func truncate(v string, limit int) string {
	if len(v) <= limit {
		return v
	}
	for limit > 0 && !utf8.RuneStart(v[limit]) {
		limit--
	}
	return v[:limit] + "..."
}
