package xss

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/medichain/medguard/internal/alert"
	"github.com/medichain/medguard/internal/score"
	"github.com/medichain/medguard/internal/stats"
)

func candidateSet(cs []Candidate) map[string]string {
	m := make(map[string]string, len(cs))
	for _, c := range cs {
		m[c.Surface+"/"+c.Key] = c.Value
	}
	return m
}

func TestExtractCandidates(t *testing.T) {
	t.Run("query values", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/search?q=%3Cscript%3Ealert(1)%3C%2Fscript%3E&page=2", nil)
		got := candidateSet(ExtractCandidates(r, nil, 8))
		if got["query/q"] != "<script>alert(1)</script>" {
			t.Errorf("query/q = %q", got["query/q"])
		}
		if _, ok := got["query/page"]; ok {
			t.Error("short value should be filtered out")
		}
	})

	t.Run("nested json body", func(t *testing.T) {
		body := []byte(`{"name":"<img src=x onerror=1>","profile":{"bio":"perfectly ordinary bio"},"tags":["short","javascript:alert(1)"]}`)
		r := httptest.NewRequest("POST", "/api/patients", nil)
		got := candidateSet(ExtractCandidates(r, body, 8))
		if got["body/name"] != "<img src=x onerror=1>" {
			t.Errorf("body/name = %q", got["body/name"])
		}
		if got["body/profile.bio"] != "perfectly ordinary bio" {
			t.Errorf("body/profile.bio = %q", got["body/profile.bio"])
		}
		if got["body/tags[1]"] != "javascript:alert(1)" {
			t.Errorf("body/tags[1] = %q", got["body/tags[1]"])
		}
		if _, ok := got["body/tags[0]"]; ok {
			t.Error("short array element should be filtered out")
		}
	})

	t.Run("non json body ignored", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/api/patients", nil)
		for _, c := range ExtractCandidates(r, []byte("name=<script>alert(1)</script>"), 8) {
			if c.Surface == "body" {
				t.Errorf("unexpected body candidate %+v", c)
			}
		}
	})

	t.Run("credential headers skipped", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("Authorization", "Bearer abcdefghijklmnop")
		r.Header.Set("Cookie", "session=abcdefghijklmnop")
		r.Header.Set("User-Agent", "<script>alert(document.cookie)</script>")
		got := candidateSet(ExtractCandidates(r, nil, 8))
		if _, ok := got["header/Authorization"]; ok {
			t.Error("Authorization header must not be scanned")
		}
		if _, ok := got["header/Cookie"]; ok {
			t.Error("Cookie header must not be scanned")
		}
		if got["header/User-Agent"] == "" {
			t.Error("User-Agent header should produce a candidate")
		}
	})

	t.Run("path segments", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/%3Cscript%3Ealert(1)%3C%2Fscript%3E", nil)
		got := candidateSet(ExtractCandidates(r, nil, 8))
		if got["path/segment"] != "<script>alert(1)</script>" {
			t.Errorf("path/segment = %q", got["path/segment"])
		}
	})
}

func TestScan(t *testing.T) {
	positive := score.Func(func(ctx context.Context, payload any) (score.Verdict, error) {
		return score.Verdict{IsAttack: true, Confidence: 0.95, AttackType: "reflected"}, nil
	})

	t.Run("positive verdict emits xss alert", func(t *testing.T) {
		store := alert.NewStore(10)
		sc := NewScanner(positive, alert.NewEmitter(store), nil, nil, 8, 25)

		r := httptest.NewRequest("GET", "/search?q=%3Cscript%3Ealert(1)%3C%2Fscript%3E", nil)
		cands := ExtractCandidates(r, nil, sc.MinLength)
		sc.Scan(context.Background(), cands, "203.0.113.7")

		if store.Len() != 1 {
			t.Fatalf("alerts = %d, want 1", store.Len())
		}
		a := store.Recent(1)[0]
		if a.Class != alert.ClassXSS || a.Severity != alert.SeverityHigh {
			t.Errorf("alert = %+v, want high-severity xss", a)
		}
		if a.Details["vector_type"] != "query" || a.Details["field"] != "q" {
			t.Errorf("details = %v", a.Details)
		}
		if a.Details["source"] != "203.0.113.7" {
			t.Errorf("source = %v", a.Details["source"])
		}
		if a.Confidence != 0.95 || a.AttackType != "reflected" {
			t.Errorf("confidence/type = %v/%q", a.Confidence, a.AttackType)
		}
	})

	t.Run("long values are previewed", func(t *testing.T) {
		store := alert.NewStore(10)
		sc := NewScanner(positive, alert.NewEmitter(store), nil, nil, 8, 25)

		long := "<script>" + strings.Repeat("x", 100) + "</script>"
		sc.Scan(context.Background(), []Candidate{{Surface: "body", Key: "note", Value: long}}, "203.0.113.7")

		preview, _ := store.Recent(1)[0].Details["preview"].(string)
		if len(preview) != 53 || !strings.HasSuffix(preview, "...") {
			t.Errorf("preview = %q (len %d), want 50 chars plus ellipsis", preview, len(preview))
		}
		if !strings.HasPrefix(long, preview[:50]) {
			t.Error("preview should be a prefix of the value")
		}
	})

	t.Run("preview never splits a rune", func(t *testing.T) {
		store := alert.NewStore(10)
		sc := NewScanner(positive, alert.NewEmitter(store), nil, nil, 8, 25)

		// 10 ASCII bytes then 3-byte runes, so the byte limit lands mid-rune.
		long := "q=<script>" + strings.Repeat("€", 30)
		sc.Scan(context.Background(), []Candidate{{Surface: "body", Key: "note", Value: long}}, "203.0.113.7")

		preview, _ := store.Recent(1)[0].Details["preview"].(string)
		if !utf8.ValidString(preview) {
			t.Errorf("preview %q is not valid UTF-8", preview)
		}
		if !strings.HasSuffix(preview, "...") {
			t.Errorf("preview %q missing ellipsis", preview)
		}
		if trimmed := strings.TrimSuffix(preview, "..."); len(trimmed) > 50 || !strings.HasPrefix(long, trimmed) {
			t.Errorf("preview body %q exceeds limit or is not a prefix", trimmed)
		}
	})

	t.Run("candidate budget enforced", func(t *testing.T) {
		var calls int
		counting := score.Func(func(ctx context.Context, payload any) (score.Verdict, error) {
			calls++
			return score.Negative(), nil
		})
		sc := NewScanner(counting, alert.NewEmitter(alert.NewStore(10)), nil, nil, 8, 3)

		cands := make([]Candidate, 10)
		for i := range cands {
			cands[i] = Candidate{Surface: "query", Key: "k", Value: "aaaaaaaaaa"}
		}
		sc.Scan(context.Background(), cands, "203.0.113.7")
		if calls != 3 {
			t.Errorf("scorer calls = %d, want 3", calls)
		}
	})

	t.Run("scorer failure skips candidate", func(t *testing.T) {
		store := alert.NewStore(10)
		failing := score.Func(func(ctx context.Context, payload any) (score.Verdict, error) {
			return score.Negative(), errors.New("scorer down")
		})
		sc := NewScanner(failing, alert.NewEmitter(store), nil, nil, 8, 25)
		sc.Scan(context.Background(), []Candidate{{Surface: "query", Key: "q", Value: "<script>alert(1)</script>"}}, "203.0.113.7")
		if store.Len() != 0 {
			t.Errorf("alerts = %d, want 0 when scorer fails", store.Len())
		}
	})

	t.Run("detection recorded in stats", func(t *testing.T) {
		cache := stats.NewCache(0)
		sc := NewScanner(positive, alert.NewEmitter(alert.NewStore(10)), cache, nil, 8, 25)
		sc.Scan(context.Background(), []Candidate{{Surface: "query", Key: "q", Value: "<script>alert(1)</script>"}}, "203.0.113.7")

		view := cache.Snapshot()
		if view.Total != 1 || view.Counts["reflected"] != 1 {
			t.Errorf("stats view = %+v, want one reflected detection", view)
		}
	})
}
