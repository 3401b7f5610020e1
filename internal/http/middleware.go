package httpx

import (
	"bytes"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/medichain/medguard/internal/logging"
	"github.com/medichain/medguard/internal/metrics"
	"github.com/medichain/medguard/internal/monitor"
	"github.com/medichain/medguard/internal/xss"
)

// statusRecorder wraps the ResponseWriter to capture status and body size
// on the outbound path.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// skipped reports whether path is excluded from monitoring (substring
// match, matching the dashboard/scorer endpoints and static assets).
func skipped(path string, skipPaths []string) bool {
	for _, s := range skipPaths {
		if strings.Contains(path, s) {
			return true
		}
	}
	return false
}

// Monitor records every non-skip-listed request into the recorder and
// completes the record once the response has been written. Any failure in
// the instrumentation itself is recovered and logged; the client never
// sees a 5xx caused by observability.
func Monitor(rec *monitor.Recorder, m *metrics.Metrics, trustProxy bool, skipPaths []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipped(r.URL.Path, skipPaths) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			sw := &statusRecorder{ResponseWriter: w}

			handle, recorded := record(rec, r, trustProxy)
			if m != nil {
				m.IncRequests(r.Method)
			}

			next.ServeHTTP(sw, r)

			if recorded {
				complete(rec, handle, sw, start)
			}
			if m != nil {
				m.ObserveHTTPDuration(r.Method, time.Since(start))
			}
		})
	}
}

func record(rec *monitor.Recorder, r *http.Request, trustProxy bool) (h monitor.Handle, ok bool) {
	defer func() {
		if p := recover(); p != nil {
			logging.L.Errorw("request recording failed", "panic", p)
			ok = false
		}
	}()

	headers := make(map[string]string, len(r.Header))
	for k, v := range r.Header {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}
	query := make(map[string]string)
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			query[k] = v[0]
		}
	}

	h = rec.Record(monitor.Record{
		Source:        clientIP(r, trustProxy),
		Method:        r.Method,
		Path:          r.URL.Path,
		Headers:       headers,
		Query:         query,
		ContentLength: r.ContentLength,
	})
	return h, true
}

func complete(rec *monitor.Recorder, h monitor.Handle, sw *statusRecorder, start time.Time) {
	defer func() {
		if p := recover(); p != nil {
			logging.L.Errorw("request completion failed", "panic", p)
		}
	}()
	status := sw.status
	if status == 0 {
		status = http.StatusOK
	}
	rec.Complete(h, status, float64(time.Since(start).Microseconds())/1000, sw.bytes)
}

// Scan runs the injection scanner over every non-skip-listed request. The
// body is read and restored so downstream handlers are unaffected, and the
// next handler is always called regardless of scan outcome.
func Scan(scanner *xss.Scanner, maxBody int64, trustProxy bool, skipPaths []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if scanner == nil || skipped(r.URL.Path, skipPaths) {
				next.ServeHTTP(w, r)
				return
			}

			var body []byte
			if r.Body != nil && r.ContentLength != 0 {
				limited := io.LimitReader(r.Body, maxBody)
				if b, err := io.ReadAll(limited); err == nil {
					body = b
				}
				r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), r.Body))
			}

			candidates := xss.ExtractCandidates(r, body, scanner.MinLength)
			if len(candidates) > 0 {
				scanner.Scan(r.Context(), candidates, clientIP(r, trustProxy))
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger logs one line per request through the shared logger.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.L.Debugw("request", "method", r.Method, "path", r.URL.Path, "dur", time.Since(start))
	})
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Very permissive for the demo; tighten in production.
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP resolves the source identity: forwarded headers first when the
// proxy is trusted, then the connection peer.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			if ip := strings.TrimSpace(parts[0]); ip != "" {
				return ip
			}
		}
		if xrip := r.Header.Get("X-Real-IP"); xrip != "" {
			return strings.TrimSpace(xrip)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
