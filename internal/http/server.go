package httpx

import (
	"net/http"

	"github.com/medichain/medguard/internal/metrics"
	"github.com/medichain/medguard/internal/xss"
)

// NewMux assembles the full handler chain. Outermost to innermost:
// request logging, traffic recording, injection scanning, CORS, routes.
// The monitoring middleware wraps everything except the skip-listed
// paths, so the demo application's own routes proxied behind this service
// are observed too.
func NewMux(e Env, m *metrics.Metrics, scanner *xss.Scanner) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", e.Healthz)
	mux.HandleFunc("/readyz", e.Readyz)

	mux.HandleFunc("/api/alerts", e.AlertsHandler)
	mux.HandleFunc("/api/packets", e.Packets)
	mux.HandleFunc("/api/dashboard", e.Dashboard)

	mux.HandleFunc("/api/monitor/start", e.MonitorStart)
	mux.HandleFunc("/api/monitor/stop", e.MonitorStop)
	mux.HandleFunc("/api/monitor/simulate", e.Simulate)

	var handler http.Handler = cors(mux)
	handler = Scan(scanner, 1<<20, e.Cfg.TrustProxy, e.Cfg.SkipPaths)(handler)
	handler = Monitor(e.Recorder, m, e.Cfg.TrustProxy, e.Cfg.SkipPaths)(handler)
	return RequestLogger(handler)
}
