// Package httpx wires the monitoring pipeline into the HTTP surface: the
// recording and scanning middleware, the alerts and dashboard read APIs,
// and the operational control endpoints.
package httpx

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/medichain/medguard/internal/alert"
	"github.com/medichain/medguard/internal/monitor"
	"github.com/medichain/medguard/internal/pipeline"
	"github.com/medichain/medguard/internal/stats"
	cfg "github.com/medichain/medguard/pkg/config"
)

// Env carries the injected collaborators for every handler. Nothing here
// is global; main constructs one Env at process start.
type Env struct {
	Cfg      cfg.Config
	Recorder *monitor.Recorder
	Alerts   *alert.Store
	Stats    *stats.Cache
	Pipeline *pipeline.Pipeline
}

func (e Env) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (e Env) Readyz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// Alerts serves GET /api/alerts?limit=N: the most recent alerts as a JSON
// array in insertion order, oldest first and newest last. Newest-last is
// the one ordering convention used everywhere.
func (e Env) AlertsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit := queryInt(r, "limit", 50)
	writeJSON(w, e.Alerts.Recent(limit))
}

// Packets serves GET /api/packets?limit=N: the newest buffered request
// records. The path itself is on the monitoring skip-list, so reading the
// buffer does not grow it.
func (e Env) Packets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit := queryInt(r, "limit", 100)
	writeJSON(w, e.Recorder.Recent(limit))
}

// Dashboard serves GET /api/dashboard: the TTL-cached detection statistics
// plus the ten most recent alerts (newest last).
func (e Env) Dashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]any{
		"detection_stats": e.Stats.Snapshot(),
		"recent_alerts":   e.Alerts.Recent(10),
		"monitoring":      e.Pipeline.Running(),
	})
}

// MonitorStart serves POST /api/monitor/start.
func (e Env) MonitorStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	changed := e.Pipeline.Start()
	writeJSON(w, map[string]any{"monitoring": true, "changed": changed})
}

// MonitorStop serves POST /api/monitor/stop. Requests keep being recorded;
// only the periodic detectors pause.
func (e Env) MonitorStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	changed := e.Pipeline.Stop()
	writeJSON(w, map[string]any{"monitoring": false, "changed": changed})
}

// Simulate serves POST /api/monitor/simulate: inject a synthetic burst of
// request records for demos. Count and sources are query parameters.
func (e Env) Simulate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	count := queryInt(r, "count", 100)
	sources := queryInt(r, "sources", 3)
	if count > 10000 {
		count = 10000
	}
	if sources < 1 {
		sources = 1
	}

	now := time.Now()
	for i := 0; i < count; i++ {
		h := e.Recorder.Record(monitor.Record{
			TS:            now,
			Source:        "10.66.0." + strconv.Itoa(i%sources+1),
			Method:        "GET",
			Path:          "/api/patients",
			ContentLength: 0,
		})
		e.Recorder.Complete(h, http.StatusOK, 1, 256)
	}
	writeJSON(w, map[string]any{"injected": count, "sources": sources})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}
