// Package pipeline drives the periodic detection tick: snapshot the
// recorder, run the rule detector, and when the window is busy enough hand
// a feature vector to the external scorer.
package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/medichain/medguard/internal/alert"
	"github.com/medichain/medguard/internal/detect"
	"github.com/medichain/medguard/internal/enrich"
	"github.com/medichain/medguard/internal/logging"
	"github.com/medichain/medguard/internal/metrics"
	"github.com/medichain/medguard/internal/monitor"
	"github.com/medichain/medguard/internal/score"
)

type Options struct {
	Window            time.Duration
	Tick              time.Duration
	Thresholds        detect.Thresholds
	ActivityThreshold int
}

type Pipeline struct {
	recorder *monitor.Recorder
	emitter  *alert.Emitter
	scorer   score.Scorer
	geo      *enrich.Resolver
	metrics  *metrics.Metrics
	opts     Options

	running  atomic.Bool // control-endpoint toggle
	inflight atomic.Bool // at most one scorer invocation per tick
}

func New(rec *monitor.Recorder, em *alert.Emitter, sc score.Scorer, geo *enrich.Resolver, m *metrics.Metrics, opts Options) *Pipeline {
	if opts.Window <= 0 {
		opts.Window = 30 * time.Second
	}
	if opts.Tick <= 0 {
		opts.Tick = 5 * time.Second
	}
	if opts.ActivityThreshold <= 0 {
		opts.ActivityThreshold = detect.MinActivity
	}
	p := &Pipeline{
		recorder: rec,
		emitter:  em,
		scorer:   sc,
		geo:      geo,
		metrics:  m,
		opts:     opts,
	}
	p.running.Store(true)
	return p
}

// Run ticks until ctx is cancelled. The tick runs outside the request
// path, so a slow scorer delays only the next detection cycle, never a
// client response.
func (p *Pipeline) Run(ctx context.Context) {
	ticker := time.NewTicker(p.opts.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if !p.running.Load() {
				continue
			}
			p.Tick(ctx, now)
		}
	}
}

// Start resumes detection after a Stop. It reports whether the state changed.
func (p *Pipeline) Start() bool { return p.running.CompareAndSwap(false, true) }

// Stop pauses detection; requests keep being recorded.
func (p *Pipeline) Stop() bool { return p.running.CompareAndSwap(true, false) }

// Running reports whether the periodic detectors are active.
func (p *Pipeline) Running() bool { return p.running.Load() }

// Tick performs one detection cycle against the trailing window ending at
// now. Exposed for the tests; Run calls it on the timer.
func (p *Pipeline) Tick(ctx context.Context, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			// Instrumentation failures are swallowed; detection resumes
			// on the next tick.
			logging.L.Errorw("detection tick panicked", "panic", r)
		}
	}()

	records := p.recorder.Snapshot(p.opts.Window, now)
	if p.metrics != nil {
		p.metrics.SetRingDepth(float64(p.recorder.Len()))
	}
	if len(records) == 0 {
		return
	}

	stats := monitor.Aggregate(records, now.Add(-p.opts.Window), now)

	if a, fired := detect.Evaluate(stats, p.opts.Thresholds); fired {
		p.enrichSources(&a)
		p.emit(a)
		logging.L.Warnw("rule detector fired",
			"rate", stats.RequestRate(), "sources", stats.UniqueSources, "top_path", stats.TopPath)
	}

	if stats.RequestCount <= p.opts.ActivityThreshold {
		return
	}
	if p.scorer == nil || !p.inflight.CompareAndSwap(false, true) {
		// A previous invocation is still running; skip this tick rather
		// than pile up scorer processes.
		return
	}
	vector := detect.ExtractFeatures(stats)
	go p.scoreWindow(ctx, vector)
}

func (p *Pipeline) scoreWindow(ctx context.Context, v detect.Vector) {
	defer p.inflight.Store(false)

	start := time.Now()
	verdict, err := p.scorer.Score(ctx, v)
	if p.metrics != nil {
		p.metrics.ObserveScorer(err == nil, time.Since(start))
	}
	if err != nil {
		logging.L.Errorw("anomaly scorer unavailable", "err", err)
		return
	}
	if !verdict.Positive() {
		return
	}

	bucket := score.ClassifyAttack(verdict.AttackType)
	a := alert.New(alert.ClassML, alert.SeverityHigh,
		"model flagged traffic window as "+bucket,
		map[string]any{
			"packet_count": v.PacketCount,
			"packet_rate":  v.PacketRate,
			"flow_count":   v.FlowCount,
			"protocol":     v.Protocol,
		})
	a.Confidence = verdict.Confidence
	a.AttackType = bucket
	p.emit(a)
}

func (p *Pipeline) emit(a alert.Alert) {
	p.emitter.Emit(a)
	if p.metrics != nil {
		p.metrics.IncAlerts(string(a.Class), string(a.Severity))
	}
}

// enrichSources annotates the top-offender list with country codes when
// GeoIP is configured.
func (p *Pipeline) enrichSources(a *alert.Alert) {
	if p.geo == nil || a.Details == nil {
		return
	}
	top, ok := a.Details["top_sources"].([]map[string]any)
	if !ok {
		return
	}
	for _, entry := range top {
		src, _ := entry["source"].(string)
		if country := p.geo.Country(src); country != "" {
			entry["country"] = country
		}
	}
}
