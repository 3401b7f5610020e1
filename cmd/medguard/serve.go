package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/medichain/medguard/internal/alert"
	"github.com/medichain/medguard/internal/detect"
	"github.com/medichain/medguard/internal/enrich"
	httpx "github.com/medichain/medguard/internal/http"
	"github.com/medichain/medguard/internal/logging"
	"github.com/medichain/medguard/internal/metrics"
	"github.com/medichain/medguard/internal/monitor"
	"github.com/medichain/medguard/internal/pipeline"
	"github.com/medichain/medguard/internal/score"
	"github.com/medichain/medguard/internal/stats"
	"github.com/medichain/medguard/internal/xss"
	"github.com/medichain/medguard/pkg/config"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the monitoring server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg := config.Load()
	if configFile != "" {
		if err := cfg.ApplyFile(configFile); err != nil {
			return err
		}
	}
	if err := logging.Init(cfg.LogLevel, cfg.LogPath); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Alert store + configured forwarders.
	store := alert.NewStore(cfg.AlertCapacity)
	var sinks []alert.Sink
	for _, out := range cfg.Outputs {
		switch out {
		case "log":
			sinks = append(sinks, alert.NewLogSink())
		case "kafka":
			sinks = append(sinks, alert.NewKafkaSinkFromEnv())
		case "postgres":
			sinks = append(sinks, alert.NewPGSinkFromEnv())
		default:
			logging.L.Warnw("unknown alert output, skipping", "output", out)
		}
	}
	for _, s := range sinks {
		if err := s.Start(ctx); err != nil {
			// A dead forwarder degrades alert mirroring, not detection.
			logging.L.Errorw("alert sink failed to start", "sink", s.Name(), "err", err)
		}
	}
	emitter := alert.NewEmitter(store, sinks...)

	var scorer score.Scorer
	if cfg.ScorerCommand != "" {
		scorer = score.NewExecScorer(cfg.ScorerCommand, cfg.ScorerArgs,
			time.Duration(cfg.ScorerTimeoutMS)*time.Millisecond)
	} else {
		logging.L.Warn("no scorer configured, model-based detection disabled")
	}

	geo, err := enrich.Open(cfg.GeoIPPath)
	if err != nil {
		logging.L.Errorw("geoip database unavailable, enrichment disabled", "err", err)
	}
	defer geo.Close()

	m := metrics.NewMetrics()
	metricsServer := metrics.NewServer(metrics.LoadConfig(), m)
	_ = metricsServer.Start(ctx)

	recorder := monitor.NewRecorder(cfg.RingCapacity)
	detectionStats := stats.NewCache(time.Duration(cfg.StatsTTLSeconds) * time.Second)
	scanner := xss.NewScanner(scorer, emitter, detectionStats, m, cfg.ScanMinLength, cfg.ScanMaxCandidates)

	pipe := pipeline.New(recorder, emitter, scorer, geo, m, pipeline.Options{
		Window: time.Duration(cfg.WindowSeconds) * time.Second,
		Tick:   time.Duration(cfg.TickSeconds) * time.Second,
		Thresholds: detect.Thresholds{
			RequestRate:  cfg.RateThreshold,
			AvgPerSource: cfg.PerSourceThreshold,
		},
		ActivityThreshold: cfg.ActivityThreshold,
	})
	go pipe.Run(ctx)

	env := httpx.Env{
		Cfg:      cfg,
		Recorder: recorder,
		Alerts:   store,
		Stats:    detectionStats,
		Pipeline: pipe,
	}
	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: httpx.NewMux(env, m, scanner),
	}

	go func() {
		logging.L.Infow("medguard listening", "addr", cfg.ServerAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L.Fatalw("server error", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logging.L.Info("shutting down")

	shutdownCtx, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	_ = srv.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)
	cancel()
	for _, s := range sinks {
		if err := s.Close(); err != nil {
			logging.L.Errorw("alert sink close failed", "sink", s.Name(), "err", err)
		}
	}
	return nil
}
