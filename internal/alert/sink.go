package alert

import (
	"context"
	"encoding/json"

	"github.com/medichain/medguard/internal/logging"
)

// Sink mirrors alerts to an external system (log, Kafka, Postgres). A sink
// failure never blocks the pipeline; the emitter logs and moves on.
type Sink interface {
	Start(ctx context.Context) error
	Enqueue(a Alert) error
	Close() error
	Name() string
}

// Emitter is the single write path for every alert producer: append to the
// bounded store, then best-effort fan-out to the configured sinks.
type Emitter struct {
	store *Store
	sinks []Sink
}

func NewEmitter(store *Store, sinks ...Sink) *Emitter {
	return &Emitter{store: store, sinks: sinks}
}

func (e *Emitter) Emit(a Alert) {
	e.store.Append(a)
	for _, s := range e.sinks {
		if err := s.Enqueue(a); err != nil {
			logging.L.Errorw("alert sink enqueue failed", "sink", s.Name(), "alert_id", a.ID, "err", err)
		}
	}
}

func (e *Emitter) Store() *Store { return e.store }

// LogSink writes each alert to the application log as JSON.
type LogSink struct{}

func NewLogSink() *LogSink { return &LogSink{} }

func (s *LogSink) Start(ctx context.Context) error { return nil }

func (s *LogSink) Enqueue(a Alert) error {
	b, _ := json.Marshal(a)
	logging.L.Infow("alert", "class", a.Class, "severity", a.Severity, "body", string(b))
	return nil
}

func (s *LogSink) Close() error { return nil }

func (s *LogSink) Name() string { return "log" }
