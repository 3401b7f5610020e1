package alert

import (
	"context"
	"errors"
	"testing"
)

type captureSink struct {
	name string
	got  []Alert
	err  error
}

func (c *captureSink) Start(ctx context.Context) error { return nil }
func (c *captureSink) Enqueue(a Alert) error {
	if c.err != nil {
		return c.err
	}
	c.got = append(c.got, a)
	return nil
}
func (c *captureSink) Close() error { return nil }
func (c *captureSink) Name() string { return c.name }

func TestEmitter(t *testing.T) {
	t.Run("appends to store and fans out", func(t *testing.T) {
		store := NewStore(10)
		sink := &captureSink{name: "capture"}
		e := NewEmitter(store, sink)

		e.Emit(New(ClassRule, SeverityMedium, "traffic spike", nil))

		if store.Len() != 1 {
			t.Errorf("store.Len() = %d, want 1", store.Len())
		}
		if len(sink.got) != 1 {
			t.Errorf("sink received %d alerts, want 1", len(sink.got))
		}
	})

	t.Run("sink failure does not lose the alert", func(t *testing.T) {
		store := NewStore(10)
		bad := &captureSink{name: "bad", err: errors.New("broker down")}
		e := NewEmitter(store, bad)

		e.Emit(New(ClassXSS, SeverityHigh, "injection attempt", nil))

		if store.Len() != 1 {
			t.Errorf("store.Len() = %d, want 1; store append must not depend on sinks", store.Len())
		}
	})

	t.Run("works with no sinks", func(t *testing.T) {
		store := NewStore(10)
		e := NewEmitter(store)
		e.Emit(New(ClassInfo, SeverityLow, "monitoring started", nil))
		if store.Len() != 1 {
			t.Errorf("store.Len() = %d, want 1", store.Len())
		}
	})
}

func TestLogSink(t *testing.T) {
	s := NewLogSink()
	if err := s.Start(context.Background()); err != nil {
		t.Errorf("Start: %v", err)
	}
	if err := s.Enqueue(New(ClassInfo, SeverityLow, "hello", nil)); err != nil {
		t.Errorf("Enqueue: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if s.Name() != "log" {
		t.Errorf("Name() = %q, want log", s.Name())
	}
}

func TestKafkaSinkConfig(t *testing.T) {
	t.Run("defaults from env", func(t *testing.T) {
		t.Setenv("KAFKA_BROKERS", "")
		t.Setenv("KAFKA_TOPIC", "")
		s := NewKafkaSinkFromEnv()
		if s.config.Brokers[0] != "localhost:9092" {
			t.Errorf("broker = %q, want localhost:9092", s.config.Brokers[0])
		}
		if s.config.Topic != "medguard.alerts" {
			t.Errorf("topic = %q, want medguard.alerts", s.config.Topic)
		}
	})

	t.Run("parses broker list", func(t *testing.T) {
		t.Setenv("KAFKA_BROKERS", "b1:9092, b2:9092")
		s := NewKafkaSinkFromEnv()
		if len(s.config.Brokers) != 2 || s.config.Brokers[1] != "b2:9092" {
			t.Errorf("brokers = %v", s.config.Brokers)
		}
	})

	t.Run("enqueue before start errors", func(t *testing.T) {
		s := NewKafkaSink([]string{"b1:9092"}, "medguard.alerts")
		if err := s.Enqueue(New(ClassInfo, SeverityLow, "x", nil)); err == nil {
			t.Error("expected error from unstarted producer")
		}
	})
}
