package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.ServerAddr != ":8090" {
		t.Errorf("ServerAddr = %q, want %q", cfg.ServerAddr, ":8090")
	}
	if cfg.RingCapacity != 1000 {
		t.Errorf("RingCapacity = %d, want 1000", cfg.RingCapacity)
	}
	if cfg.WindowSeconds != 30 {
		t.Errorf("WindowSeconds = %d, want 30", cfg.WindowSeconds)
	}
	if cfg.TickSeconds != 5 {
		t.Errorf("TickSeconds = %d, want 5", cfg.TickSeconds)
	}
	if cfg.RateThreshold != 10 {
		t.Errorf("RateThreshold = %v, want 10", cfg.RateThreshold)
	}
	if cfg.AlertCapacity != 100 {
		t.Errorf("AlertCapacity = %d, want 100", cfg.AlertCapacity)
	}
	if len(cfg.Outputs) != 1 || cfg.Outputs[0] != "log" {
		t.Errorf("Outputs = %v, want [log]", cfg.Outputs)
	}
	if len(cfg.SkipPaths) == 0 {
		t.Error("expected default skip paths")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":9999")
	t.Setenv("RING_CAPACITY", "50")
	t.Setenv("RATE_THRESHOLD", "2.5")
	t.Setenv("OUTPUTS", "log, kafka ,postgres")
	t.Setenv("TRUST_PROXY", "false")

	cfg := Load()

	if cfg.ServerAddr != ":9999" {
		t.Errorf("ServerAddr = %q, want %q", cfg.ServerAddr, ":9999")
	}
	if cfg.RingCapacity != 50 {
		t.Errorf("RingCapacity = %d, want 50", cfg.RingCapacity)
	}
	if cfg.RateThreshold != 2.5 {
		t.Errorf("RateThreshold = %v, want 2.5", cfg.RateThreshold)
	}
	want := []string{"log", "kafka", "postgres"}
	if len(cfg.Outputs) != len(want) {
		t.Fatalf("Outputs = %v, want %v", cfg.Outputs, want)
	}
	for i := range want {
		if cfg.Outputs[i] != want[i] {
			t.Errorf("Outputs[%d] = %q, want %q", i, cfg.Outputs[i], want[i])
		}
	}
	if cfg.TrustProxy {
		t.Error("TrustProxy should be false")
	}
}

func TestLoadInvalidEnvFallsBack(t *testing.T) {
	t.Setenv("RING_CAPACITY", "not-a-number")
	t.Setenv("RATE_THRESHOLD", "lots")

	cfg := Load()

	if cfg.RingCapacity != 1000 {
		t.Errorf("RingCapacity = %d, want default 1000", cfg.RingCapacity)
	}
	if cfg.RateThreshold != 10 {
		t.Errorf("RateThreshold = %v, want default 10", cfg.RateThreshold)
	}
}

func TestApplyFile(t *testing.T) {
	t.Run("overlays set fields only", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "medguard.yaml")
		body := "server_addr: \":7070\"\nwindow_seconds: 60\nrate_threshold: 3\noutputs: [log, postgres]\n"
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}

		cfg := Load()
		if err := cfg.ApplyFile(path); err != nil {
			t.Fatalf("ApplyFile: %v", err)
		}

		if cfg.ServerAddr != ":7070" {
			t.Errorf("ServerAddr = %q, want %q", cfg.ServerAddr, ":7070")
		}
		if cfg.WindowSeconds != 60 {
			t.Errorf("WindowSeconds = %d, want 60", cfg.WindowSeconds)
		}
		if cfg.RateThreshold != 3 {
			t.Errorf("RateThreshold = %v, want 3", cfg.RateThreshold)
		}
		if len(cfg.Outputs) != 2 {
			t.Errorf("Outputs = %v, want [log postgres]", cfg.Outputs)
		}
		// Untouched by the file: keep env/default value.
		if cfg.RingCapacity != 1000 {
			t.Errorf("RingCapacity = %d, want 1000", cfg.RingCapacity)
		}
	})

	t.Run("missing file is an error", func(t *testing.T) {
		cfg := Load()
		if err := cfg.ApplyFile("/nonexistent/medguard.yaml"); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("malformed yaml is an error", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "bad.yaml")
		if err := os.WriteFile(path, []byte("{not yaml"), 0o600); err != nil {
			t.Fatal(err)
		}
		cfg := Load()
		if err := cfg.ApplyFile(path); err == nil {
			t.Error("expected error for malformed yaml")
		}
	})
}
