package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config carries every tunable of the monitoring pipeline. Values come from
// the environment first; an optional YAML file can overlay them (see ApplyFile).
type Config struct {
	ServerAddr string `yaml:"server_addr"`
	TrustProxy bool   `yaml:"trust_proxy"`

	// Recorder / aggregator
	RingCapacity  int `yaml:"ring_capacity"`
	WindowSeconds int `yaml:"window_seconds"`
	TickSeconds   int `yaml:"tick_seconds"`

	// Rule detector thresholds
	RateThreshold      float64 `yaml:"rate_threshold"`       // requests/sec
	PerSourceThreshold float64 `yaml:"per_source_threshold"` // avg requests per source

	// Feature extraction / scoring
	ActivityThreshold int      `yaml:"activity_threshold"` // min window requests before scoring
	ScorerCommand     string   `yaml:"scorer_command"`
	ScorerArgs        []string `yaml:"scorer_args"`
	ScorerTimeoutMS   int      `yaml:"scorer_timeout_ms"`

	// Injection scanning
	ScanMinLength     int `yaml:"scan_min_length"`
	ScanMaxCandidates int `yaml:"scan_max_candidates"`

	// Alerting
	AlertCapacity int      `yaml:"alert_capacity"`
	Outputs       []string `yaml:"outputs"` // alert forwarders: log, kafka, postgres

	// Dashboard statistics
	StatsTTLSeconds int `yaml:"stats_ttl_seconds"`

	// Paths excluded from monitoring (substring match)
	SkipPaths []string `yaml:"skip_paths"`

	// Optional GeoIP city database for alert enrichment
	GeoIPPath string `yaml:"geoip_path"`

	LogLevel string `yaml:"log_level"`
	LogPath  string `yaml:"log_path"`
}

func getOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getBool(k string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(k)))
	switch v {
	case "1", "t", "true", "y", "yes":
		return true
	case "0", "f", "false", "n", "no":
		return false
	}
	return def
}

func getInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getStringSlice(k, def string) []string {
	v := os.Getenv(k)
	if v == "" {
		v = def
	}
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func Load() Config {
	return Config{
		ServerAddr: getOr("SERVER_ADDR", ":8090"),
		TrustProxy: getBool("TRUST_PROXY", true),

		RingCapacity:  getInt("RING_CAPACITY", 1000),
		WindowSeconds: getInt("WINDOW_SECONDS", 30),
		TickSeconds:   getInt("TICK_SECONDS", 5),

		RateThreshold:      getFloat("RATE_THRESHOLD", 10),
		PerSourceThreshold: getFloat("PER_SOURCE_THRESHOLD", 5),

		ActivityThreshold: getInt("ACTIVITY_THRESHOLD", 10),
		ScorerCommand:     getOr("SCORER_COMMAND", ""),
		ScorerArgs:        getStringSlice("SCORER_ARGS", ""),
		ScorerTimeoutMS:   getInt("SCORER_TIMEOUT_MS", 5000),

		ScanMinLength:     getInt("SCAN_MIN_LENGTH", 8),
		ScanMaxCandidates: getInt("SCAN_MAX_CANDIDATES", 25),

		AlertCapacity: getInt("ALERT_CAPACITY", 100),
		Outputs:       getStringSlice("OUTPUTS", "log"),

		StatsTTLSeconds: getInt("STATS_TTL_SECONDS", 300),

		SkipPaths: getStringSlice("SKIP_PATHS",
			"/ml/traffic,/static,/health,/api/packets,/api/analyze,/metrics"),

		GeoIPPath: getOr("GEOIP_PATH", ""),

		LogLevel: getOr("LOG_LEVEL", "info"),
		LogPath:  getOr("LOG_PATH", ""),
	}
}

// ApplyFile overlays values from a YAML config file on top of c. Zero-valued
// fields in the file leave the existing value untouched.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var overlay Config
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	c.merge(&overlay)
	return nil
}

func (c *Config) merge(o *Config) {
	if o.ServerAddr != "" {
		c.ServerAddr = o.ServerAddr
	}
	if o.RingCapacity > 0 {
		c.RingCapacity = o.RingCapacity
	}
	if o.WindowSeconds > 0 {
		c.WindowSeconds = o.WindowSeconds
	}
	if o.TickSeconds > 0 {
		c.TickSeconds = o.TickSeconds
	}
	if o.RateThreshold > 0 {
		c.RateThreshold = o.RateThreshold
	}
	if o.PerSourceThreshold > 0 {
		c.PerSourceThreshold = o.PerSourceThreshold
	}
	if o.ActivityThreshold > 0 {
		c.ActivityThreshold = o.ActivityThreshold
	}
	if o.ScorerCommand != "" {
		c.ScorerCommand = o.ScorerCommand
	}
	if len(o.ScorerArgs) > 0 {
		c.ScorerArgs = o.ScorerArgs
	}
	if o.ScorerTimeoutMS > 0 {
		c.ScorerTimeoutMS = o.ScorerTimeoutMS
	}
	if o.ScanMinLength > 0 {
		c.ScanMinLength = o.ScanMinLength
	}
	if o.ScanMaxCandidates > 0 {
		c.ScanMaxCandidates = o.ScanMaxCandidates
	}
	if o.AlertCapacity > 0 {
		c.AlertCapacity = o.AlertCapacity
	}
	if len(o.Outputs) > 0 {
		c.Outputs = o.Outputs
	}
	if o.StatsTTLSeconds > 0 {
		c.StatsTTLSeconds = o.StatsTTLSeconds
	}
	if len(o.SkipPaths) > 0 {
		c.SkipPaths = o.SkipPaths
	}
	if o.GeoIPPath != "" {
		c.GeoIPPath = o.GeoIPPath
	}
	if o.LogLevel != "" {
		c.LogLevel = o.LogLevel
	}
	if o.LogPath != "" {
		c.LogPath = o.LogPath
	}
}
