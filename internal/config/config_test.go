package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

// clearSuiteEnv unsets every variable Load reads so ambient CI environments
// cannot leak into the assertions.
func clearSuiteEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"STS_CONFIG_FILE", "STS_ALPHA", "STS_UNIFORMITY_BINS", "STS_UNIFORMITY_LEVEL",
		"STS_BITSTREAMS", "STS_BITSTREAM_LENGTH", "STS_THREADS", "STS_PARTITIONS",
		"STS_LEGACY_OUTPUT", "STS_STATS_OUTPUT", "STS_RESULTS_DIR",
		"SOURCE_MODE", "SOURCE_PATH", "SOURCE_FORMAT", "SOURCE_SEED",
		"MQTT_BROKER_URL", "MQTT_CLIENT_ID", "MQTT_TOPICS", "MQTT_QOS",
		"MQTT_USERNAME", "MQTT_PASSWORD", "MQTT_PASSWORD_FILE",
		"MQTT_TLS_CA_FILE", "MQTT_CONNECT_TIMEOUT",
		"METRICS_ENABLED", "METRICS_BIND", "ENVIRONMENT",
	}
	for _, key := range keys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearSuiteEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}

	if cfg.Run.Alpha != 0.01 {
		t.Fatalf("expected default alpha 0.01, got %g", cfg.Run.Alpha)
	}
	if cfg.Run.UniformityBins != 10 {
		t.Fatalf("expected 10 uniformity bins, got %d", cfg.Run.UniformityBins)
	}
	if cfg.Run.BitStreams != 1000 {
		t.Fatalf("expected 1000 bitstreams, got %d", cfg.Run.BitStreams)
	}
	if cfg.Run.BitLength != 1048576 {
		t.Fatalf("expected bit length 1048576, got %d", cfg.Run.BitLength)
	}
	if cfg.Run.Threads != runtime.NumCPU() {
		t.Fatalf("expected NumCPU threads, got %d", cfg.Run.Threads)
	}
	if cfg.Run.Partitions != 1 {
		t.Fatalf("expected 1 partition, got %d", cfg.Run.Partitions)
	}
	if !cfg.Run.StatsOutput {
		t.Fatalf("expected stats output enabled by default")
	}
	if cfg.Source.Mode != SourceGenerator {
		t.Fatalf("expected generator source by default, got %q", cfg.Source.Mode)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Bind != "127.0.0.1:8080" {
		t.Fatalf("expected default metrics config, got %+v", cfg.Metrics)
	}
	if !cfg.IsDevelopment() || cfg.IsProduction() {
		t.Fatalf("expected development environment by default")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearSuiteEnv(t)
	t.Setenv("STS_ALPHA", "0.05")
	t.Setenv("STS_BITSTREAMS", "25")
	t.Setenv("STS_BITSTREAM_LENGTH", "2097152")
	t.Setenv("STS_THREADS", "3")
	t.Setenv("STS_PARTITIONS", "4")
	t.Setenv("STS_LEGACY_OUTPUT", "yes")
	t.Setenv("SOURCE_MODE", "FILE")
	t.Setenv("SOURCE_PATH", "/tmp/device.bin")
	t.Setenv("SOURCE_FORMAT", "RAW")
	t.Setenv("MQTT_TOPICS", " rng/a , rng/b ,")
	t.Setenv("MQTT_QOS", "7")
	t.Setenv("MQTT_CONNECT_TIMEOUT", "30s")
	t.Setenv("ENVIRONMENT", "production")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected overrides to validate, got %v", err)
	}

	if cfg.Run.Alpha != 0.05 {
		t.Fatalf("expected alpha 0.05, got %g", cfg.Run.Alpha)
	}
	if cfg.Run.BitStreams != 25 || cfg.Run.BitLength != 2097152 {
		t.Fatalf("expected overridden stream counts, got %+v", cfg.Run)
	}
	if cfg.Run.Threads != 3 || cfg.Run.Partitions != 4 {
		t.Fatalf("expected threads 3 and partitions 4, got %+v", cfg.Run)
	}
	if !cfg.Run.LegacyOutput {
		t.Fatalf("expected legacy output enabled")
	}
	if cfg.Source.Mode != SourceFile || cfg.Source.Format != "raw" {
		t.Fatalf("expected lowercased file source, got %+v", cfg.Source)
	}
	if len(cfg.MQTT.Topics) != 2 || cfg.MQTT.Topics[0] != "rng/a" || cfg.MQTT.Topics[1] != "rng/b" {
		t.Fatalf("expected trimmed topic list, got %v", cfg.MQTT.Topics)
	}
	if cfg.MQTT.QoS != 1 {
		t.Fatalf("expected QoS clamped to 1, got %d", cfg.MQTT.QoS)
	}
	if cfg.MQTT.ConnectTimeout != 30*time.Second {
		t.Fatalf("expected 30s connect timeout, got %v", cfg.MQTT.ConnectTimeout)
	}
	if !cfg.IsProduction() {
		t.Fatalf("expected production environment")
	}
}

func TestLoadConfigFile(t *testing.T) {
	clearSuiteEnv(t)

	path := filepath.Join(t.TempDir(), "sts.yaml")
	body := `
run:
  alpha: 0.02
  bitstreams: 50
  threads: 2
source:
  mode: generator
  seed: 7
metrics:
  enabled: false
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("STS_CONFIG_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected file config to validate, got %v", err)
	}
	if cfg.Run.Alpha != 0.02 || cfg.Run.BitStreams != 50 || cfg.Run.Threads != 2 {
		t.Fatalf("expected file values applied, got %+v", cfg.Run)
	}
	if cfg.Source.Seed != 7 {
		t.Fatalf("expected seed 7, got %d", cfg.Source.Seed)
	}
	if cfg.Metrics.Enabled {
		t.Fatalf("expected metrics disabled via file")
	}
}

func TestLoadEnvBeatsConfigFile(t *testing.T) {
	clearSuiteEnv(t)

	path := filepath.Join(t.TempDir(), "sts.yaml")
	if err := os.WriteFile(path, []byte("run:\n  bitstreams: 50\n"), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("STS_CONFIG_FILE", path)
	t.Setenv("STS_BITSTREAMS", "75")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected config to validate, got %v", err)
	}
	if cfg.Run.BitStreams != 75 {
		t.Fatalf("expected env override 75 to win, got %d", cfg.Run.BitStreams)
	}
}

func TestLoadValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "file source without path", env: map[string]string{"SOURCE_MODE": "file"}},
		{name: "unknown source mode", env: map[string]string{"SOURCE_MODE": "dice"}},
		{name: "bad environment", env: map[string]string{"ENVIRONMENT": "staging"}},
		{name: "bad qos", env: map[string]string{"MQTT_QOS": "one"}},
		{name: "missing config file", env: map[string]string{"STS_CONFIG_FILE": "/nonexistent/sts.yaml"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clearSuiteEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestEnvHelpers(t *testing.T) {
	clearSuiteEnv(t)

	t.Setenv("HELPER_STR", "  value # systemd style comment ")
	if got := GetEnvDefault("HELPER_STR", "fallback"); got != "value" {
		t.Fatalf("expected cleaned value, got %q", got)
	}
	if got := GetEnvDefault("HELPER_UNSET", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}

	t.Setenv("HELPER_INT", "-5")
	if got := ParsePositiveEnvInt("HELPER_INT", 9); got != 9 {
		t.Fatalf("expected fallback for non-positive value, got %d", got)
	}
	if got := ParseInt64Env("HELPER_INT", 9); got != -5 {
		t.Fatalf("expected signed parse -5, got %d", got)
	}

	t.Setenv("HELPER_FLOAT", "1.5")
	if got := ParseUnitFloatEnv("HELPER_FLOAT", 0.25); got != 0.25 {
		t.Fatalf("expected fallback for out-of-range float, got %g", got)
	}

	t.Setenv("HELPER_BOOL", "on")
	if !ParseBoolEnv("HELPER_BOOL", false) {
		t.Fatalf("expected 'on' to parse as true")
	}
	t.Setenv("HELPER_BOOL", "definitely")
	if ParseBoolEnv("HELPER_BOOL", false) {
		t.Fatalf("expected fallback for unrecognised boolean")
	}

	t.Setenv("HELPER_DUR", "250ms")
	if got := ParseDurationEnv("HELPER_DUR", time.Second); got != 250*time.Millisecond {
		t.Fatalf("expected 250ms, got %v", got)
	}
}
