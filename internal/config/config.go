// Package config provides configuration management for the entropy-sts-engine
// application. Defaults are applied first, then an optional YAML file, then
// environment variable overrides, and the final result is validated.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment constants define the application runtime environments.
const (
	EnvironmentDevelopment = "dev"
	EnvironmentProduction  = "prod"

	defaultAlpha           = 0.01
	defaultUniformityBins  = 10
	defaultUniformityLevel = 0.0001
	defaultBitStreams      = 1000
	defaultBitLength       = 1048576 // 2^20 bits per stream, the customary suite default
	defaultPartitions      = 1
	defaultResultsDir      = "results"
	defaultMetricsBind     = "127.0.0.1:8080"
	defaultSourceSeed      = 1
)

// Source selection modes.
const (
	SourceFile      = "file"
	SourceMQTT      = "mqtt"
	SourceGenerator = "generator"
)

// Run holds the qualification run parameters consumed by the test drivers.
type Run struct {
	Alpha           float64 `yaml:"alpha"`            // per-iteration significance level, in (0, 1)
	UniformityBins  int     `yaml:"uniformity_bins"`  // histogram bins for the uniformity check
	UniformityLevel float64 `yaml:"uniformity_level"` // minimum acceptable uniformity p-value
	BitStreams      int64   `yaml:"bitstreams"`       // number of bitstreams (iterations) to run
	BitLength       int64   `yaml:"bit_length"`       // bits per bitstream (n)
	Threads         int     `yaml:"threads"`          // worker thread count
	Partitions      int     `yaml:"partitions"`       // p-value partitions for interleaved reporting
	LegacyOutput    bool    `yaml:"legacy_output"`    // reproduce the legacy report wording
	StatsOutput     bool    `yaml:"stats_output"`     // write stats.txt / results.txt / data*.txt
	ResultsDir      string  `yaml:"results_dir"`      // root directory for per-test result files
}

// Source selects where bitstreams come from.
type Source struct {
	Mode   string `yaml:"mode"`   // "file", "mqtt", or "generator"
	Path   string `yaml:"path"`   // input file for mode "file"
	Format string `yaml:"format"` // "ascii" or "raw" for mode "file"
	Seed   int64  `yaml:"seed"`   // seed for mode "generator"
}

// MQTT contains configuration for the broker the device under test
// publishes its raw output to.
type MQTT struct {
	BrokerURL      string        `yaml:"broker_url"` // e.g. "tcp://127.0.0.1:1883" or "ssl://mqtt.example.com:8883"
	ClientID       string        `yaml:"client_id"`  // auto-generated if empty
	Topics         []string      `yaml:"topics"`     // topic filters carrying raw entropy bytes
	QoS            byte          `yaml:"qos"`        // 0 or 1
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	TLSCAFile      string        `yaml:"tls_ca_file"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// Metrics contains Prometheus metrics server configuration.
type Metrics struct {
	Enabled bool   `yaml:"enabled"`
	Bind    string `yaml:"bind"`
}

// Config holds the complete application configuration.
type Config struct {
	Run         Run     `yaml:"run"`
	Source      Source  `yaml:"source"`
	MQTT        MQTT    `yaml:"mqtt"`
	Metrics     Metrics `yaml:"metrics"`
	Environment string  `yaml:"environment"`
}

// Load builds the configuration: safe defaults, then the YAML file named by
// STS_CONFIG_FILE (if any), then environment variable overrides. Returns an
// error if the result fails validation.
func Load() (Config, error) {
	configuration := Config{
		Run: Run{
			Alpha:           defaultAlpha,
			UniformityBins:  defaultUniformityBins,
			UniformityLevel: defaultUniformityLevel,
			BitStreams:      defaultBitStreams,
			BitLength:       defaultBitLength,
			Threads:         runtime.NumCPU(),
			Partitions:      defaultPartitions,
			StatsOutput:     true,
			ResultsDir:      defaultResultsDir,
		},
		Source: Source{
			Mode:   SourceGenerator,
			Format: "ascii",
			Seed:   defaultSourceSeed,
		},
		MQTT: MQTT{
			BrokerURL:      "tcp://127.0.0.1:1883",
			Topics:         []string{"rng/output/#"},
			QoS:            0,
			ConnectTimeout: 10 * time.Second,
		},
		Metrics: Metrics{
			Enabled: true,
			Bind:    defaultMetricsBind,
		},
		Environment: EnvironmentDevelopment,
	}

	if err := applyConfigFile(&configuration); err != nil {
		return configuration, err
	}

	applyRunEnvVars(&configuration)
	applySourceEnvVars(&configuration)
	if err := applyMQTTEnvVars(&configuration); err != nil {
		return configuration, err
	}
	applyMetricsEnvVars(&configuration)
	if err := applyEnvironmentEnvVars(&configuration); err != nil {
		return configuration, err
	}

	if err := validate(&configuration); err != nil {
		return configuration, err
	}

	return configuration, nil
}

// applyConfigFile merges the YAML file named by STS_CONFIG_FILE over the
// defaults. A missing variable means no file is used; a named but unreadable
// or malformed file is an error.
func applyConfigFile(configuration *Config) error {
	path := GetEnvDefault("STS_CONFIG_FILE", "")
	if path == "" {
		return nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read STS_CONFIG_FILE: %w", err)
	}
	if err := yaml.Unmarshal(raw, configuration); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	log.Printf("config: loaded %s", path)
	return nil
}

// applyRunEnvVars reads the qualification run environment variables.
func applyRunEnvVars(configuration *Config) {
	configuration.Run.Alpha = ParseUnitFloatEnv("STS_ALPHA", configuration.Run.Alpha)
	configuration.Run.UniformityBins = ParsePositiveEnvInt("STS_UNIFORMITY_BINS", configuration.Run.UniformityBins)
	configuration.Run.UniformityLevel = ParseUnitFloatEnv("STS_UNIFORMITY_LEVEL", configuration.Run.UniformityLevel)
	configuration.Run.BitStreams = ParsePositiveEnvInt64("STS_BITSTREAMS", configuration.Run.BitStreams)
	configuration.Run.BitLength = ParsePositiveEnvInt64("STS_BITSTREAM_LENGTH", configuration.Run.BitLength)
	configuration.Run.Threads = ParsePositiveEnvInt("STS_THREADS", configuration.Run.Threads)
	configuration.Run.Partitions = ParsePositiveEnvInt("STS_PARTITIONS", configuration.Run.Partitions)
	configuration.Run.LegacyOutput = ParseBoolEnv("STS_LEGACY_OUTPUT", configuration.Run.LegacyOutput)
	configuration.Run.StatsOutput = ParseBoolEnv("STS_STATS_OUTPUT", configuration.Run.StatsOutput)
	configuration.Run.ResultsDir = GetEnvDefault("STS_RESULTS_DIR", configuration.Run.ResultsDir)
}

// applySourceEnvVars reads the bitstream source environment variables.
func applySourceEnvVars(configuration *Config) {
	if v := GetEnvDefault("SOURCE_MODE", ""); v != "" {
		configuration.Source.Mode = strings.ToLower(v)
	}
	configuration.Source.Path = GetEnvDefault("SOURCE_PATH", configuration.Source.Path)
	if v := GetEnvDefault("SOURCE_FORMAT", ""); v != "" {
		configuration.Source.Format = strings.ToLower(v)
	}
	configuration.Source.Seed = ParseInt64Env("SOURCE_SEED", configuration.Source.Seed)
}

// applyMQTTEnvVars reads MQTT environment variables. MQTT_BROKER_URL picks
// the broker, MQTT_TOPICS controls the subscription filters
// (comma-separated), and MQTT_QOS clamps QoS to 0 or 1.
func applyMQTTEnvVars(configuration *Config) error {
	configuration.MQTT.BrokerURL = GetEnvDefault("MQTT_BROKER_URL", configuration.MQTT.BrokerURL)
	configuration.MQTT.ClientID = GetEnvDefault("MQTT_CLIENT_ID", configuration.MQTT.ClientID)

	if v := os.Getenv("MQTT_TOPICS"); v != "" {
		var topics []string
		for _, topic := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(topic); trimmed != "" {
				topics = append(topics, trimmed)
			}
		}
		if len(topics) > 0 {
			configuration.MQTT.Topics = topics
		}
	}

	if v := GetEnvDefault("MQTT_QOS", ""); v != "" {
		qos, err := strconv.Atoi(v)
		if err != nil {
			return errors.New("config: MQTT_QOS must be a number (0 or 1)")
		}
		if qos < 0 {
			qos = 0
		}
		if qos > 1 {
			qos = 1
		}
		configuration.MQTT.QoS = byte(qos)
	}

	configuration.MQTT.Username = GetEnvDefault("MQTT_USERNAME", configuration.MQTT.Username)
	configuration.MQTT.Password = GetEnvDefault("MQTT_PASSWORD", configuration.MQTT.Password)

	// Read password from file if MQTT_PASSWORD_FILE is set (more secure).
	if passwordFile := os.Getenv("MQTT_PASSWORD_FILE"); passwordFile != "" {
		passwordBytes, err := os.ReadFile(passwordFile)
		if err != nil {
			return fmt.Errorf("config: failed to read MQTT_PASSWORD_FILE: %w", err)
		}
		configuration.MQTT.Password = strings.TrimSpace(string(passwordBytes))
	}

	configuration.MQTT.TLSCAFile = GetEnvDefault("MQTT_TLS_CA_FILE", configuration.MQTT.TLSCAFile)
	configuration.MQTT.ConnectTimeout = ParseDurationEnv("MQTT_CONNECT_TIMEOUT", configuration.MQTT.ConnectTimeout)

	return nil
}

// applyMetricsEnvVars reads the Prometheus metrics server environment
// variables.
func applyMetricsEnvVars(configuration *Config) {
	configuration.Metrics.Enabled = ParseBoolEnv("METRICS_ENABLED", configuration.Metrics.Enabled)
	configuration.Metrics.Bind = GetEnvDefault("METRICS_BIND", configuration.Metrics.Bind)
}

// applyEnvironmentEnvVars normalizes ENVIRONMENT into "dev" or "prod".
// Valid inputs are "dev"/"development" and "prod"/"production"; other values
// error out.
func applyEnvironmentEnvVars(configuration *Config) error {
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "dev", "development":
			configuration.Environment = EnvironmentDevelopment
		case "prod", "production":
			configuration.Environment = EnvironmentProduction
		default:
			return errors.New("config: ENVIRONMENT must be 'dev' or 'prod'")
		}
	}
	return nil
}

// validate checks that required configuration fields are present and valid.
func validate(configuration *Config) error {
	run := &configuration.Run
	if run.Alpha <= 0 || run.Alpha >= 1 {
		return fmt.Errorf("config: STS_ALPHA must be inside (0, 1), got %g", run.Alpha)
	}
	if run.UniformityBins <= 0 {
		return fmt.Errorf("config: STS_UNIFORMITY_BINS must be positive, got %d", run.UniformityBins)
	}
	if run.UniformityLevel <= 0 || run.UniformityLevel >= 1 {
		return fmt.Errorf("config: STS_UNIFORMITY_LEVEL must be inside (0, 1), got %g", run.UniformityLevel)
	}
	if run.BitStreams <= 0 {
		return fmt.Errorf("config: STS_BITSTREAMS must be positive, got %d", run.BitStreams)
	}
	if run.BitLength <= 0 {
		return fmt.Errorf("config: STS_BITSTREAM_LENGTH must be positive, got %d", run.BitLength)
	}
	if run.Threads <= 0 {
		return fmt.Errorf("config: STS_THREADS must be positive, got %d", run.Threads)
	}
	if run.Partitions < 1 {
		return fmt.Errorf("config: STS_PARTITIONS must be at least 1, got %d", run.Partitions)
	}
	if run.StatsOutput && run.ResultsDir == "" {
		return errors.New("config: STS_RESULTS_DIR is required when STS_STATS_OUTPUT=true")
	}

	switch configuration.Source.Mode {
	case SourceFile:
		if configuration.Source.Path == "" {
			return errors.New("config: SOURCE_PATH is required when SOURCE_MODE=file")
		}
		if configuration.Source.Format != "ascii" && configuration.Source.Format != "raw" {
			return fmt.Errorf("config: SOURCE_FORMAT must be 'ascii' or 'raw', got %q", configuration.Source.Format)
		}
	case SourceMQTT:
		if configuration.MQTT.BrokerURL == "" {
			return errors.New("config: MQTT_BROKER_URL is required when SOURCE_MODE=mqtt")
		}
		if len(configuration.MQTT.Topics) == 0 {
			return errors.New("config: MQTT_TOPICS is required (at least one topic)")
		}
	case SourceGenerator:
		// no extra requirements
	default:
		return fmt.Errorf("config: SOURCE_MODE must be 'file', 'mqtt', or 'generator', got %q", configuration.Source.Mode)
	}

	if configuration.Environment != EnvironmentDevelopment && configuration.Environment != EnvironmentProduction {
		return errors.New("config: environment must be 'dev' or 'prod'")
	}

	return nil
}

// IsProduction returns true if the application is running in production mode.
func (cfg *Config) IsProduction() bool {
	return cfg.Environment == EnvironmentProduction
}

// IsDevelopment returns true if the application is running in development mode.
func (cfg *Config) IsDevelopment() bool {
	return cfg.Environment == EnvironmentDevelopment
}

// String returns a human-readable summary of the configuration.
func (cfg *Config) String() string {
	return fmt.Sprintf("Config{Environment=%s, Source.Mode=%s, Run.BitStreams=%d, Run.BitLength=%d, Run.Threads=%d}",
		cfg.Environment, cfg.Source.Mode, cfg.Run.BitStreams, cfg.Run.BitLength, cfg.Run.Threads)
}

// cleanEnvValue removes inline comments and trims whitespace from
// environment variable values, handling systemd EnvironmentFile format where
// inline comments are included in the value.
func cleanEnvValue(value string) string {
	cleaned := strings.TrimSpace(value)
	if idx := strings.Index(cleaned, "#"); idx >= 0 {
		cleaned = strings.TrimSpace(cleaned[:idx])
	}
	return cleaned
}

// GetEnvDefault retrieves an environment variable or returns a fallback
// value. Empty or whitespace-only values are treated as unset. Inline
// comments (e.g., "value # comment") are stripped.
func GetEnvDefault(key string, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		if cleaned := cleanEnvValue(value); cleaned != "" {
			return cleaned
		}
	}
	return fallback
}

// ParsePositiveEnvInt reads an integer environment variable with validation.
// Returns the fallback if the variable is unset, invalid, or non-positive.
func ParsePositiveEnvInt(key string, fallback int) int {
	return int(ParsePositiveEnvInt64(key, int64(fallback)))
}

// ParsePositiveEnvInt64 reads a 64-bit integer environment variable with
// validation. Returns the fallback if the variable is unset, invalid, or
// non-positive. Invalid values are logged before falling back.
func ParsePositiveEnvInt64(key string, fallback int64) int64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	cleaned := cleanEnvValue(value)
	if cleaned == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		log.Printf("config: %s invalid (%q), using fallback %d", key, value, fallback)
		return fallback
	}
	if parsed <= 0 {
		log.Printf("config: %s non-positive (%d), using fallback %d", key, parsed, fallback)
		return fallback
	}
	return parsed
}

// ParseInt64Env reads a 64-bit integer environment variable, allowing any
// sign. Returns the fallback if the variable is unset or invalid.
func ParseInt64Env(key string, fallback int64) int64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	cleaned := cleanEnvValue(value)
	if cleaned == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		log.Printf("config: %s invalid (%q), using fallback %d", key, value, fallback)
		return fallback
	}
	return parsed
}

// ParseUnitFloatEnv reads a float environment variable expected to lie
// strictly inside (0, 1). Returns the fallback if the variable is unset,
// invalid, or out of range.
func ParseUnitFloatEnv(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	cleaned := cleanEnvValue(value)
	if cleaned == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		log.Printf("config: %s invalid (%q), using fallback %g", key, value, fallback)
		return fallback
	}
	if parsed <= 0 || parsed >= 1 {
		log.Printf("config: %s out of range (%g), using fallback %g", key, parsed, fallback)
		return fallback
	}
	return parsed
}

// ParseDurationEnv reads a duration environment variable with validation.
// Values must include a unit suffix (e.g., "500ms", "30s", "5m"). Returns
// the fallback if the variable is unset, invalid, or negative.
func ParseDurationEnv(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	cleaned := cleanEnvValue(value)
	if cleaned == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(cleaned)
	if err != nil {
		log.Printf("config: %s invalid (%q), using fallback %s", key, value, fallback)
		return fallback
	}
	if parsed < 0 {
		log.Printf("config: %s negative (%s), using fallback %s", key, parsed, fallback)
		return fallback
	}
	return parsed
}

// ParseBoolEnv interprets typical boolean environment values (true/false,
// 1/0, yes/no). Inline comments are stripped.
func ParseBoolEnv(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	cleaned := cleanEnvValue(value)
	if cleaned == "" {
		return fallback
	}
	switch strings.ToLower(cleaned) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		log.Printf("config: %s has unrecognised boolean value %q, using fallback %v", key, value, fallback)
		return fallback
	}
}
