package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/couchcryptid/river-gauge-etl/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Cache configuration.
	CacheDir string

	// USGS fetch configuration.
	USGSTimeout time.Duration

	// Display timezone for naive local timestamps.
	LocalTZ  string
	Location *time.Location

	// Feature and gap-diagnostic parameters.
	Features     domain.FeatureParams
	GapTolerance float64

	// Site catalog override file ({"usgs_sources": {label: site}}).
	SitesConfig string

	// Kafka anomaly sink (feature-flagged via KAFKA_ENABLED).
	KafkaEnabled      bool
	KafkaBrokers      []string
	KafkaAnomalyTopic string
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	usgsTimeoutStr := sharedcfg.EnvOrDefault("USGS_TIMEOUT", "60s")
	usgsTimeout, err := time.ParseDuration(usgsTimeoutStr)
	if err != nil || usgsTimeout <= 0 {
		return nil, errors.New("invalid USGS_TIMEOUT")
	}

	localTZ := sharedcfg.EnvOrDefault("LOCAL_TZ", "America/Denver")
	loc, err := time.LoadLocation(localTZ)
	if err != nil {
		return nil, fmt.Errorf("invalid LOCAL_TZ %q: %w", localTZ, err)
	}

	features, err := parseFeatureParams()
	if err != nil {
		return nil, err
	}

	gapTolerance, err := parseFloatEnv("GAP_TOLERANCE", domain.DefaultGapTolerance)
	if err != nil {
		return nil, err
	}
	if gapTolerance < 1 {
		return nil, errors.New("GAP_TOLERANCE must be at least 1")
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		CacheDir:    sharedcfg.EnvOrDefault("CACHE_DIR", "data"),
		USGSTimeout: usgsTimeout,

		LocalTZ:  localTZ,
		Location: loc,

		Features:     features,
		GapTolerance: gapTolerance,

		SitesConfig: sharedcfg.EnvOrDefault("SITES_CONFIG", "config.json"),

		KafkaEnabled:      os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:      sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaAnomalyTopic: sharedcfg.EnvOrDefault("KAFKA_ANOMALY_TOPIC", "river-gauge-anomalies"),
	}

	if cfg.CacheDir == "" {
		return nil, errors.New("CACHE_DIR is required")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}

	return cfg, nil
}

func parseFeatureParams() (domain.FeatureParams, error) {
	p := domain.DefaultFeatureParams()

	window, err := parseIntEnv("ANOMALY_WINDOW", p.WindowSize)
	if err != nil || window < 2 {
		return p, errors.New("invalid ANOMALY_WINDOW")
	}
	minPeriods, err := parseIntEnv("ANOMALY_MIN_PERIODS", p.MinPeriods)
	if err != nil || minPeriods < 2 || minPeriods > window {
		return p, errors.New("invalid ANOMALY_MIN_PERIODS")
	}
	threshold, err := parseFloatEnv("ANOMALY_Z_THRESHOLD", p.ZThreshold)
	if err != nil || threshold <= 0 {
		return p, errors.New("invalid ANOMALY_Z_THRESHOLD")
	}
	lags, err := parseIntEnv("FEATURE_LAG_STEPS", p.LagSteps)
	if err != nil || lags < 0 {
		return p, errors.New("invalid FEATURE_LAG_STEPS")
	}

	p.WindowSize = window
	p.MinPeriods = minPeriods
	p.ZThreshold = threshold
	p.LagSteps = lags
	return p, nil
}

func parseIntEnv(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func parseFloatEnv(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
