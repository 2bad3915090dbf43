package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "data", cfg.CacheDir)
	assert.Equal(t, 60*time.Second, cfg.USGSTimeout)
	assert.Equal(t, "America/Denver", cfg.LocalTZ)
	require.NotNil(t, cfg.Location)
	assert.Equal(t, 30, cfg.Features.WindowSize)
	assert.Equal(t, 7, cfg.Features.MinPeriods)
	assert.Equal(t, 3.0, cfg.Features.ZThreshold)
	assert.Equal(t, 1.5, cfg.GapTolerance)
	assert.False(t, cfg.KafkaEnabled)
	assert.Equal(t, "river-gauge-anomalies", cfg.KafkaAnomalyTopic)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("CACHE_DIR", "/var/cache/river")
	t.Setenv("USGS_TIMEOUT", "15s")
	t.Setenv("LOCAL_TZ", "America/Phoenix")
	t.Setenv("ANOMALY_WINDOW", "20")
	t.Setenv("ANOMALY_MIN_PERIODS", "5")
	t.Setenv("ANOMALY_Z_THRESHOLD", "2.5")
	t.Setenv("FEATURE_LAG_STEPS", "1")
	t.Setenv("GAP_TOLERANCE", "2.0")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_ANOMALY_TOPIC", "custom-anomalies")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "/var/cache/river", cfg.CacheDir)
	assert.Equal(t, 15*time.Second, cfg.USGSTimeout)
	assert.Equal(t, "America/Phoenix", cfg.LocalTZ)
	assert.Equal(t, 20, cfg.Features.WindowSize)
	assert.Equal(t, 5, cfg.Features.MinPeriods)
	assert.Equal(t, 2.5, cfg.Features.ZThreshold)
	assert.Equal(t, 1, cfg.Features.LagSteps)
	assert.Equal(t, 2.0, cfg.GapTolerance)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-anomalies", cfg.KafkaAnomalyTopic)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidUSGSTimeout(t *testing.T) {
	t.Setenv("USGS_TIMEOUT", "bad")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "USGS_TIMEOUT")
}

func TestLoad_NegativeUSGSTimeout(t *testing.T) {
	t.Setenv("USGS_TIMEOUT", "-5s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "USGS_TIMEOUT")
}

func TestLoad_InvalidTimezone(t *testing.T) {
	t.Setenv("LOCAL_TZ", "Mars/Olympus_Mons")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOCAL_TZ")
}

func TestLoad_InvalidAnomalyWindow(t *testing.T) {
	t.Setenv("ANOMALY_WINDOW", "1")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ANOMALY_WINDOW")
}

func TestLoad_MinPeriodsAboveWindow(t *testing.T) {
	t.Setenv("ANOMALY_WINDOW", "10")
	t.Setenv("ANOMALY_MIN_PERIODS", "20")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ANOMALY_MIN_PERIODS")
}

func TestLoad_InvalidZThreshold(t *testing.T) {
	t.Setenv("ANOMALY_Z_THRESHOLD", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ANOMALY_Z_THRESHOLD")
}

func TestLoad_GapToleranceBelowOne(t *testing.T) {
	t.Setenv("GAP_TOLERANCE", "0.5")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GAP_TOLERANCE")
}
