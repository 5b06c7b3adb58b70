package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Retry.InitialDelay)
	assert.Equal(t, 5, cfg.Breaker.FailureThreshold)
	assert.Equal(t, 85.0, cfg.Matcher.Threshold)
	assert.Equal(t, 40, cfg.DefaultValidityDays)
	assert.Equal(t, "fs", cfg.Storage.SourceBackend)
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("DOCVERIFY_ADDR", ":9090")
	t.Setenv("RETRY_MAX_ATTEMPTS", "5")
	t.Setenv("BREAKER_TIMEOUT", "15s")
	t.Setenv("FIO_FUZZY_THRESHOLD", "90.5")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("RESULT_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/docverify")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 15*time.Second, cfg.Breaker.Timeout)
	assert.Equal(t, 90.5, cfg.Matcher.Threshold)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
}

func TestFromEnvReportsEveryMalformedVariable(t *testing.T) {
	t.Setenv("RETRY_MAX_ATTEMPTS", "three")
	t.Setenv("BREAKER_TIMEOUT", "soon")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RETRY_MAX_ATTEMPTS")
	assert.Contains(t, err.Error(), "BREAKER_TIMEOUT")
}

func TestValidate(t *testing.T) {
	t.Setenv("RESULT_BACKEND", "postgres")
	t.Setenv("JOB_BACKEND", "redis")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL is required")
	assert.Contains(t, err.Error(), "REDIS_URL is required")
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("DOCVERIFY_TEST_DOTENV=loaded\n"), 0o600))
	t.Setenv("DOCVERIFY_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("DOCVERIFY_TEST_DOTENV"))

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "loaded", os.Getenv("DOCVERIFY_TEST_DOTENV"))

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))
}
