package app

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docverify/internal/platform/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	t.Setenv("SOURCE_DIR", filepath.Join(t.TempDir(), "sources"))
	t.Setenv("RESULT_DIR", filepath.Join(t.TempDir(), "runs"))
	cfg, err := config.FromEnv()
	require.NoError(t, err)
	cfg.Storage.SourceBackend = "fs"
	cfg.Storage.ResultBackend = "fs"
	cfg.Jobs.Backend = "memory"
	cfg.Kafka.Brokers = nil
	cfg.ReferenceDataFile = ""
	cfg.Redis.URL = ""
	cfg.RateLimit.Requests = 10
	return cfg
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestBuildWithLocalBackends(t *testing.T) {
	ctx := context.Background()
	a, err := Build(ctx, testConfig(t), discard(), WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)

	assert.NotNil(t, a.Orchestrator)
	assert.NotNil(t, a.Results)
	require.NotNil(t, a.Jobs)
	assert.NotNil(t, a.RateLimit)
	assert.Empty(t, a.HealthChecks)

	names := make([]string, 0, 3)
	for _, s := range a.Breakers.Snapshots() {
		names = append(names, s.Name)
	}
	assert.ElementsMatch(t, []string{"ocr", "llm_classify", "llm_extract"}, names)

	require.NoError(t, a.Close(ctx))
}

func TestBuildWithoutJobs(t *testing.T) {
	a, err := Build(context.Background(), testConfig(t), discard(),
		WithRegisterer(prometheus.NewRegistry()), WithoutJobs())
	require.NoError(t, err)
	assert.Nil(t, a.Jobs)
	assert.Nil(t, a.RateLimit)
	require.NoError(t, a.Close(context.Background()))
}

func TestBuildFailsOnUnreachablePostgres(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.ResultBackend = "postgres"
	cfg.Postgres.URL = ""

	_, err := Build(context.Background(), cfg, discard(), WithRegisterer(prometheus.NewRegistry()))
	require.ErrorContains(t, err, "DATABASE_URL")
}

func TestLoadCatalog(t *testing.T) {
	cfg := testConfig(t)
	catalog, err := LoadCatalog(cfg)
	require.NoError(t, err)
	assert.True(t, catalog.Known("pregnancy_certificate"))

	cfg.ReferenceDataFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = LoadCatalog(cfg)
	require.Error(t, err)
}
