package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
	assert.Equal(t, "any", cfg.Search.FilterMode)
	assert.InDelta(t, 1.2, cfg.Search.BM25K1, 1e-9)
	assert.InDelta(t, 0.75, cfg.Search.BM25B, 1e-9)
	assert.Equal(t, "file", cfg.History.Sink)
	assert.Equal(t, "query-history", cfg.Kafka.Topics.QueryHistory)
	assert.Equal(t, 60*time.Second, cfg.Redis.CacheTTL)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9999
search:
  filterMode: all
  defaultLimit: 25
history:
  sink: none
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "all", cfg.Search.FilterMode)
	assert.Equal(t, 25, cfg.Search.DefaultLimit)
	assert.Equal(t, "none", cfg.History.Sink)
	// Untouched sections keep defaults.
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CS_SERVER_PORT", "7070")
	t.Setenv("CS_SEARCH_FILTER_MODE", "all")
	t.Setenv("CS_HISTORY_SINK", "kafka")
	t.Setenv("CS_KAFKA_BROKERS", "broker1:9092,broker2:9092")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "all", cfg.Search.FilterMode)
	assert.Equal(t, "kafka", cfg.History.Sink)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.Kafka.Brokers)
}

func TestLoadRejectsInvalidFilterMode(t *testing.T) {
	t.Setenv("CS_SEARCH_FILTER_MODE", "sometimes")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadRejectsInvalidSink(t *testing.T) {
	t.Setenv("CS_HISTORY_SINK", "tape")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{
		Host: "db", Port: 5432, Database: "catalog",
		User: "svc", Password: "secret", SSLMode: "disable",
	}
	assert.Equal(t,
		"host=db port=5432 user=svc password=secret dbname=catalog sslmode=disable",
		p.DSN())
}
