package config

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"PORT", "DATA_DIR", "SCHEMA_PATH", "MODEL_DIR", "DATABASE_URL", "LOAD_POSTGRES",
	"AIRFLOW_API_URL", "AIRFLOW_USER", "AIRFLOW_PASS", "GENERATOR_DAG_ID", "PIPELINE_DAG_ID",
	"GEMINI_API_KEY", "GEMINI_MODEL", "BATCH_SIZE", "BATCH_THRESHOLD", "SEED", "SAMPLE_SIZE",
	"POLL_INTERVAL", "RUN_TIMEOUT", "QUERY_TIMEOUT", "READ_TIMEOUT", "WRITE_TIMEOUT",
	"SHUTDOWN_TIMEOUT", "SESSION_TTL", "CORS_ORIGIN", "RATE_LIMIT", "LOG_LEVEL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, "data", c.DataDir)
	assert.Equal(t, "schema.hcl", c.SchemaPath)
	assert.Equal(t, 100_000, c.BatchSize)
	assert.Equal(t, 100_000, c.BatchThreshold)
	assert.Equal(t, int64(42), c.Seed)
	assert.Equal(t, 200_000, c.SampleSize)
	assert.Equal(t, 10*time.Second, c.PollInterval)
	assert.Equal(t, "fraud_detection_ml_pipeline", c.PipelineDAG)
	assert.Equal(t, slog.LevelInfo, c.LogLevel)
	assert.False(t, c.UseAirflow())
	assert.Error(t, c.RequireDatabase())
	assert.Empty(t, c.CurrentDatabase())
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("DATABASE_URL", "postgres://app:secret@db:5432/finance?sslmode=disable")
	t.Setenv("LOAD_POSTGRES", "true")
	t.Setenv("AIRFLOW_API_URL", "http://airflow:8080/api/v1/")
	t.Setenv("BATCH_SIZE", "500")
	t.Setenv("POLL_INTERVAL", "250ms")
	t.Setenv("LOG_LEVEL", "debug")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9000", c.Port)
	assert.True(t, c.LoadPostgres)
	assert.Equal(t, "http://airflow:8080/api/v1", c.AirflowURL)
	assert.True(t, c.UseAirflow())
	assert.Equal(t, 500, c.BatchSize)
	assert.Equal(t, 250*time.Millisecond, c.PollInterval)
	assert.Equal(t, slog.LevelDebug, c.LogLevel)
	assert.NoError(t, c.RequireDatabase())
	assert.Equal(t, "finance", c.CurrentDatabase())
	assert.NotContains(t, c.RedactedDatabaseURL(), "secret")
}

func TestLoadInvalid(t *testing.T) {
	cases := map[string][2]string{
		"bad int":       {"BATCH_SIZE", "many"},
		"zero batch":    {"BATCH_SIZE", "0"},
		"bad duration":  {"RUN_TIMEOUT", "soon"},
		"bad bool":      {"LOAD_POSTGRES", "maybe"},
		"bad level":     {"LOG_LEVEL", "loud"},
		"pg without db": {"LOAD_POSTGRES", "1"},
		"bad sample":    {"SAMPLE_SIZE", "-1"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadErrorNamesVariable(t *testing.T) {
	clearEnv(t)
	t.Setenv("QUERY_TIMEOUT", "forever")
	_, err := Load()
	assert.ErrorContains(t, err, "QUERY_TIMEOUT")
}

func TestNewLogger(t *testing.T) {
	clearEnv(t)
	c, err := Load()
	require.NoError(t, err)

	var buf bytes.Buffer
	c.NewLogger(&buf, true).Debug("hidden")
	c.NewLogger(&buf, true).Info("shown", "k", 1)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}
