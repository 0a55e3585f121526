package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "proposals/pkg/domain-errors"
	"proposals/pkg/testutil"
)

func lookup(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestParseDefaults(t *testing.T) {
	cfg, err := parse(lookup(nil))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.False(t, cfg.UsesPostgres())
	assert.Equal(t, devSigningKey, cfg.JWTSigningKey)
	assert.Equal(t, 5*time.Second, cfg.TxTimeout)
	assert.Equal(t, 4, cfg.Notification.Workers)
	assert.Equal(t, uint64(5), cfg.Notification.MaxRetries)
	assert.Equal(t, time.Minute, cfg.Redis.ReviewerTTL)
	assert.Empty(t, cfg.Tracing.OTLPEndpoint)
	assert.Equal(t, 1.0, cfg.Tracing.SampleRate)
	assert.Equal(t, "proposals", cfg.Tracing.ServiceName)
}

func TestParseOverrides(t *testing.T) {
	cfg, err := parse(lookup(map[string]string{
		"PROPOSALS_ADDR":     ":9090",
		"DATABASE_URL":       "postgres://u:p@db/proposals?sslmode=disable",
		"JWT_SIGNING_KEY":    "s3cret",
		"REDIS_URL":          "redis://cache:6379/0",
		"REVIEWER_CACHE_TTL": "30s",
		"NOTIFY_WORKERS":     "8",
		"TX_TIMEOUT":         "2s",
		"REVIEWER_IDS":       " a , ,b",

		"OTEL_EXPORTER_OTLP_ENDPOINT": "collector:4317",
		"OTEL_EXPORTER_OTLP_INSECURE": "true",
		"OTEL_TRACES_SAMPLE_RATE":     "0.25",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.True(t, cfg.UsesPostgres())
	assert.Equal(t, "s3cret", cfg.JWTSigningKey)
	assert.Equal(t, "redis://cache:6379/0", cfg.Redis.URL)
	assert.Equal(t, 30*time.Second, cfg.Redis.ReviewerTTL)
	assert.Equal(t, 8, cfg.Notification.Workers)
	assert.Equal(t, 2*time.Second, cfg.TxTimeout)
	assert.Equal(t, []string{"a", "b"}, cfg.ReviewerIDs)
	assert.Equal(t, "collector:4317", cfg.Tracing.OTLPEndpoint)
	assert.True(t, cfg.Tracing.Insecure)
	assert.Equal(t, 0.25, cfg.Tracing.SampleRate)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
	}{
		{"postgres without signing key", map[string]string{"DATABASE_URL": "postgres://db"}},
		{"non-numeric workers", map[string]string{"NOTIFY_WORKERS": "many"}},
		{"zero workers", map[string]string{"NOTIFY_WORKERS": "0"}},
		{"bad duration", map[string]string{"TX_TIMEOUT": "soon"}},
		{"negative timeout", map[string]string{"TX_TIMEOUT": "-1s"}},
		{"bad insecure flag", map[string]string{"OTEL_EXPORTER_OTLP_INSECURE": "maybe"}},
		{"sample rate above one", map[string]string{"OTEL_TRACES_SAMPLE_RATE": "1.5"}},
		{"non-numeric sample rate", map[string]string{"OTEL_TRACES_SAMPLE_RATE": "all"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse(lookup(tt.vars))
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}
}

func TestFromEnvLoadsDotEnv(t *testing.T) {
	testutil.Given(t, "a .env file in the working directory", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
			[]byte("PROPOSALS_ADDR=:7000\nNOTIFY_QUEUE_SIZE=32\n"), 0o600))
		t.Chdir(dir)
		t.Setenv("PROPOSALS_ADDR", ":9000")
		t.Cleanup(func() { _ = os.Unsetenv("NOTIFY_QUEUE_SIZE") })

		testutil.When(t, "the config is loaded", func(t *testing.T) {
			cfg, err := FromEnv()
			require.NoError(t, err)

			testutil.Then(t, "unset keys come from the file", func(t *testing.T) {
				assert.Equal(t, 32, cfg.Notification.QueueSize)
			})
			testutil.Then(t, "the process environment wins", func(t *testing.T) {
				assert.Equal(t, ":9000", cfg.Addr)
			})
		})
	})

	testutil.Given(t, "no .env file", func(t *testing.T) {
		t.Chdir(t.TempDir())
		_, err := FromEnv()
		assert.NoError(t, err)
	})
}
