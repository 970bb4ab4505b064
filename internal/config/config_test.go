package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "log:\n  level: debug\n"))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, 3, cfg.Fulfillment.MaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.Fulfillment.Timeout)
	assert.Equal(t, BrokerNone, cfg.Events.Broker)
	assert.Equal(t, ExporterNone, cfg.Tracing.Exporter)
	assert.Equal(t, "8080", cfg.Server.HTTP.Port)
}

func TestLoad_FileValues(t *testing.T) {
	path := writeConfig(t, `
storage:
  driver: postgres
  postgres:
    host: db
    port: 6432
    user: app
    password: secret
    db: orders
fulfillment:
  max_attempts: 5
  timeout: 750ms
events:
  broker: kafka
  kafka:
    brokers: ["k1:9092", "k2:9092"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, "host=db port=6432 user=app password=secret dbname=orders sslmode=disable", cfg.Storage.Postgres.DSN())
	assert.Equal(t, 5, cfg.Fulfillment.MaxAttempts)
	assert.Equal(t, 750*time.Millisecond, cfg.Fulfillment.Timeout)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Events.Kafka.Brokers)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("FULFILLMENT_STORAGE_POSTGRES_PASSWORD", "from-env")
	t.Setenv("FULFILLMENT_FULFILLMENT_MAX_ATTEMPTS", "7")

	cfg, err := Load(writeConfig(t, "storage:\n  driver: postgres\n"))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Storage.Postgres.Password)
	assert.Equal(t, 7, cfg.Fulfillment.MaxAttempts)
}

func TestLoad_RejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"driver":   "storage:\n  driver: oracle\n",
		"broker":   "events:\n  broker: nats\n",
		"exporter": "tracing:\n  exporter: zipkin\n",
		"attempts": "fulfillment:\n  max_attempts: 0\n",
		"no relay": "events:\n  outbox:\n    max_retries: 0\n",
		"retries":  "events:\n  outbox:\n    max_retries: 1000\n",
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			require.Error(t, err)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
