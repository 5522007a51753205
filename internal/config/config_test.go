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

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
postgres:
  dsn: "host=db"
kafka:
  brokers: ["k1:9092", "k2:9092"]
  batch_wait: 250ms
countries:
  PE:
    dsn: "host=pe"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, DriverPostgres, cfg.FastPath.Driver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 250*time.Millisecond, cfg.Kafka.BatchWait)
	assert.Equal(t, "appointment-requests", cfg.Kafka.RequestTopic)

	pe, ok := cfg.Country("pe")
	require.True(t, ok)
	assert.Equal(t, "host=pe", pe.DSN)
	_, ok = cfg.Country("CL")
	assert.False(t, ok)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
postgres:
  dsn: "host=db"
countries:
  CL:
    dsn: "host=cl"
`)
	t.Setenv("POSTGRES_PASSWORD", "s3cret")
	t.Setenv("KAFKA_BROKERS", "a:1, b:2,")
	t.Setenv("JWT_SECRET", "signing-key")
	t.Setenv("COUNTRY_CL_DSN", "host=cl-override")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "host=db password=s3cret", cfg.Postgres.DSN)
	assert.Equal(t, []string{"a:1", "b:2"}, cfg.Kafka.Brokers)
	assert.Equal(t, "signing-key", cfg.Auth.JWTSecret)
	cl, _ := cfg.Country("CL")
	assert.Equal(t, "host=cl-override", cl.DSN)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("FASTPATH_DRIVER", DriverMemory)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.FastPath.Driver)
	assert.Equal(t, 10, cfg.Kafka.BatchSize)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"memory driver needs no dsn", func(c *Config) { c.FastPath.Driver = DriverMemory }, false},
		{"postgres driver needs dsn", func(c *Config) { c.FastPath.Driver = DriverPostgres }, true},
		{"dynamo driver needs table", func(c *Config) {
			c.FastPath.Driver = DriverDynamo
			c.FastPath.Dynamo.Table = ""
		}, true},
		{"unknown driver", func(c *Config) { c.FastPath.Driver = "mysql" }, true},
		{"no brokers", func(c *Config) {
			c.FastPath.Driver = DriverMemory
			c.Kafka.Brokers = nil
		}, true},
		{"zero pool", func(c *Config) {
			c.FastPath.Driver = DriverMemory
			c.Worker.PoolSize = 0
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
