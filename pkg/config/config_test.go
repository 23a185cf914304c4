package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := New()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "localhost:9000", cfg.Connection.Address)
	assert.Equal(t, "lz4", cfg.Compression.Method)
	assert.True(t, cfg.Compression.Enabled)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing address", func(c *Config) { c.Connection.Address = "" }},
		{"missing database", func(c *Config) { c.Connection.Database = "" }},
		{"bad compression method", func(c *Config) { c.Compression.Method = "gzip" }},
		{"negative retries", func(c *Config) { c.Reliability.RetryAttempts = -1 }},
		{"negative block limit", func(c *Config) { c.Connection.MaxBlockBytes = -1 }},
		{"shrinking backoff", func(c *Config) { c.Reliability.RetryMultiplier = 0.5 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := New()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadFile(t *testing.T) {
	t.Setenv("CH_TEST_PASSWORD", "hunter2")

	path := filepath.Join(t.TempDir(), "client.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
connection:
  address: ch-prod:9000
  database: analytics
  username: reader
  password: ${CH_TEST_PASSWORD}
timeouts:
  dial: 3s
compression:
  enabled: true
  method: zstd
settings:
  max_block_size: "65536"
`), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ch-prod:9000", cfg.Connection.Address)
	assert.Equal(t, "hunter2", cfg.Connection.Password)
	assert.Equal(t, 3*time.Second, cfg.Timeouts.Dial)
	assert.Equal(t, "zstd", cfg.Compression.Method)
	assert.Equal(t, "65536", cfg.Settings["max_block_size"])

	// defaults survive for sections the file does not mention
	assert.Equal(t, 30*time.Second, cfg.Timeouts.Read)
	assert.Equal(t, 3, cfg.Reliability.RetryAttempts)
}

func TestLoadFileRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
connection:
  address: ""
`), 0o600))

	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := New()
	cfg.Connection.Address = "somewhere:9000"

	path := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, Save(path, cfg))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Connection.Address, loaded.Connection.Address)
}
