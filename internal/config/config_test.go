package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/pwcheck/pkg/security"
)

// chdirTemp runs the test from an empty directory so no stray config.yaml is picked up.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("PWCHECK_CONFIG_FILE", "")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 8085, cfg.Server.Port)
	assert.Equal(t, ":8085", cfg.Addr())
	assert.Equal(t, "memory", cfg.Session.Driver)
	assert.Equal(t, "pwcheck_session", cfg.Session.CookieName)
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
	assert.Equal(t, "sha256-crypt", cfg.Hashing.Algorithm)
	assert.Equal(t, security.DefaultSHA256CryptRounds, cfg.Hashing.SHA256Rounds)
	assert.True(t, cfg.Monitoring.PrometheusEnabled)
	assert.Equal(t, "/metrics", cfg.Monitoring.MetricsPath)
}

func TestLoadConfig_File(t *testing.T) {
	dir := chdirTemp(t)
	writeConfig(t, dir, `
server:
  port: 9090
  read_timeout: 20s
log:
  level: DEBUG
  format: json
hashing:
  algorithm: bcrypt
  bcrypt_cost: 10
session:
  ttl: 5m
`)

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 20*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 5*time.Minute, cfg.Session.TTL)

	hc := cfg.HasherConfig()
	assert.Equal(t, security.AlgorithmBcrypt, hc.Algorithm)
	assert.Equal(t, 10, hc.BcryptCost)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)
	path := writeConfig(t, dir, "server:\n  port: 9090\n")

	t.Setenv("PWCHECK_PORT", "7000")
	t.Setenv("PWCHECK_HASH_ALGORITHM", "argon2id")
	t.Setenv("PWCHECK_SESSION_TTL", "90s")
	t.Setenv("PWCHECK_METRICS_ENABLED", "false")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "argon2id", cfg.Hashing.Algorithm)
	assert.Equal(t, 90*time.Second, cfg.Session.TTL)
	assert.False(t, cfg.Monitoring.PrometheusEnabled)
}

func TestLoadConfig_ExplicitFileMissing(t *testing.T) {
	chdirTemp(t)

	_, err := LoadConfig("/does/not/exist.yaml")
	assert.Error(t, err)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown algorithm", map[string]string{"PWCHECK_HASH_ALGORITHM": "md5"}},
		{"rounds below minimum", map[string]string{"PWCHECK_SHA256_ROUNDS": "10"}},
		{"unknown session driver", map[string]string{"PWCHECK_SESSION_DRIVER": "etcd"}},
		{"redis without url", map[string]string{"PWCHECK_SESSION_DRIVER": "redis"}},
		{"bad port", map[string]string{"PWCHECK_PORT": "70000"}},
		{"unparsable env", map[string]string{"PWCHECK_PORT": "eighty"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdirTemp(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig("")
			assert.Error(t, err)
		})
	}
}

func TestSessionStoreConfig(t *testing.T) {
	chdirTemp(t)
	t.Setenv("PWCHECK_SESSION_DRIVER", "redis")
	t.Setenv("PWCHECK_REDIS_URL", "redis://localhost:6379/0")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	sc := cfg.SessionStoreConfig()
	assert.Equal(t, "redis", sc.Driver)
	assert.Equal(t, "redis://localhost:6379/0", sc.Redis.URL)
	assert.Equal(t, "pwcheck:session", sc.Redis.Prefix)
	assert.Equal(t, cfg.Session.TTL, sc.Redis.TTL)
}

func TestLoadConfig_Argon2Bounds(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"parallelism too high", "hashing:\n  argon2:\n    parallelism: 200\n"},
		{"memory too high", "hashing:\n  argon2:\n    memory_kib: 8388608\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := chdirTemp(t)
			writeConfig(t, dir, tt.body)

			_, err := LoadConfig("")
			assert.Error(t, err)
		})
	}
}
