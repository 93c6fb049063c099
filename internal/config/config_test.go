package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("ENV_FILE", filepath.Join(dir, "missing.env"))
	t.Setenv("CONFIG_FILE", filepath.Join(dir, "missing.toml"))
	return dir
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "selectedimg", cfg.Storage.Dir)
	assert.Equal(t, int64(10<<20), cfg.Storage.MaxUploadBytes)
	assert.Equal(t, "remote", cfg.Predictor.Backend)
	assert.Equal(t, "0.0.0.0:3001", cfg.HTTPAddr())
	assert.False(t, cfg.MySQL.Enabled)
	assert.Equal(t, []string{"*"}, cfg.Origins())
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := isolate(t)

	path := filepath.Join(dir, "config.toml")
	content := `
[app]
port = 9000
allow_origins = "http://a.test, http://b.test"

[storage]
dir = "/var/lib/discus"
max_upload_bytes = 2048

[predictor]
backend = "mock"
mock_delay_ms = 0

[redis]
enabled = true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("APP_PORT", "9100")
	t.Setenv("REDIS_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.App.Port)
	assert.Equal(t, "/var/lib/discus", cfg.Storage.Dir)
	assert.Equal(t, int64(2048), cfg.Storage.MaxUploadBytes)
	assert.Equal(t, "mock", cfg.Predictor.Backend)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Origins())
}

func TestLoadDotEnv(t *testing.T) {
	dir := isolate(t)

	envPath := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envPath, []byte("PREDICTOR_BACKEND=onnx\n"), 0o644))
	t.Setenv("ENV_FILE", envPath)
	// godotenv does not override variables already present in the environment.
	t.Cleanup(func() { os.Unsetenv("PREDICTOR_BACKEND") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "onnx", cfg.Predictor.Backend)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	isolate(t)
	t.Setenv("PREDICTOR_BACKEND", "tflite")

	_, err := Load()
	assert.ErrorContains(t, err, "unknown predictor backend")
}

func TestGetEnvAsIntFallback(t *testing.T) {
	t.Setenv("SOME_INT", "not-a-number")
	assert.Equal(t, 7, getEnvAsInt("SOME_INT", 7))
	t.Setenv("SOME_INT", "42")
	assert.Equal(t, 42, getEnvAsInt("SOME_INT", 7))
}
