package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "keys/private_key.pem", cfg.Keys.PrivateKeyPath)
	assert.Equal(t, "keys/public_key.pem", cfg.Keys.PublicKeyPath)
	assert.Equal(t, int64(16<<20), cfg.Limits.MaxUploadBytes)
	assert.Equal(t, 30*time.Second, cfg.Limits.RequestTimeout)
	assert.Equal(t, "local", cfg.Storage.Backend)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.GetServerAddr())
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"server": {"port": 9000},
		"storage": {"backend": "s3", "s3": {"bucket": "from-file"}},
		"limits": {"max_upload_bytes": 1024}
	}`), 0o600))

	t.Setenv("S3_BUCKET", "from-env")
	t.Setenv("REQUEST_TIMEOUT", "5s")
	t.Setenv("CLEANUP_ENABLED", "false")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "s3", cfg.Storage.Backend)
	assert.Equal(t, "from-env", cfg.Storage.S3.Bucket)
	assert.Equal(t, int64(1024), cfg.Limits.MaxUploadBytes)
	assert.Equal(t, 5*time.Second, cfg.Limits.RequestTimeout)
	assert.False(t, cfg.Cleanup.Enabled)
}

func TestLoadConfigEnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("JWT_SECRET=from-dotenv\n"), 0o600))
	t.Setenv("JWT_SECRET", "")
	os.Unsetenv("JWT_SECRET")

	cfg, err := LoadConfig("", envFile, filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Security.JWTSecret)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	cases := map[string]map[string]string{
		"bad port":        {"SERVER_PORT": "eighty"},
		"port range":      {"SERVER_PORT": "70000"},
		"bad duration":    {"REQUEST_TIMEOUT": "soon"},
		"unknown backend": {"STORAGE_BACKEND": "ftp"},
		"s3 no bucket":    {"STORAGE_BACKEND": "s3"},
		"zero upload":     {"MAX_UPLOAD_BYTES": "0"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("S3_BUCKET", "")
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig("")
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigRejectsBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"server":`), 0o600))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}
