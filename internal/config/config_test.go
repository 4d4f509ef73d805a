package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte("app:\n  name: niqatech\n"))
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, StorageLocal, cfg.Storage.Driver)
	assert.Equal(t, WritebackSync, cfg.Grades.Writeback)
	assert.Equal(t, []string{".xls", ".xlsx"}, cfg.Upload.AllowedExtensions)
	assert.Equal(t, int64(10<<20), cfg.Upload.MaxSize)
	assert.Equal(t, ":dlq", cfg.Redis.DLQSuffix)
	assert.Equal(t, 30*time.Second, cfg.Redis.LockTTL)
	assert.Equal(t, 4, cfg.Workers.Rewrite.Count)
}

func TestParseExpandsEnvironment(t *testing.T) {
	t.Setenv("NIQATECH_DB_PASSWORD", "s3cret")
	cfg, err := Parse([]byte("database:\n  password: ${NIQATECH_DB_PASSWORD}\n  user: app\n"))
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Database.Password)
	assert.Contains(t, cfg.DatabaseDSN(), "app:s3cret@tcp(")
}

func TestParseNormalizesExtensions(t *testing.T) {
	cfg, err := Parse([]byte("upload:\n  allowed_extensions: [XLS, .xlsx]\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{".xls", ".xlsx"}, cfg.Upload.AllowedExtensions)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown driver", "storage:\n  driver: ftp\n"},
		{"s3 without bucket", "storage:\n  driver: s3\n"},
		{"unknown writeback", "grades:\n  writeback: later\n"},
		{"negative template row", "template:\n  header_row: -1\n"},
		{"bad yaml", "server: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadFromConfigPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o644))
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
}
