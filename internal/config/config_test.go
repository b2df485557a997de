package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/widgetsync/internal/errors"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "localhost:8050", cfg.Server.Addr())
	assert.Equal(t, []string{"localhost:*", "127.0.0.1:*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 10*time.Second, cfg.Socket.RequestTimeout)
	assert.Equal(t, 30*time.Second, cfg.Socket.PingInterval)
	assert.Equal(t, "layout.yml", cfg.Layout.Path)
	assert.True(t, cfg.Layout.Watch)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFrom(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(v *viper.Viper)
		expectError bool
		check       func(t *testing.T, cfg *Config)
	}{
		{
			name: "overrides",
			setup: func(v *viper.Viper) {
				v.Set("server.port", 9000)
				v.Set("store.driver", "sqlite")
				v.Set("store.path", "widgets.db")
				v.Set("socket.request_timeout", "2s")
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9000, cfg.Server.Port)
				assert.Equal(t, "sqlite", cfg.Store.Driver)
				assert.Equal(t, 2*time.Second, cfg.Socket.RequestTimeout)
			},
		},
		{
			name: "unknown driver",
			setup: func(v *viper.Viper) {
				v.Set("store.driver", "redis")
			},
			expectError: true,
		},
		{
			name: "file driver needs a path",
			setup: func(v *viper.Viper) {
				v.Set("store.driver", "file")
			},
			expectError: true,
		},
		{
			name: "port out of range",
			setup: func(v *viper.Viper) {
				v.Set("server.port", 70000)
			},
			expectError: true,
		},
		{
			name: "bad socket url",
			setup: func(v *viper.Viper) {
				v.Set("socket.url", "http://localhost/socket")
			},
			expectError: true,
		},
		{
			name: "bad log level",
			setup: func(v *viper.Viper) {
				v.Set("log.level", "loud")
			},
			expectError: true,
		},
		{
			name: "undecodable port",
			setup: func(v *viper.Viper) {
				v.Set("server.port", "invalid_port")
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			SetDefaults(v)
			tt.setup(v)

			cfg, err := LoadFrom(v)
			if tt.expectError {
				require.Error(t, err)
				assert.Nil(t, cfg)
				assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestInitReadsFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "custom.yml")
	require.NoError(t, os.WriteFile(file, []byte(`
server:
  port: 7000
  title: Demo
store:
  driver: file
  path: cache.json
`), 0o644))

	t.Setenv("WIDGETSYNC_SERVER_HOST", "0.0.0.0")
	t.Setenv("WIDGETSYNC_SERVER_ALLOWED_ORIGINS", "a.example.com, b.example.com")

	v := viper.New()
	require.NoError(t, Init(v, file))
	cfg, err := LoadFrom(v)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "Demo", cfg.Server.Title)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, []string{"a.example.com", "b.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "file", cfg.Store.Driver)
}

func TestInitMissingFiles(t *testing.T) {
	t.Chdir(t.TempDir())

	require.NoError(t, Init(viper.New(), ""), "a missing default file is fine")

	err := Init(viper.New(), "missing.yml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), errors.ErrCodeConfigInvalid)
}

func TestValidateWarnings(t *testing.T) {
	cfg := Default()
	cfg.Server.AllowedOrigins = []string{"*"}
	cfg.Server.Port = 80
	cfg.Layout.Path = "layout.json"

	result := Validate(cfg)
	assert.False(t, result.HasErrors())
	assert.True(t, result.HasWarnings())
	assert.Len(t, result.Warnings, 3)
	assert.Contains(t, result.String(), "server.allowed_origins[0]")
}
