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

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		env     map[string]string
		check   func(t *testing.T, cfg *Config)
		wantErr string
	}{
		{
			name: "file over defaults",
			yaml: `
postgres:
  dsn: postgres://inne@localhost/inne
cle:
  hash_password: salt
  forward: false
simulator:
  path: /usr/bin/nsim
  timeout: 3s
`,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "postgres://inne@localhost/inne", cfg.Postgres.DSN)
				assert.Equal(t, "salt", cfg.CLE.HashPassword)
				assert.False(t, cfg.CLE.Forward)
				assert.True(t, cfg.CLE.IntegrityChecks)
				assert.Equal(t, 3*time.Second, cfg.Simulator.Timeout)
				assert.Equal(t, int64(1), cfg.Simulator.Concurrency)
				assert.Equal(t, ":8126", cfg.HTTP.Address)
			},
		},
		{
			name: "environment overrides file",
			yaml: "postgres:\n  dsn: postgres://file\n",
			env: map[string]string{
				"DATABASE_URL":     "postgres://env",
				"NPP_HASH":         "pepper",
				"CLE_FORWARD":      "false",
				"INTEGRITY_CHECKS": "0",
				"MAPPACKS_DIR":     "/srv/maps",
				"HTTP_ADDRESS":     ":9000",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "postgres://env", cfg.Postgres.DSN)
				assert.Equal(t, "pepper", cfg.CLE.HashPassword)
				assert.False(t, cfg.CLE.Forward)
				assert.False(t, cfg.CLE.IntegrityChecks)
				assert.Equal(t, "/srv/maps", cfg.Mappacks.Dir)
				assert.Equal(t, ":9000", cfg.HTTP.Address)
			},
		},
		{
			name:    "bad boolean",
			yaml:    "postgres:\n  dsn: postgres://file\n",
			env:     map[string]string{"CLE_FORWARD": "sometimes"},
			wantErr: "CLE_FORWARD",
		},
		{
			name:    "missing dsn",
			yaml:    "cle:\n  forward: true\n",
			env:     map[string]string{"DATABASE_URL": ""},
			wantErr: "dsn",
		},
		{
			name:    "malformed yaml",
			yaml:    "postgres: [",
			wantErr: "unmarshal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := LoadConfig(writeConfig(t, tt.yaml))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoadConfigWithoutFile(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://only-env")
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "postgres://only-env", cfg.Postgres.DSN)
	assert.Equal(t, Default().CLE, cfg.CLE)
}

func TestToObsConfig(t *testing.T) {
	cfg := Default()
	cfg.Log.File = "/var/log/inne.log"
	cfg.Observability.Environment = "prod"
	obs := ToObsConfig(&cfg)
	assert.Equal(t, "inne", obs.ServiceName)
	assert.Equal(t, "prod", obs.Environment)
	assert.Equal(t, "/var/log/inne.log", obs.LogFile)
	assert.Equal(t, 100, obs.LogMaxSizeMB)
}
