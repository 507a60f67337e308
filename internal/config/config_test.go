package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapLookup(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestFromEnv(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		want    func(*Config)
		wantErr bool
	}{
		{name: "defaults", env: map[string]string{}},
		{
			name: "overrides",
			env: map[string]string{
				"SIGMATCH_LOG_LEVEL":             "DEBUG",
				"SIGMATCH_LOG_PRETTY":            "false",
				"SIGMATCH_PROGRESS_INTERVAL":     "10",
				"SIGMATCH_CANCEL_CHECK_INTERVAL": "0",
				"SIGMATCH_DISCOVER":              "0",
				"SIGMATCH_OUTPUT":                "renames.json",
			},
			want: func(c *Config) {
				c.LogLevel = "debug"
				c.LogPretty = false
				c.ProgressInterval = 10
				c.CancelCheckInterval = 0
				c.Discover = false
				c.Output = "renames.json"
			},
		},
		{name: "blank-ignored", env: map[string]string{"SIGMATCH_PROGRESS_INTERVAL": "  "}},
		{name: "bad-bool", env: map[string]string{"SIGMATCH_LOG_PRETTY": "maybe"}, wantErr: true},
		{name: "bad-int", env: map[string]string{"SIGMATCH_PROGRESS_INTERVAL": "ten"}, wantErr: true},
		{name: "zero-progress", env: map[string]string{"SIGMATCH_PROGRESS_INTERVAL": "0"}, wantErr: true},
		{name: "negative-cancel", env: map[string]string{"SIGMATCH_CANCEL_CHECK_INTERVAL": "-1"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromEnv(mapLookup(tt.env))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			want := Default()
			if tt.want != nil {
				tt.want(&want)
			}
			assert.Equal(t, want, got)
		})
	}
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("SIGMATCH_PROGRESS_INTERVAL=7\n"), 0o644))

	// godotenv never overrides variables that are already set.
	t.Setenv("SIGMATCH_PROGRESS_INTERVAL", "")
	require.NoError(t, os.Unsetenv("SIGMATCH_PROGRESS_INTERVAL"))
	t.Setenv("SIGMATCH_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.ProgressInterval)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoad_MissingEnvFile(t *testing.T) {
	t.Setenv("SIGMATCH_DISCOVER", "false")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
	assert.False(t, cfg.Discover)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Default().Validate())

	c := Default()
	c.ProgressInterval = 0
	assert.Error(t, c.Validate())
}
