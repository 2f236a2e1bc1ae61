package app

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg, err := NewConfig(Config{ProjectDir: "/project"})
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.True(t, cfg.Development())
	assert.Equal(t, filepath.Join("/project", "dist"), cfg.Dest)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestNewConfig_Validation(t *testing.T) {
	testCases := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "missing project dir", cfg: Config{}, wantErr: "ProjectDir is a required"},
		{name: "unknown env", cfg: Config{ProjectDir: "p", Env: "staging"}, wantErr: `unknown environment "staging"`},
		{name: "negative debounce", cfg: Config{ProjectDir: "p", Debounce: -1}, wantErr: "debounce must not be negative"},
		{name: "port out of range", cfg: Config{ProjectDir: "p", Port: 70000}, wantErr: "port must be between"},
		{name: "negative workers", cfg: Config{ProjectDir: "p", WorkerCount: -2}, wantErr: "worker count must not be negative"},
		{name: "bad log format", cfg: Config{ProjectDir: "p", LogFormat: "xml"}, wantErr: "invalid log format"},
		{name: "bad log level", cfg: Config{ProjectDir: "p", LogLevel: "loud"}, wantErr: "loud"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewConfig(tc.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestNewConfig_Production(t *testing.T) {
	cfg, err := NewConfig(Config{ProjectDir: "p", Env: "production", Dest: "s3://bucket/site"})
	require.NoError(t, err)
	assert.False(t, cfg.Development())
	assert.Equal(t, "s3://bucket/site", cfg.Dest)
}
