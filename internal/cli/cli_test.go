package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/specialistvlad/burstbuild/internal/watch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	t.Setenv(EnvVar, "")
	dir := t.TempDir()
	out := &bytes.Buffer{}

	cfg, shouldExit, err := Parse([]string{dir}, out)
	require.NoError(t, err)
	require.False(t, shouldExit)

	assert.Equal(t, dir, cfg.ProjectDir)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, filepath.Join(dir, "dist"), cfg.Dest)
	assert.Equal(t, watch.DefaultDebounce, cfg.Debounce)
	assert.False(t, cfg.Watch)
	assert.False(t, cfg.Strict)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestParse_Flags(t *testing.T) {
	dir := t.TempDir()
	cfg, _, err := Parse([]string{
		"-env", "production",
		"-dest", "s3://site/www",
		"-p", "build.hcl",
		"-watch",
		"-port", "35729",
		"-debounce", "250ms",
		"-strict",
		"-workers", "3",
		"-log-format", "JSON",
		"-log-level", "DEBUG",
		dir,
	}, &bytes.Buffer{})
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, "s3://site/www", cfg.Dest)
	assert.Equal(t, "build.hcl", cfg.PipelinePath)
	assert.True(t, cfg.Watch)
	assert.Equal(t, 35729, cfg.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.Debounce)
	assert.True(t, cfg.Strict)
	assert.Equal(t, 3, cfg.WorkerCount)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestParse_EnvResolution(t *testing.T) {
	testCases := []struct {
		name    string
		flag    string
		process string
		dotenv  string
		want    string
	}{
		{name: "default", want: "development"},
		{name: "dotenv", dotenv: "BURSTBUILD_ENV=production\n", want: "production"},
		{name: "process over dotenv", process: "development", dotenv: "BURSTBUILD_ENV=production\n", want: "development"},
		{name: "flag over process", flag: "production", process: "development", want: "production"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(EnvVar, tc.process)
			dir := t.TempDir()
			if tc.dotenv != "" {
				require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(tc.dotenv), 0o644))
			}
			args := []string{dir}
			if tc.flag != "" {
				args = append([]string{"-env", tc.flag}, args...)
			}

			cfg, _, err := Parse(args, &bytes.Buffer{})
			require.NoError(t, err)
			assert.Equal(t, tc.want, cfg.Env)
		})
	}
}

func TestParse_Help(t *testing.T) {
	out := &bytes.Buffer{}
	cfg, shouldExit, err := Parse([]string{"-h"}, out)
	require.NoError(t, err)
	assert.True(t, shouldExit)
	assert.Nil(t, cfg)
	assert.Contains(t, out.String(), "Usage:")
	assert.Contains(t, out.String(), "-watch")
}

func TestParse_Errors(t *testing.T) {
	t.Setenv(EnvVar, "")
	dir := t.TempDir()
	file := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	testCases := []struct {
		name    string
		args    []string
		wantMsg string
	}{
		{name: "unknown flag", args: []string{"--nope"}, wantMsg: "flag provided but not defined: -nope"},
		{name: "too many args", args: []string{dir, dir}, wantMsg: "expected at most one project directory"},
		{name: "missing project", args: []string{filepath.Join(dir, "missing")}, wantMsg: "project directory"},
		{name: "project is a file", args: []string{file}, wantMsg: "is not a directory"},
		{name: "bad env", args: []string{"-env", "staging", dir}, wantMsg: `unknown environment "staging"`},
		{name: "bad log format", args: []string{"-log-format", "xml", dir}, wantMsg: "invalid log format"},
		{name: "bad log level", args: []string{"-log-level", "loud", dir}, wantMsg: "invalid log level"},
		{name: "bad port", args: []string{"-port", "99999", dir}, wantMsg: "port must be between"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, shouldExit, err := Parse(tc.args, &bytes.Buffer{})
			require.Error(t, err)
			assert.False(t, shouldExit)
			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
			assert.Contains(t, exitErr.Message, tc.wantMsg)
		})
	}
}
