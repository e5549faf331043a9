package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	Reset()
	defer Reset()

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, SchemaVersion, cfg.Version)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "auto", cfg.Log.Format)
	assert.Equal(t, 2048, cfg.Render.TokenBudget)
	assert.Equal(t, 15, cfg.Render.SuffixPercent)
	assert.Equal(t, "\n", cfg.Render.Delimiter)
	assert.Equal(t, 10, cfg.Render.SuffixSimilarityThreshold)
	assert.Equal(t, "approx", cfg.Tokenizer.Kind)
	assert.Equal(t, 7*24*time.Hour, cfg.Storage.Retention)
	assert.True(t, cfg.Storage.Journal)
	assert.Equal(t, "127.0.0.1:8765", cfg.Server.Addr())
	assert.Equal(t, 100*time.Millisecond, cfg.Watch.Debounce)
}

func TestLoad_FromFile(t *testing.T) {
	Reset()
	defer Reset()

	path := writeConfig(t, `
version: "1.2.0"
render:
  token_budget: 512
  split_context: true
server:
  port: 9000
log:
  level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 512, cfg.Render.TokenBudget)
	assert.True(t, cfg.Render.SplitContext)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
	// 未在文件中指定的值使用默认值
	assert.Equal(t, 15, cfg.Render.SuffixPercent)
	assert.Equal(t, path, Path())
}

func TestLoad_EnvOverride(t *testing.T) {
	Reset()
	defer Reset()

	path := writeConfig(t, "server:\n  port: 9000\n")
	t.Setenv("PROMPTKIT_SERVER_PORT", "7777")
	t.Setenv("PROMPTKIT_RENDER_SUFFIX_PERCENT", "30")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.Port, "env wins over file")
	assert.Equal(t, 30, cfg.Render.SuffixPercent)
}

func TestLoad_IncompatibleVersion(t *testing.T) {
	tests := []struct {
		name    string
		version string
	}{
		{name: "newer major", version: "2.0.0"},
		{name: "not semver", version: "latest"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Reset()
			defer Reset()

			_, err := Load(writeConfig(t, "version: \""+tt.version+"\"\n"))
			assert.True(t, errors.Is(err, ErrIncompatibleVersion), "got %v", err)
		})
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	Reset()
	defer Reset()

	_, err := Load(writeConfig(t, "render: [unclosed\n"))
	assert.Error(t, err)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	Reset()
	defer Reset()

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 2048, cfg.Render.TokenBudget)
}

func TestSetAndSave(t *testing.T) {
	Reset()
	defer Reset()

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	_, err := Load(path)
	require.NoError(t, err)

	require.NoError(t, Set("render.token_budget", 4096))
	assert.Equal(t, 4096, GetInt("render.token_budget"))

	err = Set("render.no_such_key", 1)
	assert.Error(t, err)

	Reset()
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4096, cfg.Render.TokenBudget, "value persisted to file")
}

func TestGetConfig(t *testing.T) {
	Reset()
	defer Reset()

	assert.Nil(t, GetConfig())

	_, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, GetConfig())
	assert.Equal(t, "127.0.0.1", GetString("server.host"))
	assert.NotNil(t, Get("server.port"))
	assert.Contains(t, AllSettings(), "render")
}

func TestDefaultPaths(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	dir, err := DefaultConfigDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, DirName), dir)

	cfgPath, err := DefaultConfigPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, DirName, "config.yaml"), cfgPath)

	dbPath, err := DefaultDatabasePath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, DirName, "renders.db"), dbPath)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	tests := []struct {
		input string
		want  string
	}{
		{input: "", want: ""},
		{input: "~", want: home},
		{input: "~/a/b", want: filepath.Join(home, "a/b")},
		{input: "/abs/path", want: "/abs/path"},
		{input: "rel/path", want: "rel/path"},
		{input: "/some/~/path", want: "/some/~/path"},
	}
	for _, tt := range tests {
		got, err := ExpandPath(tt.input)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.input)
	}
}
