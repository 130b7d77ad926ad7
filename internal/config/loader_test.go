package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr bool
		checkFn func(t *testing.T, cfg *Config)
	}{
		{
			name: "full toml config",
			file: "config.toml",
			content: `
title = "Text tools"
run_commands_on_change = true
commands = ["wc -l", "sort -r", "tr a-z A-Z"]
debounce = "150ms"
max_output = "64 KiB"
grace_period = "1s"
log_level = "debug"
`,
			checkFn: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "Text tools", cfg.Title)
				assert.True(t, cfg.RunCommandsOnChange)
				assert.Equal(t, []string{"wc -l", "sort -r", "tr a-z A-Z"}, cfg.Commands)
				assert.Equal(t, 150*time.Millisecond, cfg.Debounce.Duration)
				assert.Equal(t, ByteSize(64*1024), cfg.MaxOutput)
				assert.Equal(t, time.Second, cfg.GracePeriod.Duration)
				assert.Equal(t, "debug", cfg.LogLevel)
				assert.Empty(t, cfg.Warnings)
			},
		},
		{
			name:    "minimal toml gets defaults",
			file:    "config.toml",
			content: `commands = ["cat"]`,
			checkFn: func(t *testing.T, cfg *Config) {
				assert.Equal(t, DefaultTitle, cfg.Title)
				assert.False(t, cfg.RunCommandsOnChange)
				assert.Equal(t, DefaultDebounce, cfg.Debounce.Duration)
				assert.Equal(t, ByteSize(DefaultMaxOutput), cfg.MaxOutput)
				assert.Equal(t, DefaultGracePeriod, cfg.GracePeriod.Duration)
				assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
			},
		},
		{
			name: "yaml config",
			file: "config.yaml",
			content: `
title: From YAML
run_commands_on_change: true
commands:
  - wc -w
debounce: 300ms
`,
			checkFn: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "From YAML", cfg.Title)
				assert.True(t, cfg.RunCommandsOnChange)
				assert.Equal(t, []string{"wc -w"}, cfg.Commands)
				assert.Equal(t, 300*time.Millisecond, cfg.Debounce.Duration)
			},
		},
		{
			name:    "empty commands fall back with warning",
			file:    "config.toml",
			content: `title = "x"`,
			checkFn: func(t *testing.T, cfg *Config) {
				assert.Equal(t, DefaultCommands, cfg.Commands)
				require.Len(t, cfg.Warnings, 1)
				assert.Contains(t, cfg.Warnings[0], "no commands")
			},
		},
		{
			name: "out of range values clamp to defaults",
			file: "config.toml",
			content: `
commands = ["cat"]
debounce = "1ms"
grace_period = "5m"
max_output = "10 B"
`,
			checkFn: func(t *testing.T, cfg *Config) {
				assert.Equal(t, DefaultDebounce, cfg.Debounce.Duration)
				assert.Equal(t, DefaultGracePeriod, cfg.GracePeriod.Duration)
				assert.Equal(t, ByteSize(DefaultMaxOutput), cfg.MaxOutput)
				assert.Len(t, cfg.Warnings, 3)
			},
		},
		{
			name: "unknown keys are reported",
			file: "config.toml",
			content: `
commands = ["cat"]
colour = "red"
`,
			checkFn: func(t *testing.T, cfg *Config) {
				require.Len(t, cfg.Warnings, 1)
				assert.Contains(t, cfg.Warnings[0], "colour")
			},
		},
		{
			name:    "env interpolation in log file",
			file:    "config.toml",
			content: `log_file = "${PUTPUT_TEST_LOGDIR}/p.log"`,
			checkFn: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "/var/tmp/p.log", cfg.LogFile)
			},
		},
		{
			name:    "malformed toml",
			file:    "config.toml",
			content: `commands = ["cat"`,
			wantErr: true,
		},
		{
			name:    "invalid duration",
			file:    "config.toml",
			content: `debounce = "soon"`,
			wantErr: true,
		},
	}

	t.Setenv("PUTPUT_TEST_LOGDIR", "/var/tmp")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), tt.file, tt.content)

			cfg, err := Load(path)
			if tt.wantErr {
				require.Error(t, err)
				var le *LoadError
				assert.True(t, errors.As(err, &le), "want *LoadError, got %T", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, path, cfg.Path)
			if tt.checkFn != nil {
				tt.checkFn(t, cfg)
			}
		})
	}
}

func TestLoadOrInit_CreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "putput", "config.toml")

	cfg, err := LoadOrInit(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultCommands, cfg.Commands)

	_, statErr := os.Stat(path)
	require.NoError(t, statErr, "default config should have been written")

	// The written template must load back to the defaults.
	loaded, err := Load(path)
	require.NoError(t, err)
	want := Defaults()
	assert.Equal(t, want.Title, loaded.Title)
	assert.Equal(t, want.Commands, loaded.Commands)
	assert.Equal(t, want.Debounce, loaded.Debounce)
	assert.Equal(t, want.MaxOutput, loaded.MaxOutput)
	assert.Equal(t, want.GracePeriod, loaded.GracePeriod)
	assert.Empty(t, loaded.Warnings)
}

func TestLoadOrInit_BrokenFileKeepsDefaultsAndFile(t *testing.T) {
	dir := t.TempDir()
	broken := `commands = [`
	path := writeFile(t, dir, "config.toml", broken)

	cfg, err := LoadOrInit(path)
	require.Error(t, err)
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, DefaultCommands, cfg.Commands)

	data, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Equal(t, broken, string(data), "broken config must not be overwritten")
}

func TestWriteDefault_RefusesOverwrite(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.toml", `commands = ["cat"]`)

	err := WriteDefault(path, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	require.NoError(t, WriteDefault(path, true))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultCommands, cfg.Commands)
}

func TestDiscoverPath(t *testing.T) {
	t.Setenv("PUTPUT_CONFIG", "")
	assert.Equal(t, "/explicit.toml", DiscoverPath("/explicit.toml"))

	t.Setenv("PUTPUT_CONFIG", "/from/env.toml")
	assert.Equal(t, "/from/env.toml", DiscoverPath(""))

	t.Setenv("PUTPUT_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	got := DiscoverPath("")
	assert.True(t, strings.HasSuffix(got, filepath.Join("putput", "config.toml")), got)
}

func TestEncodeRoundTrip(t *testing.T) {
	def := Defaults()
	def.RunCommandsOnChange = true
	def.Commands = []string{`grep -i "hello world"`}

	data, err := Encode(def)
	require.NoError(t, err)

	path := writeFile(t, t.TempDir(), "config.toml", string(data))
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, def.Commands, got.Commands)
	assert.True(t, got.RunCommandsOnChange)
	assert.Equal(t, def.Debounce, got.Debounce)
	assert.Equal(t, def.MaxOutput, got.MaxOutput)
}

func TestFingerprint(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.toml", `commands = ["cat"]`)
	b := writeFile(t, dir, "b.toml", `commands = ["cat"]`)
	c := writeFile(t, dir, "c.toml", `commands = ["wc"]`)

	fa, err := Fingerprint(a)
	require.NoError(t, err)
	fb, err := Fingerprint(b)
	require.NoError(t, err)
	fc, err := Fingerprint(c)
	require.NoError(t, err)

	assert.Len(t, fa, 64)
	assert.Equal(t, fa, fb)
	assert.NotEqual(t, fa, fc)

	_, err = Fingerprint(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)
}
