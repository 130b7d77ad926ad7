package config

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_ReloadsOnContentChange(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.toml", `commands = ["cat"]`)

	w, err := NewWatcher(path)
	require.NoError(t, err)
	w.settle = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, func(c *Config) { changes <- c }) }()

	// Give the watcher a moment to start receiving events.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(`commands = ["wc -l", "sort"]`), 0o644))

	select {
	case cfg := <-changes:
		assert.Equal(t, []string{"wc -l", "sort"}, cfg.Commands)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	// Rewriting identical content must not fire again.
	require.NoError(t, os.WriteFile(path, []byte(`commands = ["wc -l", "sort"]`), 0o644))
	select {
	case cfg := <-changes:
		t.Fatalf("unexpected reload with %v", cfg.Commands)
	case <-time.After(300 * time.Millisecond):
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcher_IgnoresBrokenAndOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.toml", `commands = ["cat"]`)

	w, err := NewWatcher(path)
	require.NoError(t, err)
	w.settle = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	go func() { _ = w.Run(ctx, func(c *Config) { changes <- c }) }()
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.toml"), []byte(`commands = ["x"]`), 0o644))
	require.NoError(t, os.WriteFile(path, []byte(`commands = [`), 0o644))

	select {
	case cfg := <-changes:
		t.Fatalf("unexpected reload with %v", cfg.Commands)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_LogsWarningsOnce(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.toml", `commands = ["cat"]`)

	w, err := NewWatcher(path)
	require.NoError(t, err)
	w.settle = 20 * time.Millisecond
	var buf bytes.Buffer
	w.logger = slog.New(slog.NewJSONHandler(&buf, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	go func() { _ = w.Run(ctx, func(c *Config) { changes <- c }) }()
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("commands = [\"wc\"]\ncolour = \"red\"\n"), 0o644))

	select {
	case cfg := <-changes:
		require.Len(t, cfg.Warnings, 1)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
	assert.Equal(t, 1, strings.Count(buf.String(), `"msg":"config warning"`))
	assert.Contains(t, buf.String(), "colour")
}
