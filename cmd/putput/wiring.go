package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mattjoyce/putput/internal/command"
	"github.com/mattjoyce/putput/internal/config"
	"github.com/mattjoyce/putput/internal/coordinator"
	"github.com/mattjoyce/putput/internal/dispatch"
	"github.com/mattjoyce/putput/internal/events"
	"github.com/mattjoyce/putput/internal/log"
	"github.com/mattjoyce/putput/internal/runner"
)

// loadConfig resolves and loads the config file. A broken file yields the
// defaults plus the load error, which the caller logs once logging is up.
func loadConfig(opts *rootOptions) (*config.Config, error) {
	path := config.DiscoverPath(opts.configPath)
	cfg, err := config.LoadOrInit(path)
	if cfg == nil {
		return nil, err
	}
	return cfg, err
}

func logLevel(cfg *config.Config, opts *rootOptions, fallback string) string {
	if opts.logLevel != "" {
		return opts.logLevel
	}
	if cfg.LogLevel != "" {
		return cfg.LogLevel
	}
	return fallback
}

// openLogFile opens the log destination for the interactive UI, which owns
// the terminal.
func openLogFile(cfg *config.Config, opts *rootOptions) (*os.File, error) {
	path := opts.logFile
	if path == "" {
		path = cfg.LogFile
	}
	if path == "" {
		path = config.DefaultLogFile()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// reportConfig logs what went wrong while loading, after logging is set up.
func reportConfig(cfg *config.Config, loadErr error) {
	if loadErr != nil {
		log.Error("config could not be loaded, using defaults", "path", cfg.Path, "error", loadErr)
	}
	for _, w := range cfg.Warnings {
		log.Warn("config warning", "path", cfg.Path, "warning", w)
	}
}

// parseCommands builds the command set. Unparsable entries keep their slot
// and report the error when run.
func parseCommands(raws []string) command.Set {
	set, err := command.ParseAll(raws)
	if err != nil {
		log.Warn("some commands could not be parsed", "error", err)
	}
	return set
}

func newCoordinator(cfg *config.Config, set command.Set, autoRun bool, clip coordinator.Clipboard, hub *events.Hub) *coordinator.Coordinator {
	r := runner.New(cfg.MaxOutput.Int(), cfg.GracePeriod.Duration)
	d := dispatch.New(r)
	return coordinator.New(d, set, coordinator.Options{
		AutoRun:   autoRun,
		Debounce:  cfg.Debounce.Duration,
		Clipboard: clip,
		Hub:       hub,
	})
}

// printEvents writes an activity log to w, oldest first.
func printEvents(w io.Writer, evs []events.Event) {
	for _, e := range evs {
		fmt.Fprintf(w, "%s %s\n", e.At.Local().Format("15:04:05.000"), e)
	}
}
