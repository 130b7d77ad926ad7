package main

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/mattjoyce/putput/internal/config"
	"github.com/mattjoyce/putput/internal/coordinator"
	"github.com/mattjoyce/putput/internal/events"
	"github.com/mattjoyce/putput/internal/log"
	"github.com/mattjoyce/putput/internal/tui"
)

const shutdownTimeout = 3 * time.Second

func runTUI(cmd *cobra.Command, opts *rootOptions) error {
	cfg, loadErr := loadConfig(opts)
	if cfg == nil {
		return loadErr
	}

	logFile, err := openLogFile(cfg, opts)
	if err != nil {
		return err
	}
	defer logFile.Close()
	log.Setup(logLevel(cfg, opts, config.DefaultLogLevel), logFile)
	reportConfig(cfg, loadErr)

	autoRun := cfg.RunCommandsOnChange
	if cmd.Flags().Changed("auto-run") {
		autoRun = opts.autoRun
	}

	var clip coordinator.Clipboard
	if tui.ClipboardAvailable() {
		clip = tui.SystemClipboard{}
	} else {
		log.Warn("no clipboard helper found, copy is disabled")
	}

	hub := events.NewHub(events.DefaultCapacity)
	feed, unsubscribe := hub.Subscribe()
	defer unsubscribe()

	coord := newCoordinator(cfg, parseCommands(cfg.Commands), autoRun, clip, hub)
	log.Info("putput started", "config", cfg.Path, "commands", len(cfg.Commands), "auto_run", autoRun)

	model := tui.New(coord, tui.Options{
		Title:   cfg.Title,
		Events:  feed,
		Initial: coord.Snapshot(),
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	coord.Start(tui.NewProgramSink(p))

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	if !opts.noWatch {
		startWatcher(ctx, cfg, coord)
	}

	_, runErr := p.Run()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := coord.Close(shutdownCtx); err != nil {
		log.Warn("shutdown incomplete", "error", err)
	}
	log.Info("putput stopped")

	if runErr != nil && ctx.Err() == nil {
		return fmt.Errorf("TUI error: %w", runErr)
	}
	return nil
}

// startWatcher reloads the command set whenever the config file changes.
func startWatcher(ctx context.Context, cfg *config.Config, coord *coordinator.Coordinator) {
	w, err := config.NewWatcher(cfg.Path)
	if err != nil {
		log.Warn("config reload disabled", "error", err)
		return
	}

	go func() {
		err := w.Run(ctx, reloader(cfg, coord))
		if err != nil && ctx.Err() == nil {
			log.Warn("config watcher stopped", "error", err)
		}
	}()
}

// reloader applies a changed config to coord. The watcher has already
// logged the config's warnings.
func reloader(cfg *config.Config, coord *coordinator.Coordinator) func(*config.Config) {
	return func(next *config.Config) {
		if next.MaxOutput != cfg.MaxOutput || next.GracePeriod != cfg.GracePeriod {
			log.Info("max_output and grace_period changes apply after restart")
		}
		coord.Reload(parseCommands(next.Commands), coordinator.ReloadOptions{
			Debounce: next.Debounce.Duration,
		})
	}
}
