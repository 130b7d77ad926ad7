package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mattjoyce/putput/internal/coordinator"
	"github.com/mattjoyce/putput/internal/events"
	"github.com/mattjoyce/putput/internal/log"
	"github.com/mattjoyce/putput/internal/tui"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	var inputPath string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every command once on stdin (or --input) and print the panels",
		Long: `Run dispatches the input to every configured command once, waits for all
of them and prints each panel as "[n] command" followed by its output.

The exit status is 1 if any command did not succeed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOnce(cmd, opts, inputPath, verbose)
		},
	}
	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "read input from file instead of stdin")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print activity events to stderr")
	return cmd
}

func runOnce(cmd *cobra.Command, opts *rootOptions, inputPath string, verbose bool) error {
	cfg, loadErr := loadConfig(opts)
	if cfg == nil {
		return loadErr
	}
	log.Setup(logLevel(cfg, opts, "warn"), cmd.ErrOrStderr())
	reportConfig(cfg, loadErr)

	input, err := readInput(cmd.InOrStdin(), inputPath)
	if err != nil {
		return err
	}

	// One event per command plus a few per generation; the ring holds the
	// whole run for --verbose.
	hub := events.NewHub(max(events.DefaultCapacity, len(cfg.Commands)+4))

	coord := newCoordinator(cfg, parseCommands(cfg.Commands), false, nil, hub)
	complete := make(chan coordinator.Snapshot, 1)
	coord.Start(coordinator.SinkFunc(func(s coordinator.Snapshot) {
		if s.Generation != 0 && s.Complete {
			select {
			case complete <- s:
			default:
			}
		}
	}))
	coord.Submit(string(input))

	var snap coordinator.Snapshot
	select {
	case snap = <-complete:
	case <-cmd.Context().Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := coord.Close(shutdownCtx); err != nil {
		log.Warn("shutdown incomplete", "error", err)
	}
	if verbose {
		printEvents(cmd.ErrOrStderr(), hub.SnapshotSince(0))
	}
	if !snap.Complete {
		return fmt.Errorf("interrupted: %w", context.Cause(cmd.Context()))
	}

	out := cmd.OutOrStdout()
	for i, slot := range snap.Slots {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "[%d] %s\n", slot.Index+1, slot.Command)
		fmt.Fprintln(out, tui.PanelBody(slot))
	}

	if snap.Failed() > 0 {
		return &exitError{code: 1}
	}
	return nil
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return data, nil
}
