package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

// exitError ends the process with code without printing anything more.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func runCLI(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			return ee.code
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

type rootOptions struct {
	configPath string
	logLevel   string
	logFile    string
	autoRun    bool
	noWatch    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "putput",
		Short: "Feed one input to many commands and watch their output side by side",
		Long: `putput runs every configured command with the text you type as stdin and
shows each command's output in a numbered panel.

Commands are split into words like a shell would, but no shell runs
them: pipes and redirection are not interpreted.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd, opts)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "config file (default: $PUTPUT_CONFIG or <user config dir>/putput/config.toml)")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	pf.StringVar(&opts.logFile, "log-file", "", "log file path (overrides config)")
	root.Flags().BoolVar(&opts.autoRun, "auto-run", false, "re-run commands as the input changes (overrides config)")
	root.Flags().BoolVar(&opts.noWatch, "no-watch", false, "do not reload the config file when it changes")

	root.AddCommand(newRunCmd(opts))
	root.AddCommand(newConfigCmd(opts))
	root.AddCommand(newVersionCmd())
	return root
}
