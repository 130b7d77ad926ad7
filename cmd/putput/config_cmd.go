package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mattjoyce/putput/internal/config"
	"github.com/mattjoyce/putput/internal/doctor"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration file",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), config.DiscoverPath(opts.configPath))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, opts)
		},
	})

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := config.DiscoverPath(opts.configPath)
			if err := config.WriteDefault(path, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cmd.AddCommand(initCmd)

	var jsonOut bool
	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration (exit 1 on errors, 2 on warnings only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigCheck(cmd, opts, jsonOut)
		},
	}
	checkCmd.Flags().BoolVar(&jsonOut, "json", false, "output the result as JSON")
	cmd.AddCommand(checkCmd)

	return cmd
}

func runConfigShow(cmd *cobra.Command, opts *rootOptions) error {
	path := config.DiscoverPath(opts.configPath)
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	data, err := config.Encode(cfg)
	if err != nil {
		return err
	}
	fingerprint, err := config.Fingerprint(cfg.Path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "# path: %s\n", cfg.Path)
	fmt.Fprintf(out, "# blake3: %s\n", fingerprint)
	for _, w := range cfg.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
	}
	_, err = out.Write(data)
	return err
}

func runConfigCheck(cmd *cobra.Command, opts *rootOptions, jsonOut bool) error {
	result, code, err := validateConfigAtPath(config.DiscoverPath(opts.configPath))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOut {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("render validation JSON: %w", err)
		}
		fmt.Fprintln(out, string(data))
	} else {
		printValidationSummary(out, result)
	}

	if code != 0 {
		return &exitError{code: code}
	}
	return nil
}

func validateConfigAtPath(configPath string) (*doctor.Result, int, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, 1, err
	}
	result := doctor.New(cfg, nil).Validate()
	if !result.Valid {
		return result, 1, nil
	}
	if len(result.Warnings) > 0 {
		return result, 2, nil
	}
	return result, 0, nil
}

func printValidationSummary(w io.Writer, result *doctor.Result) {
	if result == nil {
		return
	}
	printIssues := func(label string, issues []doctor.Issue) {
		for _, issue := range issues {
			if issue.Field != "" {
				fmt.Fprintf(w, "  %s [%s] %s: %s\n", label, issue.Category, issue.Field, issue.Message)
			} else {
				fmt.Fprintf(w, "  %s [%s] %s\n", label, issue.Category, issue.Message)
			}
		}
	}

	switch {
	case !result.Valid:
		fmt.Fprintf(w, "Validation: failed (%d error(s), %d warning(s))\n", len(result.Errors), len(result.Warnings))
		printIssues("ERROR", result.Errors)
	case len(result.Warnings) == 0:
		fmt.Fprintln(w, "Validation: ✓ All checks passed")
		return
	default:
		fmt.Fprintf(w, "Validation: ✓ passed with %d warning(s)\n", len(result.Warnings))
	}
	printIssues("WARN ", result.Warnings)
}
