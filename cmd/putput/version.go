package main

import (
	"encoding/json"
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

func newVersionCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version metadata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := currentVersionInfo()
			out := cmd.OutOrStdout()

			if jsonOut {
				data, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return fmt.Errorf("render version JSON: %w", err)
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			fmt.Fprintf(out, "putput %s\n", info.Version)
			fmt.Fprintf(out, "commit: %s\n", info.Commit)
			fmt.Fprintf(out, "built_at: %s\n", info.BuildTime)
			fmt.Fprintf(out, "go: %s\n", info.GoVersion)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output version metadata as JSON")
	return cmd
}

// currentVersionInfo merges the ldflags values with what the Go toolchain
// stamped into the binary.
func currentVersionInfo() versionInfo {
	linked := versionInfo{Version: version, Commit: gitCommit, BuildTime: buildDate}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return resolveVersion(linked, nil)
	}
	return resolveVersion(linked, bi)
}

// resolveVersion fills every field of linked that was left empty or
// "unknown" from bi. Commits are shortened to 12 characters and build times
// normalized to RFC 3339 UTC.
func resolveVersion(linked versionInfo, bi *debug.BuildInfo) versionInfo {
	settings := map[string]string{}
	info := versionInfo{GoVersion: runtime.Version()}
	if bi != nil {
		for _, s := range bi.Settings {
			settings[s.Key] = s.Value
		}
		info.GoVersion = bi.GoVersion
	}
	pick := func(v, fallback string) string {
		if v = strings.TrimSpace(v); v != "" && v != "unknown" {
			return v
		}
		return strings.TrimSpace(fallback)
	}

	info.Version = pick(linked.Version, "")
	if info.Version == "" && bi != nil && bi.Main.Version != "(devel)" {
		// Set by "go install module@version".
		info.Version = bi.Main.Version
	}
	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}

	info.Commit = pick(linked.Commit, settings["vcs.revision"])
	switch {
	case info.Commit == "":
		info.Commit = "unknown"
	case len(info.Commit) > 12:
		info.Commit = info.Commit[:12]
	}
	if settings["vcs.modified"] == "true" && info.Commit != "unknown" {
		info.Commit += "-dirty"
	}

	info.BuildTime = "unknown"
	if t, err := time.Parse(time.RFC3339Nano, pick(linked.BuildTime, settings["vcs.time"])); err == nil {
		info.BuildTime = t.UTC().Format(time.RFC3339)
	}
	return info
}
