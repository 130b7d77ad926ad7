package config

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config represents the complete putput configuration.
type Config struct {
	Title               string   `toml:"title" yaml:"title"`
	RunCommandsOnChange bool     `toml:"run_commands_on_change" yaml:"run_commands_on_change"`
	Commands            []string `toml:"commands" yaml:"commands"`

	Debounce    Duration `toml:"debounce" yaml:"debounce"`         // auto-run settle window
	MaxOutput   ByteSize `toml:"max_output" yaml:"max_output"`     // per-stream capture cap
	GracePeriod Duration `toml:"grace_period" yaml:"grace_period"` // SIGTERM -> SIGKILL delay

	LogLevel string `toml:"log_level" yaml:"log_level"`
	LogFile  string `toml:"log_file" yaml:"log_file"`

	// Path is the file the config was loaded from.
	Path string `toml:"-" yaml:"-"`
	// Warnings collects non-fatal problems found while loading (unknown keys,
	// out-of-range values replaced by defaults).
	Warnings []string `toml:"-" yaml:"-"`
}

const (
	DefaultTitle       = "Putput"
	DefaultDebounce    = 200 * time.Millisecond
	DefaultMaxOutput   = 4 << 20
	DefaultGracePeriod = 300 * time.Millisecond
	DefaultLogLevel    = "info"

	minDebounce  = 10 * time.Millisecond
	maxDebounce  = 10 * time.Second
	maxGrace     = 30 * time.Second
	minMaxOutput = 1 << 10
)

// DefaultCommands mirrors what a fresh install runs.
var DefaultCommands = []string{"cat", "wc"}

// Defaults returns a Config with the values written on first start.
func Defaults() *Config {
	return &Config{
		Title:               DefaultTitle,
		RunCommandsOnChange: false,
		Commands:            append([]string(nil), DefaultCommands...),
		Debounce:            Duration{DefaultDebounce},
		MaxOutput:           ByteSize(DefaultMaxOutput),
		GracePeriod:         Duration{DefaultGracePeriod},
		LogLevel:            DefaultLogLevel,
	}
}

// Duration is a time.Duration that reads and writes as a Go duration string ("200ms").
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	return d.UnmarshalText([]byte(value.Value))
}

// ByteSize is a byte count that reads human sizes ("4 MiB", "512kB", "65536").
type ByteSize uint64

func (b ByteSize) MarshalText() ([]byte, error) {
	return []byte(humanize.IBytes(uint64(b))), nil
}

func (b *ByteSize) UnmarshalText(text []byte) error {
	v, err := humanize.ParseBytes(string(text))
	if err != nil {
		return fmt.Errorf("invalid size %q: %w", text, err)
	}
	*b = ByteSize(v)
	return nil
}

func (b *ByteSize) UnmarshalYAML(value *yaml.Node) error {
	return b.UnmarshalText([]byte(value.Value))
}

// Int returns the size as an int for buffer arithmetic.
func (b ByteSize) Int() int {
	return int(b)
}

func (b ByteSize) String() string {
	return humanize.IBytes(uint64(b))
}
