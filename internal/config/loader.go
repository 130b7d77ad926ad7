package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// LoadError reports a configuration file that exists but could not be read or parsed.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load config %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Load reads and parses the configuration file at path.
// Files ending in .yaml or .yml are decoded as YAML, everything else as TOML.
// Missing or out-of-range values are replaced by defaults and noted in Warnings.
func Load(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, &LoadError{Path: absPath, Err: err}
	}

	cfg, err := decode(absPath, data)
	if err != nil {
		return nil, &LoadError{Path: absPath, Err: err}
	}
	cfg.Path = absPath

	applyDefaults(cfg)
	return cfg, nil
}

// LoadOrInit loads path, creating it with defaults when it does not exist.
// If the file exists but is broken, the defaults are returned together with
// the *LoadError so the caller can report it and keep running. The broken
// file is left untouched.
func LoadOrInit(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}

	def := Defaults()
	def.Path = path
	if !errors.Is(err, fs.ErrNotExist) {
		return def, err
	}

	if werr := WriteDefault(path, false); werr != nil {
		return def, fmt.Errorf("write default config: %w", werr)
	}
	return def, nil
}

func decode(path string, data []byte) (*Config, error) {
	cfg := &Config{}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	default:
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, fmt.Errorf("parse toml: %w", err)
		}
		for _, key := range md.Undecoded() {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("unknown key %q ignored", key.String()))
		}
	}
	return cfg, nil
}

// applyDefaults fills missing fields and clamps out-of-range values.
func applyDefaults(cfg *Config) {
	warn := func(format string, args ...any) {
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(cfg.Title) == "" {
		cfg.Title = DefaultTitle
	}
	if len(cfg.Commands) == 0 {
		warn("no commands configured, using defaults %v", DefaultCommands)
		cfg.Commands = append([]string(nil), DefaultCommands...)
	}

	switch {
	case cfg.Debounce.Duration == 0:
		cfg.Debounce.Duration = DefaultDebounce
	case cfg.Debounce.Duration < minDebounce || cfg.Debounce.Duration > maxDebounce:
		warn("debounce %s outside [%s, %s], using %s", cfg.Debounce, minDebounce, maxDebounce, DefaultDebounce)
		cfg.Debounce.Duration = DefaultDebounce
	}

	switch {
	case cfg.GracePeriod.Duration == 0:
		cfg.GracePeriod.Duration = DefaultGracePeriod
	case cfg.GracePeriod.Duration < 0 || cfg.GracePeriod.Duration > maxGrace:
		warn("grace_period %s outside [0, %s], using %s", cfg.GracePeriod, maxGrace, DefaultGracePeriod)
		cfg.GracePeriod.Duration = DefaultGracePeriod
	}

	switch {
	case cfg.MaxOutput == 0:
		cfg.MaxOutput = DefaultMaxOutput
	case cfg.MaxOutput < minMaxOutput:
		warn("max_output %s below %s, using %s", cfg.MaxOutput, ByteSize(minMaxOutput), ByteSize(DefaultMaxOutput))
		cfg.MaxOutput = DefaultMaxOutput
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	cfg.LogFile = interpolateEnv(cfg.LogFile)
}

// interpolateEnv expands ${VAR} references; unset variables expand to "".
func interpolateEnv(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(m string) string {
		name := envVarPattern.FindStringSubmatch(m)[1]
		return os.Getenv(name)
	})
}

// DiscoverPath resolves the config file location.
// Priority order: explicit flag, $PUTPUT_CONFIG, <user config dir>/putput/config.toml, ./config.toml.
func DiscoverPath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if p := os.Getenv("PUTPUT_CONFIG"); p != "" {
		return p
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "putput", "config.toml")
	}
	return "config.toml"
}

// DefaultLogFile is where logs go when log_file is unset.
func DefaultLogFile() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "putput", "putput.log")
	}
	return filepath.Join(os.TempDir(), "putput.log")
}

const defaultTemplate = `# putput configuration
title = "Putput"

# Re-run every command whenever the input changes (debounced).
run_commands_on_change = false

# Each entry is split like a shell would split words (quotes and
# backslashes are honored) but no shell runs it: pipes and redirection
# are passed through as plain arguments.
commands = ["cat", "wc"]

debounce = "200ms"
max_output = "4.0 MiB"
grace_period = "300ms"

log_level = "info"
log_file = ""
`

// WriteDefault writes the default configuration to path, creating parent
// directories. An existing file is only replaced when force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultTemplate), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Encode renders cfg as TOML.
func Encode(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return buf.Bytes(), nil
}
