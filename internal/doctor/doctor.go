// Package doctor validates a putput configuration before it is used.
package doctor

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/mattjoyce/putput/internal/command"
	"github.com/mattjoyce/putput/internal/config"
	"github.com/mattjoyce/putput/internal/log"
)

// copyShortcuts is how many panels have an alt+n copy key.
const copyShortcuts = 9

// shellOperators are tokens that only mean something to a shell.
var shellOperators = map[string]bool{
	"|": true, "||": true, "&&": true, ";": true, "&": true,
	">": true, ">>": true, "<": true, "2>": true, "2>&1": true,
}

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor validates configuration against the local system.
type Doctor struct {
	cfg      *config.Config
	lookPath func(string) (string, error)
}

// New creates a Doctor for cfg. lookPath resolves executables; nil uses
// exec.LookPath.
func New(cfg *config.Config, lookPath func(string) (string, error)) *Doctor {
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	return &Doctor{cfg: cfg, lookPath: lookPath}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	specs := d.validateCommands(r)
	d.warnMissingExecutables(r, specs)
	d.warnShellSyntax(r, specs)
	d.warnDuplicates(r)
	d.warnPanelCount(r)
	d.warnLogLevel(r)
	d.warnLoaderIssues(r)

	r.Valid = len(r.Errors) == 0
	log.Debug("config validated", "errors", len(r.Errors), "warnings", len(r.Warnings))
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

func commandField(i int) string {
	return fmt.Sprintf("commands[%d]", i)
}

// validateCommands reports entries that cannot be word-split. Their panel
// would only ever show the parse error.
func (d *Doctor) validateCommands(r *Result) []command.Spec {
	if len(d.cfg.Commands) == 0 {
		d.addError(r, "commands", "commands", "at least one command is required")
		return nil
	}

	set, _ := command.ParseAll(d.cfg.Commands)
	specs := set.Specs()
	for i, spec := range specs {
		if spec.Err != nil {
			d.addError(r, "commands", commandField(i), spec.Err.Error())
		}
	}
	return specs
}

// warnMissingExecutables flags programs that are not on PATH. They are
// warnings since PATH may differ when putput actually runs.
func (d *Doctor) warnMissingExecutables(r *Result, specs []command.Spec) {
	for i, spec := range specs {
		if !spec.Valid() {
			continue
		}
		if _, err := d.lookPath(spec.Program); err != nil {
			d.addWarning(r, "executables", commandField(i),
				fmt.Sprintf("%q not found: panel will show a spawn failure", spec.Program))
		}
	}
}

// warnShellSyntax flags pipes and redirections, which are passed through
// as plain arguments since no shell is involved.
func (d *Doctor) warnShellSyntax(r *Result, specs []command.Spec) {
	for i, spec := range specs {
		if !spec.Valid() {
			continue
		}
		for _, arg := range spec.Args {
			if shellOperators[arg] || strings.HasPrefix(arg, "$(") || strings.Contains(arg, "`") {
				d.addWarning(r, "shell_syntax", commandField(i),
					fmt.Sprintf("%q is passed to %s as an argument, not interpreted; wrap the command in sh -c '...' to use a shell", arg, spec.Program))
				break
			}
		}
	}
}

func (d *Doctor) warnDuplicates(r *Result) {
	seen := make(map[string]int, len(d.cfg.Commands))
	for i, raw := range d.cfg.Commands {
		key := strings.TrimSpace(raw)
		if first, ok := seen[key]; ok {
			d.addWarning(r, "commands", commandField(i),
				fmt.Sprintf("duplicate of commands[%d]", first))
			continue
		}
		seen[key] = i
	}
}

func (d *Doctor) warnPanelCount(r *Result) {
	if n := len(d.cfg.Commands); n > copyShortcuts {
		d.addWarning(r, "commands", "commands",
			fmt.Sprintf("%d commands configured; only panels 1-%d have copy shortcuts", n, copyShortcuts))
	}
}

func (d *Doctor) warnLogLevel(r *Result) {
	switch strings.ToLower(strings.TrimSpace(d.cfg.LogLevel)) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		d.addWarning(r, "logging", "log_level",
			fmt.Sprintf("unknown log level %q, info is used", d.cfg.LogLevel))
	}
}

// warnLoaderIssues surfaces what the loader already fixed up.
func (d *Doctor) warnLoaderIssues(r *Result) {
	for _, w := range d.cfg.Warnings {
		d.addWarning(r, "config", "", w)
	}
}
