// Package command turns configured command strings into executable specs.
//
// Strings are split into words with POSIX shell rules (single quotes,
// double quotes, backslash escapes) but no shell ever runs them: "a | b"
// executes a with the arguments "|" and "b".
package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kballard/go-shellquote"
)

// ErrEmpty is returned for a command string with no words.
var ErrEmpty = errors.New("empty command")

// ParseError reports a command string that cannot be word-split.
type ParseError struct {
	Index int
	Raw   string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("command %d (%q): %v", e.Index+1, e.Raw, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Spec is one configured command. It is immutable after Parse.
type Spec struct {
	Raw     string
	Program string
	Args    []string
	// Err is non-nil when Raw could not be parsed; such a spec is never spawned.
	Err error
}

// Valid reports whether the spec can be spawned.
func (s Spec) Valid() bool {
	return s.Err == nil
}

// Argv returns program followed by its arguments.
func (s Spec) Argv() []string {
	if !s.Valid() {
		return nil
	}
	return append([]string{s.Program}, s.Args...)
}

func (s Spec) String() string {
	return s.Raw
}

// Parse splits raw into a program and arguments.
func Parse(raw string) (Spec, error) {
	spec := Spec{Raw: raw}

	words, err := shellquote.Split(raw)
	if err != nil {
		spec.Err = err
		return spec, err
	}
	if len(words) == 0 || strings.TrimSpace(words[0]) == "" {
		spec.Err = ErrEmpty
		return spec, ErrEmpty
	}

	spec.Program = words[0]
	spec.Args = words[1:]
	return spec, nil
}

// Set is the ordered, read-only list of configured commands. Position in the
// set is the panel slot.
type Set struct {
	specs []Spec
}

// ParseAll parses every raw command. Invalid entries stay in the set, carrying
// their error, so slot numbering matches the configuration. The returned
// error joins every *ParseError and is nil when all entries parsed.
func ParseAll(raws []string) (Set, error) {
	specs := make([]Spec, len(raws))
	var errs []error
	for i, raw := range raws {
		spec, err := Parse(raw)
		if err != nil {
			pe := &ParseError{Index: i, Raw: raw, Err: err}
			spec.Err = pe
			errs = append(errs, pe)
		}
		specs[i] = spec
	}
	return Set{specs: specs}, errors.Join(errs...)
}

// Len returns the number of slots.
func (s Set) Len() int {
	return len(s.specs)
}

// At returns the spec at slot i.
func (s Set) At(i int) Spec {
	return s.specs[i]
}

// Specs returns a copy of the specs in slot order.
func (s Set) Specs() []Spec {
	return append([]Spec(nil), s.specs...)
}

// Raw returns the original command strings in slot order.
func (s Set) Raw() []string {
	out := make([]string, len(s.specs))
	for i, spec := range s.specs {
		out[i] = spec.Raw
	}
	return out
}
