// Package cmderr holds the error types that end an audit run. Every error
// knows the process exit code it maps to.
package cmderr

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Kind classifies a fatal condition.
type Kind int

const (
	KindConfig Kind = iota + 1
	KindDecode
	KindTool
	KindNetwork
	KindMissingExclusions
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config error"
	case KindDecode:
		return "decode error"
	case KindTool:
		return "audit tool error"
	case KindNetwork:
		return "network error"
	case KindMissingExclusions:
		return "missing exclusions"
	default:
		return "error"
	}
}

// Error is a fatal condition with an exit code.
type Error struct {
	Kind Kind
	// Output is the diagnostic text captured from the audit tool, if any.
	Output string
	// Missing lists exclusion ids that matched no advisory.
	Missing []string

	code int
	err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.err != nil {
		msg += ": " + e.err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.err }

// ExitCode is the status the process terminates with.
func (e *Error) ExitCode() int { return e.code }

// Config wraps an invalid flag value or malformed exclusions input.
func Config(err error) *Error {
	return &Error{Kind: KindConfig, code: 1, err: err}
}

// Configf formats a configuration error.
func Configf(format string, args ...any) *Error {
	return Config(fmt.Errorf(format, args...))
}

// Decode wraps a line of audit output that could not be decoded.
func Decode(err error) *Error {
	return &Error{Kind: KindDecode, code: 1, err: err}
}

// Tool reports a non-transient failure of the audit tool.
func Tool(exitCode int, output string, err error) *Error {
	if err == nil {
		err = fmt.Errorf("audit tool exited with code %d", exitCode)
	}
	return &Error{Kind: KindTool, Output: output, code: 1, err: err}
}

// Network reports a failed registry request detected in the tool output.
func Network(output string) *Error {
	return &Error{Kind: KindNetwork, Output: output, code: 1, err: errors.New("registry request failed")}
}

// MissingExclusions escalates exclusions that were not found in the audit
// output. The exit code equals the number of missing ids.
func MissingExclusions(ids []string) *Error {
	return &Error{
		Kind:    KindMissingExclusions,
		Missing: ids,
		code:    len(ids),
		err:     fmt.Errorf("%d configured exclusion(s) not found in audit output: %s", len(ids), strings.Join(ids, ", ")),
	}
}

// Is reports whether err is a cmderr.Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// ExitCode returns the exit status for err: 0 for nil, the carried code for
// an *Error, 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var e *Error
	if errors.As(err, &e) {
		return e.ExitCode()
	}
	return 1
}
