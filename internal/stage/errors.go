package stage

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/specialistvlad/burstbuild/internal/filetree"
)

// Severity grades a lint violation.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// LintError is a single violation reported by a linting stage.
type LintError struct {
	File     string
	Line     int
	Rule     string
	Message  string
	Severity Severity
}

func (e *LintError) Error() string {
	loc := e.File
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", e.File, e.Line)
	}
	if e.Rule != "" {
		return fmt.Sprintf("%s: %s: %s (%s)", loc, e.Severity, e.Message, e.Rule)
	}
	return fmt.Sprintf("%s: %s: %s", loc, e.Severity, e.Message)
}

// LintErrors collects every violation found by one lint pass.
type LintErrors []*LintError

func (l LintErrors) Error() string {
	lines := make([]string, len(l))
	for i, e := range l {
		lines[i] = e.Error()
	}
	return fmt.Sprintf("%d lint violation(s):\n  %s", len(l), strings.Join(lines, "\n  "))
}

// Unwrap exposes the individual violations to errors.As.
func (l LintErrors) Unwrap() []error {
	out := make([]error, len(l))
	for i, e := range l {
		out[i] = e
	}
	return out
}

// HasErrors reports whether any violation has error severity.
func (l LintErrors) HasErrors() bool {
	for _, e := range l {
		if e.Severity == SeverityError {
			return true
		}
	}
	return false
}

// CompileError reports invalid style or script source.
type CompileError struct {
	File    string
	Line    int
	Message string
}

func (e *CompileError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("compile %s:%d: %s", e.File, e.Line, e.Message)
	}
	return fmt.Sprintf("compile %s: %s", e.File, e.Message)
}

// TimeoutError is returned when a stage exceeds its configured timeout.
type TimeoutError struct {
	Stage string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("stage %q timed out after %s", e.Stage, e.After)
}

// IsFatal decides whether err aborts a build pass. Lint violations of error
// severity and merge conflicts abort only in strict mode; lint warnings never
// do. Every other error is fatal.
func IsFatal(err error, strict bool) bool {
	if err == nil {
		return false
	}
	var lint LintErrors
	if errors.As(err, &lint) {
		return strict && lint.HasErrors()
	}
	var single *LintError
	if errors.As(err, &single) {
		return strict && single.Severity == SeverityError
	}
	var conflict *filetree.ConflictError
	if errors.As(err, &conflict) {
		return strict
	}
	return true
}
