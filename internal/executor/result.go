package executor

import (
	"fmt"
	"strings"
	"time"

	"github.com/specialistvlad/burstbuild/internal/filetree"
)

// Result describes a successful build pass.
type Result struct {
	// Terminal is the output of the graph's terminal stage.
	Terminal *filetree.Tree
	// Outputs holds the output of every stage in the pass.
	Outputs map[string]*filetree.Tree
	// Executed lists transform stages whose transform ran this pass.
	Executed []string
	// Reused lists transform stages served from the cache.
	Reused []string
	// Scanned lists source stages read from disk.
	Scanned []string
	// Warnings holds non-fatal problems, including those replayed from cache.
	Warnings []StageWarning
	Duration time.Duration
}

// StageWarning is a non-fatal error reported by a stage.
type StageWarning struct {
	Stage string
	Err   error
}

// StageFailure records why a stage produced no output in a pass.
type StageFailure struct {
	Stage string
	Err   error
	// Cause names the failed upstream stage when the stage was skipped.
	Cause string
}

// Skipped reports whether the stage never ran because an input failed.
func (f StageFailure) Skipped() bool { return f.Cause != "" }

// PassError is returned when a pass could not produce the terminal tree.
type PassError struct {
	Failures []StageFailure
	// Completed lists stages that still finished during the failed pass.
	Completed []string
}

func (e *PassError) Error() string {
	var causes []string
	skipped := 0
	for _, f := range e.Failures {
		if f.Skipped() {
			skipped++
			continue
		}
		causes = append(causes, fmt.Sprintf("stage %q: %v", f.Stage, f.Err))
	}
	msg := "build failed: " + strings.Join(causes, "; ")
	if skipped > 0 {
		msg += fmt.Sprintf(" (%d dependent stage(s) skipped)", skipped)
	}
	return msg
}

// Unwrap exposes the root-cause stage errors so callers can match them with
// errors.As, for example to find a *stage.TimeoutError.
func (e *PassError) Unwrap() []error {
	var out []error
	for _, f := range e.Failures {
		if !f.Skipped() {
			out = append(out, f.Err)
		}
	}
	return out
}

// Failed returns the names of stages that failed themselves, excluding skipped ones.
func (e *PassError) Failed() []string {
	var out []string
	for _, f := range e.Failures {
		if !f.Skipped() {
			out = append(out, f.Stage)
		}
	}
	return out
}
