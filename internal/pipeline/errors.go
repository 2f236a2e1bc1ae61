package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidGraph is the kind of every structural graph error except cycles.
var ErrInvalidGraph = errors.New("invalid pipeline graph")

// GraphError wraps a structural validation failure.
type GraphError struct {
	Kind error
	Msg  string
}

func (e *GraphError) Error() string {
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *GraphError) Unwrap() error { return e.Kind }

func invalidf(format string, args ...any) error {
	return &GraphError{Kind: ErrInvalidGraph, Msg: fmt.Sprintf(format, args...)}
}

// CycleError reports a stage that transitively depends on its own output.
// Stages lists one witness cycle in dependency order, starting and ending
// with the same stage.
type CycleError struct {
	Stages []string
}

func (e *CycleError) Error() string {
	return "cycle detected: " + strings.Join(e.Stages, " -> ")
}
