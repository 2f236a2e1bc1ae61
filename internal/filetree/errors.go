package filetree

import (
	"fmt"
	"strings"
)

// IOError reports a source path that is missing or cannot be read.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Collision describes one path defined with differing content by more than
// one merged tree. Trees holds the indices of the defining trees in merge order.
type Collision struct {
	Path  string
	Trees []int
}

func (c Collision) String() string {
	idx := make([]string, len(c.Trees))
	for i, t := range c.Trees {
		idx[i] = fmt.Sprint(t)
	}
	return fmt.Sprintf("%s (trees %s)", c.Path, strings.Join(idx, ", "))
}

// ConflictError is returned when merged trees disagree on the content of a path.
type ConflictError struct {
	Collisions []Collision
}

func (e *ConflictError) Error() string {
	parts := make([]string, len(e.Collisions))
	for i, c := range e.Collisions {
		parts[i] = c.String()
	}
	return fmt.Sprintf("merge conflict on %d path(s): %s", len(e.Collisions), strings.Join(parts, "; "))
}
