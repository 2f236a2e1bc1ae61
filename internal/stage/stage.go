package stage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/specialistvlad/burstbuild/internal/filetree"
)

// Kind distinguishes stages that read the file system from stages that
// transform other stages' outputs.
type Kind int

const (
	KindTransform Kind = iota
	KindSource
)

func (k Kind) String() string {
	if k == KindSource {
		return "source"
	}
	return "transform"
}

// TransformFunc maps input trees and a configuration to an output tree. A
// function may return a tree together with a non-fatal error (see IsFatal);
// the tree is then used and the error reported as a warning.
type TransformFunc func(ctx context.Context, inputs []*filetree.Tree, cfg Config) (*filetree.Tree, error)

// SourceSpec describes where a source stage reads its tree from.
type SourceSpec struct {
	Path   string
	Filter filetree.Filter
}

// Stage is a named node in a pipeline graph.
type Stage struct {
	Name       string
	Kind       Kind
	Inputs     []string
	Config     Config
	Transform  TransformFunc
	Source     *SourceSpec
	Timeout    time.Duration
	Annotation string
}

// Validate checks that the stage is internally consistent.
func (s *Stage) Validate() error {
	if s.Name == "" {
		return errors.New("stage name is required")
	}
	switch s.Kind {
	case KindSource:
		if s.Source == nil || s.Source.Path == "" {
			return fmt.Errorf("source stage %q has no path", s.Name)
		}
		if len(s.Inputs) > 0 {
			return fmt.Errorf("source stage %q cannot have inputs", s.Name)
		}
		if err := s.Source.Filter.Validate(); err != nil {
			return fmt.Errorf("source stage %q: %w", s.Name, err)
		}
	case KindTransform:
		if s.Transform == nil {
			return fmt.Errorf("stage %q has no transform", s.Name)
		}
	default:
		return fmt.Errorf("stage %q has unknown kind %d", s.Name, s.Kind)
	}
	if s.Timeout < 0 {
		return fmt.Errorf("stage %q has negative timeout", s.Name)
	}
	return nil
}

// ConfigFingerprint identifies everything about the stage definition that
// affects its output besides its inputs.
func (s *Stage) ConfigFingerprint() filetree.Fingerprint {
	if s.Kind == KindSource && s.Source != nil {
		return filetree.Sum([]byte(s.Source.Path), []byte(s.Source.Filter.Fingerprint()), []byte(s.Config.Fingerprint()))
	}
	return s.Config.Fingerprint()
}

type execResult struct {
	tree *filetree.Tree
	err  error
}

// Execute runs the transform over inputs, enforcing the stage timeout. A
// transform that outlives its timeout yields a *TimeoutError; the transform
// keeps running until it observes the cancelled context.
func (s *Stage) Execute(ctx context.Context, inputs []*filetree.Tree) (*filetree.Tree, error) {
	if s.Transform == nil {
		return nil, fmt.Errorf("stage %q has no transform", s.Name)
	}
	if s.Timeout <= 0 {
		return s.Transform(ctx, inputs, s.Config)
	}

	runCtx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	done := make(chan execResult, 1)
	go func() {
		tree, err := s.Transform(runCtx, inputs, s.Config)
		done <- execResult{tree: tree, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil && errors.Is(res.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &TimeoutError{Stage: s.Name, After: s.Timeout}
		}
		return res.tree, res.err
	case <-runCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TimeoutError{Stage: s.Name, After: s.Timeout}
	}
}
