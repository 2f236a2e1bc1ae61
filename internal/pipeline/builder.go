package pipeline

import (
	"errors"
	"fmt"

	"github.com/specialistvlad/burstbuild/internal/filetree"
	"github.com/specialistvlad/burstbuild/internal/stage"
)

// Builder collects stages for a Graph. Its methods record problems instead
// of returning them; Finalize reports everything at once.
type Builder struct {
	stages []*stage.Stage
	index  map[string]int
	output string
	errs   []error
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{index: make(map[string]int)}
}

// Add registers a stage definition. Inputs are referenced by name and are
// resolved by Finalize, so they may name stages added later. The returned
// pointer may be used to adjust the stage until Finalize is called.
func (b *Builder) Add(s stage.Stage) *stage.Stage {
	if s.Name == "" {
		b.errs = append(b.errs, invalidf("stage name is required"))
		return nil
	}
	if _, exists := b.index[s.Name]; exists {
		b.errs = append(b.errs, invalidf("duplicate stage name %q", s.Name))
		return nil
	}
	s.Inputs = append([]string(nil), s.Inputs...)
	ptr := &s
	b.index[s.Name] = len(b.stages)
	b.stages = append(b.stages, ptr)
	return ptr
}

// Source adds a stage reading the directory at path, narrowed by filter.
func (b *Builder) Source(name, path string, filter filetree.Filter) *stage.Stage {
	return b.Add(stage.Stage{
		Name:   name,
		Kind:   stage.KindSource,
		Source: &stage.SourceSpec{Path: path, Filter: filter},
	})
}

// Compose adds a stage transforming the output of input.
func (b *Builder) Compose(name string, input *stage.Stage, fn stage.TransformFunc, cfg stage.Config) *stage.Stage {
	if input == nil {
		b.errs = append(b.errs, invalidf("stage %q composed over a missing stage", name))
		return nil
	}
	return b.Add(stage.Stage{
		Name:      name,
		Kind:      stage.KindTransform,
		Inputs:    []string{input.Name},
		Config:    cfg,
		Transform: fn,
	})
}

// Combine adds a stage whose transform receives the outputs of all inputs in order.
func (b *Builder) Combine(name string, inputs []*stage.Stage, fn stage.TransformFunc, cfg stage.Config) *stage.Stage {
	names := make([]string, 0, len(inputs))
	for i, in := range inputs {
		if in == nil {
			b.errs = append(b.errs, invalidf("stage %q input %d is a missing stage", name, i))
			return nil
		}
		names = append(names, in.Name)
	}
	return b.Add(stage.Stage{
		Name:      name,
		Kind:      stage.KindTransform,
		Inputs:    names,
		Config:    cfg,
		Transform: fn,
	})
}

// Output designates the terminal stage. Without it, the graph must have
// exactly one stage that no other stage consumes.
func (b *Builder) Output(name string) {
	b.output = name
}

// Finalize validates the collected stages and returns the immutable Graph.
// A cycle is reported as *CycleError; other problems wrap ErrInvalidGraph.
func (b *Builder) Finalize() (*Graph, error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	if len(b.stages) == 0 {
		return nil, invalidf("no stages")
	}

	var errs []error
	for _, s := range b.stages {
		if err := s.Validate(); err != nil {
			errs = append(errs, invalidf("%v", err))
		}
		for _, in := range s.Inputs {
			if _, ok := b.index[in]; !ok {
				errs = append(errs, invalidf("stage %q references unknown input %q", s.Name, in))
			}
		}
	}
	if b.output != "" {
		if _, ok := b.index[b.output]; !ok {
			errs = append(errs, invalidf("output references unknown stage %q", b.output))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	g := newGraph(b.stages, b.index)
	if err := g.sort(); err != nil {
		return nil, err
	}
	if err := g.chooseTerminal(b.output); err != nil {
		return nil, err
	}
	return g, nil
}

// MustFinalize is Finalize for statically defined pipelines; it panics on error.
func (b *Builder) MustFinalize() *Graph {
	g, err := b.Finalize()
	if err != nil {
		panic(fmt.Sprintf("pipeline: %v", err))
	}
	return g
}
