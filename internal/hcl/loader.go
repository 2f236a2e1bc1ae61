package hcl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/burstbuild/internal/ctxlog"
	"github.com/specialistvlad/burstbuild/internal/filetree"
	"github.com/specialistvlad/burstbuild/internal/pipeline"
	"github.com/specialistvlad/burstbuild/internal/registry"
	"github.com/specialistvlad/burstbuild/internal/stage"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// DefaultFile is the pipeline definition file looked up in a project directory.
const DefaultFile = "burstbuild.hcl"

// Variables are the values exposed to expressions in a definition file.
type Variables struct {
	// Env is the build environment, e.g. "development" or "production".
	Env string
	// ProjectDir is the directory relative source paths are resolved against.
	ProjectDir string
}

// Loader turns HCL pipeline definitions into finalized graphs. Transforms are
// resolved against its registry.
type Loader struct {
	registry *registry.Registry
}

// NewLoader creates a loader that resolves stage transforms through r.
func NewLoader(r *registry.Registry) *Loader {
	return &Loader{registry: r}
}

// LoadFile parses and builds the definition at path. An empty
// vars.ProjectDir defaults to the directory holding the file.
func (l *Loader) LoadFile(ctx context.Context, path string, vars Variables) (*pipeline.Graph, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline file %s: %w", path, err)
	}
	if vars.ProjectDir == "" {
		vars.ProjectDir = filepath.Dir(path)
	}
	return l.Load(ctx, src, path, vars)
}

// Load parses src, named filename in diagnostics, and builds the graph.
func (l *Loader) Load(ctx context.Context, src []byte, filename string, vars Variables) (*pipeline.Graph, error) {
	logger := ctxlog.FromContext(ctx).With("file", filename)
	logger.Debug("HCL loader started.", "env", vars.Env)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}

	evalCtx := newEvalContext(vars)
	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, evalCtx, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}
	logger.Debug("Decoded pipeline definition.", "sources", len(root.Sources), "stages", len(root.Stages))

	b := pipeline.NewBuilder()
	var errs []error
	for _, s := range root.Sources {
		def, err := translateSource(s, vars.ProjectDir)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		b.Add(def)
	}

	aliases, err := disabledAliases(root.Stages)
	if err != nil {
		errs = append(errs, err)
	}
	for _, s := range root.Stages {
		if s.Enabled != nil && !*s.Enabled {
			logger.Debug("Stage disabled, bypassing.", "stage", s.Name, "alias", aliases[s.Name])
			continue
		}
		def, err := l.translateStage(evalCtx, s, aliases)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		b.Add(def)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid pipeline file %s: %w", filename, errors.Join(errs...))
	}

	if root.Output != nil {
		b.Output(resolve(*root.Output, aliases))
	}
	g, err := b.Finalize()
	if err != nil {
		return nil, err
	}
	logger.Debug("HCL loading complete.", "stages", len(g.Order()), "terminal", g.Terminal())
	return g, nil
}

func newEvalContext(vars Variables) *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env":         cty.StringVal(vars.Env),
			"project_dir": cty.StringVal(vars.ProjectDir),
		},
		Functions: map[string]function.Function{
			"concat":     stdlib.ConcatFunc,
			"format":     stdlib.FormatFunc,
			"jsonencode": stdlib.JSONEncodeFunc,
			"lower":      stdlib.LowerFunc,
			"merge":      stdlib.MergeFunc,
			"upper":      stdlib.UpperFunc,
		},
	}
}

func translateSource(s *sourceBlock, projectDir string) (stage.Stage, error) {
	path := s.Path
	if !filepath.IsAbs(path) && projectDir != "" {
		path = filepath.Join(projectDir, path)
	}
	filter := filetree.Filter{
		SrcDir:  s.SrcDir,
		Include: s.Include,
		Exclude: s.Exclude,
		Files:   s.Files,
		DestDir: s.DestDir,
	}
	if err := filter.Validate(); err != nil {
		return stage.Stage{}, fmt.Errorf("source %q: %w", s.Name, err)
	}
	return stage.Stage{
		Name:       s.Name,
		Kind:       stage.KindSource,
		Source:     &stage.SourceSpec{Path: path, Filter: filter},
		Annotation: s.Description,
	}, nil
}

func (l *Loader) translateStage(evalCtx *hcl.EvalContext, s *stageBlock, aliases map[string]string) (stage.Stage, error) {
	t, ok := l.registry.Lookup(s.Uses)
	if !ok {
		return stage.Stage{}, fmt.Errorf("stage %q: unknown transform %q", s.Name, s.Uses)
	}

	var cfg stage.Config
	if s.Options != nil {
		val, diags := s.Options.Value(evalCtx)
		if diags.HasErrors() {
			return stage.Stage{}, fmt.Errorf("stage %q options: %w", s.Name, diags)
		}
		var err error
		if cfg, err = stage.NewConfig(val); err != nil {
			return stage.Stage{}, fmt.Errorf("stage %q options: %w", s.Name, err)
		}
	}

	inputs := make([]string, len(s.Inputs))
	for i, in := range s.Inputs {
		inputs[i] = resolve(in, aliases)
	}
	if err := l.registry.Validate(s.Uses, cfg, len(inputs)); err != nil {
		return stage.Stage{}, fmt.Errorf("stage %q: %w", s.Name, err)
	}

	var timeout time.Duration
	if s.Timeout != "" {
		d, err := time.ParseDuration(s.Timeout)
		if err != nil {
			return stage.Stage{}, fmt.Errorf("stage %q timeout: %w", s.Name, err)
		}
		timeout = d
	}

	annotation := s.Description
	if annotation == "" {
		annotation = s.Uses
	}
	return stage.Stage{
		Name:       s.Name,
		Kind:       stage.KindTransform,
		Inputs:     inputs,
		Config:     cfg,
		Transform:  t.Fn,
		Timeout:    timeout,
		Annotation: annotation,
	}, nil
}

// disabledAliases maps every disabled stage to the stage that replaces it:
// its single input. A disabled stage with any other number of inputs cannot
// be bypassed.
func disabledAliases(stages []*stageBlock) (map[string]string, error) {
	aliases := make(map[string]string)
	var errs []error
	for _, s := range stages {
		if s.Enabled == nil || *s.Enabled {
			continue
		}
		if len(s.Inputs) != 1 {
			errs = append(errs, fmt.Errorf("stage %q: a disabled stage must have exactly one input, got %d", s.Name, len(s.Inputs)))
			continue
		}
		aliases[s.Name] = s.Inputs[0]
	}
	// Disabled stages chained onto each other must not loop.
	for _, s := range stages {
		if _, ok := aliases[s.Name]; !ok {
			continue
		}
		seen := map[string]bool{s.Name: true}
		path := []string{s.Name}
		for next, ok := aliases[s.Name]; ok; next, ok = aliases[next] {
			path = append(path, next)
			if seen[next] {
				return aliases, errors.Join(append(errs, &pipeline.CycleError{Stages: path})...)
			}
			seen[next] = true
		}
	}
	return aliases, errors.Join(errs...)
}

// resolve follows aliases of disabled stages to the stage that stands in for name.
func resolve(name string, aliases map[string]string) string {
	seen := make(map[string]bool)
	for !seen[name] {
		next, ok := aliases[name]
		if !ok {
			return name
		}
		seen[name] = true
		name = next
	}
	return name
}
