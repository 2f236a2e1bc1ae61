// Package compile_sass provides the "compile_sass" transform, a small Sass
// front end that inlines @import rules and substitutes $variables to
// produce a single stylesheet.
package compile_sass

import (
	"context"
	"path"
	"strings"

	"github.com/specialistvlad/burstbuild/internal/ctxlog"
	"github.com/specialistvlad/burstbuild/internal/filetree"
	"github.com/specialistvlad/burstbuild/internal/registry"
	"github.com/specialistvlad/burstbuild/internal/sourcemap"
	"github.com/specialistvlad/burstbuild/internal/stage"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Transform compiles the input stylesheet of its merged inputs into output.
//
// Options: input (default "app.scss"), output (default "assets/app.css"),
// load_paths, sourcemap and sourcemap_contents (default true).
func Transform(ctx context.Context, inputs []*filetree.Tree, cfg stage.Config) (*filetree.Tree, error) {
	logger := ctxlog.FromContext(ctx)
	input, err := cfg.String("input", "app.scss")
	if err != nil {
		return nil, err
	}
	output, err := cfg.String("output", "assets/app.css")
	if err != nil {
		return nil, err
	}
	loadPaths, err := cfg.Strings("load_paths", nil)
	if err != nil {
		return nil, err
	}
	withMap, err := cfg.Bool("sourcemap", false)
	if err != nil {
		return nil, err
	}
	withContents, err := cfg.Bool("sourcemap_contents", true)
	if err != nil {
		return nil, err
	}

	src, collisions := filetree.MergeOverwrite(inputs...)
	if len(collisions) > 0 {
		logger.Debug("Later inputs shadow earlier ones.", "paths", len(collisions))
	}

	c := newCompiler(src, loadPaths)
	lines, err := c.compile(input)
	if err != nil {
		return nil, err
	}

	var css strings.Builder
	for _, ln := range lines {
		css.WriteString(ln.text)
		css.WriteByte('\n')
	}

	b := filetree.NewBuilder()
	if withMap {
		mapName := path.Base(output) + ".map"
		gen := sourcemap.NewGenerator(path.Base(output))
		for _, f := range c.used {
			var content []byte
			if withContents {
				content, _ = src.Content(f)
			}
			gen.AddSource(f, content)
		}
		for i, ln := range lines {
			gen.MapLine(i, gen.AddSource(ln.file, nil), ln.origin)
		}
		raw, err := gen.MarshalJSON()
		if err != nil {
			return nil, err
		}
		css.WriteString(sourcemap.Comment(mapName, true))
		css.WriteByte('\n')
		b.Add(path.Join(path.Dir(output), mapName), raw, filetree.DefaultMode)
	}
	b.Add(output, []byte(css.String()), filetree.DefaultMode)

	logger.Debug("Stylesheet compiled.", "input", input, "output", output, "files", len(c.used))
	return b.Tree()
}

// Register registers the transform with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTransform("compile_sass", &registry.Transform{
		Fn: Transform,
		Options: map[string]cty.Type{
			"input":              cty.String,
			"output":             cty.String,
			"load_paths":         cty.List(cty.String),
			"sourcemap":          cty.Bool,
			"sourcemap_contents": cty.Bool,
		},
		MinInputs:   1,
		Description: "Compile a Sass entry stylesheet into CSS.",
	})
}
