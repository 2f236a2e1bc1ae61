// Package bundle_js provides the "bundle_js" transform: it links an ES
// module entry point and its relative imports into a single file, applies
// literal replacements, and optionally minifies it or emits a source map.
package bundle_js

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/specialistvlad/burstbuild/internal/ctxlog"
	"github.com/specialistvlad/burstbuild/internal/filetree"
	"github.com/specialistvlad/burstbuild/internal/registry"
	"github.com/specialistvlad/burstbuild/internal/sourcemap"
	"github.com/specialistvlad/burstbuild/internal/stage"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/js"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

const mediaType = "application/javascript"

// Transform bundles the entry module of its input.
//
// Options: entry (default "app.js"), output (default "assets/app.js"),
// include (default ["**/*.js"]), format ("es" or "iife"), replace (literal
// string substitutions), minify and sourcemap.
func Transform(ctx context.Context, inputs []*filetree.Tree, cfg stage.Config) (*filetree.Tree, error) {
	logger := ctxlog.FromContext(ctx)
	entry, err := cfg.String("entry", "app.js")
	if err != nil {
		return nil, err
	}
	output, err := cfg.String("output", "assets/app.js")
	if err != nil {
		return nil, err
	}
	include, err := cfg.Strings("include", []string{"**/*.js"})
	if err != nil {
		return nil, err
	}
	format, err := cfg.String("format", "es")
	if err != nil {
		return nil, err
	}
	if format != "es" && format != "iife" {
		return nil, fmt.Errorf("option \"format\": unsupported format %q", format)
	}
	replacements, err := cfg.StringMap("replace", nil)
	if err != nil {
		return nil, err
	}
	doMinify, err := cfg.Bool("minify", false)
	if err != nil {
		return nil, err
	}
	withMap, err := cfg.Bool("sourcemap", false)
	if err != nil {
		return nil, err
	}

	src, err := filetree.Filter{Include: include}.Apply(inputs[0])
	if err != nil {
		return nil, err
	}

	l := newLinker(src, entry, format == "es")
	lines, err := l.link()
	if err != nil {
		return nil, err
	}
	for _, w := range l.warnings {
		logger.Warn("Unresolved import left in bundle.", "detail", w)
	}
	if format == "iife" {
		lines = append([]line{{text: "(function () {", origin: -1}, {text: "'use strict';", origin: -1}}, lines...)
		lines = append(lines, line{text: "})();", origin: -1})
	}

	replacer := newReplacer(replacements)
	var code strings.Builder
	for _, ln := range lines {
		code.WriteString(replacer.Replace(ln.text))
		code.WriteByte('\n')
	}
	body := []byte(code.String())

	b := filetree.NewBuilder()
	switch {
	case doMinify:
		if withMap {
			logger.Warn("Source maps are not generated for minified bundles.", "output", output)
		}
		m := minify.New()
		m.AddFunc(mediaType, js.Minify)
		minified, err := m.Bytes(mediaType, body)
		if err != nil {
			return nil, &stage.CompileError{File: output, Message: err.Error()}
		}
		b.Add(output, minified, filetree.DefaultMode)
	case withMap:
		mapName := path.Base(output) + ".map"
		gen := sourcemap.NewGenerator(path.Base(output))
		for i, ln := range lines {
			if ln.origin < 0 {
				continue
			}
			content, _ := src.Content(ln.module)
			gen.MapLine(i, gen.AddSource(ln.module, content), ln.origin)
		}
		raw, err := gen.MarshalJSON()
		if err != nil {
			return nil, err
		}
		body = append(body, sourcemap.Comment(mapName, false)+"\n"...)
		b.Add(output, body, filetree.DefaultMode)
		b.Add(path.Join(path.Dir(output), mapName), raw, filetree.DefaultMode)
	default:
		b.Add(output, body, filetree.DefaultMode)
	}

	out, err := b.Tree()
	if err != nil {
		return nil, err
	}
	logger.Debug("Bundle written.", "output", output, "modules", len(l.visited), "bytes", len(body))
	return out, nil
}

// newReplacer substitutes longer keys first so overlapping keys behave
// predictably.
func newReplacer(pairs map[string]string) *strings.Replacer {
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	args := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		args = append(args, k, pairs[k])
	}
	return strings.NewReplacer(args...)
}

// Register registers the transform with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTransform("bundle_js", &registry.Transform{
		Fn: Transform,
		Options: map[string]cty.Type{
			"entry":     cty.String,
			"output":    cty.String,
			"include":   cty.List(cty.String),
			"format":    cty.String,
			"replace":   cty.Map(cty.String),
			"minify":    cty.Bool,
			"sourcemap": cty.Bool,
		},
		MinInputs:   1,
		MaxInputs:   1,
		Description: "Bundle an ES module entry point into one file.",
	})
}
