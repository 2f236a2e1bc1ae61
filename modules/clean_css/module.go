// Package clean_css provides the "clean_css" transform, which minifies the
// stylesheets of its input.
package clean_css

import (
	"context"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/specialistvlad/burstbuild/internal/ctxlog"
	"github.com/specialistvlad/burstbuild/internal/filetree"
	"github.com/specialistvlad/burstbuild/internal/registry"
	"github.com/specialistvlad/burstbuild/internal/stage"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

const mediaType = "text/css"

// Transform minifies every file matching the include patterns (default
// ["**/*.css"]) and passes other files through.
func Transform(ctx context.Context, inputs []*filetree.Tree, cfg stage.Config) (*filetree.Tree, error) {
	logger := ctxlog.FromContext(ctx)
	include, err := cfg.Strings("include", []string{"**/*.css"})
	if err != nil {
		return nil, err
	}

	m := minify.New()
	m.AddFunc(mediaType, css.Minify)

	b := filetree.NewBuilder()
	saved := 0
	err = inputs[0].Walk(func(p string, e filetree.Entry) error {
		if !matches(include, p) {
			b.AddEntry(p, e)
			return nil
		}
		out, err := m.Bytes(mediaType, e.Content())
		if err != nil {
			return &stage.CompileError{File: p, Message: strings.TrimSpace(err.Error())}
		}
		saved += e.Size() - len(out)
		b.Add(p, out, e.Mode())
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Debug("Stylesheets minified.", "bytesSaved", saved)
	return b.Tree()
}

func matches(patterns []string, p string) bool {
	for _, pat := range patterns {
		if ok, _ := doublestar.Match(pat, p); ok {
			return true
		}
	}
	return false
}

// Register registers the transform with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTransform("clean_css", &registry.Transform{
		Fn:          Transform,
		Options:     map[string]cty.Type{"include": cty.List(cty.String)},
		MinInputs:   1,
		MaxInputs:   1,
		Description: "Minify stylesheets.",
	})
}
