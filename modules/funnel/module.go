// Package funnel provides the "funnel" transform, which selects and
// relocates part of a tree.
package funnel

import (
	"context"

	"github.com/specialistvlad/burstbuild/internal/filetree"
	"github.com/specialistvlad/burstbuild/internal/registry"
	"github.com/specialistvlad/burstbuild/internal/stage"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// FilterFromConfig reads the src_dir, include, exclude, files and dest_dir
// options into a filetree.Filter.
func FilterFromConfig(cfg stage.Config) (filetree.Filter, error) {
	var f filetree.Filter
	var err error
	if f.SrcDir, err = cfg.String("src_dir", ""); err != nil {
		return f, err
	}
	if f.Include, err = cfg.Strings("include", nil); err != nil {
		return f, err
	}
	if f.Exclude, err = cfg.Strings("exclude", nil); err != nil {
		return f, err
	}
	if f.Files, err = cfg.Strings("files", nil); err != nil {
		return f, err
	}
	if f.DestDir, err = cfg.String("dest_dir", ""); err != nil {
		return f, err
	}
	return f, f.Validate()
}

// Transform applies the configured filter to its input.
func Transform(_ context.Context, inputs []*filetree.Tree, cfg stage.Config) (*filetree.Tree, error) {
	f, err := FilterFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return f.Apply(inputs[0])
}

// Options are the options understood by FilterFromConfig.
var Options = map[string]cty.Type{
	"src_dir":  cty.String,
	"include":  cty.List(cty.String),
	"exclude":  cty.List(cty.String),
	"files":    cty.List(cty.String),
	"dest_dir": cty.String,
}

// Register registers the transform with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTransform("funnel", &registry.Transform{
		Fn:          Transform,
		Options:     Options,
		MinInputs:   1,
		MaxInputs:   1,
		Description: "Select and relocate files.",
	})
}
