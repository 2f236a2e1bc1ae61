// Package merge provides the "merge" transform, which overlays its inputs
// into one tree.
package merge

import (
	"context"

	"github.com/specialistvlad/burstbuild/internal/ctxlog"
	"github.com/specialistvlad/burstbuild/internal/filetree"
	"github.com/specialistvlad/burstbuild/internal/registry"
	"github.com/specialistvlad/burstbuild/internal/stage"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Transform merges its inputs in order.
//
// With overwrite = true (the default) a path present in several inputs with
// different content takes the content of the last input; the collisions are
// returned as a *filetree.ConflictError next to the merged tree, which fails
// the pass only in strict mode. With overwrite = false any collision fails
// the stage.
func Transform(ctx context.Context, inputs []*filetree.Tree, cfg stage.Config) (*filetree.Tree, error) {
	logger := ctxlog.FromContext(ctx)
	overwrite, err := cfg.Bool("overwrite", true)
	if err != nil {
		return nil, err
	}

	if !overwrite {
		return filetree.Merge(inputs...)
	}

	out, collisions := filetree.MergeOverwrite(inputs...)
	if len(collisions) == 0 {
		return out, nil
	}
	for _, c := range collisions {
		logger.Warn("Merge collision, later input wins.", "path", c.Path, "inputs", c.Trees)
	}
	return out, &filetree.ConflictError{Collisions: collisions}
}

// Register registers the transform with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTransform("merge", &registry.Transform{
		Fn:          Transform,
		Options:     map[string]cty.Type{"overwrite": cty.Bool},
		MinInputs:   1,
		Description: "Merge input trees.",
	})
}
