// Package log_tree provides the "log_tree" transform, which logs the listing
// of its input and passes it through.
package log_tree

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/specialistvlad/burstbuild/internal/ctxlog"
	"github.com/specialistvlad/burstbuild/internal/filetree"
	"github.com/specialistvlad/burstbuild/internal/registry"
	"github.com/specialistvlad/burstbuild/internal/stage"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Transform logs the input listing at info level in the "tree" (default) or
// "list" style.
func Transform(ctx context.Context, inputs []*filetree.Tree, cfg stage.Config) (*filetree.Tree, error) {
	style, err := cfg.String("output", "tree")
	if err != nil {
		return nil, err
	}
	label, err := cfg.String("label", "")
	if err != nil {
		return nil, err
	}
	listing, err := Render(inputs[0], style)
	if err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Info("🌳 Tree contents.", "label", label, "files", inputs[0].Len(), "listing", "\n"+listing)
	return inputs[0], nil
}

type dir struct {
	dirs  map[string]*dir
	files []string
}

// Render formats the paths of t in the given style.
func Render(t *filetree.Tree, style string) (string, error) {
	switch style {
	case "list":
		return strings.Join(t.Paths(), "\n"), nil
	case "tree":
	default:
		return "", fmt.Errorf("option \"output\": unknown style %q", style)
	}

	root := &dir{dirs: make(map[string]*dir)}
	for _, p := range t.Paths() {
		parts := strings.Split(p, "/")
		d := root
		for _, part := range parts[:len(parts)-1] {
			next, ok := d.dirs[part]
			if !ok {
				next = &dir{dirs: make(map[string]*dir)}
				d.dirs[part] = next
			}
			d = next
		}
		d.files = append(d.files, parts[len(parts)-1])
	}

	var b strings.Builder
	b.WriteString(".")
	writeDir(&b, root, "")
	return b.String(), nil
}

func writeDir(b *strings.Builder, d *dir, indent string) {
	type child struct {
		name string
		sub  *dir
	}
	var children []child
	for name, sub := range d.dirs {
		children = append(children, child{name: name, sub: sub})
	}
	for _, f := range d.files {
		children = append(children, child{name: f})
	}
	sort.Slice(children, func(i, j int) bool { return children[i].name < children[j].name })

	for i, c := range children {
		branch, next := "├── ", "│   "
		if i == len(children)-1 {
			branch, next = "└── ", "    "
		}
		b.WriteString("\n" + indent + branch + c.name)
		if c.sub != nil {
			writeDir(b, c.sub, indent+next)
		}
	}
}

// Register registers the transform with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTransform("log_tree", &registry.Transform{
		Fn: Transform,
		Options: map[string]cty.Type{
			"output": cty.String,
			"label":  cty.String,
		},
		MinInputs:   1,
		MaxInputs:   1,
		Description: "Log the tree listing; pass the tree through.",
	})
}
