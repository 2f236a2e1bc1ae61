// Package livereload provides the "livereload" transform, which injects the
// live-reload client into the target page.
package livereload

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/specialistvlad/burstbuild/internal/ctxlog"
	"github.com/specialistvlad/burstbuild/internal/filetree"
	reload "github.com/specialistvlad/burstbuild/internal/livereload"
	"github.com/specialistvlad/burstbuild/internal/registry"
	"github.com/specialistvlad/burstbuild/internal/stage"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Snippet returns the markup connecting a page to the reload server. An
// empty serverURL connects to the page's own origin.
func Snippet(serverURL string) string {
	base := strings.TrimSuffix(serverURL, "/")
	connect := "io()"
	if base != "" {
		connect = "io(" + strconv.Quote(base) + ")"
	}
	return fmt.Sprintf(
		"<script src=%q></script>\n<script>%s.on(%q,function(){location.reload();});</script>\n",
		base+reload.ClientScript, connect, reload.ReloadEvent,
	)
}

// Transform injects the snippet before the closing body tag of the target
// page (default "index.html"), or appends it when there is none. A missing
// target leaves the tree unchanged.
func Transform(ctx context.Context, inputs []*filetree.Tree, cfg stage.Config) (*filetree.Tree, error) {
	logger := ctxlog.FromContext(ctx)
	target, err := cfg.String("target", "index.html")
	if err != nil {
		return nil, err
	}
	serverURL, err := cfg.String("server_url", "")
	if err != nil {
		return nil, err
	}

	in := inputs[0]
	entry, ok := in.Get(target)
	if !ok {
		logger.Warn("Live reload target not found, leaving tree unchanged.", "target", target)
		return in, nil
	}

	page := string(entry.Content())
	snippet := Snippet(serverURL)
	if i := lastIndexFold(page, "</body>"); i >= 0 {
		page = page[:i] + snippet + page[i:]
	} else {
		page += snippet
	}
	return in.With(target, []byte(page), entry.Mode())
}

// lastIndexFold returns the byte offset in s of the last case-insensitive
// match of the ASCII string tag, or -1.
func lastIndexFold(s, tag string) int {
	for i := len(s) - len(tag); i >= 0; i-- {
		if strings.EqualFold(s[i:i+len(tag)], tag) {
			return i
		}
	}
	return -1
}

// Register registers the transform with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTransform("livereload", &registry.Transform{
		Fn: Transform,
		Options: map[string]cty.Type{
			"target":     cty.String,
			"server_url": cty.String,
		},
		MinInputs:   1,
		MaxInputs:   1,
		Description: "Inject the live-reload client into a page.",
	})
}
