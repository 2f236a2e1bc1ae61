package blueprint

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/specialistvlad/burstbuild/internal/filetree"
	"github.com/specialistvlad/burstbuild/internal/pipeline"
	"github.com/specialistvlad/burstbuild/internal/stage"
	"github.com/specialistvlad/burstbuild/modules/asset_rev"
	"github.com/specialistvlad/burstbuild/modules/bundle_js"
	"github.com/specialistvlad/burstbuild/modules/clean_css"
	"github.com/specialistvlad/burstbuild/modules/compile_sass"
	"github.com/specialistvlad/burstbuild/modules/eslint"
	"github.com/specialistvlad/burstbuild/modules/livereload"
	"github.com/specialistvlad/burstbuild/modules/log_tree"
	"github.com/specialistvlad/burstbuild/modules/merge"
	"github.com/specialistvlad/burstbuild/modules/sasslint"
)

// Recognized build environments.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Definition is the default pipeline as an HCL definition file.
//
//go:embed burstbuild.hcl
var Definition []byte

// Options configures the default pipeline.
type Options struct {
	// ProjectDir holds the app and public directories.
	ProjectDir string
	// Env is EnvDevelopment or EnvProduction.
	Env string
	// AppRoot is the application directory, "app" by default. Its styles
	// live in the styles subdirectory.
	AppRoot string
	// PublicDir is the static files directory, "public" by default. It is
	// left out of the pipeline when it does not exist.
	PublicDir string
	// LiveReloadURL is the origin of the live-reload server; empty means
	// the page's own origin.
	LiveReloadURL string
}

// ValidateEnv reports whether env is a recognized build environment.
func ValidateEnv(env string) error {
	if env != EnvDevelopment && env != EnvProduction {
		return fmt.Errorf("unknown environment %q (want %q or %q)", env, EnvDevelopment, EnvProduction)
	}
	return nil
}

// Build constructs the default pipeline graph for opts.
func Build(opts Options) (*pipeline.Graph, error) {
	if err := ValidateEnv(opts.Env); err != nil {
		return nil, err
	}
	if opts.AppRoot == "" {
		opts.AppRoot = "app"
	}
	if opts.PublicDir == "" {
		opts.PublicDir = "public"
	}
	production := opts.Env == EnvProduction
	appRoot := filepath.Join(opts.ProjectDir, opts.AppRoot)

	b := pipeline.NewBuilder()

	html := b.Source("html", appRoot, filetree.Filter{Files: []string{"index.html"}})
	annotate(html, "Index file")

	js := b.Compose("lint_js", b.Source("app", appRoot, filetree.Filter{Include: []string{"**/*.js"}}), eslint.Transform, stage.Config{})
	js = b.Compose("scripts", js, bundle_js.Transform, stage.MustOptions(map[string]any{
		"include":   []string{"**/*.js"},
		"entry":     "app.js",
		"output":    "assets/app.js",
		"format":    "es",
		"sourcemap": !production,
		"minify":    production,
		"replace":   map[string]string{"process.env.NODE_ENV": strconv.Quote(opts.Env)},
	}))

	css := b.Compose("lint_css", b.Source("styles", filepath.Join(appRoot, "styles"), filetree.Filter{}), sasslint.Transform, stage.Config{})
	css = b.Compose("sass", css, compile_sass.Transform, stage.MustOptions(map[string]any{
		"input":              "app.scss",
		"output":             "assets/app.css",
		"sourcemap":          !production,
		"sourcemap_contents": true,
	}))
	annotate(css, "Sass files")
	if production {
		css = b.Compose("clean_css", css, clean_css.Transform, stage.Config{})
	}

	parts := []*stage.Stage{html, js, css}
	publicDir := filepath.Join(opts.ProjectDir, opts.PublicDir)
	exists, err := dirExists(publicDir)
	if err != nil {
		return nil, err
	}
	if exists {
		public := b.Source("public", publicDir, filetree.Filter{})
		annotate(public, "Public files")
		parts = append(parts, public)
	}

	tree := b.Combine("site", parts, merge.Transform, stage.Config{})
	annotate(tree, "Final output")
	if production {
		tree = b.Compose("asset_rev", tree, asset_rev.Transform, stage.Config{})
	} else {
		tree = b.Compose("livereload", tree, livereload.Transform, stage.MustOptions(map[string]any{
			"target":     "index.html",
			"server_url": opts.LiveReloadURL,
		}))
	}

	tree = b.Compose("log", tree, log_tree.Transform, stage.MustOptions(map[string]any{"output": "tree"}))
	b.Output("log")
	return b.Finalize()
}

func annotate(s *stage.Stage, annotation string) {
	if s != nil {
		s.Annotation = annotation
	}
}

func dirExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, &filetree.IOError{Path: path, Err: err}
	}
	return info.IsDir(), nil
}
