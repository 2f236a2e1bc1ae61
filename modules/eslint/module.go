// Package eslint provides the "eslint" transform: a pass-through stage that
// reports common JavaScript style problems.
package eslint

import (
	"context"
	"regexp"
	"strings"

	"github.com/specialistvlad/burstbuild/internal/ctxlog"
	"github.com/specialistvlad/burstbuild/internal/filetree"
	"github.com/specialistvlad/burstbuild/internal/registry"
	"github.com/specialistvlad/burstbuild/internal/stage"
	"github.com/specialistvlad/burstbuild/modules/internal/lint"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

var (
	debuggerStmt = regexp.MustCompile(`(^|[;{}\s])debugger\s*;?\s*$`)
	varDecl      = regexp.MustCompile(`(^|[^\w$.])var\s+[\w$]`)
)

// Rules are the checks applied by the transform.
var Rules = []lint.Rule{
	{
		Name:     "no-debugger",
		Severity: stage.SeverityError,
		Line: func(line string) string {
			if debuggerStmt.MatchString(stripLineComment(line)) {
				return "Unexpected 'debugger' statement."
			}
			return ""
		},
	},
	{
		Name:     "no-var",
		Severity: stage.SeverityWarning,
		Line: func(line string) string {
			if varDecl.MatchString(stripLineComment(line)) {
				return "Unexpected var, use let or const instead."
			}
			return ""
		},
	},
	{
		Name:     "no-trailing-spaces",
		Severity: stage.SeverityWarning,
		Line: func(line string) string {
			if strings.TrimRight(line, " \t") != line {
				return "Trailing spaces not allowed."
			}
			return ""
		},
	},
}

func stripLineComment(line string) string {
	if i := strings.Index(line, "//"); i >= 0 {
		return line[:i]
	}
	return line
}

// Transform lints the JavaScript files of its input and passes the input
// through unchanged. Violations are returned alongside the tree.
func Transform(ctx context.Context, inputs []*filetree.Tree, cfg stage.Config) (*filetree.Tree, error) {
	logger := ctxlog.FromContext(ctx)
	include, err := cfg.Strings("include", []string{"**/*.js"})
	if err != nil {
		return nil, err
	}
	exclude, err := cfg.Strings("exclude", nil)
	if err != nil {
		return nil, err
	}
	rules, err := cfg.StringMap("rules", nil)
	if err != nil {
		return nil, err
	}

	errs, err := lint.Run(inputs[0], Rules, lint.Options{Include: include, Exclude: exclude, Severities: rules})
	if err != nil {
		return nil, err
	}
	for _, e := range errs {
		logger.Warn("ESLint violation.", "file", e.File, "line", e.Line, "rule", e.Rule, "severity", e.Severity, "message", e.Message)
	}
	if len(errs) > 0 {
		return inputs[0], errs
	}
	return inputs[0], nil
}

// Register registers the transform with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTransform("eslint", &registry.Transform{
		Fn: Transform,
		Options: map[string]cty.Type{
			"include": cty.List(cty.String),
			"exclude": cty.List(cty.String),
			"rules":   cty.Map(cty.String),
		},
		MinInputs:   1,
		MaxInputs:   1,
		Description: "Lint JavaScript files; pass the tree through.",
	})
}
