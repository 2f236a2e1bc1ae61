// Package sasslint provides the "sasslint" transform: a pass-through stage
// that reports problems in Sass sources.
package sasslint

import (
	"context"
	"fmt"
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

var emptyRule = regexp.MustCompile(`[^\s{};]\s*\{\s*\}`)

// Rules are the checks applied by the transform.
var Rules = []lint.Rule{
	{
		Name:     "brace-balance",
		Severity: stage.SeverityError,
		File:     braceBalance,
	},
	{
		Name:     "no-important",
		Severity: stage.SeverityWarning,
		Line: func(line string) string {
			if strings.Contains(stripComment(line), "!important") {
				return "!important not allowed"
			}
			return ""
		},
	},
	{
		Name:     "no-empty-rule",
		Severity: stage.SeverityWarning,
		Line: func(line string) string {
			if emptyRule.MatchString(stripComment(line)) {
				return "Empty rule set"
			}
			return ""
		},
	},
}

func stripComment(line string) string {
	if i := strings.Index(line, "//"); i >= 0 && (i == 0 || line[i-1] != ':') {
		return line[:i]
	}
	return line
}

// braceBalance reports closing braces without an opening one and blocks
// left open at the end of the file.
func braceBalance(content string) []lint.Finding {
	var findings []lint.Finding
	var open []int
	for i, line := range strings.Split(content, "\n") {
		for _, c := range stripComment(line) {
			switch c {
			case '{':
				open = append(open, i+1)
			case '}':
				if len(open) == 0 {
					findings = append(findings, lint.Finding{Line: i + 1, Message: "Unexpected '}'"})
					continue
				}
				open = open[:len(open)-1]
			}
		}
	}
	for _, line := range open {
		findings = append(findings, lint.Finding{Line: line, Message: fmt.Sprintf("Block opened on line %d is never closed", line)})
	}
	return findings
}

// Transform lints the Sass files of its input and passes the input through
// unchanged. Violations are returned alongside the tree.
func Transform(ctx context.Context, inputs []*filetree.Tree, cfg stage.Config) (*filetree.Tree, error) {
	logger := ctxlog.FromContext(ctx)
	include, err := cfg.Strings("include", []string{"**/*.scss", "**/*.sass"})
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
		logger.Warn("Sass lint violation.", "file", e.File, "line", e.Line, "rule", e.Rule, "severity", e.Severity, "message", e.Message)
	}
	if len(errs) > 0 {
		return inputs[0], errs
	}
	return inputs[0], nil
}

// Register registers the transform with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTransform("sasslint", &registry.Transform{
		Fn: Transform,
		Options: map[string]cty.Type{
			"include": cty.List(cty.String),
			"exclude": cty.List(cty.String),
			"rules":   cty.Map(cty.String),
		},
		MinInputs:   1,
		MaxInputs:   1,
		Description: "Lint Sass files; pass the tree through.",
	})
}
