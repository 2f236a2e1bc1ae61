// Package lint runs simple line and file rules over a tree and reports
// violations as stage.LintErrors.
package lint

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/specialistvlad/burstbuild/internal/filetree"
	"github.com/specialistvlad/burstbuild/internal/stage"
)

// Finding is one violation reported by a FileCheck.
type Finding struct {
	Line    int
	Message string
}

// Rule is a named check with a default severity. Exactly one of Line and
// File is set.
type Rule struct {
	Name     string
	Severity stage.Severity
	// Line returns a message when the line violates the rule.
	Line func(line string) string
	// File inspects a whole file.
	File func(content string) []Finding
}

// Options controls a lint run.
type Options struct {
	Include []string
	Exclude []string
	// Severities overrides rule severities by name; "off" disables a rule.
	Severities map[string]string
}

// Run applies rules to every file of tree selected by opts and returns the
// violations ordered by file, line and rule. An unknown rule or severity in
// opts.Severities is an error.
func Run(tree *filetree.Tree, rules []Rule, opts Options) (stage.LintErrors, error) {
	active, err := configure(rules, opts.Severities)
	if err != nil {
		return nil, err
	}

	var out stage.LintErrors
	for _, p := range tree.Paths() {
		if !selected(p, opts) {
			continue
		}
		content, _ := tree.Content(p)
		text := string(content)
		var found stage.LintErrors
		for _, r := range active {
			if r.File != nil {
				for _, f := range r.File(text) {
					found = append(found, &stage.LintError{File: p, Line: f.Line, Rule: r.Name, Message: f.Message, Severity: r.Severity})
				}
			}
		}
		for i, line := range strings.Split(text, "\n") {
			for _, r := range active {
				if r.Line == nil {
					continue
				}
				if msg := r.Line(line); msg != "" {
					found = append(found, &stage.LintError{File: p, Line: i + 1, Rule: r.Name, Message: msg, Severity: r.Severity})
				}
			}
		}
		sortByLine(found)
		out = append(out, found...)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func configure(rules []Rule, overrides map[string]string) ([]Rule, error) {
	known := make(map[string]bool, len(rules))
	for _, r := range rules {
		known[r.Name] = true
	}
	for name, sev := range overrides {
		if !known[name] {
			return nil, fmt.Errorf("unknown lint rule %q", name)
		}
		switch sev {
		case "off", string(stage.SeverityWarning), string(stage.SeverityError):
		default:
			return nil, fmt.Errorf("rule %q: unknown severity %q", name, sev)
		}
	}
	var active []Rule
	for _, r := range rules {
		if sev, ok := overrides[r.Name]; ok {
			if sev == "off" {
				continue
			}
			r.Severity = stage.Severity(sev)
		}
		active = append(active, r)
	}
	return active, nil
}

func selected(p string, opts Options) bool {
	for _, pat := range opts.Exclude {
		if ok, _ := doublestar.Match(pat, p); ok {
			return false
		}
	}
	for _, pat := range opts.Include {
		if ok, _ := doublestar.Match(pat, p); ok {
			return true
		}
	}
	return false
}

func sortByLine(errs stage.LintErrors) {
	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Line < errs[j].Line })
}
