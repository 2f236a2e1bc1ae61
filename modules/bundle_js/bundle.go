package bundle_js

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/specialistvlad/burstbuild/internal/filetree"
	"github.com/specialistvlad/burstbuild/internal/stage"
)

var (
	importStmt      = regexp.MustCompile(`^\s*import\s+(?:(.+?)\s+from\s+)?["']([^"']+)["']\s*;?\s*$`)
	reexportStmt    = regexp.MustCompile(`^\s*export\s+\*\s+from\s+["']([^"']+)["']\s*;?\s*$`)
	exportListStmt  = regexp.MustCompile(`^\s*export\s*\{([^}]*)\}\s*;?\s*$`)
	exportDecl      = regexp.MustCompile(`^(\s*)export\s+((?:async\s+)?function\b|class\b|const\b|let\b|var\b)`)
	exportDefault   = regexp.MustCompile(`^(\s*)export\s+default\s+`)
	namedDefaultDef = regexp.MustCompile(`^(?:async\s+)?(?:function\s*\*?|class)\s+([A-Za-z_$][\w$]*)`)
	nonIdent        = regexp.MustCompile(`[^\w$]`)
)

// line is one line of bundle output and the source line it came from.
type line struct {
	text   string
	module string
	origin int
}

// linker concatenates an entry module and its relative imports into one
// scope, dependencies first.
type linker struct {
	tree     *filetree.Tree
	entry    string
	keepExp  bool
	visited  map[string]bool
	defaults map[string]string
	external []line
	seenExt  map[string]bool
	out      []line
	// Warnings collects non-fatal notes, such as external imports.
	warnings []string
}

func newLinker(tree *filetree.Tree, entry string, keepEntryExports bool) *linker {
	return &linker{
		tree:     tree,
		entry:    entry,
		keepExp:  keepEntryExports,
		visited:  make(map[string]bool),
		defaults: make(map[string]string),
		seenExt:  make(map[string]bool),
	}
}

// link returns the bundled lines: hoisted external imports, then every
// module in dependency order.
func (l *linker) link() ([]line, error) {
	if !l.tree.Has(l.entry) {
		return nil, &stage.CompileError{File: l.entry, Message: "entry module not found"}
	}
	if err := l.visit(l.entry); err != nil {
		return nil, err
	}
	return append(l.external, l.out...), nil
}

func (l *linker) resolve(from string, lineNo int, spec string) (string, error) {
	p := path.Join(path.Dir(from), spec)
	for _, cand := range []string{p, p + ".js", p + "/index.js"} {
		if l.tree.Has(cand) {
			return cand, nil
		}
	}
	return "", &stage.CompileError{File: from, Line: lineNo, Message: fmt.Sprintf("could not resolve '%s'", spec)}
}

func isRelative(spec string) bool {
	return strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../")
}

func splitLines(content []byte) []string {
	text := strings.TrimSuffix(string(content), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func (l *linker) visit(mod string) error {
	if l.visited[mod] {
		return nil
	}
	l.visited[mod] = true
	content, _ := l.tree.Content(mod)
	src := splitLines(content)
	isEntry := mod == l.entry

	// First pass: load dependencies so their declarations precede this module.
	for i, text := range src {
		spec := ""
		if m := importStmt.FindStringSubmatch(text); m != nil {
			spec = m[2]
		} else if m := reexportStmt.FindStringSubmatch(text); m != nil {
			spec = m[1]
		}
		if spec == "" || !isRelative(spec) {
			continue
		}
		dep, err := l.resolve(mod, i+1, spec)
		if err != nil {
			return err
		}
		if err := l.visit(dep); err != nil {
			return err
		}
	}

	for i, text := range src {
		emit := func(s string) { l.out = append(l.out, line{text: s, module: mod, origin: i}) }

		if m := importStmt.FindStringSubmatch(text); m != nil {
			if !isRelative(m[2]) {
				if !l.seenExt[text] {
					l.seenExt[text] = true
					l.external = append(l.external, line{text: strings.TrimSpace(text), module: mod, origin: i})
					l.warnings = append(l.warnings, fmt.Sprintf("%s:%d: '%s' is treated as an external dependency", mod, i+1, m[2]))
				}
				continue
			}
			dep, _ := l.resolve(mod, i+1, m[2])
			bindings, err := l.bindImports(mod, i+1, m[1], dep)
			if err != nil {
				return err
			}
			for _, b := range bindings {
				emit(b)
			}
			continue
		}
		if reexportStmt.MatchString(text) {
			continue
		}
		if isEntry && l.keepExp {
			emit(text)
			continue
		}
		if m := exportListStmt.FindStringSubmatch(text); m != nil {
			for _, spec := range splitList(m[1]) {
				local, exported, aliased := cutAlias(spec)
				if aliased && local != exported {
					emit(fmt.Sprintf("const %s = %s;", exported, local))
				}
			}
			continue
		}
		if m := exportDefault.FindStringSubmatchIndex(text); m != nil {
			indent, rest := text[m[2]:m[3]], text[m[1]:]
			if d := namedDefaultDef.FindStringSubmatch(rest); d != nil {
				l.defaults[mod] = d[1]
				emit(indent + rest)
			} else {
				name := defaultName(mod)
				l.defaults[mod] = name
				emit(fmt.Sprintf("%sconst %s = %s", indent, name, rest))
			}
			continue
		}
		if m := exportDecl.FindStringSubmatchIndex(text); m != nil {
			emit(text[m[2]:m[3]] + text[m[4]:])
			continue
		}
		emit(text)
	}
	return nil
}

// bindImports turns an import clause into declarations aliasing the names
// the dependency already declared at top level.
func (l *linker) bindImports(mod string, lineNo int, clause, dep string) ([]string, error) {
	clause = strings.TrimSpace(clause)
	if clause == "" {
		return nil, nil
	}
	if strings.HasPrefix(clause, "*") {
		return nil, &stage.CompileError{File: mod, Line: lineNo, Message: "namespace imports are not supported"}
	}

	var out []string
	named := ""
	if !strings.HasPrefix(clause, "{") {
		def, rest, _ := strings.Cut(clause, ",")
		def = strings.TrimSpace(def)
		target, ok := l.defaults[dep]
		if !ok {
			return nil, &stage.CompileError{File: mod, Line: lineNo, Message: fmt.Sprintf("'%s' has no default export", dep)}
		}
		if def != target {
			out = append(out, fmt.Sprintf("const %s = %s;", def, target))
		}
		named = strings.TrimSpace(rest)
	} else {
		named = clause
	}
	if named != "" {
		named = strings.TrimSuffix(strings.TrimPrefix(named, "{"), "}")
		for _, spec := range splitList(named) {
			imported, local, aliased := cutAlias(spec)
			if aliased && imported != local {
				out = append(out, fmt.Sprintf("const %s = %s;", local, imported))
			}
		}
	}
	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// cutAlias splits "a as b" into ("a", "b", true) and "a" into ("a", "a", false).
func cutAlias(spec string) (string, string, bool) {
	fields := strings.Fields(spec)
	if len(fields) == 3 && fields[1] == "as" {
		return fields[0], fields[2], true
	}
	return spec, spec, false
}

func defaultName(mod string) string {
	return "__default_" + nonIdent.ReplaceAllString(strings.TrimSuffix(mod, ".js"), "_")
}
