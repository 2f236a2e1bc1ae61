package compile_sass

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/specialistvlad/burstbuild/internal/filetree"
	"github.com/specialistvlad/burstbuild/internal/stage"
)

var (
	importRule  = regexp.MustCompile(`^\s*@import\s+(.+?)\s*;\s*$`)
	variableDef = regexp.MustCompile(`^\s*\$([\w-]+)\s*:\s*(.+?)\s*(!default)?\s*;\s*$`)
	variableUse = regexp.MustCompile(`\$([\w-]+)`)
)

// cssLine is one line of compiled output and where it came from.
type cssLine struct {
	text   string
	file   string
	origin int
}

// compiler inlines imports and substitutes variables. It deliberately
// supports only flat stylesheets: nested rules pass through unchanged.
type compiler struct {
	tree      *filetree.Tree
	loadPaths []string
	vars      map[string]string
	stack     []string
	out       []cssLine
	// used lists every file read, in first-read order.
	used []string
	seen map[string]bool
}

func newCompiler(tree *filetree.Tree, loadPaths []string) *compiler {
	return &compiler{tree: tree, loadPaths: loadPaths, vars: make(map[string]string), seen: make(map[string]bool)}
}

func (c *compiler) compile(entry string) ([]cssLine, error) {
	if !c.tree.Has(entry) {
		return nil, &stage.CompileError{File: entry, Message: "file to import not found or unreadable"}
	}
	if err := c.file(entry); err != nil {
		return nil, err
	}
	if err := checkBraces(c.out); err != nil {
		return nil, err
	}
	return c.out, nil
}

func (c *compiler) file(name string) error {
	for _, open := range c.stack {
		if open == name {
			return &stage.CompileError{File: name, Message: fmt.Sprintf("import cycle: %s -> %s", strings.Join(c.stack, " -> "), name)}
		}
	}
	c.stack = append(c.stack, name)
	defer func() { c.stack = c.stack[:len(c.stack)-1] }()
	if !c.seen[name] {
		c.seen[name] = true
		c.used = append(c.used, name)
	}

	content, _ := c.tree.Content(name)
	for i, raw := range strings.Split(string(content), "\n") {
		text := stripLineComment(raw)

		if m := importRule.FindStringSubmatch(text); m != nil {
			var plain []string
			for _, target := range splitImports(m[1]) {
				if isPlainCSSImport(target) {
					plain = append(plain, target)
					continue
				}
				resolved, ok := c.resolve(name, unquote(target))
				if !ok {
					return &stage.CompileError{File: name, Line: i + 1, Message: fmt.Sprintf("file to import not found or unreadable: %s", unquote(target))}
				}
				if err := c.file(resolved); err != nil {
					return err
				}
			}
			if len(plain) > 0 {
				c.out = append(c.out, cssLine{text: "@import " + strings.Join(plain, ", ") + ";", file: name, origin: i})
			}
			continue
		}

		if m := variableDef.FindStringSubmatch(text); m != nil {
			if _, defined := c.vars[m[1]]; defined && m[3] != "" {
				continue
			}
			value, err := c.substitute(name, i, m[2])
			if err != nil {
				return err
			}
			c.vars[m[1]] = value
			continue
		}

		text, err := c.substitute(name, i, text)
		if err != nil {
			return err
		}
		text = strings.TrimRight(text, " \t\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		c.out = append(c.out, cssLine{text: text, file: name, origin: i})
	}
	return nil
}

func (c *compiler) substitute(file string, line int, text string) (string, error) {
	var missing string
	out := variableUse.ReplaceAllStringFunc(text, func(v string) string {
		if value, ok := c.vars[v[1:]]; ok {
			return value
		}
		if missing == "" {
			missing = v
		}
		return v
	})
	if missing != "" {
		return "", &stage.CompileError{File: file, Line: line + 1, Message: "Undefined variable: " + missing}
	}
	return out, nil
}

// resolve finds an imported file relative to the importing file, then in
// each load path, accepting the bare name, the .scss extension and the
// underscore-prefixed partial form.
func (c *compiler) resolve(from, target string) (string, bool) {
	bases := []string{path.Dir(from)}
	bases = append(bases, c.loadPaths...)
	for _, base := range bases {
		p := path.Join(base, target)
		dir, file := path.Split(p)
		for _, cand := range []string{p, p + ".scss", path.Join(dir, "_"+file+".scss"), path.Join(dir, "_"+file)} {
			if c.tree.Has(cand) {
				return cand, true
			}
		}
	}
	return "", false
}

func stripLineComment(line string) string {
	inString := byte(0)
	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case inString != 0:
			if ch == inString {
				inString = 0
			}
		case ch == '"' || ch == '\'':
			inString = ch
		case ch == '/' && i+1 < len(line) && line[i+1] == '/' && (i == 0 || (line[i-1] != ':' && line[i-1] != '(')):
			return line[:i]
		}
	}
	return line
}

func splitImports(list string) []string {
	var out []string
	for _, part := range strings.Split(list, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func unquote(s string) string {
	return strings.Trim(s, `"'`)
}

func isPlainCSSImport(target string) bool {
	t := unquote(target)
	return strings.HasPrefix(target, "url(") || strings.HasSuffix(t, ".css") ||
		strings.HasPrefix(t, "http://") || strings.HasPrefix(t, "https://") || strings.HasPrefix(t, "//")
}

// checkBraces verifies that blocks are balanced. Braces inside quoted
// strings and block comments do not count; strings end at the line end.
func checkBraces(lines []cssLine) error {
	var open []cssLine
	inComment := false
	for _, ln := range lines {
		var quote byte
		text := ln.text
		for i := 0; i < len(text); i++ {
			ch := text[i]
			switch {
			case inComment:
				if ch == '*' && i+1 < len(text) && text[i+1] == '/' {
					inComment = false
					i++
				}
			case quote != 0:
				if ch == '\\' {
					i++
				} else if ch == quote {
					quote = 0
				}
			case ch == '"' || ch == '\'':
				quote = ch
			case ch == '/' && i+1 < len(text) && text[i+1] == '*':
				inComment = true
				i++
			case ch == '{':
				open = append(open, ln)
			case ch == '}':
				if len(open) == 0 {
					return &stage.CompileError{File: ln.file, Line: ln.origin + 1, Message: "invalid CSS: unexpected \"}\""}
				}
				open = open[:len(open)-1]
			}
		}
	}
	if len(open) > 0 {
		ln := open[len(open)-1]
		return &stage.CompileError{File: ln.file, Line: ln.origin + 1, Message: "invalid CSS: unclosed block"}
	}
	return nil
}
