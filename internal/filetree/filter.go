package filetree

import (
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Filter selects and relocates entries of a tree, in the manner of a funnel:
// entries are first restricted to SrcDir (and made relative to it), then
// matched against Files, Include and Exclude, and finally placed under DestDir.
// Include and Exclude use doublestar glob syntax ("**/*.js").
type Filter struct {
	SrcDir  string
	Include []string
	Exclude []string
	Files   []string
	DestDir string
}

// IsZero reports whether the filter keeps every entry unchanged.
func (f Filter) IsZero() bool {
	return f.SrcDir == "" && f.DestDir == "" && len(f.Include) == 0 && len(f.Exclude) == 0 && len(f.Files) == 0
}

// Validate checks every glob pattern.
func (f Filter) Validate() error {
	for _, p := range append(append([]string{}, f.Include...), f.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid glob pattern %q", p)
		}
	}
	return nil
}

// Fingerprint identifies the filter settings.
func (f Filter) Fingerprint() Fingerprint {
	return Sum(
		[]byte(f.SrcDir),
		[]byte(strings.Join(f.Include, "\x00")),
		[]byte(strings.Join(f.Exclude, "\x00")),
		[]byte(strings.Join(f.Files, "\x00")),
		[]byte(f.DestDir),
	)
}

// Apply returns the filtered tree.
func (f Filter) Apply(t *Tree) (*Tree, error) {
	if f.IsZero() {
		return t, nil
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	src := strings.Trim(path.Clean("/"+f.SrcDir), "/")
	files := make(map[string]bool, len(f.Files))
	for _, name := range f.Files {
		files[path.Clean(name)] = true
	}

	b := NewBuilder()
	for _, p := range t.paths {
		rel := p
		if src != "" {
			if !strings.HasPrefix(p, src+"/") {
				continue
			}
			rel = strings.TrimPrefix(p, src+"/")
		}
		if len(files) > 0 && !files[rel] {
			continue
		}
		if len(f.Include) > 0 && !matchAny(f.Include, rel) {
			continue
		}
		if matchAny(f.Exclude, rel) {
			continue
		}
		dst := rel
		if f.DestDir != "" {
			dst = path.Join(f.DestDir, rel)
		}
		b.AddEntry(dst, t.entries[p])
	}
	return b.Tree()
}

func matchAny(patterns []string, p string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, p); ok {
			return true
		}
	}
	return false
}
