package filetree

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// DefaultMode is the permission set given to entries created without one.
const DefaultMode fs.FileMode = 0o644

// Entry is a single file in a Tree.
type Entry struct {
	content     []byte
	mode        fs.FileMode
	fingerprint Fingerprint
}

// NewEntry builds an entry from content and permission bits. The content is copied.
func NewEntry(content []byte, mode fs.FileMode) Entry {
	if mode == 0 {
		mode = DefaultMode
	}
	c := bytes.Clone(content)
	if c == nil {
		c = []byte{}
	}
	return Entry{content: c, mode: mode.Perm(), fingerprint: entryFingerprint(c, mode)}
}

// Content returns the entry bytes. Callers must not modify the returned slice.
func (e Entry) Content() []byte { return e.content }

// Mode returns the permission bits of the entry.
func (e Entry) Mode() fs.FileMode { return e.mode }

// Fingerprint returns the content fingerprint of the entry.
func (e Entry) Fingerprint() Fingerprint { return e.fingerprint }

// Size returns the content length in bytes.
func (e Entry) Size() int { return len(e.content) }

// Tree is an immutable, path-ordered snapshot of files.
type Tree struct {
	paths       []string
	entries     map[string]Entry
	fingerprint Fingerprint
}

var emptyTree = newTree(map[string]Entry{})

// Empty returns the tree with no entries.
func Empty() *Tree { return emptyTree }

func newTree(entries map[string]Entry) *Tree {
	paths := make([]string, 0, len(entries))
	for p := range entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	fields := make([][]byte, 0, len(paths)*2)
	for _, p := range paths {
		fields = append(fields, []byte(p), []byte(entries[p].fingerprint))
	}
	return &Tree{paths: paths, entries: entries, fingerprint: Sum(fields...)}
}

// FromFiles builds a tree from path to content pairs using DefaultMode.
func FromFiles(files map[string][]byte) (*Tree, error) {
	b := NewBuilder()
	for p, c := range files {
		b.Add(p, c, DefaultMode)
	}
	return b.Tree()
}

// Len returns the number of entries.
func (t *Tree) Len() int { return len(t.paths) }

// Paths returns the sorted entry paths.
func (t *Tree) Paths() []string {
	out := make([]string, len(t.paths))
	copy(out, t.paths)
	return out
}

// Get returns the entry stored at p.
func (t *Tree) Get(p string) (Entry, bool) {
	e, ok := t.entries[p]
	return e, ok
}

// Has reports whether p is present.
func (t *Tree) Has(p string) bool {
	_, ok := t.entries[p]
	return ok
}

// Content returns the bytes stored at p.
func (t *Tree) Content(p string) ([]byte, bool) {
	e, ok := t.entries[p]
	if !ok {
		return nil, false
	}
	return e.content, true
}

// Fingerprint identifies the full tree: paths, modes and contents.
func (t *Tree) Fingerprint() Fingerprint { return t.fingerprint }

// Equal reports whether both trees hold identical paths and entries.
func (t *Tree) Equal(other *Tree) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.fingerprint == other.fingerprint
}

// Walk calls fn for every entry in path order, stopping at the first error.
func (t *Tree) Walk(fn func(p string, e Entry) error) error {
	for _, p := range t.paths {
		if err := fn(p, t.entries[p]); err != nil {
			return err
		}
	}
	return nil
}

// Filter returns a tree holding only the entries for which keep returns true.
// Fingerprints are preserved.
func (t *Tree) Filter(keep func(p string, e Entry) bool) *Tree {
	out := make(map[string]Entry, len(t.entries))
	for _, p := range t.paths {
		if e := t.entries[p]; keep(p, e) {
			out[p] = e
		}
	}
	return newTree(out)
}

// With returns a tree where p holds content, replacing any previous entry.
func (t *Tree) With(p string, content []byte, mode fs.FileMode) (*Tree, error) {
	clean, err := CleanPath(p)
	if err != nil {
		return nil, err
	}
	out := t.copyEntries()
	out[clean] = NewEntry(content, mode)
	return newTree(out), nil
}

// Without returns a tree with the given paths removed. Missing paths are ignored.
func (t *Tree) Without(paths ...string) *Tree {
	out := t.copyEntries()
	for _, p := range paths {
		delete(out, p)
	}
	return newTree(out)
}

// Rename returns a tree where the entry at from has moved to to.
func (t *Tree) Rename(from, to string) (*Tree, error) {
	e, ok := t.entries[from]
	if !ok {
		return nil, fmt.Errorf("rename %s: %w", from, fs.ErrNotExist)
	}
	clean, err := CleanPath(to)
	if err != nil {
		return nil, err
	}
	out := t.copyEntries()
	delete(out, from)
	out[clean] = e
	return newTree(out), nil
}

func (t *Tree) copyEntries() map[string]Entry {
	out := make(map[string]Entry, len(t.entries))
	for p, e := range t.entries {
		out[p] = e
	}
	return out
}

// CleanPath normalizes p to a clean slash-separated relative path. It rejects
// empty, absolute and parent-escaping paths.
func CleanPath(p string) (string, error) {
	if p == "" {
		return "", errors.New("empty path")
	}
	s := path.Clean(strings.ReplaceAll(p, "\\", "/"))
	switch {
	case s == ".":
		return "", fmt.Errorf("invalid path %q", p)
	case strings.HasPrefix(s, "/"):
		return "", fmt.Errorf("absolute path %q not allowed", p)
	case s == ".." || strings.HasPrefix(s, "../"):
		return "", fmt.Errorf("path %q escapes the tree", p)
	}
	return s, nil
}

// Builder accumulates entries for a new Tree. The first invalid path is
// remembered and returned by Tree.
type Builder struct {
	entries map[string]Entry
	err     error
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{entries: make(map[string]Entry)}
}

// Add stores content at p, replacing any previous entry for p.
func (b *Builder) Add(p string, content []byte, mode fs.FileMode) *Builder {
	return b.AddEntry(p, NewEntry(content, mode))
}

// AddEntry stores an existing entry at p, keeping its fingerprint.
func (b *Builder) AddEntry(p string, e Entry) *Builder {
	if b.err != nil {
		return b
	}
	clean, err := CleanPath(p)
	if err != nil {
		b.err = err
		return b
	}
	b.entries[clean] = e
	return b
}

// AddTree copies every entry of t, placing it under prefix when prefix is non-empty.
func (b *Builder) AddTree(prefix string, t *Tree) *Builder {
	for _, p := range t.paths {
		dst := p
		if prefix != "" {
			dst = path.Join(prefix, p)
		}
		b.AddEntry(dst, t.entries[p])
	}
	return b
}

// Tree returns the built tree. The builder must not be reused afterwards.
func (b *Builder) Tree() (*Tree, error) {
	if b.err != nil {
		return nil, b.err
	}
	entries := b.entries
	b.entries = nil
	return newTree(entries), nil
}
