package filetree

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMemoSize bounds the number of file entries a Scanner remembers.
const DefaultMemoSize = 8192

// FromDirectory reads root recursively into a Tree. Only regular files are
// included. It fails with *IOError when root is missing, is not a directory,
// or any file cannot be read.
func FromDirectory(root string) (*Tree, error) {
	return (&Scanner{}).Snapshot(root)
}

type memoKey struct {
	path    string
	size    int64
	modTime int64
	mode    fs.FileMode
}

// Scanner reads directories into Trees and remembers the entries it built,
// keyed by absolute path, size, modification time and mode. A file whose
// metadata is unchanged since the last scan is not read again.
type Scanner struct {
	memo *lru.Cache[memoKey, Entry]
}

// NewScanner creates a Scanner remembering up to size entries. A size of
// zero or less selects DefaultMemoSize.
func NewScanner(size int) *Scanner {
	if size <= 0 {
		size = DefaultMemoSize
	}
	memo, err := lru.New[memoKey, Entry](size)
	if err != nil {
		// lru.New only fails for non-positive sizes.
		panic(fmt.Sprintf("filetree: creating scanner memo: %v", err))
	}
	return &Scanner{memo: memo}
}

// Snapshot reads root recursively into a Tree.
func (s *Scanner) Snapshot(root string) (*Tree, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, &IOError{Path: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &IOError{Path: root, Err: errors.New("not a directory")}
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, &IOError{Path: root, Err: err}
	}

	b := NewBuilder()
	walkErr := filepath.WalkDir(absRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return &IOError{Path: p, Err: err}
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return &IOError{Path: p, Err: err}
		}
		rel, err := filepath.Rel(absRoot, p)
		if err != nil {
			return &IOError{Path: p, Err: err}
		}
		e, err := s.entry(p, fi)
		if err != nil {
			return err
		}
		b.AddEntry(filepath.ToSlash(rel), e)
		return nil
	})
	if walkErr != nil {
		var ioErr *IOError
		if errors.As(walkErr, &ioErr) {
			return nil, ioErr
		}
		return nil, &IOError{Path: root, Err: walkErr}
	}
	return b.Tree()
}

func (s *Scanner) entry(p string, fi fs.FileInfo) (Entry, error) {
	key := memoKey{path: p, size: fi.Size(), modTime: fi.ModTime().UnixNano(), mode: fi.Mode()}
	if s.memo != nil {
		if e, ok := s.memo.Get(key); ok {
			return e, nil
		}
	}
	content, err := os.ReadFile(p)
	if err != nil {
		return Entry{}, &IOError{Path: p, Err: err}
	}
	e := NewEntry(content, fi.Mode())
	if s.memo != nil {
		s.memo.Add(key, e)
	}
	return e, nil
}

// Cached returns the number of entries currently remembered.
func (s *Scanner) Cached() int {
	if s.memo == nil {
		return 0
	}
	return s.memo.Len()
}

// WriteDirectory writes every entry of t under dir, creating directories as
// needed. Existing files at the same paths are overwritten; other files in
// dir are left alone.
func WriteDirectory(t *Tree, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &IOError{Path: dir, Err: err}
	}
	return t.Walk(func(p string, e Entry) error {
		dst := filepath.Join(dir, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return &IOError{Path: dst, Err: err}
		}
		if err := os.WriteFile(dst, e.Content(), e.Mode().Perm()); err != nil {
			return &IOError{Path: dst, Err: err}
		}
		return nil
	})
}
