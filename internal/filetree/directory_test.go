package filetree

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func TestFromDirectory(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"index.html":      "<html></html>",
		"app.js":          "console.log(1)",
		"styles/app.scss": "body{color:red}",
	})

	tree, err := FromDirectory(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"app.js", "index.html", "styles/app.scss"}, tree.Paths())

	content, ok := tree.Content("styles/app.scss")
	require.True(t, ok)
	assert.Equal(t, "body{color:red}", string(content))
}

func TestFromDirectory_Errors(t *testing.T) {
	t.Run("missing path", func(t *testing.T) {
		_, err := FromDirectory(filepath.Join(t.TempDir(), "missing"))
		var ioErr *IOError
		require.True(t, errors.As(err, &ioErr))
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})

	t.Run("file instead of directory", func(t *testing.T) {
		root := t.TempDir()
		writeFiles(t, root, map[string]string{"a.txt": "a"})
		_, err := FromDirectory(filepath.Join(root, "a.txt"))
		assert.ErrorContains(t, err, "not a directory")
	})
}

func TestScanner_MemoizesUnchangedFiles(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.js": "a", "b.js": "b"})

	s := NewScanner(16)
	first, err := s.Snapshot(root)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Cached())

	second, err := s.Snapshot(root)
	require.NoError(t, err)
	assert.Equal(t, first.Fingerprint(), second.Fingerprint())
	assert.Equal(t, 2, s.Cached())

	// A content change is picked up because size and mtime change.
	p := filepath.Join(root, "a.js")
	require.NoError(t, os.WriteFile(p, []byte("changed"), 0o644))
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(p, future, future))

	third, err := s.Snapshot(root)
	require.NoError(t, err)
	assert.NotEqual(t, first.Fingerprint(), third.Fingerprint())
	content, _ := third.Content("a.js")
	assert.Equal(t, "changed", string(content))
}

func TestWriteDirectory(t *testing.T) {
	tree, err := FromFiles(map[string][]byte{
		"index.html":    []byte("<html></html>"),
		"assets/app.js": []byte("console.log(1)"),
	})
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, WriteDirectory(tree, dir))

	back, err := FromDirectory(dir)
	require.NoError(t, err)
	assert.True(t, back.Equal(tree))
}
