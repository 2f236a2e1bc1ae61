package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/burstbuild/internal/filetree"
	"github.com/stretchr/testify/require"
)

// WriteFiles creates each file under root, making parent directories as needed.
func WriteFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

// Tree builds a filetree from string contents.
func Tree(t *testing.T, files map[string]string) *filetree.Tree {
	t.Helper()
	raw := make(map[string][]byte, len(files))
	for p, c := range files {
		raw[p] = []byte(c)
	}
	tree, err := filetree.FromFiles(raw)
	require.NoError(t, err)
	return tree
}

// Contents flattens a tree into path -> string content.
func Contents(t *filetree.Tree) map[string]string {
	out := make(map[string]string, t.Len())
	_ = t.Walk(func(p string, e filetree.Entry) error {
		out[p] = string(e.Content())
		return nil
	})
	return out
}
