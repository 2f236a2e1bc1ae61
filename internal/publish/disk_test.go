package publish

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/burstbuild/internal/filetree"
	"github.com/specialistvlad/burstbuild/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskPublisher_PublishesAndReplaces(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "dist")
	p := NewDiskPublisher(dest)
	ctx := context.Background()

	first := testutil.Tree(t, map[string]string{"index.html": "<html>", "assets/app.js": "one"})
	receipt, err := p.Publish(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, 2, receipt.Written)
	assert.False(t, receipt.Unchanged)

	got, err := filetree.FromDirectory(dest)
	require.NoError(t, err)
	assert.True(t, got.Equal(first))

	second := testutil.Tree(t, map[string]string{"index.html": "<html>", "assets/app-1a2b.js": "one"})
	receipt, err = p.Publish(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, 1, receipt.Removed)

	got, err = filetree.FromDirectory(dest)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"index.html": "<html>", "assets/app-1a2b.js": "one"}, testutil.Contents(got))

	entries, err := os.ReadDir(filepath.Dir(dest))
	require.NoError(t, err)
	require.Len(t, entries, 1, "staging and retired directories must be cleaned up")
	assert.Equal(t, "dist", entries[0].Name())
}

func TestDiskPublisher_SkipsUnchangedTree(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "dist")
	tree := testutil.Tree(t, map[string]string{"index.html": "<html>"})

	_, err := NewDiskPublisher(dest).Publish(context.Background(), tree)
	require.NoError(t, err)

	// A fresh publisher recovers the fingerprint from disk.
	receipt, err := NewDiskPublisher(dest).Publish(context.Background(), tree)
	require.NoError(t, err)
	assert.True(t, receipt.Unchanged)
	assert.Zero(t, receipt.Written)
}

func TestDiskPublisher_RepublishesAfterExternalDelete(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "dist")
	p := NewDiskPublisher(dest)
	tree := testutil.Tree(t, map[string]string{"index.html": "<html>"})

	_, err := p.Publish(context.Background(), tree)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(dest))

	receipt, err := p.Publish(context.Background(), tree)
	require.NoError(t, err)
	assert.False(t, receipt.Unchanged)
	assert.FileExists(t, filepath.Join(dest, "index.html"))
}

func TestDiskPublisher_RepairsExternalEdits(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "dist")
	p := NewDiskPublisher(dest)
	tree := testutil.Tree(t, map[string]string{"index.html": "<html>"})

	_, err := p.Publish(context.Background(), tree)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dest, "index.html"), []byte("tampered"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dest, "extra.txt"), []byte("stray"), 0o644))

	receipt, err := p.Publish(context.Background(), tree)
	require.NoError(t, err)
	assert.False(t, receipt.Unchanged)
	content, err := os.ReadFile(filepath.Join(dest, "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "<html>", string(content))
	assert.NoFileExists(t, filepath.Join(dest, "extra.txt"))
}

func TestDiskPublisher_CanceledContextLeavesDestinationUntouched(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "dist")
	p := NewDiskPublisher(dest)
	before := testutil.Tree(t, map[string]string{"index.html": "v1"})
	_, err := p.Publish(context.Background(), before)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Publish(ctx, testutil.Tree(t, map[string]string{"index.html": "v2"}))
	require.ErrorIs(t, err, context.Canceled)

	content, err := os.ReadFile(filepath.Join(dest, "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "v1", string(content))
}
