package merge

import (
	"context"
	"testing"

	"github.com/specialistvlad/burstbuild/internal/filetree"
	"github.com/specialistvlad/burstbuild/internal/stage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trees(t *testing.T) []*filetree.Tree {
	t.Helper()
	a, err := filetree.FromFiles(map[string][]byte{"index.html": []byte("<html>"), "app.js": []byte("one")})
	require.NoError(t, err)
	b, err := filetree.FromFiles(map[string][]byte{"app.js": []byte("two"), "robots.txt": []byte("*")})
	require.NoError(t, err)
	return []*filetree.Tree{a, b}
}

func TestTransform_Overwrite(t *testing.T) {
	out, err := Transform(context.Background(), trees(t), stage.Config{})
	require.NotNil(t, out)
	assert.Equal(t, []string{"app.js", "index.html", "robots.txt"}, out.Paths())
	js, _ := out.Content("app.js")
	assert.Equal(t, "two", string(js))

	var conflict *filetree.ConflictError
	require.ErrorAs(t, err, &conflict)
	require.Len(t, conflict.Collisions, 1)
	assert.Equal(t, "app.js", conflict.Collisions[0].Path)
	assert.False(t, stage.IsFatal(err, false))
	assert.True(t, stage.IsFatal(err, true))
}

func TestTransform_Strict(t *testing.T) {
	out, err := Transform(context.Background(), trees(t), stage.MustOptions(map[string]any{"overwrite": false}))
	assert.Nil(t, out)
	var conflict *filetree.ConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestTransform_Disjoint(t *testing.T) {
	a, _ := filetree.FromFiles(map[string][]byte{"a": []byte("a")})
	b, _ := filetree.FromFiles(map[string][]byte{"b": []byte("b"), "a": []byte("a")})
	out, err := Transform(context.Background(), []*filetree.Tree{a, b}, stage.MustOptions(map[string]any{"overwrite": false}))
	require.NoError(t, err)
	assert.Equal(t, 2, out.Len())
}
