package clean_css

import (
	"context"
	"testing"

	"github.com/specialistvlad/burstbuild/internal/filetree"
	"github.com/specialistvlad/burstbuild/internal/stage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransform(t *testing.T) {
	in, err := filetree.FromFiles(map[string][]byte{
		"assets/app.css": []byte("body {\n  color: red;\n}\n\n/* comment */\na { margin: 0px; }\n"),
		"index.html":     []byte("<p> keep   spacing </p>\n"),
	})
	require.NoError(t, err)

	out, err := Transform(context.Background(), []*filetree.Tree{in}, stage.Config{})
	require.NoError(t, err)

	css, _ := out.Content("assets/app.css")
	assert.Equal(t, "body{color:red}a{margin:0}", string(css))
	html, _ := out.Content("index.html")
	assert.Equal(t, "<p> keep   spacing </p>\n", string(html))
}

func TestTransform_Idempotent(t *testing.T) {
	in, err := filetree.FromFiles(map[string][]byte{"a.css": []byte("a { color : blue ; }")})
	require.NoError(t, err)

	once, err := Transform(context.Background(), []*filetree.Tree{in}, stage.Config{})
	require.NoError(t, err)
	twice, err := Transform(context.Background(), []*filetree.Tree{once}, stage.Config{})
	require.NoError(t, err)
	assert.True(t, once.Equal(twice))
}
