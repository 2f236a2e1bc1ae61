package asset_rev

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/specialistvlad/burstbuild/internal/filetree"
	"github.com/specialistvlad/burstbuild/internal/stage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hashOf(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

var site = map[string]string{
	"index.html":        `<link href="assets/app.css"><script src="/assets/app.js"></script><img src="logo.png"><a href="assets/app.js.bak">x</a>`,
	"assets/app.css":    "body{background:url(bg.png)}",
	"assets/bg.png":     "PNG",
	"assets/app.js":     "run();\n//# sourceMappingURL=app.js.map\n",
	"assets/app.js.map": `{"version":3}`,
	"logo.png":          "LOGO",
	"robots.txt":        "logo.png",
}

func input(t *testing.T) *filetree.Tree {
	t.Helper()
	raw := make(map[string][]byte)
	for p, c := range site {
		raw[p] = []byte(c)
	}
	tr, err := filetree.FromFiles(raw)
	require.NoError(t, err)
	return tr
}

func TestTransform(t *testing.T) {
	out, err := Transform(context.Background(), []*filetree.Tree{input(t)}, stage.Config{})
	require.NoError(t, err)

	css := "assets/app-" + hashOf(site["assets/app.css"]) + ".css"
	js := "assets/app-" + hashOf(site["assets/app.js"]) + ".js"
	jsMap := "assets/app-" + hashOf(site["assets/app.js.map"]) + ".js.map"
	bg := "bg-" + hashOf("PNG") + ".png"
	logo := "logo-" + hashOf("LOGO") + ".png"

	assert.ElementsMatch(t, []string{"index.html", css, js, jsMap, "assets/" + bg, logo, "robots.txt"}, out.Paths())

	html, _ := out.Content("index.html")
	assert.Equal(t, `<link href="`+css+`"><script src="/`+js+`"></script><img src="`+logo+`"><a href="assets/app.js.bak">x</a>`, string(html))

	cssContent, _ := out.Content(css)
	assert.Equal(t, "body{background:url("+bg+")}", string(cssContent))

	jsContent, _ := out.Content(js)
	assert.Equal(t, "run();\n//# sourceMappingURL=app-"+hashOf(site["assets/app.js.map"])+".js.map\n", string(jsContent))

	robots, _ := out.Content("robots.txt")
	assert.Equal(t, "logo.png", string(robots), "only replace_extensions files are rewritten")
}

func TestTransform_Deterministic(t *testing.T) {
	a, err := Transform(context.Background(), []*filetree.Tree{input(t)}, stage.Config{})
	require.NoError(t, err)
	b, err := Transform(context.Background(), []*filetree.Tree{input(t)}, stage.Config{})
	require.NoError(t, err)
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestTransform_Options(t *testing.T) {
	out, err := Transform(context.Background(), []*filetree.Tree{input(t)}, stage.MustOptions(map[string]any{
		"extensions":         []string{"js"},
		"exclude":            []string{"vendor/**"},
		"prepend":            "https://cdn.example.com/",
		"generate_asset_map": true,
	}))
	require.NoError(t, err)

	js := "assets/app-" + hashOf(site["assets/app.js"]) + ".js"
	html, _ := out.Content("index.html")
	assert.Contains(t, string(html), `src="https://cdn.example.com/`+js+`"`)
	assert.Contains(t, string(html), `href="assets/app.css"`)
	assert.True(t, out.Has("logo.png"))

	raw, ok := out.Content(AssetMapPath)
	require.True(t, ok)
	var m struct {
		Assets  map[string]string `json:"assets"`
		Prepend string            `json:"prepend"`
	}
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, map[string]string{"assets/app.js": js}, m.Assets)
	assert.Equal(t, "https://cdn.example.com/", m.Prepend)
}

func TestFingerprinted(t *testing.T) {
	h := hashOf("x")
	assert.Equal(t, "a/b-"+h+".min.js", fingerprinted("a/b.min.js", []byte("x")))
	assert.Equal(t, "LICENSE-"+h, fingerprinted("LICENSE", []byte("x")))
}
