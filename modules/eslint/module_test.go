package eslint

import (
	"context"
	"testing"

	"github.com/specialistvlad/burstbuild/internal/filetree"
	"github.com/specialistvlad/burstbuild/internal/registry"
	"github.com/specialistvlad/burstbuild/internal/stage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func input(t *testing.T, files map[string]string) *filetree.Tree {
	t.Helper()
	raw := make(map[string][]byte)
	for p, c := range files {
		raw[p] = []byte(c)
	}
	tr, err := filetree.FromFiles(raw)
	require.NoError(t, err)
	return tr
}

func TestTransform_Violations(t *testing.T) {
	in := input(t, map[string]string{
		"app.js":     "let a = 1;\ndebugger;\nvar b = 2; \n// var c is fine in a comment\n",
		"index.html": "<script>debugger;</script>\n",
	})

	out, err := Transform(context.Background(), []*filetree.Tree{in}, stage.Config{})
	assert.Same(t, in, out, "lint stages pass the tree through")

	var lerrs stage.LintErrors
	require.ErrorAs(t, err, &lerrs)
	require.Len(t, lerrs, 3)
	assert.Equal(t, "no-debugger", lerrs[0].Rule)
	assert.Equal(t, 2, lerrs[0].Line)
	assert.Equal(t, "no-var", lerrs[1].Rule)
	assert.Equal(t, "no-trailing-spaces", lerrs[2].Rule)
	assert.Equal(t, 3, lerrs[2].Line)

	assert.False(t, stage.IsFatal(err, false))
	assert.True(t, stage.IsFatal(err, true))
}

func TestTransform_Clean(t *testing.T) {
	in := input(t, map[string]string{"app.js": "const x = 1;\nexport default x;\n"})
	out, err := Transform(context.Background(), []*filetree.Tree{in}, stage.Config{})
	require.NoError(t, err)
	assert.Same(t, in, out)
}

func TestTransform_RuleOverrides(t *testing.T) {
	in := input(t, map[string]string{"app.js": "debugger\nvar x;\n"})
	cfg := stage.MustOptions(map[string]any{"rules": map[string]string{"no-debugger": "warning", "no-var": "off"}})

	_, err := Transform(context.Background(), []*filetree.Tree{in}, cfg)
	var lerrs stage.LintErrors
	require.ErrorAs(t, err, &lerrs)
	require.Len(t, lerrs, 1)
	assert.Equal(t, stage.SeverityWarning, lerrs[0].Severity)
	assert.False(t, stage.IsFatal(err, true), "warnings never fail a pass")
}

func TestRegister(t *testing.T) {
	r := registry.NewWith(&Module{})
	require.NoError(t, r.Validate("eslint", stage.MustOptions(map[string]any{"include": []string{"**/*.jsx"}}), 1))
}
