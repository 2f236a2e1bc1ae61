package sasslint

import (
	"context"
	"testing"

	"github.com/specialistvlad/burstbuild/internal/filetree"
	"github.com/specialistvlad/burstbuild/internal/stage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lintFiles(t *testing.T, files map[string]string) (*filetree.Tree, *filetree.Tree, error) {
	t.Helper()
	raw := make(map[string][]byte)
	for p, c := range files {
		raw[p] = []byte(c)
	}
	in, err := filetree.FromFiles(raw)
	require.NoError(t, err)
	out, err := Transform(context.Background(), []*filetree.Tree{in}, stage.Config{})
	return in, out, err
}

func TestTransform(t *testing.T) {
	testCases := []struct {
		name      string
		content   string
		wantRules []string
		wantLines []int
		fatal     bool
	}{
		{name: "clean", content: "$c: red;\nbody {\n  color: $c;\n}\n"},
		{name: "important", content: "a { color: red !important; }\n", wantRules: []string{"no-important"}, wantLines: []int{1}},
		{name: "empty rule", content: "p {}\n.x { }\n", wantRules: []string{"no-empty-rule", "no-empty-rule"}, wantLines: []int{1, 2}},
		{name: "unclosed block", content: "body {\n  color: red;\n", wantRules: []string{"brace-balance"}, wantLines: []int{1}, fatal: true},
		{name: "stray brace", content: "a { b: c; }\n}\n", wantRules: []string{"brace-balance"}, wantLines: []int{2}, fatal: true},
		{name: "url comment is not a comment", content: "a { background: url(http://x/y.png) }\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			in, out, err := lintFiles(t, map[string]string{"app.scss": tc.content})
			assert.Same(t, in, out)
			if len(tc.wantRules) == 0 {
				require.NoError(t, err)
				return
			}
			var lerrs stage.LintErrors
			require.ErrorAs(t, err, &lerrs)
			var rules []string
			var lines []int
			for _, e := range lerrs {
				rules = append(rules, e.Rule)
				lines = append(lines, e.Line)
			}
			assert.Equal(t, tc.wantRules, rules)
			assert.Equal(t, tc.wantLines, lines)
			assert.Equal(t, tc.fatal, stage.IsFatal(err, true))
			assert.False(t, stage.IsFatal(err, false))
		})
	}
}

func TestTransform_IgnoresOtherFiles(t *testing.T) {
	_, _, err := lintFiles(t, map[string]string{"notes.txt": "a {"})
	assert.NoError(t, err)
}
