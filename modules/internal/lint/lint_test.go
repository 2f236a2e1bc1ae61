package lint

import (
	"strings"
	"testing"

	"github.com/specialistvlad/burstbuild/internal/filetree"
	"github.com/specialistvlad/burstbuild/internal/stage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRules = []Rule{
	{
		Name:     "no-todo",
		Severity: stage.SeverityWarning,
		Line: func(line string) string {
			if strings.Contains(line, "TODO") {
				return "unexpected TODO"
			}
			return ""
		},
	},
	{
		Name:     "not-empty",
		Severity: stage.SeverityError,
		File: func(content string) []Finding {
			if strings.TrimSpace(content) == "" {
				return []Finding{{Line: 1, Message: "file is empty"}}
			}
			return nil
		},
	},
}

func tree(t *testing.T) *filetree.Tree {
	t.Helper()
	tr, err := filetree.FromFiles(map[string][]byte{
		"a.js":      []byte("ok\n// TODO one\n"),
		"empty.js":  []byte("\n"),
		"skip/b.js": []byte("TODO"),
		"notes.txt": []byte("TODO"),
	})
	require.NoError(t, err)
	return tr
}

func TestRun(t *testing.T) {
	errs, err := Run(tree(t), testRules, Options{Include: []string{"**/*.js"}, Exclude: []string{"skip/**"}})
	require.NoError(t, err)
	require.Len(t, errs, 2)

	assert.Equal(t, "a.js", errs[0].File)
	assert.Equal(t, 2, errs[0].Line)
	assert.Equal(t, "no-todo", errs[0].Rule)
	assert.Equal(t, stage.SeverityWarning, errs[0].Severity)

	assert.Equal(t, "empty.js", errs[1].File)
	assert.Equal(t, stage.SeverityError, errs[1].Severity)
	assert.True(t, errs.HasErrors())
}

func TestRun_Severities(t *testing.T) {
	errs, err := Run(tree(t), testRules, Options{
		Include:    []string{"*.js"},
		Severities: map[string]string{"no-todo": "error", "not-empty": "off"},
	})
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, stage.SeverityError, errs[0].Severity)

	_, err = Run(tree(t), testRules, Options{Severities: map[string]string{"nope": "error"}})
	assert.ErrorContains(t, err, `unknown lint rule "nope"`)
	_, err = Run(tree(t), testRules, Options{Severities: map[string]string{"no-todo": "fatal"}})
	assert.ErrorContains(t, err, `unknown severity "fatal"`)
}

func TestRun_CleanTreeReturnsNil(t *testing.T) {
	tr, err := filetree.FromFiles(map[string][]byte{"a.js": []byte("fine")})
	require.NoError(t, err)
	errs, err := Run(tr, testRules, Options{Include: []string{"**/*.js"}})
	require.NoError(t, err)
	assert.Nil(t, errs)
}
