package app

import (
	"os"
	"testing"

	"github.com/specialistvlad/burstbuild/internal/registry"
	"github.com/specialistvlad/burstbuild/internal/testutil"
	"github.com/stretchr/testify/require"
)

const indexHTML = `<html>
<head><link rel="stylesheet" href="/assets/app.css"></head>
<body><script src="/assets/app.js"></script></body>
</html>
`

// writeProject lays out a minimal project in a temporary directory.
func writeProject(t *testing.T, extra map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"app/index.html":      indexHTML,
		"app/app.js":          "console.log(1)\n",
		"app/styles/app.scss": "body{color:red}\n",
		"public/robots.txt":   "User-agent: *\n",
	}
	for k, v := range extra {
		files[k] = v
	}
	testutil.WriteFiles(t, dir, files)
	return dir
}

// setupApp creates an App for system testing. Set BURSTBUILD_TEST_LOGS=true
// to print the captured log output.
func setupApp(t *testing.T, cfg Config, modules ...registry.Module) (*App, *testutil.SafeBuffer) {
	t.Helper()

	logBuffer := &testutil.SafeBuffer{}
	cfg.LogLevel = "debug"
	config, err := NewConfig(cfg)
	require.NoError(t, err)

	a, err := NewApp(logBuffer, config, modules...)
	require.NoError(t, err)

	t.Cleanup(func() {
		if os.Getenv("BURSTBUILD_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})
	return a, logBuffer
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}
