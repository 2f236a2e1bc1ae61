// Package exec provides the "exec" transform, which runs an external tool
// over a materialized copy of its inputs.
package exec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	osexec "os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/specialistvlad/burstbuild/internal/ctxlog"
	"github.com/specialistvlad/burstbuild/internal/filetree"
	"github.com/specialistvlad/burstbuild/internal/registry"
	"github.com/specialistvlad/burstbuild/internal/stage"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Placeholders substituted in command arguments.
const (
	InputPlaceholder  = "{in}"
	OutputPlaceholder = "{out}"
)

// CommandError reports a command that exited unsuccessfully.
type CommandError struct {
	Command []string
	Stderr  string
	Err     error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command %q failed: %v", strings.Join(e.Command, " "), e.Err)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }

// Transform writes the merged inputs into a scratch input directory, runs
// command with {in} and {out} replaced by the input and output directories,
// and returns the contents of the output directory. The command runs in
// the input directory with BURSTBUILD_INPUT_DIR and BURSTBUILD_OUTPUT_DIR set.
// With passthrough = true the merged inputs are returned when the output is empty.
func Transform(ctx context.Context, inputs []*filetree.Tree, cfg stage.Config) (*filetree.Tree, error) {
	logger := ctxlog.FromContext(ctx)
	command, err := cfg.Strings("command", nil)
	if err != nil {
		return nil, err
	}
	if len(command) == 0 {
		return nil, errors.New(`option "command": required`)
	}
	env, err := cfg.StringMap("env", nil)
	if err != nil {
		return nil, err
	}
	passthrough, err := cfg.Bool("passthrough", false)
	if err != nil {
		return nil, err
	}

	in, _ := filetree.MergeOverwrite(inputs...)

	scratch, err := os.MkdirTemp("", "burstbuild-exec-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(scratch)
	inDir, outDir := filepath.Join(scratch, "in"), filepath.Join(scratch, "out")
	if err := os.Mkdir(outDir, 0o755); err != nil {
		return nil, err
	}
	if err := filetree.WriteDirectory(in, inDir); err != nil {
		return nil, err
	}

	args := make([]string, len(command))
	for i, a := range command {
		a = strings.ReplaceAll(a, InputPlaceholder, inDir)
		args[i] = strings.ReplaceAll(a, OutputPlaceholder, outDir)
	}
	cmd := osexec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = inDir
	cmd.Env = append(os.Environ(), "BURSTBUILD_INPUT_DIR="+inDir, "BURSTBUILD_OUTPUT_DIR="+outDir)
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		cmd.Env = append(cmd.Env, k+"="+env[k])
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout, cmd.Stderr = &stdout, &stderr

	logger.Debug("Running command.", "command", command[0], "args", len(command)-1)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &CommandError{Command: command, Stderr: stderr.String(), Err: err}
	}
	if s := strings.TrimSpace(stdout.String()); s != "" {
		logger.Debug("Command output.", "stdout", s)
	}

	out, err := filetree.FromDirectory(outDir)
	if err != nil {
		return nil, err
	}
	if out.Len() == 0 && passthrough {
		return in, nil
	}
	return out, nil
}

// Register registers the transform with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTransform("exec", &registry.Transform{
		Fn: Transform,
		Options: map[string]cty.Type{
			"command":     cty.List(cty.String),
			"env":         cty.Map(cty.String),
			"passthrough": cty.Bool,
		},
		MinInputs:   1,
		Description: "Run an external command over the inputs.",
	})
}
