package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/specialistvlad/burstbuild/internal/app"
	"github.com/specialistvlad/burstbuild/internal/watch"
)

// EnvVar selects the build environment when -env is not given. It is read
// from the process environment first, then from the project's .env file.
const EnvVar = "BURSTBUILD_ENV"

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("burstbuild", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
burstbuild - An incremental asset pipeline for front-end projects.

Usage:
  burstbuild [options] [PROJECT_DIR]

Arguments:
  PROJECT_DIR
    Directory holding app/ and public/. Defaults to the current directory.

Options:
`)
		flagSet.PrintDefaults()
	}

	pipelineFlag := flagSet.String("pipeline", "", "Path to an HCL pipeline file. Defaults to PROJECT_DIR/burstbuild.hcl, else the built-in pipeline.")
	pFlag := flagSet.String("p", "", "Path to an HCL pipeline file (shorthand).")
	envFlag := flagSet.String("env", "", "Build environment: 'development' or 'production'. Defaults to $"+EnvVar+", else development.")
	destFlag := flagSet.String("dest", "", "Output directory or s3://bucket/prefix URL. Defaults to PROJECT_DIR/dist.")
	watchFlag := flagSet.Bool("watch", false, "Rebuild whenever a source file changes.")
	portFlag := flagSet.Int("port", 0, "Port for the health, metrics and live-reload server in watch mode. 0 is disabled.")
	liveReloadFlag := flagSet.String("live-reload-url", "", "Base URL the injected live-reload client connects to.")
	debounceFlag := flagSet.Duration("debounce", watch.DefaultDebounce, "Quiet period after the last change before rebuilding.")
	strictFlag := flagSet.Bool("strict", false, "Treat lint errors and file conflicts as build failures.")
	workersFlag := flagSet.Int("workers", 0, "Number of stages run concurrently. 0 uses the number of CPUs.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	if flagSet.NArg() > 1 {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("expected at most one project directory, got %d", flagSet.NArg())}
	}
	projectDir := "."
	if flagSet.NArg() == 1 {
		projectDir = flagSet.Arg(0)
	}
	info, err := os.Stat(projectDir)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("project directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("project directory: %s is not a directory", projectDir)}
	}
	slog.Debug("Project directory determined.", "path", projectDir)

	pipeline := *pipelineFlag
	if pipeline == "" {
		pipeline = *pFlag
	}

	env, err := resolveEnv(*envFlag, projectDir)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	config, err := app.NewConfig(app.Config{
		ProjectDir:    projectDir,
		PipelinePath:  pipeline,
		Env:           env,
		Dest:          *destFlag,
		Watch:         *watchFlag,
		Debounce:      *debounceFlag,
		Port:          *portFlag,
		LiveReloadURL: *liveReloadFlag,
		Strict:        *strictFlag,
		WorkerCount:   *workersFlag,
		LogFormat:     strings.ToLower(*logFormatFlag),
		LogLevel:      strings.ToLower(*logLevelFlag),
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}

// resolveEnv picks the build environment from the flag, the process
// environment or the project's .env file, in that order. An empty result
// leaves the choice to the application default.
func resolveEnv(flagValue, projectDir string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if v := strings.TrimSpace(os.Getenv(EnvVar)); v != "" {
		return v, nil
	}
	values, err := godotenv.Read(filepath.Join(projectDir, ".env"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read .env: %w", err)
	}
	return strings.TrimSpace(values[EnvVar]), nil
}
