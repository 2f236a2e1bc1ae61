// Package app wires the build system together: it resolves the pipeline
// (an HCL definition or the built-in blueprint), creates the executor,
// publisher and watch controller, and in watch mode serves health, metrics
// and live-reload endpoints. It is decoupled from any specific entrypoint
// like a CLI.
package app
