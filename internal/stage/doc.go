// Package stage defines the unit of work in a build pipeline.
//
// A Stage wraps an external transformation (linter, compiler, bundler,
// minifier) behind a single contract: given its input trees and an immutable
// configuration, produce one output tree. Stages must be deterministic
// functions of those two things so the executor can cache their outputs.
// Side effects such as writing to disk belong to publishers, not stages.
package stage
