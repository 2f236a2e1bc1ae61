// Package pipeline assembles stages into a validated directed acyclic graph.
//
// A Builder collects stages, either through the typed helpers (Source,
// Compose, Combine) or by name through Add, which lets configuration files
// reference stages before they are declared. Finalize resolves every input,
// proves the graph is acyclic and fixes a deterministic topological order.
// The resulting Graph is immutable and safe for concurrent reads.
package pipeline
