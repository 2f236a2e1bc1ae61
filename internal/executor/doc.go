// Package executor runs a pipeline graph incrementally.
//
// Stages are dispatched to a worker pool as soon as all of their inputs are
// available, so independent branches run in parallel while every stage still
// observes its inputs only. Each transform stage has a single cache slot
// keyed by the fingerprints of its inputs and configuration; a stage whose
// key is unchanged since the previous pass is not executed again. A failing
// stage skips its dependents for the pass but leaves unrelated branches, and
// every previously cached output, intact.
package executor
