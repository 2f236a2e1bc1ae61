// Package hcl loads pipeline definitions written in HCL.
//
// A definition file declares source and stage blocks and an optional output
// attribute:
//
//	source "app" {
//	  path    = "app"
//	  exclude = ["styles/**"]
//	}
//
//	stage "scripts" {
//	  uses    = "bundle_js"
//	  inputs  = ["app"]
//	  options = { minify = env == "production" }
//	}
//
//	output = "scripts"
//
// Expressions are evaluated with the variables env and project_dir and a
// small set of cty standard library functions. Stage options are checked
// against the transform registry before the graph is finalized, so a broken
// definition never reaches the executor.
package hcl
