// Package blueprint builds the default front-end pipeline: an HTML entry
// page, a linted and bundled script, a linted and compiled stylesheet and the
// public files, merged into one tree. Production builds minify and
// content-hash the assets; development builds keep source maps and inject
// the live-reload client.
//
// The same pipeline is shipped as an HCL definition (Definition) that can be
// copied into a project and edited.
package blueprint
