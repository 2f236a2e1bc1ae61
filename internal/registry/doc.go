// Package registry maps the transform names used in pipeline definitions
// (for example "bundle_js") to the compiled Go functions implementing them.
//
// Each module registers its transforms together with the options it accepts.
// The registry validates stage options against those declarations when a
// pipeline is loaded, so a typo in a definition file fails before any stage
// runs.
package registry
