// Package watch drives the build loop. A Controller runs incremental build
// passes on request, publishes every successful result and notifies the
// live-reload channel; Watch turns file-system events into debounced build
// requests.
//
// The controller moves Idle → Building → Published | Failed → Idle. A failed
// pass leaves the previously published output untouched.
package watch
