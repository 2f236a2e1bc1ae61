// Package filetree models immutable snapshots of directory contents.
//
// A Tree maps clean, slash-separated relative paths to entries holding the
// file content, its permission bits and a content fingerprint. Trees are
// values: every operation (Filter, With, Without, Rename, Merge) returns a new
// Tree and never modifies its receiver or arguments, which is what lets the
// executor cache stage outputs by fingerprint.
package filetree
