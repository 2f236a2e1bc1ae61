package publish

import (
	"context"
	"fmt"
	"strings"

	"github.com/specialistvlad/burstbuild/internal/filetree"
)

// Publisher makes a terminal tree externally visible.
type Publisher interface {
	Publish(ctx context.Context, tree *filetree.Tree) (*Receipt, error)
	// Destination describes where trees are published, for logs.
	Destination() string
}

// Receipt summarizes one publication.
type Receipt struct {
	Destination string
	Fingerprint filetree.Fingerprint
	Files       int
	// Written counts files written or uploaded; Removed counts stale files
	// deleted from the destination.
	Written int
	Removed int
	// Unchanged is set when the destination already held this tree and
	// nothing was written.
	Unchanged bool
}

// New returns the publisher for dest: an S3Publisher for "s3://bucket/prefix"
// and a DiskPublisher for anything else. s3 is only used for S3 destinations.
func New(dest string, s3 S3Config) (Publisher, error) {
	if dest == "" {
		return nil, fmt.Errorf("publish destination is required")
	}
	if bucket, prefix, ok := ParseS3URL(dest); ok {
		if bucket == "" {
			return nil, fmt.Errorf("invalid S3 destination %q: bucket is required", dest)
		}
		s3.Bucket = bucket
		s3.Prefix = prefix
		return NewS3Publisher(s3)
	}
	return NewDiskPublisher(dest), nil
}

// ParseS3URL splits "s3://bucket/prefix" into its bucket and prefix. ok is
// false when raw is not an s3 URL.
func ParseS3URL(raw string) (bucket, prefix string, ok bool) {
	rest, found := strings.CutPrefix(raw, "s3://")
	if !found {
		return "", "", false
	}
	bucket, prefix, _ = strings.Cut(rest, "/")
	return bucket, strings.Trim(prefix, "/"), true
}
