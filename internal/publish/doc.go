// Package publish writes terminal trees to their destination: a local
// directory, swapped in atomically, or an S3-compatible bucket.
package publish
