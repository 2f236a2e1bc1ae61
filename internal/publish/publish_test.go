package publish

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseS3URL(t *testing.T) {
	testCases := []struct {
		raw            string
		bucket, prefix string
		ok             bool
	}{
		{raw: "s3://site", bucket: "site", ok: true},
		{raw: "s3://site/www/v1/", bucket: "site", prefix: "www/v1", ok: true},
		{raw: "dist", ok: false},
		{raw: "/tmp/s3://x", ok: false},
	}
	for _, tc := range testCases {
		t.Run(tc.raw, func(t *testing.T) {
			bucket, prefix, ok := ParseS3URL(tc.raw)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.bucket, bucket)
			assert.Equal(t, tc.prefix, prefix)
		})
	}
}

func TestNew(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dist")
	p, err := New(dir, S3Config{})
	require.NoError(t, err)
	assert.IsType(t, &DiskPublisher{}, p)
	assert.Equal(t, dir, p.Destination())

	p, err = New("s3://site/www", S3Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"})
	require.NoError(t, err)
	assert.Equal(t, "s3://site/www", p.Destination())

	_, err = New("s3:///www", S3Config{})
	assert.ErrorContains(t, err, "bucket is required")

	_, err = New("", S3Config{})
	assert.Error(t, err)
}
