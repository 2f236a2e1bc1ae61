package publish

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"mime"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/specialistvlad/burstbuild/internal/ctxlog"
	"github.com/specialistvlad/burstbuild/internal/filetree"
)

// S3Config holds the connection settings of an S3-compatible store.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	Prefix    string
}

// S3ConfigFromEnv reads the connection settings from BURSTBUILD_S3_* variables,
// falling back to the AWS_* names for credentials and region.
func S3ConfigFromEnv() S3Config {
	useSSL := true
	if raw := strings.TrimSpace(os.Getenv("BURSTBUILD_S3_USE_SSL")); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			useSSL = v
		}
	}
	return S3Config{
		Endpoint:  firstNonEmpty(os.Getenv("BURSTBUILD_S3_ENDPOINT"), "s3.amazonaws.com"),
		Region:    firstNonEmpty(os.Getenv("BURSTBUILD_S3_REGION"), os.Getenv("AWS_REGION"), "us-east-1"),
		AccessKey: firstNonEmpty(os.Getenv("BURSTBUILD_S3_ACCESS_KEY"), os.Getenv("AWS_ACCESS_KEY_ID")),
		SecretKey: firstNonEmpty(os.Getenv("BURSTBUILD_S3_SECRET_KEY"), os.Getenv("AWS_SECRET_ACCESS_KEY")),
		UseSSL:    useSSL,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// objectStore is the subset of bucket operations the publisher needs.
type objectStore interface {
	EnsureBucket(ctx context.Context) error
	// List returns the ETag of every object under prefix, keyed by object key.
	List(ctx context.Context, prefix string) (map[string]string, error)
	Put(ctx context.Context, key string, content []byte, contentType string) error
	Remove(ctx context.Context, key string) error
}

// S3Publisher uploads trees to a bucket prefix. Files whose content is
// already stored are skipped, and objects under the prefix that are no longer
// part of the tree are removed after every upload succeeded.
type S3Publisher struct {
	store  objectStore
	bucket string
	prefix string

	mu   sync.Mutex
	last filetree.Fingerprint
}

// NewS3Publisher connects to the store described by cfg.
func NewS3Publisher(cfg S3Config) (*S3Publisher, error) {
	store, err := newMinioStore(cfg)
	if err != nil {
		return nil, err
	}
	return newS3Publisher(store, cfg.Bucket, cfg.Prefix), nil
}

func newS3Publisher(store objectStore, bucket, prefix string) *S3Publisher {
	return &S3Publisher{store: store, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Destination returns the s3 URL of the publish prefix.
func (p *S3Publisher) Destination() string {
	if p.prefix == "" {
		return "s3://" + p.bucket
	}
	return "s3://" + p.bucket + "/" + p.prefix
}

func (p *S3Publisher) key(filePath string) string {
	if p.prefix == "" {
		return filePath
	}
	return p.prefix + "/" + filePath
}

// Publish uploads tree and removes stale objects.
func (p *S3Publisher) Publish(ctx context.Context, tree *filetree.Tree) (*Receipt, error) {
	logger := ctxlog.FromContext(ctx).With("destination", p.Destination())
	p.mu.Lock()
	defer p.mu.Unlock()

	receipt := &Receipt{Destination: p.Destination(), Fingerprint: tree.Fingerprint(), Files: tree.Len()}
	if p.last == tree.Fingerprint() {
		receipt.Unchanged = true
		logger.Debug("Destination already up to date.", "fingerprint", tree.Fingerprint().Short(12))
		return receipt, nil
	}

	if err := p.store.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket %s: %w", p.bucket, err)
	}
	listPrefix := ""
	if p.prefix != "" {
		listPrefix = p.prefix + "/"
	}
	existing, err := p.store.List(ctx, listPrefix)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", p.Destination(), err)
	}

	wanted := make(map[string]bool, tree.Len())
	err = tree.Walk(func(filePath string, e filetree.Entry) error {
		key := p.key(filePath)
		wanted[key] = true
		sum := md5.Sum(e.Content())
		if etag, ok := existing[key]; ok && strings.Trim(etag, `"`) == hex.EncodeToString(sum[:]) {
			return nil
		}
		if err := p.store.Put(ctx, key, e.Content(), contentType(filePath)); err != nil {
			return fmt.Errorf("upload %s: %w", key, err)
		}
		receipt.Written++
		return nil
	})
	if err != nil {
		return nil, err
	}

	stale := make([]string, 0)
	for key := range existing {
		if !wanted[key] {
			stale = append(stale, key)
		}
	}
	sort.Strings(stale)
	for _, key := range stale {
		if err := p.store.Remove(ctx, key); err != nil {
			return nil, fmt.Errorf("remove %s: %w", key, err)
		}
		receipt.Removed++
	}

	p.last = tree.Fingerprint()
	logger.Debug("Published to bucket.", "files", receipt.Files, "uploaded", receipt.Written, "removed", receipt.Removed)
	return receipt, nil
}

func contentType(filePath string) string {
	if ct := mime.TypeByExtension(path.Ext(filePath)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// minioStore implements objectStore with minio-go.
type minioStore struct {
	client *minio.Client
	bucket string
	region string

	// ready is set once the bucket is known to exist. Failures leave it
	// unset so the next publish checks again.
	mu    sync.Mutex
	ready bool
}

func newMinioStore(cfg S3Config) (*minioStore, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	if strings.TrimSpace(cfg.AccessKey) == "" || strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := firstNonEmpty(cfg.Region, "us-east-1")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &minioStore{client: client, bucket: cfg.Bucket, region: region}, nil
}

func (s *minioStore) EnsureBucket(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return err
		}
	}
	s.ready = true
	return nil
}

func (s *minioStore) List(ctx context.Context, prefix string) (map[string]string, error) {
	out := make(map[string]string)
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		if obj.Key == "" {
			continue
		}
		out[obj.Key] = obj.ETag
	}
	return out, nil
}

func (s *minioStore) Put(ctx context.Context, key string, content []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

func (s *minioStore) Remove(ctx context.Context, key string) error {
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}
