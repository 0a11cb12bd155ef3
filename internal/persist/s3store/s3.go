// Package s3store keeps the history document as a single S3 object.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/yiblet/cliphist/internal/persist"
)

// DefaultKey is the object key used when none is configured.
const DefaultKey = "cliphist/" + persist.RecordName + ".json"

// Common errors
var ErrNotConfigured = errors.New("s3 backend not configured")

// API is the subset of the S3 client used by the store.
type API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var _ persist.Store = (*S3Store)(nil)

// S3Store stores the document at s3://bucket/key.
type S3Store struct {
	client API
	bucket string
	key    string

	mu       sync.Mutex
	lastETag string
}

// New creates a store using client. An empty key selects DefaultKey.
func New(client API, bucket, key string) (*S3Store, error) {
	if client == nil || bucket == "" {
		return nil, ErrNotConfigured
	}
	key = strings.TrimPrefix(key, "/")
	if key == "" {
		key = DefaultKey
	}
	return &S3Store{client: client, bucket: bucket, key: key}, nil
}

// NewFromConfig loads the AWS configuration using the standard credential
// chain and creates a store for bucket and key.
func NewFromConfig(ctx context.Context, bucket, key, region string) (*S3Store, error) {
	if bucket == "" {
		return nil, ErrNotConfigured
	}

	opts := []func(*config.LoadOptions) error{}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return New(s3.NewFromConfig(cfg), bucket, key)
}

// Location returns the object location as s3://bucket/key.
func (s *S3Store) Location() string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, s.key)
}

// ETag returns the entity tag seen by the last successful Load or Save.
func (s *S3Store) ETag() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastETag
}

// Load downloads the document.
func (s *S3Store) Load(ctx context.Context) ([]byte, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, persist.ErrNotFound
		}
		// Also check for 404 status
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return nil, persist.ErrNotFound
		}
		return nil, fmt.Errorf("S3 get failed: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("read body failed: %w", err)
	}
	s.remember(result.ETag)
	return data, nil
}

// Save uploads the document.
func (s *S3Store) Save(ctx context.Context, data []byte) error {
	result, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("S3 put failed: %w", err)
	}
	s.remember(result.ETag)
	return nil
}

// Close releases resources (no-op for S3)
func (s *S3Store) Close() error {
	return nil
}

func (s *S3Store) remember(etag *string) {
	if etag == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastETag = strings.Trim(*etag, "\"")
}
