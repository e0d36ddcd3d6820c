// Package s3 implements an S3-backed server object store: one object per
// block, named by its lowercase hex hash under an optional key prefix.
// Useful when the server offloads block storage to a bucket instead of
// local disk.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/marmos91/vigil/internal/telemetry"
	"github.com/marmos91/vigil/pkg/hashsum"
	"github.com/marmos91/vigil/pkg/objectstore"
)

// Config holds configuration for the S3 object store.
type Config struct {
	// Bucket is the S3 bucket name.
	Bucket string

	// Region is the AWS region (optional, uses SDK default if empty).
	Region string

	// Endpoint is the S3 endpoint URL (optional, for S3-compatible
	// services such as MinIO).
	Endpoint string

	// KeyPrefix is prepended to every block key (e.g. "blocks/"). Should
	// end with "/" if non-empty.
	KeyPrefix string

	// ForcePathStyle forces path-style addressing, required by most
	// S3-compatible services.
	ForcePathStyle bool
}

// Store is an S3-backed implementation of objectstore.Store.
type Store struct {
	mu        sync.RWMutex
	client    *s3.Client
	bucket    string
	keyPrefix string
	closed    bool
}

// New wraps an existing S3 client as an object store.
func New(client *s3.Client, cfg Config) *Store {
	return &Store{client: client, bucket: cfg.Bucket, keyPrefix: cfg.KeyPrefix}
}

// NewFromConfig builds an S3 client from cfg and wraps it as an object
// store. This is the preferred constructor when the caller has no
// existing *s3.Client.
func NewFromConfig(ctx context.Context, cfg Config) (*Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("objectstore/s3: load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)
	return New(client, cfg), nil
}

// fullKey returns the full S3 object key for hash.
func (s *Store) fullKey(hash hashsum.Hash) string {
	return s.keyPrefix + hash.Hex()
}

// WriteBlock writes data under hash. S3 objects are immutable-by-key in
// practice here: Store never reads-before-write to check for existing
// content, since PutObject on an identical key with identical bytes is
// already a no-op from the caller's perspective and a differing-content
// write would indicate a hash collision the object store cannot detect
// without an extra GetObject round trip on every write.
func (s *Store) WriteBlock(ctx context.Context, hash hashsum.Hash, data []byte) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return objectstore.ErrStoreClosed
	}
	s.mu.RUnlock()

	_, span := telemetry.StartObjectStoreSpan(ctx, "write", hash.Hex(), telemetry.FileSize(int64(len(data))))
	defer span.End()

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(hash)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("objectstore/s3: put object: %w", err)
	}
	return nil
}

// ReadBlock reads the complete block stored under hash.
func (s *Store) ReadBlock(ctx context.Context, hash hashsum.Hash) ([]byte, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, objectstore.ErrStoreClosed
	}
	s.mu.RUnlock()

	_, span := telemetry.StartObjectStoreSpan(ctx, "read", hash.Hex())
	defer span.End()

	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(hash)),
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, objectstore.ErrBlockNotFound
		}
		return nil, fmt.Errorf("objectstore/s3: get object: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("objectstore/s3: read object body: %w", err)
	}
	return data, nil
}

// Has reports whether hash's object exists, via a HeadObject call.
func (s *Store) Has(ctx context.Context, hash hashsum.Hash) (bool, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return false, objectstore.ErrStoreClosed
	}
	s.mu.RUnlock()

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(hash)),
	})
	if err != nil {
		if isNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("objectstore/s3: head object: %w", err)
	}
	return true, nil
}

// Needed returns the subset of candidates not present in the bucket.
func (s *Store) Needed(ctx context.Context, candidates []hashsum.Hash) ([]hashsum.Hash, error) {
	needed := make([]hashsum.Hash, 0, len(candidates))
	for _, h := range candidates {
		present, err := s.Has(ctx, h)
		if err != nil {
			return nil, err
		}
		if !present {
			needed = append(needed, h)
		}
	}
	return needed, nil
}

// Close marks the store as closed. The underlying S3 client has no
// connection to tear down.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// HealthCheck verifies the bucket is reachable via HeadBucket.
func (s *Store) HealthCheck(ctx context.Context) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return objectstore.ErrStoreClosed
	}
	s.mu.RUnlock()

	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("objectstore/s3: health check: %w", err)
	}
	return nil
}

// isNotFoundError reports whether err represents an S3 "no such key/object"
// condition by matching "NoSuchKey", "NotFound" or "404" in the error
// text, which covers both the SDK's typed errors and gateways (e.g. some
// S3-compatible services) that return an untyped error for missing
// objects.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "NoSuchKey") ||
		strings.Contains(errStr, "NotFound") ||
		strings.Contains(errStr, "404")
}

var _ objectstore.Store = (*Store)(nil)
