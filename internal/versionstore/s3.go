package versionstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/alexisbeaulieu97/commons/internal/resource"
	"github.com/alexisbeaulieu97/commons/internal/version"
)

// ObjectStore is the subset of the S3 client the store needs.
type ObjectStore interface {
	resource.ObjectGetter
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Options configures an S3Store.
type S3Options[T any] struct {
	Bucket string
	Prefix string
	// Key maps a target to its object name below Prefix.
	Key            func(T) string
	DefaultVersion string
}

// S3Store keeps one YAML record object per target.
type S3Store[T any] struct {
	client   ObjectStore
	bucket   string
	prefix   string
	key      func(T) string
	fallback *version.Version
	now      func() time.Time
}

// NewS3Store validates opts and returns a store backed by client.
func NewS3Store[T any](client ObjectStore, opts S3Options[T]) (*S3Store[T], error) {
	if client == nil {
		return nil, fmt.Errorf("s3 version store requires a client")
	}
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 version store requires a bucket")
	}
	if opts.Key == nil {
		return nil, fmt.Errorf("s3 version store requires a key mapping")
	}
	store := &S3Store[T]{
		client: client,
		bucket: opts.Bucket,
		prefix: strings.Trim(opts.Prefix, "/"),
		key:    opts.Key,
		now:    time.Now,
	}
	if opts.DefaultVersion != "" {
		v, err := version.Parse(opts.DefaultVersion)
		if err != nil {
			return nil, fmt.Errorf("default version: %w", err)
		}
		store.fallback = &v
	}
	return store, nil
}

// ObjectKey returns the object key holding target's record.
func (s *S3Store[T]) ObjectKey(target T) string {
	name := strings.Trim(s.key(target), "/") + ".yaml"
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// GetVersion implements upgrade.VersionProvider.
func (s *S3Store[T]) GetVersion(ctx context.Context, target T) (version.Version, error) {
	key := s.ObjectKey(target)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if resource.IsS3NotFound(err) {
			if s.fallback != nil {
				return *s.fallback, nil
			}
			return version.Version{}, fmt.Errorf("%w: s3://%s/%s", ErrNoVersion, s.bucket, key)
		}
		return version.Version{}, fmt.Errorf("get s3://%s/%s: %w", s.bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return version.Version{}, fmt.Errorf("read s3://%s/%s: %w", s.bucket, key, err)
	}
	return decodeRecord(data, "s3://"+s.bucket+"/"+key)
}

// SetVersion implements upgrade.VersionProvider.
func (s *S3Store[T]) SetVersion(ctx context.Context, target T, v version.Version) error {
	data, err := encodeRecord(v, s.now())
	if err != nil {
		return fmt.Errorf("encode version record: %w", err)
	}

	key := s.ObjectKey(target)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/yaml"),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}
